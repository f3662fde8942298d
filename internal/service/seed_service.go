package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

// ErrSeedDisabled indicates no bootstrap credentials were configured.
var ErrSeedDisabled = errors.New("bootstrap account is not configured")

// BootstrapAccount holds the credentials of the first programmer account.
type BootstrapAccount struct {
	Username string
	Password string
	FullName string
}

// SeedService creates the initial programmer account on an empty installation.
type SeedService interface {
	EnsureProgrammer(ctx context.Context) (bool, error)
}

type seedService struct {
	store   *repository.Store
	account BootstrapAccount
	logger  zerolog.Logger
}

// NewSeedService constructs the seeding service.
func NewSeedService(store *repository.Store, account BootstrapAccount, logger zerolog.Logger) SeedService {
	return &seedService{
		store:   store,
		account: account,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

// EnsureProgrammer reports whether an account was created. It does nothing when a programmer
// already exists.
func (s *seedService) EnsureProgrammer(ctx context.Context) (bool, error) {
	existing, err := s.store.Users.CountByRole(ctx, models.RoleProgrammer)
	if err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	username := strings.TrimSpace(s.account.Username)
	if username == "" || s.account.Password == "" {
		s.logger.Warn().Msg("no programmer account exists and no bootstrap credentials are configured")
		return false, ErrSeedDisabled
	}
	fullName := strings.TrimSpace(s.account.FullName)
	if fullName == "" {
		fullName = "System Programmer"
	}
	hash, err := hashPassword(s.account.Password)
	if err != nil {
		return false, err
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		user := models.User{
			Username:     &username,
			PasswordHash: hash,
			Role:         models.RoleProgrammer,
			FullName:     fullName,
			IsActive:     true,
		}
		if err := tx.Users.Create(ctx, &user); err != nil {
			return err
		}
		_, err := recordActivity(ctx, tx.Activity, ActivityEntry{
			Action:     "user.bootstrap",
			EntityType: "user",
			EntityID:   &user.ID,
			Metadata:   map[string]interface{}{"username": username},
		})
		return err
	})
	if err != nil {
		return false, err
	}

	s.logger.Info().Str("username", username).Msg("bootstrap programmer account created")
	return true, nil
}
