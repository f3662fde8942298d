package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

var (
	// ErrInvalidCredentials hides whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid identifier or password")
	// ErrInactiveAccount is returned for deactivated accounts.
	ErrInactiveAccount = errors.New("this account has been deactivated")
	// ErrInvalidSession is returned for missing, tampered or expired session tokens.
	ErrInvalidSession = errors.New("session is invalid or has expired")
)

// Session is an issued sign-in token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// AuthService signs users in and resolves session tokens back into request contexts.
type AuthService interface {
	Login(ctx context.Context, form url.Values) (Session, error)
	Resolve(ctx context.Context, token string) (RequestContext, error)
}

type authService struct {
	users     repository.UserRepository
	validator *validator.Validate
	secret    []byte
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, validator *validator.Validate, secret string, ttl time.Duration, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &authService{
		users:     users,
		validator: validator,
		secret:    []byte(secret),
		ttl:       ttl,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *authService) Login(ctx context.Context, form url.Values) (Session, error) {
	var payload dto.LoginForm
	if err := bindForm(s.validator, &payload, form); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByIdentifier(ctx, payload.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info().Str("identifier", payload.Identifier).Msg("login with unknown identifier")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		s.logger.Info().Uint("user_id", user.ID).Msg("login with wrong password")
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, ErrInactiveAccount
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}
	s.logger.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user signed in")
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Resolve validates the token and re-reads the account so deactivation and role changes apply
// on the next request.
func (s *authService) Resolve(ctx context.Context, tokenString string) (RequestContext, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return RequestContext{}, ErrInvalidSession
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return RequestContext{}, ErrInvalidSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return RequestContext{}, ErrInvalidSession
	}
	userID, err := subjectID(claims)
	if err != nil {
		return RequestContext{}, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestContext{}, ErrInvalidSession
		}
		return RequestContext{}, err
	}
	if !user.IsActive {
		return RequestContext{}, ErrInactiveAccount
	}
	return NewRequestContext(user), nil
}

func subjectID(claims jwt.MapClaims) (uint, error) {
	switch v := claims["sub"].(type) {
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(parsed), nil
	case float64:
		if v <= 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}
