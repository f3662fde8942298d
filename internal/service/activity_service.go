package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

// ActivityActor represents the authenticated actor performing a mutation.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the audit recorder used outside mutation transactions.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityRecorder {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error) {
	model, err := recordActivity(ctx, s.repo, entry)
	if err != nil {
		s.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to persist activity log")
		return models.ActivityLog{}, err
	}
	return model, nil
}

// recordActivity appends entry through repo, which may be bound to a transaction.
func recordActivity(ctx context.Context, repo repository.ActivityLogRepository, entry ActivityEntry) (models.ActivityLog, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return models.ActivityLog{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return models.ActivityLog{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}
	if err := repo.Create(ctx, &model); err != nil {
		return models.ActivityLog{}, err
	}
	return model, nil
}

// maxMetadataText caps free-text values copied into an audit entry.
const maxMetadataText = 200

// secretKeys never reach the audit trail in clear text.
var secretKeys = []string{"password", "token", "secret"}

// sanitizeMetadata masks secrets and shortens long text so audit rows stay small.
func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := make(datatypes.JSONMap, len(metadata))
	for key, value := range metadata {
		if isSecretKey(key) {
			sanitized[key] = "***"
			continue
		}
		if text, ok := value.(string); ok && len([]rune(text)) > maxMetadataText {
			value = string([]rune(text)[:maxMetadataText]) + "…"
		}
		sanitized[key] = value
	}
	return sanitized
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, secret := range secretKeys {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// normalizeRole lowercases the actor role; entries written without a signed-in actor, such as
// the bootstrap account, are attributed to "system".
func normalizeRole(role string) string {
	if r := strings.ToLower(strings.TrimSpace(role)); r != "" {
		return r
	}
	return "system"
}
