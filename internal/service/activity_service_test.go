package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, q listquery.Query) ([]models.ActivityLog, int64, error) {
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Programmer",
		Action:     "User.Password_Reset",
		EntityType: "user",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"new_password": "secret",
			"field":        "password_hash",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["new_password"])
	require.Equal(t, "password_hash", entry.Metadata["field"])
	require.Equal(t, "programmer", entry.ActorRole)
	require.Equal(t, "user.password_reset", entry.Action)
	require.Len(t, repo.entries, 1)
}

func TestActivityServiceRequiresAction(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "halqa"})
	require.Error(t, err)
	require.Empty(t, repo.entries)
}

func TestActivityMetadataShortensLongText(t *testing.T) {
	metadata := sanitizeMetadata(map[string]interface{}{
		"notes":         strings.Repeat("ب", maxMetadataText+50),
		"session_token": "abc",
		"count":         3,
	})

	require.Len(t, []rune(metadata["notes"].(string)), maxMetadataText+1)
	require.Equal(t, "***", metadata["session_token"])
	require.Equal(t, 3, metadata["count"])
	require.NotNil(t, sanitizeMetadata(nil))
}

func TestNormalizeRoleDefaultsToSystem(t *testing.T) {
	require.Equal(t, "system", normalizeRole("  "))
	require.Equal(t, "teacher", normalizeRole("Teacher"))
}

func ptrUint(v uint) *uint {
	return &v
}
