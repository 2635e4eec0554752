package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
)

func newTestRegistry(repo *fakeMuteRepo) *MuteRegistry {
	return NewMuteRegistry(repo, logger.NewNop())
}

func TestMuteRequiresScope(t *testing.T) {
	registry := newTestRegistry(newFakeMuteRepo())

	_, err := registry.Mute(context.Background(), nil, "", "maintenance", "ops", time.Hour)
	assert.ErrorIs(t, err, models.ErrInvalidMute)
}

func TestMuteScoping(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()
	otherRule := primitive.NewObjectID()

	// rule-only mute suppresses the rule on every host
	_, err := registry.Mute(context.Background(), &ruleID, "", "noisy rule", "ops", time.Hour)
	require.NoError(t, err)

	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = registry.IsMuted(context.Background(), ruleID, "host-2")
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = registry.IsMuted(context.Background(), otherRule, "host-1")
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestMuteHostScope(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()

	// host-only mute suppresses every rule on the host
	_, err := registry.Mute(context.Background(), nil, "host-1", "maintenance window", "ops", time.Hour)
	require.NoError(t, err)

	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = registry.IsMuted(context.Background(), ruleID, "host-2")
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestMuteCombinedScope(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()
	otherRule := primitive.NewObjectID()

	_, err := registry.Mute(context.Background(), &ruleID, "host-1", "", "ops", 0)
	require.NoError(t, err)

	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = registry.IsMuted(context.Background(), ruleID, "host-2")
	require.NoError(t, err)
	assert.False(t, muted)

	muted, err = registry.IsMuted(context.Background(), otherRule, "host-1")
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestMuteExpiry(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }

	_, err := registry.Mute(context.Background(), &ruleID, "", "short", "ops", 30*time.Minute)
	require.NoError(t, err)

	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.True(t, muted)

	registry.now = func() time.Time { return base.Add(time.Hour) }
	muted, err = registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestMuteIndefinite(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()

	mute, err := registry.Mute(context.Background(), &ruleID, "", "forever", "ops", 0)
	require.NoError(t, err)
	assert.Nil(t, mute.ExpiresAt)

	registry.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.True(t, muted)
}

func TestUnmute(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()
	mute, err := registry.Mute(context.Background(), &ruleID, "", "", "ops", 0)
	require.NoError(t, err)

	require.NoError(t, registry.Unmute(context.Background(), mute.ID))

	muted, err := registry.IsMuted(context.Background(), ruleID, "host-1")
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestCleanupExpired(t *testing.T) {
	repo := newFakeMuteRepo()
	registry := newTestRegistry(repo)

	ruleID := primitive.NewObjectID()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }

	_, err := registry.Mute(context.Background(), &ruleID, "", "expired", "ops", time.Minute)
	require.NoError(t, err)
	_, err = registry.Mute(context.Background(), nil, "host-1", "keeps", "ops", time.Hour)
	require.NoError(t, err)
	_, err = registry.Mute(context.Background(), nil, "host-2", "indefinite", "ops", 0)
	require.NoError(t, err)

	registry.now = func() time.Time { return base.Add(30 * time.Minute) }
	removed, err := registry.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := registry.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
