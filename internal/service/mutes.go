package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
)

// muteRepo хранилище заглушек
type muteRepo interface {
	Create(ctx context.Context, mute *models.AlertMute) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertMute, error)
	GetActive(ctx context.Context, now time.Time) ([]models.AlertMute, error)
	GetAll(ctx context.Context) ([]models.AlertMute, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MuteRegistry управляет заглушками уведомлений.
// Заглушка подавляет только доставку, создание алертов продолжается.
type MuteRegistry struct {
	repo muteRepo
	log  *logger.Logger
	now  func() time.Time
}

// NewMuteRegistry создает новый реестр заглушек
func NewMuteRegistry(repo muteRepo, log *logger.Logger) *MuteRegistry {
	return &MuteRegistry{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// IsMuted проверяет, заглушена ли пара (правило, хост) активной заглушкой
func (r *MuteRegistry) IsMuted(ctx context.Context, ruleID primitive.ObjectID, hostID string) (bool, error) {
	now := r.now().UTC()

	active, err := r.repo.GetActive(ctx, now)
	if err != nil {
		return false, fmt.Errorf("failed to load active mutes: %w", err)
	}

	for i := range active {
		if !active[i].IsActive(now) {
			continue
		}
		if active[i].Matches(ruleID, hostID) {
			return true, nil
		}
	}
	return false, nil
}

// Mute создает заглушку. Хотя бы одна из областей (правило, хост) обязательна.
// Нулевая длительность означает бессрочную заглушку.
func (r *MuteRegistry) Mute(ctx context.Context, ruleID *primitive.ObjectID, hostID, reason, mutedBy string, duration time.Duration) (*models.AlertMute, error) {
	now := r.now().UTC()

	mute := &models.AlertMute{
		ID:        primitive.NewObjectID(),
		RuleID:    ruleID,
		HostID:    hostID,
		Reason:    reason,
		MutedBy:   mutedBy,
		CreatedAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		mute.ExpiresAt = &expires
	}

	if err := mute.Validate(); err != nil {
		return nil, err
	}
	if err := r.repo.Create(ctx, mute); err != nil {
		return nil, fmt.Errorf("failed to create mute: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"mute_id": mute.ID.Hex(),
		"host_id": hostID,
	}).Info("Alert mute created")

	return mute, nil
}

// Unmute удаляет заглушку
func (r *MuteRegistry) Unmute(ctx context.Context, id primitive.ObjectID) error {
	return r.repo.Delete(ctx, id)
}

// List возвращает все заглушки, включая истекшие
func (r *MuteRegistry) List(ctx context.Context) ([]models.AlertMute, error) {
	return r.repo.GetAll(ctx)
}

// CleanupExpired удаляет истекшие заглушки
func (r *MuteRegistry) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := r.repo.DeleteExpired(ctx, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired mutes: %w", err)
	}
	if removed > 0 {
		r.log.WithField("count", removed).Info("Expired mutes removed")
	}
	return removed, nil
}
