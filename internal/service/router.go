package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/cache"
	"github.com/netwarden/netwarden/pkg/database"
	"github.com/netwarden/netwarden/pkg/logger"
)

// channelRepo хранилище каналов уведомлений
type channelRepo interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error)
}

// channelCache кэш каналов уведомлений
type channelCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NotificationRouter выбирает каналы доставки для алерта
type NotificationRouter struct {
	repo     channelRepo
	cache    channelCache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewNotificationRouter создает новый роутер уведомлений
func NewNotificationRouter(repo channelRepo, cache channelCache, cacheTTL time.Duration, log *logger.Logger) *NotificationRouter {
	return &NotificationRouter{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func channelCacheKey(id primitive.ObjectID) string {
	return "channel:" + id.Hex()
}

// Route возвращает каналы, подходящие для доставки алерта:
// включенные и с порогом серьезности не выше серьезности алерта.
// Порядок каналов правила сохраняется, дубликаты отбрасываются.
func (r *NotificationRouter) Route(ctx context.Context, alert *models.Alert, rule *models.AlertRule) ([]models.NotificationChannel, error) {
	seen := make(map[primitive.ObjectID]bool, len(rule.NotificationChannelIDs))
	result := make([]models.NotificationChannel, 0, len(rule.NotificationChannelIDs))

	for _, id := range rule.NotificationChannelIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		channel, err := r.getChannel(ctx, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				r.log.WithField("channel_id", id.Hex()).Warn("Rule references missing notification channel")
				continue
			}
			return nil, fmt.Errorf("failed to load channel %s: %w", id.Hex(), err)
		}

		if !channel.Enabled {
			continue
		}
		if models.SeverityRank(alert.Severity) < models.SeverityRank(channel.MinSeverity) {
			continue
		}

		result = append(result, *channel)
	}

	return result, nil
}

// getChannel загружает канал через кэш
func (r *NotificationRouter) getChannel(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	key := channelCacheKey(id)

	var cached models.NotificationChannel
	if err := r.cache.GetJSON(ctx, key, &cached); err == nil {
		channelCacheHits.Inc()
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		r.log.WithError(err).WithField("channel_id", id.Hex()).Warn("Channel cache read failed")
	}
	channelCacheMisses.Inc()

	channel, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, channel, r.cacheTTL); err != nil {
		r.log.WithError(err).WithField("channel_id", id.Hex()).Warn("Channel cache write failed")
	}

	return channel, nil
}

// InvalidateChannel сбрасывает кэш канала после его изменения или удаления
func (r *NotificationRouter) InvalidateChannel(ctx context.Context, id primitive.ObjectID) {
	if err := r.cache.Delete(ctx, channelCacheKey(id)); err != nil {
		r.log.WithError(err).WithField("channel_id", id.Hex()).Warn("Channel cache invalidation failed")
	}
}
