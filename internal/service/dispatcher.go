package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
)

const (
	defaultDispatchConcurrency = 5
	defaultSendTimeout         = 30 * time.Second
)

// ChannelDispatcher отправляет уведомление во все каналы параллельно.
// Сбой одного канала не влияет на остальные, повторных попыток нет.
type ChannelDispatcher struct {
	concurrency int
	sendTimeout time.Duration
	newNotifier func(channel *models.NotificationChannel) (Notifier, error)
	log         *logger.Logger
}

// NewChannelDispatcher создает новый диспетчер каналов
func NewChannelDispatcher(concurrency int, sendTimeout time.Duration, log *logger.Logger) *ChannelDispatcher {
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &ChannelDispatcher{
		concurrency: concurrency,
		sendTimeout: sendTimeout,
		newNotifier: NewNotifier,
		log:         log,
	}
}

// Dispatch доставляет уведомление во все переданные каналы.
// Возвращает результат по каждому каналу в исходном порядке.
func (d *ChannelDispatcher) Dispatch(ctx context.Context, alert *models.Alert, channels []models.NotificationChannel) []models.DispatchResult {
	results := make([]models.DispatchResult, len(channels))

	payload := NotificationPayload{
		AlertID:       alert.ID.Hex(),
		RuleName:      alert.RuleName,
		HostID:        alert.HostID,
		Severity:      alert.Severity,
		ValueObserved: alert.ValueObserved,
		OpenedAt:      alert.OpenedAt,
		Message:       fmt.Sprintf("Alert %s triggered on host %s (observed %g)", alert.RuleName, alert.HostID, alert.ValueObserved),
	}

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i := range channels {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = d.send(ctx, payload, &channels[idx])
		}(i)
	}

	wg.Wait()
	return results
}

// send выполняет одну попытку доставки с таймаутом
func (d *ChannelDispatcher) send(ctx context.Context, payload NotificationPayload, channel *models.NotificationChannel) models.DispatchResult {
	result := models.DispatchResult{
		AttemptID:   uuid.NewString(),
		ChannelID:   channel.ID,
		ChannelType: channel.ChannelType,
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		dispatchDuration.WithLabelValues(string(channel.ChannelType)).Observe(result.Duration.Seconds())

		status := "success"
		if !result.Success {
			status = "error"
		}
		dispatchesTotal.WithLabelValues(string(channel.ChannelType), status).Inc()
	}()

	notifier, err := d.newNotifier(channel)
	if err != nil {
		result.Error = err.Error()
		d.log.WithError(err).WithField("channel_id", channel.ID.Hex()).Error("Failed to build notifier")
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := notifier.Send(sendCtx, payload); err != nil {
		result.Error = err.Error()
		d.log.WithError(err).WithFields(map[string]interface{}{
			"channel_id":   channel.ID.Hex(),
			"channel_type": string(channel.ChannelType),
			"attempt_id":   result.AttemptID,
		}).Error("Notification dispatch failed")
		return result
	}

	result.Success = true
	return result
}
