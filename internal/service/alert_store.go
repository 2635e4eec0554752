package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/database"
	"github.com/netwarden/netwarden/pkg/logger"
)

// ErrInvalidTransition недопустимый переход статуса алерта
var ErrInvalidTransition = errors.New("invalid alert status transition")

// alertRepo хранилище алертов
type alertRepo interface {
	Insert(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error)
	FindOpen(ctx context.Context, ruleID primitive.ObjectID, hostID string) (*models.Alert, error)
	Refresh(ctx context.Context, id primitive.ObjectID, lastSeen time.Time, value float64) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AlertStatus, at time.Time) error
	GetOpen(ctx context.Context) ([]models.Alert, error)
	GetOpenStale(ctx context.Context, olderThan time.Time) ([]models.Alert, error)
}

// AlertStore управляет жизненным циклом алертов.
// Гарантирует не более одного открытого алерта на пару (правило, хост).
type AlertStore struct {
	repo alertRepo
	log  *logger.Logger
	mu   sync.Mutex
	now  func() time.Time
}

// NewAlertStore создает хранилище алертов
func NewAlertStore(repo alertRepo, log *logger.Logger) *AlertStore {
	return &AlertStore{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// OpenOrRefresh открывает новый алерт или обновляет существующий открытый.
// Возвращает алерт и признак того, что он был создан на этом вызове.
func (s *AlertStore) OpenOrRefresh(ctx context.Context, rule *models.AlertRule, hostID string, value float64) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	existing, err := s.repo.FindOpen(ctx, rule.ID, hostID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up open alert: %w", err)
	}
	if existing != nil {
		if err := s.repo.Refresh(ctx, existing.ID, now, value); err != nil {
			return nil, false, fmt.Errorf("failed to refresh alert: %w", err)
		}
		existing.LastSeenAt = now
		existing.ValueObserved = value
		alertsRefreshed.Inc()
		return existing, false, nil
	}

	alert := &models.Alert{
		ID:            primitive.NewObjectID(),
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		HostID:        hostID,
		Severity:      rule.Severity,
		Status:        models.AlertStatusTriggered,
		ValueObserved: value,
		OpenedAt:      now,
		LastSeenAt:    now,
	}
	if err := s.repo.Insert(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("failed to insert alert: %w", err)
	}

	alertsFired.WithLabelValues(string(rule.Severity), string(rule.RuleType)).Inc()
	activeAlerts.WithLabelValues(string(rule.Severity)).Inc()

	return alert, true, nil
}

// Acknowledge переводит алерт из triggered в acknowledged
func (s *AlertStore) Acknowledge(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertStatusTriggered {
		return nil, fmt.Errorf("%w: cannot acknowledge alert in status %s", ErrInvalidTransition, alert.Status)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.AlertStatusAcknowledged, now); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	alertsAcknowledged.Inc()

	return alert, nil
}

// Resolve переводит алерт из triggered или acknowledged в resolved
func (s *AlertStore) Resolve(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.IsOpen() {
		return nil, fmt.Errorf("%w: cannot resolve alert in status %s", ErrInvalidTransition, alert.Status)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.AlertStatusResolved, now); err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	alertsResolved.WithLabelValues("manual").Inc()
	activeAlerts.WithLabelValues(string(alert.Severity)).Dec()

	return alert, nil
}

// ResolveStale закрывает открытые алерты, не подтверждавшиеся дольше maxSilence.
// Возвращает количество закрытых алертов.
func (s *AlertStore) ResolveStale(ctx context.Context, maxSilence time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	cutoff := now.Add(-maxSilence)

	stale, err := s.repo.GetOpenStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale alerts: %w", err)
	}

	resolved := 0
	for i := range stale {
		if err := s.repo.UpdateStatus(ctx, stale[i].ID, models.AlertStatusResolved, now); err != nil {
			s.log.WithError(err).WithField("alert_id", stale[i].ID.Hex()).Error("Failed to resolve stale alert")
			continue
		}
		alertsResolved.WithLabelValues("stale").Inc()
		activeAlerts.WithLabelValues(string(stale[i].Severity)).Dec()
		resolved++
	}

	return resolved, nil
}

// GetOpen возвращает все открытые алерты
func (s *AlertStore) GetOpen(ctx context.Context) ([]models.Alert, error) {
	return s.repo.GetOpen(ctx)
}
