package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
	"github.com/netwarden/netwarden/pkg/messaging"
)

// ruleRepo хранилище правил алертинга
type ruleRepo interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error)
	GetEnabled(ctx context.Context) ([]models.AlertRule, error)
	GetAll(ctx context.Context) ([]models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	SetEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// channelStore хранилище каналов уведомлений для CRUD операций
type channelStore interface {
	Create(ctx context.Context, channel *models.NotificationChannel) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error)
	GetAll(ctx context.Context) ([]models.NotificationChannel, error)
	Update(ctx context.Context, channel *models.NotificationChannel) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// alertQueries запросы по алертам помимо жизненного цикла
type alertQueries interface {
	GetAlerts(ctx context.Context, openOnly bool, severity models.Severity, limit int64) ([]models.Alert, error)
	GetSummary(ctx context.Context) (*models.AlertSummary, error)
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EngineConfig параметры работы движка
type EngineConfig struct {
	Interval     time.Duration
	PassTimeout  time.Duration
	Concurrency  int
	StaleAfter   time.Duration
	RetentionAge time.Duration
}

// firing сработавшее правило для конкретного хоста
type firing struct {
	rule  models.AlertRule
	host  string
	value float64
}

// AlertEngine координирует оценку правил, жизненный цикл алертов и доставку
type AlertEngine struct {
	rules     ruleRepo
	channels  channelStore
	queries   alertQueries
	store     *AlertStore
	evaluator *RuleEvaluator
	cooldown  *CooldownTracker
	mutes     *MuteRegistry
	router    *NotificationRouter
	dispatch  *ChannelDispatcher
	stats     *DispatchStatsCollector
	source    MetricSource
	publisher messaging.Publisher
	log       *logger.Logger
	cfg       EngineConfig

	statusMu   sync.Mutex
	lastStatus map[string]models.HostStatus
}

// NewAlertEngine создает движок алертинга
func NewAlertEngine(
	rules ruleRepo,
	channels channelStore,
	queries alertQueries,
	store *AlertStore,
	cooldown *CooldownTracker,
	mutes *MuteRegistry,
	router *NotificationRouter,
	dispatch *ChannelDispatcher,
	source MetricSource,
	publisher messaging.Publisher,
	log *logger.Logger,
	cfg EngineConfig,
) *AlertEngine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &AlertEngine{
		rules:      rules,
		channels:   channels,
		queries:    queries,
		store:      store,
		evaluator:  NewRuleEvaluator(),
		cooldown:   cooldown,
		mutes:      mutes,
		router:     router,
		dispatch:   dispatch,
		stats:      NewDispatchStatsCollector(),
		source:     source,
		publisher:  publisher,
		log:        log,
		cfg:        cfg,
		lastStatus: make(map[string]models.HostStatus),
	}
}

// Run запускает периодическую оценку правил и обслуживающие задачи
func (e *AlertEngine) Run(ctx context.Context) {
	e.log.WithField("interval", e.cfg.Interval.String()).Info("Alert engine started")

	evalTicker := time.NewTicker(e.cfg.Interval)
	defer evalTicker.Stop()

	maintenanceTicker := time.NewTicker(5 * time.Minute)
	defer maintenanceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Alert engine stopped")
			return
		case <-evalTicker.C:
			RecordWorkerRun("alert_engine")
			if _, err := e.EvaluatePass(ctx); err != nil {
				RecordWorkerError("alert_engine")
				e.log.WithError(err).Error("Evaluation pass failed")
			}
		case <-maintenanceTicker.C:
			RecordWorkerRun("alert_maintenance")
			e.runMaintenance(ctx)
		}
	}
}

// runMaintenance закрывает протухшие алерты, чистит заглушки и старые записи
func (e *AlertEngine) runMaintenance(ctx context.Context) {
	if e.cfg.StaleAfter > 0 {
		if n, err := e.store.ResolveStale(ctx, e.cfg.StaleAfter); err != nil {
			RecordWorkerError("alert_maintenance")
			e.log.WithError(err).Error("Stale alert resolution failed")
		} else if n > 0 {
			e.log.WithField("count", n).Info("Stale alerts resolved")
		}
	}

	if _, err := e.mutes.CleanupExpired(ctx); err != nil {
		RecordWorkerError("alert_maintenance")
		e.log.WithError(err).Error("Mute cleanup failed")
	}

	if e.cfg.RetentionAge > 0 {
		cutoff := time.Now().UTC().Add(-e.cfg.RetentionAge)
		if n, err := e.queries.DeleteResolvedBefore(ctx, cutoff); err != nil {
			RecordWorkerError("alert_maintenance")
			e.log.WithError(err).Error("Alert retention sweep failed")
		} else if n > 0 {
			e.log.WithField("count", n).Info("Old resolved alerts removed")
		}
	}
}

// EvaluatePass выполняет один полный проход оценки всех включенных правил
// и возвращает алерты, открытые в этом проходе.
func (e *AlertEngine) EvaluatePass(ctx context.Context) ([]models.Alert, error) {
	start := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()

	passCtx, cancel := context.WithTimeout(ctx, e.cfg.PassTimeout)
	defer cancel()

	rules, err := e.rules.GetEnabled(passCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	hosts, err := e.source.Hosts(passCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	firings, statuses := e.evaluateRules(passCtx, rules, hosts)

	var fired []models.Alert
	for i := range firings {
		alert, isNew, err := e.processFiring(passCtx, &firings[i])
		if err != nil {
			e.log.WithError(err).WithFields(map[string]interface{}{
				"rule_id": firings[i].rule.ID.Hex(),
				"host_id": firings[i].host,
			}).Error("Failed to process firing")
			continue
		}
		if isNew {
			fired = append(fired, *alert)
		}
	}

	// Базовая линия статусов обновляется после прохода
	e.statusMu.Lock()
	for host, status := range statuses {
		e.lastStatus[host] = status
	}
	e.statusMu.Unlock()

	e.log.WithFields(map[string]interface{}{
		"rules":    len(rules),
		"hosts":    len(hosts),
		"firings":  len(firings),
		"duration": time.Since(start).String(),
	}).Debug("Evaluation pass completed")

	return fired, nil
}

// evaluateRules оценивает правила параллельно и собирает срабатывания
func (e *AlertEngine) evaluateRules(ctx context.Context, rules []models.AlertRule, hosts []string) ([]firing, map[string]models.HostStatus) {
	var (
		mu       sync.Mutex
		firings  []firing
		statuses = make(map[string]models.HostStatus)
	)

	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup

	for i := range rules {
		wg.Add(1)
		go func(rule models.AlertRule) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ruleFirings, ruleStatuses, err := e.evaluateRule(ctx, &rule, hosts)
			if err != nil {
				ruleEvaluationErrors.Inc()
				e.log.WithError(err).WithField("rule_id", rule.ID.Hex()).Error("Rule evaluation failed")
				return
			}

			mu.Lock()
			firings = append(firings, ruleFirings...)
			for host, status := range ruleStatuses {
				statuses[host] = status
			}
			mu.Unlock()
		}(rules[i])
	}

	wg.Wait()
	return firings, statuses
}

// evaluateRule оценивает одно правило для всех хостов из его области
func (e *AlertEngine) evaluateRule(ctx context.Context, rule *models.AlertRule, allHosts []string) ([]firing, map[string]models.HostStatus, error) {
	targets := allHosts
	if rule.HostID != "" {
		targets = []string{rule.HostID}
	}

	var firings []firing
	statuses := make(map[string]models.HostStatus)

	for _, host := range targets {
		switch rule.RuleType {
		case models.RuleTypeThreshold:
			value, ok, err := e.source.LatestReading(ctx, host, rule.MetricName)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read metric %s for host %s: %w", rule.MetricName, host, err)
			}
			if !ok {
				continue
			}
			reading := models.Reading{
				HostID:     host,
				MetricName: rule.MetricName,
				Value:      value,
				Timestamp:  time.Now().UTC(),
			}
			outcome, err := e.evaluator.EvaluateThreshold(rule, reading)
			if err != nil {
				return nil, nil, err
			}
			if outcome.Fires {
				firings = append(firings, firing{rule: *rule, host: host, value: outcome.Value})
			}

		case models.RuleTypeStatusChange:
			current, err := e.source.LatestStatus(ctx, host)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read status for host %s: %w", host, err)
			}
			statuses[host] = current

			e.statusMu.Lock()
			prev := e.lastStatus[host]
			e.statusMu.Unlock()

			outcome, err := e.evaluator.EvaluateStatusChange(rule, prev, current)
			if err != nil {
				return nil, nil, err
			}
			if outcome.Fires {
				value := 0.0
				if current == models.HostStatusOnline {
					value = 1.0
				}
				firings = append(firings, firing{rule: *rule, host: host, value: value})
			}
		}
	}

	return firings, statuses, nil
}

// processFiring проводит срабатывание через жизненный цикл и доставку
func (e *AlertEngine) processFiring(ctx context.Context, f *firing) (*models.Alert, bool, error) {
	alert, isNew, err := e.store.OpenOrRefresh(ctx, &f.rule, f.host, f.value)
	if err != nil {
		return nil, false, err
	}

	// Продолжающийся алерт только обновляет last_seen_at и никогда
	// не уведомляет повторно
	if !isNew {
		return alert, false, nil
	}

	e.log.WithFields(map[string]interface{}{
		"alert_id": alert.ID.Hex(),
		"rule":     f.rule.Name,
		"host_id":  f.host,
		"severity": string(f.rule.Severity),
	}).Info("Alert fired")
	e.publishEvent("alert.fired."+string(f.rule.Severity), alert, "")

	muted, err := e.mutes.IsMuted(ctx, f.rule.ID, f.host)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check mutes: %w", err)
	}
	if muted {
		notificationsSuppressed.WithLabelValues("mute").Inc()
		return alert, isNew, nil
	}

	if !e.cooldown.ShouldNotify(&f.rule, f.host) {
		notificationsSuppressed.WithLabelValues("cooldown").Inc()
		return alert, isNew, nil
	}

	channels, err := e.router.Route(ctx, alert, &f.rule)
	if err != nil {
		return nil, false, fmt.Errorf("failed to route notification: %w", err)
	}
	if len(channels) == 0 {
		return alert, isNew, nil
	}

	results := e.dispatch.Dispatch(ctx, alert, channels)
	e.stats.Observe(results)
	e.cooldown.RecordNotified(f.rule.ID, f.host)

	for i := range results {
		if !results[i].Success {
			e.publishEvent("alert.dispatch.failed", alert, results[i].Error)
		}
	}

	return alert, isNew, nil
}

// publishEvent отправляет событие алерта в шину сообщений
func (e *AlertEngine) publishEvent(eventType string, alert *models.Alert, detail string) {
	if e.publisher == nil {
		return
	}

	event := models.AlertEvent{
		Type:      eventType,
		AlertID:   alert.ID.Hex(),
		RuleID:    alert.RuleID.Hex(),
		RuleName:  alert.RuleName,
		HostID:    alert.HostID,
		Severity:  alert.Severity,
		Timestamp: time.Now().UTC(),
	}
	if detail != "" {
		event.Metadata = map[string]interface{}{"detail": detail}
	}

	if err := e.publisher.Publish(messaging.AlertsExchange, eventType, event); err != nil {
		e.log.WithError(err).WithField("event_type", eventType).Error("Failed to publish alert event")
	}
}

// Acknowledge подтверждает алерт и публикует событие
func (e *AlertEngine) Acknowledge(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	alert, err := e.store.Acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	e.publishEvent("alert.acknowledged", alert, "")
	return alert, nil
}

// Resolve закрывает алерт и публикует событие
func (e *AlertEngine) Resolve(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	alert, err := e.store.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	e.publishEvent("alert.resolved", alert, "")
	return alert, nil
}

// GetAlerts возвращает алерты с фильтрами
func (e *AlertEngine) GetAlerts(ctx context.Context, openOnly bool, severity models.Severity, limit int64) ([]models.Alert, error) {
	return e.queries.GetAlerts(ctx, openOnly, severity, limit)
}

// GetSummary возвращает сводку по алертам
func (e *AlertEngine) GetSummary(ctx context.Context) (*models.AlertSummary, error) {
	return e.queries.GetSummary(ctx)
}

// DispatchStats возвращает статистику доставки по типам каналов
func (e *AlertEngine) DispatchStats() []ChannelStats {
	return e.stats.Snapshot()
}

// CreateRule проверяет и сохраняет правило
func (e *AlertEngine) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return e.rules.Create(ctx, rule)
}

// GetRule возвращает правило по идентификатору
func (e *AlertEngine) GetRule(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error) {
	return e.rules.GetByID(ctx, id)
}

// ListRules возвращает все правила
func (e *AlertEngine) ListRules(ctx context.Context) ([]models.AlertRule, error) {
	return e.rules.GetAll(ctx)
}

// UpdateRule проверяет и обновляет правило
func (e *AlertEngine) UpdateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return e.rules.Update(ctx, rule)
}

// SetRuleEnabled включает или выключает правило
func (e *AlertEngine) SetRuleEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error {
	return e.rules.SetEnabled(ctx, id, enabled)
}

// DeleteRule удаляет правило и его состояние кулдауна
func (e *AlertEngine) DeleteRule(ctx context.Context, id primitive.ObjectID) error {
	if err := e.rules.Delete(ctx, id); err != nil {
		return err
	}
	e.cooldown.Forget(id)
	return nil
}

// CreateChannel проверяет и сохраняет канал уведомлений
func (e *AlertEngine) CreateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	return e.channels.Create(ctx, channel)
}

// GetChannel возвращает канал по идентификатору
func (e *AlertEngine) GetChannel(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	return e.channels.GetByID(ctx, id)
}

// ListChannels возвращает все каналы
func (e *AlertEngine) ListChannels(ctx context.Context) ([]models.NotificationChannel, error) {
	return e.channels.GetAll(ctx)
}

// UpdateChannel обновляет канал и сбрасывает его кэш
func (e *AlertEngine) UpdateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	if err := e.channels.Update(ctx, channel); err != nil {
		return err
	}
	e.router.InvalidateChannel(ctx, channel.ID)
	return nil
}

// DeleteChannel удаляет канал и сбрасывает его кэш
func (e *AlertEngine) DeleteChannel(ctx context.Context, id primitive.ObjectID) error {
	if err := e.channels.Delete(ctx, id); err != nil {
		return err
	}
	e.router.InvalidateChannel(ctx, id)
	return nil
}

// Mute создает заглушку уведомлений
func (e *AlertEngine) Mute(ctx context.Context, ruleID *primitive.ObjectID, hostID, reason, mutedBy string, duration time.Duration) (*models.AlertMute, error) {
	return e.mutes.Mute(ctx, ruleID, hostID, reason, mutedBy, duration)
}

// Unmute удаляет заглушку
func (e *AlertEngine) Unmute(ctx context.Context, id primitive.ObjectID) error {
	return e.mutes.Unmute(ctx, id)
}

// ListMutes возвращает все заглушки
func (e *AlertEngine) ListMutes(ctx context.Context) ([]models.AlertMute, error) {
	return e.mutes.List(ctx)
}
