package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/cache"
	"github.com/netwarden/netwarden/pkg/database"
)

// fakeAlertRepo is an in-memory alert repository used across service tests.
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[primitive.ObjectID]*models.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[primitive.ObjectID]*models.Alert)}
}

func (f *fakeAlertRepo) Insert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *alert
	f.alerts[alert.ID] = &copied
	return nil
}

func (f *fakeAlertRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *alert
	return &copied, nil
}

func (f *fakeAlertRepo) FindOpen(_ context.Context, ruleID primitive.ObjectID, hostID string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, alert := range f.alerts {
		if alert.RuleID == ruleID && alert.HostID == hostID && alert.Status.IsOpen() {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeAlertRepo) Refresh(_ context.Context, id primitive.ObjectID, lastSeen time.Time, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return database.ErrNotFound
	}
	alert.LastSeenAt = lastSeen
	alert.ValueObserved = value
	return nil
}

func (f *fakeAlertRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.AlertStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return database.ErrNotFound
	}
	alert.Status = status
	switch status {
	case models.AlertStatusAcknowledged:
		alert.AcknowledgedAt = &at
	case models.AlertStatusResolved:
		alert.ResolvedAt = &at
	}
	return nil
}

func (f *fakeAlertRepo) GetOpen(_ context.Context) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, alert := range f.alerts {
		if alert.Status.IsOpen() {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) GetOpenStale(_ context.Context, olderThan time.Time) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, alert := range f.alerts {
		if alert.Status.IsOpen() && alert.LastSeenAt.Before(olderThan) {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) GetAlerts(_ context.Context, openOnly bool, severity models.Severity, limit int64) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, alert := range f.alerts {
		if openOnly && !alert.Status.IsOpen() {
			continue
		}
		if severity != "" && alert.Severity != severity {
			continue
		}
		out = append(out, *alert)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) GetSummary(_ context.Context) (*models.AlertSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &models.AlertSummary{
		BySeverity: make(map[string]int64),
		ByStatus:   make(map[string]int64),
	}
	for _, alert := range f.alerts {
		summary.TotalAlerts++
		if alert.Status.IsOpen() {
			summary.OpenCount++
		}
		summary.BySeverity[string(alert.Severity)]++
		summary.ByStatus[string(alert.Status)]++
	}
	return summary, nil
}

func (f *fakeAlertRepo) DeleteResolvedBefore(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, alert := range f.alerts {
		if alert.Status == models.AlertStatusResolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(olderThan) {
			delete(f.alerts, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeAlertRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// fakeRuleRepo is an in-memory rule repository.
type fakeRuleRepo struct {
	mu    sync.Mutex
	rules map[primitive.ObjectID]*models.AlertRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[primitive.ObjectID]*models.AlertRule)}
}

func (f *fakeRuleRepo) Create(_ context.Context, rule *models.AlertRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}
	copied := *rule
	f.rules[rule.ID] = &copied
	return nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *rule
	return &copied, nil
}

func (f *fakeRuleRepo) GetEnabled(_ context.Context) ([]models.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertRule
	for _, rule := range f.rules {
		if rule.Enabled {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) GetAll(_ context.Context) ([]models.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertRule
	for _, rule := range f.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *models.AlertRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[rule.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *rule
	f.rules[rule.ID] = &copied
	return nil
}

func (f *fakeRuleRepo) SetEnabled(_ context.Context, id primitive.ObjectID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[id]
	if !ok {
		return database.ErrNotFound
	}
	rule.Enabled = enabled
	return nil
}

func (f *fakeRuleRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

// fakeChannelRepo is an in-memory channel repository.
type fakeChannelRepo struct {
	mu       sync.Mutex
	channels map[primitive.ObjectID]*models.NotificationChannel
	getCalls int
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: make(map[primitive.ObjectID]*models.NotificationChannel)}
}

func (f *fakeChannelRepo) Create(_ context.Context, channel *models.NotificationChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel.ID.IsZero() {
		channel.ID = primitive.NewObjectID()
	}
	copied := *channel
	f.channels[channel.ID] = &copied
	return nil
}

func (f *fakeChannelRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	channel, ok := f.channels[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *channel
	return &copied, nil
}

func (f *fakeChannelRepo) GetAll(_ context.Context) ([]models.NotificationChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NotificationChannel
	for _, channel := range f.channels {
		out = append(out, *channel)
	}
	return out, nil
}

func (f *fakeChannelRepo) Update(_ context.Context, channel *models.NotificationChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channel.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *channel
	f.channels[channel.ID] = &copied
	return nil
}

func (f *fakeChannelRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.channels, id)
	return nil
}

// fakeMuteRepo is an in-memory mute repository.
type fakeMuteRepo struct {
	mu    sync.Mutex
	mutes map[primitive.ObjectID]*models.AlertMute
}

func newFakeMuteRepo() *fakeMuteRepo {
	return &fakeMuteRepo{mutes: make(map[primitive.ObjectID]*models.AlertMute)}
}

func (f *fakeMuteRepo) Create(_ context.Context, mute *models.AlertMute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mute.ID.IsZero() {
		mute.ID = primitive.NewObjectID()
	}
	copied := *mute
	f.mutes[mute.ID] = &copied
	return nil
}

func (f *fakeMuteRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.AlertMute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mute, ok := f.mutes[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *mute
	return &copied, nil
}

func (f *fakeMuteRepo) GetActive(_ context.Context, now time.Time) ([]models.AlertMute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertMute
	for _, mute := range f.mutes {
		if mute.IsActive(now) {
			out = append(out, *mute)
		}
	}
	return out, nil
}

func (f *fakeMuteRepo) GetAll(_ context.Context) ([]models.AlertMute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertMute
	for _, mute := range f.mutes {
		out = append(out, *mute)
	}
	return out, nil
}

func (f *fakeMuteRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mutes[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.mutes, id)
	return nil
}

func (f *fakeMuteRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, mute := range f.mutes {
		if mute.ExpiresAt != nil && mute.ExpiresAt.Before(now) {
			delete(f.mutes, id)
			removed++
		}
	}
	return removed, nil
}

// fakeCache is an in-memory channel cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

// fakeSource returns canned readings and statuses.
type fakeSource struct {
	mu       sync.Mutex
	readings map[string]float64 // "host|metric" -> value
	statuses map[string]models.HostStatus
	hosts    []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		readings: make(map[string]float64),
		statuses: make(map[string]models.HostStatus),
	}
}

func (f *fakeSource) setReading(hostID, metric string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[hostID+"|"+metric] = value
}

func (f *fakeSource) LatestReading(_ context.Context, hostID, metricName string) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.readings[hostID+"|"+metricName]
	return value, ok, nil
}

func (f *fakeSource) LatestStatus(_ context.Context, hostID string) (models.HostStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[hostID]
	if !ok {
		return models.HostStatusUnknown, nil
	}
	return status, nil
}

func (f *fakeSource) Hosts(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hosts...), nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	message    interface{}
}

func (f *fakePublisher) Publish(exchange, routingKey string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{exchange: exchange, routingKey: routingKey, message: message})
	return nil
}

func (f *fakePublisher) eventsFor(routingKey string) []models.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.AlertEvent
	for _, e := range f.events {
		if e.routingKey != routingKey {
			continue
		}
		if event, ok := e.message.(models.AlertEvent); ok {
			events = append(events, event)
		}
	}
	return events
}

func (f *fakePublisher) routingKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.events))
	for _, e := range f.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

// fakeNotifier records sent payloads and optionally fails or blocks.
type fakeNotifier struct {
	channelType models.ChannelType
	failWith    error
	delay       time.Duration

	mu   sync.Mutex
	sent []NotificationPayload
}

func (f *fakeNotifier) Send(ctx context.Context, payload NotificationPayload) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeNotifier) Type() models.ChannelType { return f.channelType }

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
