package service

import (
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
)

// CooldownTracker отслеживает время последнего уведомления по паре (правило, хост).
// Первое уведомление для пары отправляется всегда.
type CooldownTracker struct {
	mu           sync.Mutex
	lastNotified map[string]time.Time
	now          func() time.Time
}

// NewCooldownTracker создает новый трекер кулдаунов
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		lastNotified: make(map[string]time.Time),
		now:          time.Now,
	}
}

func cooldownKey(ruleID primitive.ObjectID, hostID string) string {
	return ruleID.Hex() + "|" + hostID
}

// ShouldNotify проверяет, прошел ли кулдаун правила для данного хоста
func (t *CooldownTracker) ShouldNotify(rule *models.AlertRule, hostID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastNotified[cooldownKey(rule.ID, hostID)]
	if !ok {
		return true
	}
	if rule.CooldownMinutes <= 0 {
		return true
	}

	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	return t.now().Sub(last) >= cooldown
}

// RecordNotified фиксирует отправку уведомления для пары (правило, хост)
func (t *CooldownTracker) RecordNotified(ruleID primitive.ObjectID, hostID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNotified[cooldownKey(ruleID, hostID)] = t.now()
}

// Forget удаляет состояние кулдауна для правила (при удалении правила)
func (t *CooldownTracker) Forget(ruleID primitive.ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := ruleID.Hex() + "|"
	for key := range t.lastNotified {
		if strings.HasPrefix(key, prefix) {
			delete(t.lastNotified, key)
		}
	}
}
