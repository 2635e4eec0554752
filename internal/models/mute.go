package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidMute мьют не прошел валидацию
var ErrInvalidMute = errors.New("invalid alert mute")

// AlertMute временная блокировка уведомлений по правилу и/или хосту.
// Блокируется только доставка, создание алертов продолжается.
type AlertMute struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RuleID    *primitive.ObjectID `bson:"rule_id,omitempty" json:"rule_id,omitempty"`
	HostID    string              `bson:"host_id,omitempty" json:"host_id,omitempty"`
	Reason    string              `bson:"reason,omitempty" json:"reason,omitempty"`
	MutedBy   string              `bson:"muted_by" json:"muted_by"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	ExpiresAt *time.Time          `bson:"expires_at,omitempty" json:"expires_at,omitempty"` // nil = бессрочно
}

// Validate проверяет область действия мьюта
func (m *AlertMute) Validate() error {
	if m.RuleID == nil && m.HostID == "" {
		return fmt.Errorf("%w: mute requires rule_id, host_id, or both", ErrInvalidMute)
	}
	return nil
}

// IsActive активен ли мьют в момент now
func (m *AlertMute) IsActive(now time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

// Matches подходит ли мьют под пару (rule, host): если задан rule_id,
// правило должно совпасть; если задан host_id, хост должен совпасть.
// Пустое поле означает "любой".
func (m *AlertMute) Matches(ruleID primitive.ObjectID, hostID string) bool {
	if m.RuleID != nil && *m.RuleID != ruleID {
		return false
	}
	if m.HostID != "" && m.HostID != hostID {
		return false
	}
	return true
}
