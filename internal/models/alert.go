package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidRule правило не прошло валидацию
var ErrInvalidRule = errors.New("invalid alert rule")

// RuleType тип правила алерта
type RuleType string

const (
	RuleTypeThreshold    RuleType = "threshold"
	RuleTypeStatusChange RuleType = "status_change"
)

// Condition оператор сравнения для threshold-правил
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionGTE Condition = "gte"
	ConditionLT  Condition = "lt"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
	ConditionNE  Condition = "ne"
)

// Severity уровень критичности
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityRank возвращает числовой ранг критичности: info=0 < warning=1 < critical=2
func SeverityRank(s Severity) int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}

// AlertRule правило генерации алертов
type AlertRule struct {
	ID                     primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name                   string               `bson:"name" json:"name"`
	Description            string               `bson:"description,omitempty" json:"description,omitempty"`
	RuleType               RuleType             `bson:"rule_type" json:"rule_type"`
	MetricName             string               `bson:"metric_name,omitempty" json:"metric_name,omitempty"`
	HostID                 string               `bson:"host_id,omitempty" json:"host_id,omitempty"` // пусто = все хосты
	Condition              Condition            `bson:"condition,omitempty" json:"condition,omitempty"`
	Threshold              *float64             `bson:"threshold,omitempty" json:"threshold,omitempty"`
	Severity               Severity             `bson:"severity" json:"severity"`
	Enabled                bool                 `bson:"enabled" json:"enabled"`
	NotificationChannelIDs []primitive.ObjectID `bson:"notification_channel_ids" json:"notification_channel_ids"`
	CooldownMinutes        int                  `bson:"cooldown_minutes" json:"cooldown_minutes"`
	CreatedAt              time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time            `bson:"updated_at" json:"updated_at"`
}

// Validate проверяет правило при создании; эвалюатор рассчитывает на валидные правила
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidRule)
	}
	if SeverityRank(r.Severity) < 0 {
		return fmt.Errorf("%w: invalid severity %q", ErrInvalidRule, r.Severity)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("%w: cooldown_minutes must be >= 0", ErrInvalidRule)
	}

	switch r.RuleType {
	case RuleTypeThreshold:
		if r.MetricName == "" {
			return fmt.Errorf("%w: threshold rule requires metric_name", ErrInvalidRule)
		}
		if r.Threshold == nil {
			return fmt.Errorf("%w: threshold rule requires threshold", ErrInvalidRule)
		}
		switch r.Condition {
		case ConditionGT, ConditionGTE, ConditionLT, ConditionLTE, ConditionEQ, ConditionNE:
		default:
			return fmt.Errorf("%w: invalid condition %q", ErrInvalidRule, r.Condition)
		}
	case RuleTypeStatusChange:
		// порог и метрика не нужны, достаточно семантики состояния хоста
	default:
		return fmt.Errorf("%w: invalid rule_type %q", ErrInvalidRule, r.RuleType)
	}

	return nil
}

// AlertStatus статус жизненного цикла алерта
type AlertStatus string

const (
	AlertStatusTriggered    AlertStatus = "triggered"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// IsOpen открыт ли алерт (участвует в дедупликации)
func (s AlertStatus) IsOpen() bool {
	return s == AlertStatusTriggered || s == AlertStatusAcknowledged
}

// Alert экземпляр сработавшего правила для конкретного хоста
type Alert struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RuleID         primitive.ObjectID `bson:"rule_id" json:"rule_id"`
	RuleName       string             `bson:"rule_name" json:"rule_name"`
	HostID         string             `bson:"host_id" json:"host_id"`
	Severity       Severity           `bson:"severity" json:"severity"` // копируется из правила в момент срабатывания
	Status         AlertStatus        `bson:"status" json:"status"`
	ValueObserved  float64            `bson:"value_observed" json:"value_observed"`
	Message        string             `bson:"message,omitempty" json:"message,omitempty"`
	OpenedAt       time.Time          `bson:"opened_at" json:"opened_at"`
	LastSeenAt     time.Time          `bson:"last_seen_at" json:"last_seen_at"`
	AcknowledgedAt *time.Time         `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time         `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}

// AlertSummary сводка по алертам
type AlertSummary struct {
	TotalAlerts  int64            `json:"total_alerts"`
	OpenCount    int64            `json:"open_count"`
	BySeverity   map[string]int64 `json:"by_severity"`
	ByStatus     map[string]int64 `json:"by_status"`
	RecentAlerts []Alert          `json:"recent_alerts"`
}
