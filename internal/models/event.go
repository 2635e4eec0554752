package models

import "time"

// AlertEvent событие жизненного цикла алерта для шины событий
type AlertEvent struct {
	Type      string                 `json:"type"` // alert.fired.<severity>, alert.acknowledged, alert.resolved, alert.dispatch.failed
	AlertID   string                 `json:"alert_id"`
	RuleID    string                 `json:"rule_id"`
	RuleName  string                 `json:"rule_name"`
	HostID    string                 `json:"host_id"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
