package service

import (
	"fmt"

	"github.com/netwarden/netwarden/internal/models"
)

// EvalOutcome результат проверки правила для одного хоста
type EvalOutcome struct {
	Fires bool
	Value float64
}

// RuleEvaluator проверяет условия правил против показаний метрик
type RuleEvaluator struct{}

// NewRuleEvaluator создает новый evaluator
func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{}
}

// EvaluateThreshold проверяет пороговое правило против показания метрики
func (e *RuleEvaluator) EvaluateThreshold(rule *models.AlertRule, reading models.Reading) (EvalOutcome, error) {
	if rule.RuleType != models.RuleTypeThreshold {
		return EvalOutcome{}, fmt.Errorf("rule %s is not a threshold rule", rule.ID.Hex())
	}
	if rule.Threshold == nil {
		return EvalOutcome{}, fmt.Errorf("rule %s has no threshold configured", rule.ID.Hex())
	}

	value := reading.Value
	threshold := *rule.Threshold
	var fires bool
	switch rule.Condition {
	case models.ConditionGT:
		fires = value > threshold
	case models.ConditionGTE:
		fires = value >= threshold
	case models.ConditionLT:
		fires = value < threshold
	case models.ConditionLTE:
		fires = value <= threshold
	case models.ConditionEQ:
		fires = value == threshold
	case models.ConditionNE:
		fires = value != threshold
	default:
		return EvalOutcome{}, fmt.Errorf("unknown condition %q in rule %s", rule.Condition, rule.ID.Hex())
	}

	return EvalOutcome{Fires: fires, Value: value}, nil
}

// EvaluateStatusChange проверяет правило смены статуса хоста.
// Срабатывает только при переходе из известного предыдущего статуса в другой.
func (e *RuleEvaluator) EvaluateStatusChange(rule *models.AlertRule, prev, current models.HostStatus) (EvalOutcome, error) {
	if rule.RuleType != models.RuleTypeStatusChange {
		return EvalOutcome{}, fmt.Errorf("rule %s is not a status_change rule", rule.ID.Hex())
	}

	// Первое наблюдение устанавливает базовую линию и никогда не срабатывает
	if prev == "" || prev == models.HostStatusUnknown {
		return EvalOutcome{Fires: false}, nil
	}
	if current == models.HostStatusUnknown {
		return EvalOutcome{Fires: false}, nil
	}

	return EvalOutcome{Fires: prev != current}, nil
}

// AppliesToHost проверяет, входит ли хост в область действия правила
func (e *RuleEvaluator) AppliesToHost(rule *models.AlertRule, hostID string) bool {
	return rule.HostID == "" || rule.HostID == hostID
}
