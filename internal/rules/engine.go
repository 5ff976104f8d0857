package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fleetpulse/internal/models"
)

// Engine evaluates the configured rule set against a snapshot and emits
// candidate alerts. Evaluation is stateless and never errors at runtime:
// rules whose metric is absent from the snapshot are skipped.
type Engine struct {
	rules []models.Rule
}

// NewEngine validates the rule set once; a bad rule set is a startup
// failure, not something to discover mid-tick.
func NewEngine(ruleSet []models.Rule) (*Engine, error) {
	seen := make(map[string]bool, len(ruleSet))
	for i := range ruleSet {
		if err := ruleSet[i].Validate(); err != nil {
			return nil, err
		}
		if seen[ruleSet[i].ID] {
			return nil, fmt.Errorf("duplicate rule id %q", ruleSet[i].ID)
		}
		seen[ruleSet[i].ID] = true
	}
	return &Engine{rules: ruleSet}, nil
}

func (e *Engine) Rules() []models.Rule {
	return e.rules
}

func (e *Engine) Evaluate(snap *models.Snapshot) []models.Candidate {
	var out []models.Candidate
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.PerItem {
			out = append(out, e.evaluateStock(rule, snap)...)
			continue
		}

		value, ok := snap.Metric(rule.Metric)
		if !ok {
			continue
		}
		if !compare(rule.Operator, value, rule.Threshold) {
			continue
		}
		out = append(out, models.Candidate{
			TenantID:  snap.TenantID,
			RuleID:    rule.ID,
			Severity:  severityFor(rule, value, rule.Threshold),
			Message:   renderMessage(rule.Message, value, rule.Threshold, ""),
			Value:     value,
			Threshold: rule.Threshold,
		})
	}
	return out
}

// evaluateStock fires once per matching item so each item's alert carries
// its own fingerprint and resolves independently. The item's own reorder
// level is the threshold; the rule threshold is the fallback for items
// without one configured.
func (e *Engine) evaluateStock(rule *models.Rule, snap *models.Snapshot) []models.Candidate {
	var out []models.Candidate
	for _, item := range snap.Stock {
		threshold := item.ReorderLevel
		if threshold == 0 {
			threshold = rule.Threshold
		}
		if !compare(rule.Operator, item.Quantity, threshold) {
			continue
		}
		out = append(out, models.Candidate{
			TenantID:  snap.TenantID,
			RuleID:    rule.ID,
			Severity:  severityFor(rule, item.Quantity, threshold),
			Message:   renderMessage(rule.Message, item.Quantity, threshold, item.ItemName),
			Value:     item.Quantity,
			Threshold: threshold,
			ItemID:    item.ItemID,
			ItemName:  item.ItemName,
		})
	}
	return out
}

// compare applies the operator exactly as written: a value equal to the
// threshold does not satisfy ">" or "<".
func compare(op models.Operator, value, threshold float64) bool {
	switch op {
	case models.OperatorGT:
		return value > threshold
	case models.OperatorLT:
		return value < threshold
	case models.OperatorGTE:
		return value >= threshold
	case models.OperatorLTE:
		return value <= threshold
	default:
		return false
	}
}

// escalationFraction of the threshold is the overshoot beyond which an
// escalating warning becomes critical: occupancy threshold 90 escalates at
// 94.5 and above.
const escalationFraction = 0.05

func severityFor(rule *models.Rule, value, threshold float64) models.Severity {
	if !rule.Escalate || rule.Severity != models.SeverityWarning {
		return rule.Severity
	}
	span := math.Abs(threshold) * escalationFraction
	if span == 0 {
		return rule.Severity
	}
	if math.Abs(value-threshold) >= span {
		return models.SeverityCritical
	}
	return rule.Severity
}

func renderMessage(template string, value, threshold float64, item string) string {
	return strings.NewReplacer(
		"{value}", formatNumber(value),
		"{threshold}", formatNumber(threshold),
		"{item}", item,
	).Replace(template)
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
