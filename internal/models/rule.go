package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

type Operator string

const (
	OperatorGT  Operator = ">"
	OperatorLT  Operator = "<"
	OperatorGTE Operator = ">="
	OperatorLTE Operator = "<="
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting, lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// Rule is a static threshold rule loaded at startup. Rules are pure
// functions of a snapshot: no side effects, no hidden state.
//
// Comparison policy: operators are applied exactly as written, so a value
// equal to the threshold does not trigger ">" or "<". Inclusive boundaries
// require ">=" or "<=" explicitly.
type Rule struct {
	ID        string   `json:"id" mapstructure:"id"`
	Name      string   `json:"name" mapstructure:"name"`
	Metric    string   `json:"metric" mapstructure:"metric"`
	Operator  Operator `json:"operator" mapstructure:"operator"`
	Threshold float64  `json:"threshold" mapstructure:"threshold"`
	Severity  Severity `json:"severity" mapstructure:"severity"`
	Message   string   `json:"message" mapstructure:"message"`

	// Escalate upgrades a warning to critical when the value overshoots the
	// threshold by a wide margin (see rules.Engine).
	Escalate bool `json:"escalate" mapstructure:"escalate"`

	// PerItem evaluates the rule once per stock item, producing one
	// candidate per matching item with the item id in its fingerprint.
	PerItem bool `json:"per_item" mapstructure:"per_item"`
}

func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Metric == "" {
		return fmt.Errorf("rule %s: metric is required", r.ID)
	}
	switch r.Operator {
	case OperatorGT, OperatorLT, OperatorGTE, OperatorLTE:
	default:
		return fmt.Errorf("rule %s: invalid operator %q", r.ID, r.Operator)
	}
	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if r.PerItem && r.Metric != MetricStockLevel {
		return fmt.Errorf("rule %s: per_item only applies to %s", r.ID, MetricStockLevel)
	}
	return nil
}

// Candidate is an unpersisted rule match for a single tick, produced by the
// rule engine before reconciliation against stored alert state.
type Candidate struct {
	TenantID  uint
	RuleID    string
	Severity  Severity
	Message   string
	Value     float64
	Threshold float64
	ItemID    string
	ItemName  string
}

// Fingerprint derives the deterministic dedup key from tenant, rule and the
// optional sub-entity the rule fired on.
func (c *Candidate) Fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		fmt.Sprintf("%d", c.TenantID),
		c.RuleID,
		c.ItemID,
	}, "|")))
	return hex.EncodeToString(h[:16])
}
