package models

import (
	"time"

	"gorm.io/gorm"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is the durable record of a firing rule. At most one alert with
// status active or acknowledged exists per fingerprint at any time; the
// store's reconcile enforces this by updating last_seen on re-fire instead
// of inserting a duplicate.
type Alert struct {
	gorm.Model
	Fingerprint string      `json:"fingerprint" gorm:"index;not null"`
	TenantID    uint        `json:"tenant_id" gorm:"index;not null"`
	RuleID      string      `json:"rule_id" gorm:"index;not null"`
	Severity    Severity    `json:"severity" gorm:"not null"`
	Message     string      `json:"message"`
	Value       float64     `json:"value"`
	Threshold   float64     `json:"threshold"`
	ItemID      string      `json:"item_id,omitempty"`
	ItemName    string      `json:"item_name,omitempty"`
	Status      AlertStatus `json:"status" gorm:"index;not null"`
	FirstSeen   time.Time   `json:"first_seen"`
	LastSeen    time.Time   `json:"last_seen"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Open reports whether the alert still counts against its fingerprint.
func (a *Alert) Open() bool {
	return a.Status == AlertStatusActive || a.Status == AlertStatusAcknowledged
}
