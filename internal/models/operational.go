package models

import (
	"time"

	"gorm.io/gorm"
)

// Operational source tables. These rows are produced by the tenant-facing
// CRUD services; the engine only reads them to build snapshots.

type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// PatientVisit records a single admission and optional discharge.
type PatientVisit struct {
	gorm.Model
	TenantID     uint       `json:"tenant_id" gorm:"index;not null"`
	AdmittedAt   time.Time  `json:"admitted_at" gorm:"index"`
	DischargedAt *time.Time `json:"discharged_at"`
	Department   string     `json:"department"`
}

// BedCensus is a point-in-time count of total and occupied beds.
type BedCensus struct {
	gorm.Model
	TenantID   uint      `json:"tenant_id" gorm:"index;not null"`
	TotalBeds  int       `json:"total_beds"`
	Occupied   int       `json:"occupied"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index"`
}

// EmergencyQueue is a point-in-time emergency department wait measurement.
type EmergencyQueue struct {
	gorm.Model
	TenantID    uint      `json:"tenant_id" gorm:"index;not null"`
	WaitMinutes float64   `json:"wait_minutes"`
	Waiting     int       `json:"waiting"`
	RecordedAt  time.Time `json:"recorded_at" gorm:"index"`
}

// StaffShift is a point-in-time staffing level against the rostered capacity.
type StaffShift struct {
	gorm.Model
	TenantID   uint      `json:"tenant_id" gorm:"index;not null"`
	OnDuty     int       `json:"on_duty"`
	Capacity   int       `json:"capacity"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index"`
}

type Invoice struct {
	gorm.Model
	TenantID uint          `json:"tenant_id" gorm:"index;not null"`
	Amount   float64       `json:"amount"`
	Status   InvoiceStatus `json:"status" gorm:"index"`
	IssuedAt time.Time     `json:"issued_at" gorm:"index"`
}

// StockLevel is the current quantity of one supply item joined against its
// configured reorder threshold.
type StockLevel struct {
	gorm.Model
	TenantID     uint    `json:"tenant_id" gorm:"index;not null"`
	ItemID       string  `json:"item_id" gorm:"index;not null"`
	ItemName     string  `json:"item_name"`
	Quantity     float64 `json:"quantity"`
	ReorderLevel float64 `json:"reorder_level"`
}
