package models

import (
	"time"
)

// Canonical metric names produced by the metrics reader and referenced by
// rule configuration.
const (
	MetricOccupancyRate    = "occupancy_rate"
	MetricERWaitMinutes    = "er_wait_minutes"
	MetricStaffUtilization = "staff_utilization"
	MetricDailyRevenue     = "daily_revenue"
	MetricDailyAdmissions  = "daily_admissions"
	MetricDailyDischarges  = "daily_discharges"
	MetricOverdueInvoices  = "overdue_invoices"
	MetricOverdueAmount    = "overdue_amount"

	// MetricStockLevel fans out per stock item rather than reading a single
	// value from the metrics map.
	MetricStockLevel = "stock_level"
)

// StockMetric is one supply item's level inside a snapshot.
type StockMetric struct {
	ItemID       string  `json:"item_id"`
	ItemName     string  `json:"item_name"`
	Quantity     float64 `json:"quantity"`
	ReorderLevel float64 `json:"reorder_level"`
}

// Snapshot is the per-tenant operational state for one tick. A metric that
// could not be read is absent from Metrics, never zero, so rules depending
// on it are skipped instead of firing false positives.
type Snapshot struct {
	TenantID uint               `json:"tenant_id"`
	TakenAt  time.Time          `json:"taken_at"`
	Metrics  map[string]float64 `json:"metrics"`
	Stock    []StockMetric      `json:"stock"`
}

// Metric returns the named metric and whether it was present.
func (s *Snapshot) Metric(name string) (float64, bool) {
	v, ok := s.Metrics[name]
	return v, ok
}
