package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetpulse/internal/models"
	"gorm.io/gorm"
)

// Reader pulls the latest per-tenant operational snapshot from the data
// store. Pure read, no state.
//
// Partial data is tolerated: a sub-query that fails or returns no rows
// leaves its metric absent from the snapshot instead of zero, so the rule
// engine skips rules that depend on it. Only a tenant that cannot be found,
// or a store that fails every sub-query, turns into a fetch error.
type Reader struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{
		db:     db,
		logger: slog.With("component", "metrics"),
	}
}

func (r *Reader) Fetch(ctx context.Context, tenantID uint) (*models.Snapshot, error) {
	db := r.db.WithContext(ctx)

	var tenant models.Tenant
	if err := db.First(&tenant, tenantID).Error; err != nil {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, err)
	}

	snap := &models.Snapshot{
		TenantID: tenantID,
		TakenAt:  time.Now(),
		Metrics:  make(map[string]float64),
	}

	queries := 0
	failures := 0
	set := func(name string, v float64, err error) {
		queries++
		switch {
		case err == nil:
			snap.Metrics[name] = v
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No rows yet for this metric; leave it absent.
		default:
			failures++
			r.logger.Warn("metric query failed", "tenant", tenantID, "metric", name, "error", err)
		}
	}

	dayStart := startOfDay(snap.TakenAt)

	admissions, err := r.countVisits(db, tenantID, dayStart, false)
	set(models.MetricDailyAdmissions, admissions, err)

	discharges, err := r.countVisits(db, tenantID, dayStart, true)
	set(models.MetricDailyDischarges, discharges, err)

	occupancy, err := r.occupancyRate(db, tenantID)
	set(models.MetricOccupancyRate, occupancy, err)

	wait, err := r.emergencyWait(db, tenantID)
	set(models.MetricERWaitMinutes, wait, err)

	util, err := r.staffUtilization(db, tenantID)
	set(models.MetricStaffUtilization, util, err)

	revenue, err := r.dailyRevenue(db, tenantID, dayStart)
	set(models.MetricDailyRevenue, revenue, err)

	overdueCount, overdueAmount, err := r.overdueInvoices(db, tenantID)
	set(models.MetricOverdueInvoices, overdueCount, err)
	if err == nil {
		snap.Metrics[models.MetricOverdueAmount] = overdueAmount
	}

	stock, err := r.stockLevels(db, tenantID)
	queries++
	if err != nil {
		failures++
		r.logger.Warn("stock query failed", "tenant", tenantID, "error", err)
	} else {
		snap.Stock = stock
	}

	if failures == queries {
		return nil, fmt.Errorf("tenant %d: all metric queries failed", tenantID)
	}
	return snap, nil
}

func (r *Reader) countVisits(db *gorm.DB, tenantID uint, since time.Time, discharged bool) (float64, error) {
	var count int64
	q := db.Model(&models.PatientVisit{}).Where("tenant_id = ?", tenantID)
	if discharged {
		q = q.Where("discharged_at >= ?", since)
	} else {
		q = q.Where("admitted_at >= ?", since)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return float64(count), nil
}

func (r *Reader) occupancyRate(db *gorm.DB, tenantID uint) (float64, error) {
	var census models.BedCensus
	if err := db.Where("tenant_id = ?", tenantID).
		Order("recorded_at desc").First(&census).Error; err != nil {
		return 0, err
	}
	if census.TotalBeds == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return float64(census.Occupied) / float64(census.TotalBeds) * 100, nil
}

func (r *Reader) emergencyWait(db *gorm.DB, tenantID uint) (float64, error) {
	var queue models.EmergencyQueue
	if err := db.Where("tenant_id = ?", tenantID).
		Order("recorded_at desc").First(&queue).Error; err != nil {
		return 0, err
	}
	return queue.WaitMinutes, nil
}

func (r *Reader) staffUtilization(db *gorm.DB, tenantID uint) (float64, error) {
	var shift models.StaffShift
	if err := db.Where("tenant_id = ?", tenantID).
		Order("recorded_at desc").First(&shift).Error; err != nil {
		return 0, err
	}
	if shift.Capacity == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return float64(shift.OnDuty) / float64(shift.Capacity) * 100, nil
}

func (r *Reader) dailyRevenue(db *gorm.DB, tenantID uint, since time.Time) (float64, error) {
	var total float64
	err := db.Model(&models.Invoice{}).
		Where("tenant_id = ? AND status = ? AND issued_at >= ?",
			tenantID, models.InvoiceStatusPaid, since).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Reader) overdueInvoices(db *gorm.DB, tenantID uint) (count, amount float64, err error) {
	type agg struct {
		Count  int64
		Amount float64
	}
	var a agg
	err = db.Model(&models.Invoice{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.InvoiceStatusOverdue).
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(&a).Error
	if err != nil {
		return 0, 0, err
	}
	return float64(a.Count), a.Amount, nil
}

func (r *Reader) stockLevels(db *gorm.DB, tenantID uint) ([]models.StockMetric, error) {
	var rows []models.StockLevel
	if err := db.Where("tenant_id = ?", tenantID).Order("item_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	stock := make([]models.StockMetric, 0, len(rows))
	for _, row := range rows {
		stock = append(stock, models.StockMetric{
			ItemID:       row.ItemID,
			ItemName:     row.ItemName,
			Quantity:     row.Quantity,
			ReorderLevel: row.ReorderLevel,
		})
	}
	return stock, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
