package alertstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetpulse/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("alert not found")
	ErrInvalidState = errors.New("alert is not in an acknowledgeable state")
)

// Store persists the alert lifecycle. Reconcile is serialized per tenant so
// the "at most one open alert per fingerprint" invariant holds; different
// tenants reconcile concurrently.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu      sync.Mutex
	tenants map[uint]*sync.Mutex
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		logger:  slog.With("component", "alertstore"),
		tenants: make(map[uint]*sync.Mutex),
	}
}

func (s *Store) tenantLock(tenantID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.tenants[tenantID] = lock
	}
	return lock
}

// Reconcile diffs the tick's candidates against the tenant's open alerts.
// A candidate whose fingerprint is already open refreshes last_seen; a new
// fingerprint inserts an active alert; an open alert whose fingerprint is
// missing from the candidate set auto-resolves. Alert count therefore stays
// bounded no matter how the underlying condition oscillates.
func (s *Store) Reconcile(tenantID uint, candidates []models.Candidate) (newActive, newResolved []models.Alert, err error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	var open []models.Alert
	if err := s.db.
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged}).
		Find(&open).Error; err != nil {
		return nil, nil, fmt.Errorf("loading open alerts: %w", err)
	}

	openByFP := make(map[string]*models.Alert, len(open))
	for i := range open {
		openByFP[open[i].Fingerprint] = &open[i]
	}

	seen := make(map[string]bool, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		fp := c.Fingerprint()
		if seen[fp] {
			continue
		}
		seen[fp] = true

		if existing, ok := openByFP[fp]; ok {
			// Re-fire: refresh, never duplicate. Severity follows the
			// candidate so a worsening condition escalates in place. Status
			// is untouched so an acknowledgment survives continued firing.
			if err := s.db.Model(existing).Updates(map[string]interface{}{
				"last_seen": now,
				"value":     c.Value,
				"message":   c.Message,
				"severity":  c.Severity,
			}).Error; err != nil {
				return nil, nil, fmt.Errorf("refreshing alert %s: %w", fp, err)
			}
			continue
		}

		alert := models.Alert{
			Fingerprint: fp,
			TenantID:    c.TenantID,
			RuleID:      c.RuleID,
			Severity:    c.Severity,
			Message:     c.Message,
			Value:       c.Value,
			Threshold:   c.Threshold,
			ItemID:      c.ItemID,
			ItemName:    c.ItemName,
			Status:      models.AlertStatusActive,
			FirstSeen:   now,
			LastSeen:    now,
		}
		if err := s.db.Create(&alert).Error; err != nil {
			return nil, nil, fmt.Errorf("creating alert %s: %w", fp, err)
		}
		newActive = append(newActive, alert)
	}

	for i := range open {
		if seen[open[i].Fingerprint] {
			continue
		}
		resolvedAt := now
		if err := s.db.Model(&open[i]).Updates(map[string]interface{}{
			"status":      models.AlertStatusResolved,
			"resolved_at": resolvedAt,
		}).Error; err != nil {
			return nil, nil, fmt.Errorf("resolving alert %s: %w", open[i].Fingerprint, err)
		}
		open[i].Status = models.AlertStatusResolved
		open[i].ResolvedAt = &resolvedAt
		newResolved = append(newResolved, open[i])
	}

	if len(newActive) > 0 || len(newResolved) > 0 {
		s.logger.Info("reconciled alerts",
			"tenant", tenantID, "new", len(newActive), "resolved", len(newResolved))
	}
	return newActive, newResolved, nil
}

// Acknowledge moves an active alert to acknowledged and records who did it.
// Only active alerts qualify: acknowledging a resolved or an already
// acknowledged alert fails with ErrInvalidState rather than silently
// succeeding.
func (s *Store) Acknowledge(alertID uint, actor, notes string) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if alert.Status != models.AlertStatusActive {
			return fmt.Errorf("%w: alert %d is %s", ErrInvalidState, alertID, alert.Status)
		}

		now := time.Now()
		alert.Status = models.AlertStatusAcknowledged
		alert.AcknowledgedBy = actor
		alert.AcknowledgedAt = &now
		alert.Notes = notes
		return tx.Save(&alert).Error
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Store) Get(alertID uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// Filter narrows List by tenant and status; zero values mean "all".
type Filter struct {
	TenantID uint
	Statuses []models.AlertStatus
}

// List returns alerts ordered severity-descending, then most recently seen,
// with fingerprint as the stable tie-break. This ordering is part of the
// API contract.
func (s *Store) List(f Filter) ([]models.Alert, error) {
	q := s.db.Model(&models.Alert{})
	if f.TenantID != 0 {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var alerts []models.Alert
	err := q.Order(severityOrder + ", last_seen DESC, fingerprint ASC").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

const severityOrder = "CASE severity" +
	" WHEN 'critical' THEN 0" +
	" WHEN 'warning' THEN 1" +
	" WHEN 'info' THEN 2" +
	" ELSE 3 END"

// Open returns the tenant's active and acknowledged alerts.
func (s *Store) Open(tenantID uint) ([]models.Alert, error) {
	return s.List(Filter{
		TenantID: tenantID,
		Statuses: []models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged},
	})
}
