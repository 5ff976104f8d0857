package alertstore

import (
	"path/filepath"
	"testing"

	"github.com/fleetpulse/internal/database"
	"github.com/fleetpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return New(db), db
}

func occupancyCandidate(tenantID uint, value float64) models.Candidate {
	severity := models.SeverityWarning
	if value >= 94.5 {
		severity = models.SeverityCritical
	}
	return models.Candidate{
		TenantID:  tenantID,
		RuleID:    "occupancy-high",
		Severity:  severity,
		Message:   "occupancy high",
		Value:     value,
		Threshold: 90,
	}
}

func stockCandidate(tenantID uint, itemID string, qty float64) models.Candidate {
	return models.Candidate{
		TenantID:  tenantID,
		RuleID:    "stock-low",
		Severity:  models.SeverityWarning,
		Message:   itemID + " low",
		Value:     qty,
		Threshold: 20,
		ItemID:    itemID,
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store, db := testStore(t)
	candidates := []models.Candidate{occupancyCandidate(1, 95)}

	newActive, newResolved, err := store.Reconcile(1, candidates)
	require.NoError(t, err)
	assert.Len(t, newActive, 1)
	assert.Empty(t, newResolved)

	// The same condition firing on later ticks must never grow the table.
	for i := 0; i < 5; i++ {
		newActive, newResolved, err = store.Reconcile(1, candidates)
		require.NoError(t, err)
		assert.Empty(t, newActive)
		assert.Empty(t, newResolved)
	}

	var count int64
	require.NoError(t, db.Model(&models.Alert{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcileAutoResolves(t *testing.T) {
	store, _ := testStore(t)

	newActive, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
	require.NoError(t, err)
	require.Len(t, newActive, 1)

	// Condition cleared: the alert resolves and is reported exactly once.
	_, newResolved, err := store.Reconcile(1, nil)
	require.NoError(t, err)
	require.Len(t, newResolved, 1)
	assert.Equal(t, models.AlertStatusResolved, newResolved[0].Status)
	require.NotNil(t, newResolved[0].ResolvedAt)

	_, newResolved, err = store.Reconcile(1, nil)
	require.NoError(t, err)
	assert.Empty(t, newResolved)
}

// Pins the §4.3 core scenario: fire at 95, refire at 92, clear at 80.
func TestOccupancyLifecycle(t *testing.T) {
	store, _ := testStore(t)

	// Tick 1: 95% fires one critical alert.
	newActive, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
	require.NoError(t, err)
	require.Len(t, newActive, 1)
	assert.Equal(t, models.SeverityCritical, newActive[0].Severity)
	firstSeen := newActive[0].FirstSeen

	// Tick 2: 92% refreshes the same row, no duplicate.
	newActive, newResolved, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 92)})
	require.NoError(t, err)
	assert.Empty(t, newActive)
	assert.Empty(t, newResolved)

	open, err := store.Open(1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 92.0, open[0].Value)
	assert.Equal(t, firstSeen.Unix(), open[0].FirstSeen.Unix())
	assert.False(t, open[0].LastSeen.Before(firstSeen))

	// Tick 3: 80% is below threshold, the alert auto-resolves.
	_, newResolved, err = store.Reconcile(1, nil)
	require.NoError(t, err)
	require.Len(t, newResolved, 1)

	active, err := store.List(Filter{TenantID: 1, Statuses: []models.AlertStatus{models.AlertStatusActive}})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStockItemsResolveIndependently(t *testing.T) {
	store, _ := testStore(t)

	newActive, _, err := store.Reconcile(1, []models.Candidate{
		stockCandidate(1, "gloves", 5),
		stockCandidate(1, "saline", 8),
	})
	require.NoError(t, err)
	require.Len(t, newActive, 2)
	assert.NotEqual(t, newActive[0].Fingerprint, newActive[1].Fingerprint)

	// Gloves restocked: only that alert resolves.
	newActive, newResolved, err := store.Reconcile(1, []models.Candidate{
		stockCandidate(1, "saline", 8),
	})
	require.NoError(t, err)
	assert.Empty(t, newActive)
	require.Len(t, newResolved, 1)
	assert.Equal(t, "gloves", newResolved[0].ItemID)

	open, err := store.Open(1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "saline", open[0].ItemID)
}

func TestNoDuplicateOpenAlertsPerFingerprint(t *testing.T) {
	store, _ := testStore(t)

	// Duplicate candidates within one tick collapse to one alert too.
	newActive, _, err := store.Reconcile(1, []models.Candidate{
		occupancyCandidate(1, 95),
		occupancyCandidate(1, 96),
	})
	require.NoError(t, err)
	assert.Len(t, newActive, 1)

	for i := 0; i < 3; i++ {
		_, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
		require.NoError(t, err)
	}

	open, err := store.Open(1)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, a := range open {
		seen[a.Fingerprint]++
	}
	for fp, n := range seen {
		assert.Equal(t, 1, n, "fingerprint %s has %d open alerts", fp, n)
	}
}

func TestAcknowledgeStateMachine(t *testing.T) {
	store, _ := testStore(t)

	newActive, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
	require.NoError(t, err)
	alertID := newActive[0].ID

	alert, err := store.Acknowledge(alertID, "ops-lead", "investigating")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, alert.Status)
	assert.Equal(t, "ops-lead", alert.AcknowledgedBy)
	require.NotNil(t, alert.AcknowledgedAt)
	assert.Equal(t, "investigating", alert.Notes)

	// Acknowledging twice is not a silent no-op.
	_, err = store.Acknowledge(alertID, "someone-else", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	// An acknowledged alert still auto-resolves when the condition clears.
	_, newResolved, err := store.Reconcile(1, nil)
	require.NoError(t, err)
	require.Len(t, newResolved, 1)

	_, err = store.Acknowledge(alertID, "too-late", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	// The failed acknowledge must not have mutated the resolved row.
	resolved, err := store.Get(alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
	assert.Equal(t, "ops-lead", resolved.AcknowledgedBy)

	_, err = store.Acknowledge(9999, "nobody", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcknowledgedAlertSurvivesRefire(t *testing.T) {
	store, _ := testStore(t)

	newActive, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
	require.NoError(t, err)
	_, err = store.Acknowledge(newActive[0].ID, "ops-lead", "")
	require.NoError(t, err)

	// Re-fire refreshes last_seen but leaves the acknowledgment alone.
	refired, newResolved, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 96)})
	require.NoError(t, err)
	assert.Empty(t, refired)
	assert.Empty(t, newResolved)

	alert, err := store.Get(newActive[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, alert.Status)
	assert.Equal(t, 96.0, alert.Value)
}

func TestRefireEscalatesSeverity(t *testing.T) {
	store, _ := testStore(t)

	newActive, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 92)})
	require.NoError(t, err)
	require.Len(t, newActive, 1)
	assert.Equal(t, models.SeverityWarning, newActive[0].Severity)

	// The condition worsens past the escalation point: the open alert is
	// refreshed in place and its severity tracks the latest evaluation.
	refired, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 96)})
	require.NoError(t, err)
	assert.Empty(t, refired)

	alert, err := store.Get(newActive[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, 96.0, alert.Value)

	open, err := store.Open(1)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestListOrdering(t *testing.T) {
	store, _ := testStore(t)

	_, _, err := store.Reconcile(1, []models.Candidate{
		stockCandidate(1, "gloves", 5),     // warning
		stockCandidate(1, "saline", 8),     // warning
		occupancyCandidate(1, 95),          // critical
		{TenantID: 1, RuleID: "revenue-low", Severity: models.SeverityInfo, Value: 500, Threshold: 1000},
	})
	require.NoError(t, err)

	alerts, err := store.List(Filter{TenantID: 1})
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	// Severity descending, then most recently seen, then fingerprint.
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.SeverityWarning, alerts[1].Severity)
	assert.Equal(t, models.SeverityWarning, alerts[2].Severity)
	assert.Equal(t, models.SeverityInfo, alerts[3].Severity)

	// Equal severity and last_seen fall back to fingerprint order, so the
	// listing is stable between calls.
	again, err := store.List(Filter{TenantID: 1})
	require.NoError(t, err)
	for i := range alerts {
		assert.Equal(t, alerts[i].Fingerprint, again[i].Fingerprint)
	}
}

func TestListFilters(t *testing.T) {
	store, _ := testStore(t)

	_, _, err := store.Reconcile(1, []models.Candidate{occupancyCandidate(1, 95)})
	require.NoError(t, err)
	_, _, err = store.Reconcile(2, []models.Candidate{occupancyCandidate(2, 97)})
	require.NoError(t, err)
	// Resolve tenant 2's alert.
	_, _, err = store.Reconcile(2, nil)
	require.NoError(t, err)

	active, err := store.List(Filter{Statuses: []models.AlertStatus{models.AlertStatusActive}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, uint(1), active[0].TenantID)

	tenant2, err := store.List(Filter{TenantID: 2})
	require.NoError(t, err)
	require.Len(t, tenant2, 1)
	assert.Equal(t, models.AlertStatusResolved, tenant2[0].Status)
}
