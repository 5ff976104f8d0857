package projects

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/fleetpulse/internal/database"
	"github.com/fleetpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewManager(db)
}

func status(s models.ProjectStatus) *models.ProjectStatus { return &s }
func progress(p int) *int                                 { return &p }

func TestCreateStartsInPlanning(t *testing.T) {
	m := testManager(t)

	project, err := m.Create(CreateRequest{
		TenantID:   1,
		Name:       "ER triage redesign",
		Milestones: []string{"staffing plan", "pilot", "rollout"},
		Actor:      "ops-lead",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusPlanning, project.Status)
	assert.Equal(t, 0, project.Progress)

	var milestones []string
	require.NoError(t, json.Unmarshal(project.Milestones, &milestones))
	assert.Len(t, milestones, 3)

	var log []models.ProjectUpdate
	require.NoError(t, json.Unmarshal(project.UpdateLog, &log))
	require.Len(t, log, 1)
	assert.Equal(t, "ops-lead", log[0].Actor)
}

func TestStatusTransitions(t *testing.T) {
	m := testManager(t)
	project, err := m.Create(CreateRequest{TenantID: 1, Name: "p"})
	require.NoError(t, err)

	// planning -> completed skips a state.
	_, err = m.Update(project.ID, UpdateRequest{Status: status(models.ProjectStatusCompleted)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	project, err = m.Update(project.ID, UpdateRequest{Status: status(models.ProjectStatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusInProgress, project.Status)

	// No going back.
	_, err = m.Update(project.ID, UpdateRequest{Status: status(models.ProjectStatusPlanning)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	project, err = m.Update(project.ID, UpdateRequest{Status: status(models.ProjectStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, project.Status)
	assert.Equal(t, 100, project.Progress)

	// Completed is terminal.
	_, err = m.Update(project.ID, UpdateRequest{Status: status(models.ProjectStatusInProgress)})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProgressIsMonotonic(t *testing.T) {
	m := testManager(t)
	project, err := m.Create(CreateRequest{TenantID: 1, Name: "p"})
	require.NoError(t, err)

	project, err = m.Update(project.ID, UpdateRequest{Progress: progress(40)})
	require.NoError(t, err)
	assert.Equal(t, 40, project.Progress)

	_, err = m.Update(project.ID, UpdateRequest{Progress: progress(30)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Update(project.ID, UpdateRequest{Progress: progress(120)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Failed updates mutate nothing.
	got, err := m.Get(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
}

func TestUpdateLogIsAppendOnly(t *testing.T) {
	m := testManager(t)
	project, err := m.Create(CreateRequest{TenantID: 1, Name: "p", Actor: "a"})
	require.NoError(t, err)

	for i, pct := range []int{10, 20, 30} {
		project, err = m.Update(project.ID, UpdateRequest{
			Progress: progress(pct),
			Note:     "step",
			Actor:    "a",
		})
		require.NoError(t, err, "update %d", i)
	}

	var log []models.ProjectUpdate
	require.NoError(t, json.Unmarshal(project.UpdateLog, &log))
	require.Len(t, log, 4)
	assert.Equal(t, 0, log[0].Progress)
	assert.Equal(t, 30, log[3].Progress)
}

func TestGetAndListNotFound(t *testing.T) {
	m := testManager(t)

	_, err := m.Get(99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Update(99, UpdateRequest{Progress: progress(10)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Create(CreateRequest{TenantID: 1, Name: "one"})
	require.NoError(t, err)
	_, err = m.Create(CreateRequest{TenantID: 2, Name: "two"})
	require.NoError(t, err)

	all, err := m.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := m.List(2)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "two", scoped[0].Name)
}
