package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 4, cfg.Scheduler.WorkerLimit)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.FetchTimeout)
	assert.Equal(t, 64, cfg.Hub.ClientQueueDepth)
	assert.NotEmpty(t, cfg.Rules, "default rule set expected when file carries none")
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
scheduler:
  interval: 5s
  worker_limit: 8
  fetch_timeout: 2s
hub:
  client_queue_depth: 16
rules:
  - id: occupancy-high
    name: High Bed Occupancy
    metric: occupancy_rate
    operator: ">"
    threshold: 85
    severity: warning
    message: "Occupancy at {value}%"
    escalate: true
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 8, cfg.Scheduler.WorkerLimit)
	assert.Equal(t, 16, cfg.Hub.ClientQueueDepth)

	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "occupancy-high", cfg.Rules[0].ID)
	assert.Equal(t, models.OperatorGT, cfg.Rules[0].Operator)
	assert.Equal(t, 85.0, cfg.Rules[0].Threshold)
	assert.True(t, cfg.Rules[0].Escalate)
}

// Rule-set problems are startup failures, never runtime ones.
func TestLoadConfigRejectsBadRules(t *testing.T) {
	dir := writeConfig(t, `
rules:
  - id: broken
    metric: occupancy_rate
    operator: "!="
    threshold: 85
    severity: warning
`)
	_, err := LoadConfig(dir)
	assert.Error(t, err)

	dir = writeConfig(t, `
rules:
  - id: dup
    metric: occupancy_rate
    operator: ">"
    threshold: 85
    severity: warning
  - id: dup
    metric: er_wait_minutes
    operator: ">"
    threshold: 60
    severity: warning
`)
	_, err = LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadScheduler(t *testing.T) {
	dir := writeConfig(t, `
scheduler:
  interval: 0s
`)
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestDefaultRulesAreValid(t *testing.T) {
	for _, rule := range DefaultRules() {
		assert.NoError(t, rule.Validate(), "rule %s", rule.ID)
	}
}
