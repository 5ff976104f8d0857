package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fleetpulse/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Server struct {
		Port int
	}
	Scheduler struct {
		Interval     time.Duration
		WorkerLimit  int           `mapstructure:"worker_limit"`
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	}
	Hub struct {
		ClientQueueDepth int `mapstructure:"client_queue_depth"`
	}
	Rules []models.Rule
}

// LoadConfig loads config.yaml from the given directory, writing a default
// file on first run. A malformed rule set is a startup failure: the engine
// must never run with rules it cannot evaluate.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("FLEETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// First run: persist the defaults so operators have a file to edit.
		if err := os.MkdirAll(path, 0755); err == nil {
			_ = v.SafeWriteConfig()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}
	seen := make(map[string]bool, len(cfg.Rules))
	for i := range cfg.Rules {
		if err := cfg.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule set: %w", err)
		}
		if seen[cfg.Rules[i].ID] {
			return nil, fmt.Errorf("invalid rule set: duplicate rule id %q", cfg.Rules[i].ID)
		}
		seen[cfg.Rules[i].ID] = true
	}

	if cfg.Scheduler.Interval <= 0 {
		return nil, fmt.Errorf("scheduler.interval must be positive")
	}
	if cfg.Scheduler.WorkerLimit <= 0 {
		return nil, fmt.Errorf("scheduler.worker_limit must be positive")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "data/fleetpulse.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.interval", "10s")
	v.SetDefault("scheduler.worker_limit", 4)
	v.SetDefault("scheduler.fetch_timeout", "5s")
	v.SetDefault("hub.client_queue_depth", 64)
}

// DefaultRules is the rule set used when the config file carries none. The
// thresholds are operational defaults, not contracts; override them in
// config.yaml.
func DefaultRules() []models.Rule {
	return []models.Rule{
		{
			ID:        "occupancy-high",
			Name:      "High Bed Occupancy",
			Metric:    models.MetricOccupancyRate,
			Operator:  models.OperatorGT,
			Threshold: 90,
			Severity:  models.SeverityWarning,
			Message:   "Bed occupancy at {value}% (threshold {threshold}%)",
			Escalate:  true,
		},
		{
			ID:        "er-wait-long",
			Name:      "Long Emergency Wait",
			Metric:    models.MetricERWaitMinutes,
			Operator:  models.OperatorGT,
			Threshold: 60,
			Severity:  models.SeverityWarning,
			Message:   "Emergency wait at {value} minutes (threshold {threshold})",
			Escalate:  true,
		},
		{
			ID:        "staff-overloaded",
			Name:      "Staff Utilization Critical",
			Metric:    models.MetricStaffUtilization,
			Operator:  models.OperatorGT,
			Threshold: 95,
			Severity:  models.SeverityCritical,
			Message:   "Staff utilization at {value}% (threshold {threshold}%)",
		},
		{
			ID:        "stock-low",
			Name:      "Stock Below Reorder Level",
			Metric:    models.MetricStockLevel,
			Operator:  models.OperatorLT,
			Threshold: 20,
			Severity:  models.SeverityWarning,
			Message:   "{item} stock at {value} (reorder at {threshold})",
			PerItem:   true,
		},
		{
			ID:        "invoices-overdue",
			Name:      "Overdue Invoices Piling Up",
			Metric:    models.MetricOverdueInvoices,
			Operator:  models.OperatorGT,
			Threshold: 10,
			Severity:  models.SeverityWarning,
			Message:   "{value} invoices overdue (threshold {threshold})",
		},
		{
			ID:        "revenue-low",
			Name:      "Daily Revenue Below Floor",
			Metric:    models.MetricDailyRevenue,
			Operator:  models.OperatorLT,
			Threshold: 1000,
			Severity:  models.SeverityInfo,
			Message:   "Daily revenue at {value} (floor {threshold})",
		},
	}
}
