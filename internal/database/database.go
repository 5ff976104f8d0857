package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fleetpulse/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Open opens a sqlite database at the given path and migrates the schema.
// Tests use this directly; the process singleton goes through Initialize.
func Open(dbPath string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := gdb.AutoMigrate(
		&models.Tenant{},
		&models.PatientVisit{},
		&models.BedCensus{},
		&models.EmergencyQueue{},
		&models.StaffShift{},
		&models.Invoice{},
		&models.StockLevel{},
		&models.Alert{},
		&models.Project{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return gdb, nil
}

// Initialize opens the process-wide database connection.
func Initialize(dbPath string) error {
	var initErr error
	once.Do(func() {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create database directory: %w", err)
			return
		}

		gdb, err := Open(dbPath)
		if err != nil {
			initErr = err
			return
		}
		db = gdb

		slog.Info("database initialized", "path", dbPath)
	})

	return initErr
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	if db == nil {
		panic("Database not initialized. Call Initialize() first")
	}
	return db
}

// Close closes the database connection.
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	return sqlDB.Close()
}

// SeedTenants inserts a starter facility registry when the table is empty,
// so a fresh install has something to schedule.
func SeedTenants(gdb *gorm.DB) error {
	var count int64
	if err := gdb.Model(&models.Tenant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tenants := []models.Tenant{
		{Code: "central", Name: "Central General", Region: "metro", IsActive: true},
		{Code: "northside", Name: "Northside Clinic", Region: "north", IsActive: true},
	}
	for i := range tenants {
		if err := gdb.Create(&tenants[i]).Error; err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", tenants[i].Code, err)
		}
	}
	slog.Info("seeded tenant registry", "count", len(tenants))
	return nil
}
