package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// ProjectUpdate is one entry in a project's append-only update log.
type ProjectUpdate struct {
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Note     string    `json:"note,omitempty"`
	Progress int       `json:"progress"`
}

// Project is a long-running operational initiative tracked alongside alerts.
// Status only moves forward (planning -> in_progress -> completed) and
// progress never decreases.
type Project struct {
	gorm.Model
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Status      ProjectStatus  `json:"status" gorm:"index;not null"`
	Progress    int            `json:"progress"`
	Milestones  datatypes.JSON `json:"milestones,omitempty"`
	UpdateLog   datatypes.JSON `json:"update_log,omitempty"`
}
