package projects

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetpulse/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("project not found")
	ErrInvalidTransition = errors.New("invalid project transition")
)

// Manager owns project CRUD and the project state machine: status moves
// planning -> in_progress -> completed and never backwards, progress is
// monotonic, and every change appends to the update log.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// CreateRequest carries the caller-supplied fields; status and progress
// are fixed at planning/0 on create.
type CreateRequest struct {
	TenantID    uint     `json:"tenant_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Milestones  []string `json:"milestones"`
	Actor       string   `json:"actor"`
}

type UpdateRequest struct {
	Status   *models.ProjectStatus `json:"status"`
	Progress *int                  `json:"progress"`
	Note     string                `json:"note"`
	Actor    string                `json:"actor"`
}

func (m *Manager) Create(req CreateRequest) (*models.Project, error) {
	project := models.Project{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatusPlanning,
		Progress:    0,
	}
	if len(req.Milestones) > 0 {
		data, err := json.Marshal(req.Milestones)
		if err != nil {
			return nil, fmt.Errorf("marshaling milestones: %w", err)
		}
		project.Milestones = datatypes.JSON(data)
	}
	if err := appendUpdate(&project, req.Actor, "project created"); err != nil {
		return nil, err
	}
	if err := m.db.Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (m *Manager) Get(id uint) (*models.Project, error) {
	var project models.Project
	if err := m.db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (m *Manager) List(tenantID uint) ([]models.Project, error) {
	q := m.db.Model(&models.Project{})
	if tenantID != 0 {
		q = q.Where("tenant_id = ?", tenantID)
	}
	var projects []models.Project
	if err := q.Order("updated_at desc").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// Update applies a status transition and/or a progress change. Committing a
// backwards transition or a progress decrease fails with
// ErrInvalidTransition and mutates nothing.
func (m *Manager) Update(id uint, req UpdateRequest) (*models.Project, error) {
	var project models.Project
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if req.Status != nil && *req.Status != project.Status {
			if !validTransition(project.Status, *req.Status) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, project.Status, *req.Status)
			}
			project.Status = *req.Status
			if project.Status == models.ProjectStatusCompleted {
				project.Progress = 100
			}
		}

		if req.Progress != nil {
			if *req.Progress < project.Progress {
				return fmt.Errorf("%w: progress cannot decrease (%d -> %d)",
					ErrInvalidTransition, project.Progress, *req.Progress)
			}
			if *req.Progress > 100 {
				return fmt.Errorf("%w: progress cannot exceed 100", ErrInvalidTransition)
			}
			project.Progress = *req.Progress
		}

		if err := appendUpdate(&project, req.Actor, req.Note); err != nil {
			return err
		}
		return tx.Save(&project).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func validTransition(from, to models.ProjectStatus) bool {
	switch from {
	case models.ProjectStatusPlanning:
		return to == models.ProjectStatusInProgress
	case models.ProjectStatusInProgress:
		return to == models.ProjectStatusCompleted
	default:
		return false
	}
}

func appendUpdate(project *models.Project, actor, note string) error {
	var log []models.ProjectUpdate
	if len(project.UpdateLog) > 0 {
		if err := json.Unmarshal(project.UpdateLog, &log); err != nil {
			return fmt.Errorf("reading update log: %w", err)
		}
	}
	log = append(log, models.ProjectUpdate{
		At:       time.Now(),
		Actor:    actor,
		Note:     note,
		Progress: project.Progress,
	})
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("writing update log: %w", err)
	}
	project.UpdateLog = datatypes.JSON(data)
	return nil
}
