package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetpulse/internal/alertstore"
	"github.com/fleetpulse/internal/hub"
	"github.com/fleetpulse/internal/models"
	"github.com/fleetpulse/internal/projects"
	"github.com/fleetpulse/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// Server is the synchronous query surface: cached dashboard state, alert
// listing and acknowledgment, project CRUD, and the websocket upgrade
// endpoint. All reads come from the alert store and the scheduler's
// snapshot cache; the server never queries the operational tables itself.
type Server struct {
	store     *alertstore.Store
	scheduler *scheduler.Scheduler
	projects  *projects.Manager
	hub       *hub.Hub
	router    *gin.Engine
}

func NewServer(store *alertstore.Store, sched *scheduler.Scheduler, pm *projects.Manager, h *hub.Hub) *Server {
	server := &Server{
		store:     store,
		scheduler: sched,
		projects:  pm,
		hub:       h,
		router:    gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.GET("/dashboard", s.getDashboard)
	api.GET("/alerts", s.listAlerts)
	api.POST("/alerts/:id/acknowledge", s.acknowledgeAlert)

	api.GET("/projects", s.listProjects)
	api.POST("/projects", s.createProject)
	api.PUT("/projects/:id", s.updateProject)

	if s.hub != nil {
		s.router.GET("/ws", func(c *gin.Context) {
			s.hub.ServeWS(c.Writer, c.Request)
		})
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// DashboardState builds the aggregated view served by GET /dashboard and
// pushed as the initial full_sync to new websocket clients.
func DashboardState(sched *scheduler.Scheduler, store *alertstore.Store) gin.H {
	cache := sched.Cache()

	tenants := make([]gin.H, 0, len(cache))
	var lastUpdated time.Time
	for id, cached := range cache {
		tenants = append(tenants, gin.H{
			"tenant_id":  id,
			"metrics":    cached.Snapshot.Metrics,
			"stock":      cached.Snapshot.Stock,
			"taken_at":   cached.Snapshot.TakenAt,
			"stale":      cached.Stale,
			"updated_at": cached.UpdatedAt,
		})
		if cached.UpdatedAt.After(lastUpdated) {
			lastUpdated = cached.UpdatedAt
		}
	}

	alerts, err := store.List(alertstore.Filter{
		Statuses: []models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged},
	})
	if err != nil {
		alerts = nil
	}

	return gin.H{
		"tenants":      tenants,
		"alerts":       alerts,
		"last_updated": lastUpdated,
	}
}

func (s *Server) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, DashboardState(s.scheduler, s.store))
}

func (s *Server) listAlerts(c *gin.Context) {
	var filter alertstore.Filter

	if tenant := c.Query("tenant"); tenant != "" {
		id, err := strconv.ParseUint(tenant, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
			return
		}
		filter.TenantID = uint(id)
	}

	if status := c.Query("status"); status != "" {
		switch models.AlertStatus(status) {
		case models.AlertStatusActive, models.AlertStatusAcknowledged, models.AlertStatusResolved:
			filter.Statuses = []models.AlertStatus{models.AlertStatus(status)}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", status)})
			return
		}
	}

	alerts, err := s.store.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req struct {
		Actor string `json:"actor" binding:"required"`
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := s.store.Acknowledge(uint(id), req.Actor, req.Notes)
	switch {
	case errors.Is(err, alertstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, alertstore.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, alert)
	}
}

func (s *Server) listProjects(c *gin.Context) {
	var tenantID uint
	if tenant := c.Query("tenant"); tenant != "" {
		id, err := strconv.ParseUint(tenant, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
			return
		}
		tenantID = uint(id)
	}

	list, err := s.projects.List(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createProject(c *gin.Context) {
	var req projects.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := s.projects.Create(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) updateProject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req projects.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := s.projects.Update(uint(id), req)
	switch {
	case errors.Is(err, projects.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	case errors.Is(err, projects.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, project)
	}
}
