package controllers

import (
	"context"
	"net/http"
	"time"

	"budvest_data_service/scheduler"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatusReporter is an optional dependency that reports its own health
type StatusReporter interface {
	Status(ctx context.Context) map[string]interface{}
}

// HealthController answers liveness and readiness probes
type HealthController struct {
	db        *gorm.DB
	jobs      JobRunner
	mirror    StatusReporter
	startedAt time.Time
}

// NewHealthController creates a health controller. mirror may be nil.
func NewHealthController(db *gorm.DB, jobs JobRunner, mirror StatusReporter) *HealthController {
	return &HealthController{db: db, jobs: jobs, mirror: mirror, startedAt: time.Now()}
}

// Health reports that the process is up
// GET /health
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Market data service is running",
		"uptime":  time.Since(hc.startedAt).Round(time.Second).String(),
	})
}

// Ready checks the store and reports scheduler state
// GET /ready
func (hc *HealthController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	body := gin.H{"status": "ready"}
	status := http.StatusOK

	sqlDB, err := hc.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["database"] = gin.H{"connected": false, "error": err.Error()}
	} else {
		body["database"] = gin.H{"connected": true, "driver": hc.db.Dialector.Name()}
	}

	running := 0
	jobs := hc.jobs.Jobs()
	for _, j := range jobs {
		if j.State == scheduler.StateRunning {
			running++
		}
	}
	body["jobs"] = gin.H{"registered": len(jobs), "running": running}

	if hc.mirror != nil {
		body["mongodb"] = hc.mirror.Status(ctx)
	}

	c.JSON(status, body)
}
