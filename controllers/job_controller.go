package controllers

import (
	"context"
	"errors"
	"net/http"

	"budvest_data_service/middleware"
	"budvest_data_service/models"
	"budvest_data_service/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// JobRunner is the part of the scheduler the API drives
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	Trigger(name string) error
}

// RunLister lists recorded job runs
type RunLister interface {
	Recent(ctx context.Context, job string, limit int) ([]models.JobRun, error)
}

// JobController exposes the job registry and manual triggers
type JobController struct {
	jobs JobRunner
	runs RunLister
}

// NewJobController creates a new job controller
func NewJobController(jobs JobRunner, runs RunLister) *JobController {
	return &JobController{jobs: jobs, runs: runs}
}

// ListJobs returns every registered job with its state and counters
// GET /api/v1/jobs
func (jc *JobController) ListJobs(c *gin.Context) {
	jobs := jc.jobs.Jobs()
	successResponse(c, jobs, &MetaInfo{Total: len(jobs)})
}

// ListRuns returns recent runs, optionally for one job
// GET /api/v1/jobs/runs?job=margin&limit=50
func (jc *JobController) ListRuns(c *gin.Context) {
	job := c.Query("job")
	limit := queryLimit(c, 50)
	runs, err := jc.runs.Recent(c.Request.Context(), job, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to load job runs")
		errorResponse(c, http.StatusInternalServerError, "Failed to load job runs")
		return
	}
	successResponse(c, runs, &MetaInfo{Total: len(runs), Limit: limit, Query: job})
}

// TriggerJob starts a job outside its schedule
// POST /api/v1/admin/jobs/:name/run
func (jc *JobController) TriggerJob(c *gin.Context) {
	name := c.Param("name")
	err := jc.jobs.Trigger(name)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrUnknownJob):
		errorResponse(c, http.StatusNotFound, "Unknown job: "+name)
		return
	case errors.Is(err, scheduler.ErrJobBusy):
		errorResponse(c, http.StatusConflict, "Job is already running: "+name)
		return
	case errors.Is(err, scheduler.ErrShuttingDown):
		errorResponse(c, http.StatusServiceUnavailable, "Scheduler is shutting down")
		return
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"job":   name,
		"admin": middleware.AdminUsernameFromContext(c),
	}).Info("Manual job run triggered")
	c.JSON(http.StatusAccepted, APIResponse{
		Success:   true,
		Data:      gin.H{"job": name, "status": "started"},
		Timestamp: timestamp(),
	})
}
