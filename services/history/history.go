// Package history keeps a log of job runs.
package history

import (
	"context"
	"errors"
	"fmt"

	"budvest_data_service/models"
	"budvest_data_service/scheduler"

	"gorm.io/gorm"
)

// DBRecorder stores job runs in the job_runs table
type DBRecorder struct {
	db *gorm.DB
}

// NewDBRecorder creates a relational job-run recorder
func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

// Record stores one run
func (r *DBRecorder) Record(ctx context.Context, res scheduler.RunResult) error {
	run := res.Model()
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", res.RunID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first, optionally for one job
func (r *DBRecorder) Recent(ctx context.Context, job string, limit int) ([]models.JobRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []models.JobRun
	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if job != "" {
		q = q.Where("job = ?", job)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// Multi fans a run out to several recorders
type Multi []scheduler.Recorder

// Record calls every recorder and joins their errors
func (m Multi) Record(ctx context.Context, res scheduler.RunResult) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
