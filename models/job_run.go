package models

import (
	"time"

	"gorm.io/gorm"
)

// JobRun is one recorded firing of a scheduled job
type JobRun struct {
	ID         uint      `gorm:"primaryKey" json:"-" bson:"-"`
	RunID      string    `gorm:"size:36;uniqueIndex;not null" json:"run_id" bson:"_id"`
	Job        string    `gorm:"size:50;index:idx_job_runs_job_started,priority:1" json:"job" bson:"job"`
	Trigger    string    `gorm:"size:20" json:"trigger" bson:"trigger"` // schedule, warmup, manual
	Outcome    string    `gorm:"size:20;index" json:"outcome" bson:"outcome"`
	Persisted  int       `json:"persisted" bson:"persisted"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time `gorm:"index:idx_job_runs_job_started,priority:2" json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
	DurationMS int64     `json:"duration_ms" bson:"duration_ms"`
}

func (JobRun) TableName() string { return "job_runs" }

// MigrateJobModels runs database migrations for scheduler bookkeeping
func MigrateJobModels(db *gorm.DB) error {
	return db.AutoMigrate(&JobRun{})
}
