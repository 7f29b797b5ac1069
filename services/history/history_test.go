package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budvest_data_service/models"
	"budvest_data_service/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.MigrateJobModels(db))
	return db
}

func TestDBRecorder_RecordAndRecent(t *testing.T) {
	rec := NewDBRecorder(openDB(t))
	ctx := context.Background()
	start := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

	require.NoError(t, rec.Record(ctx, scheduler.RunResult{
		RunID: "run-1", Job: "realtime_quotes", Trigger: scheduler.TriggerSchedule,
		Outcome: scheduler.OutcomeSuccess, Persisted: 5,
		StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	}))
	require.NoError(t, rec.Record(ctx, scheduler.RunResult{
		RunID: "run-2", Job: "margin", Trigger: scheduler.TriggerManual,
		Outcome: scheduler.OutcomeFailed, Err: errors.New("disk full"),
		StartedAt: start.Add(time.Minute), FinishedAt: start.Add(time.Minute),
	}))

	runs, err := rec.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "disk full", runs[0].Error)
	assert.Equal(t, int64(1500), runs[1].DurationMS)

	runs, err = rec.Recent(ctx, "realtime_quotes", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].Persisted)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, scheduler.RunResult) error {
	return errors.New("mirror offline")
}

func TestMulti_JoinsErrors(t *testing.T) {
	db := openDB(t)
	m := Multi{NewDBRecorder(db), failingRecorder{}, nil}

	err := m.Record(context.Background(), scheduler.RunResult{RunID: "r", Job: "stock_news", StartedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror offline")

	var count int64
	require.NoError(t, db.Model(&models.JobRun{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "healthy recorders still run")
}
