package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"budvest_data_service/models"
)

// RunFunc performs one job run and returns the number of persisted rows
type RunFunc func(ctx context.Context) (int, error)

// Cadence is either a fixed interval or a daily wall-clock time
type Cadence struct {
	Every time.Duration
	At    string // HH:MM in the scheduler's location
}

// Interval fires every d
func Interval(d time.Duration) Cadence { return Cadence{Every: d} }

// DailyAt fires once a day at hhmm
func DailyAt(hhmm string) Cadence { return Cadence{At: hhmm} }

func (c Cadence) String() string {
	if c.Every > 0 {
		return "every " + c.Every.String()
	}
	return "daily at " + c.At
}

// Job binds a run function to a cadence. Gated jobs only fire inside the
// trading window.
type Job struct {
	Name        string
	Description string
	Cadence     Cadence
	Gated       bool
	Run         RunFunc
}

// Trigger tells what started a run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerWarmUp   Trigger = "warmup"
	TriggerManual   Trigger = "manual"
)

// Outcome of a firing
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkippedBusy Outcome = "skipped_busy"
	OutcomeSkippedGate Outcome = "skipped_gate"
)

// RunResult describes one firing of a job
type RunResult struct {
	RunID      string
	Job        string
	Trigger    Trigger
	Outcome    Outcome
	Persisted  int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration of the run
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Model converts the result into its stored form
func (r RunResult) Model() models.JobRun {
	run := models.JobRun{
		RunID:      r.RunID,
		Job:        r.Job,
		Trigger:    string(r.Trigger),
		Outcome:    string(r.Outcome),
		Persisted:  r.Persisted,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	return run
}

// Recorder stores finished runs
type Recorder interface {
	Record(ctx context.Context, result RunResult) error
}

// Notifier is told about every finished or skipped run
type Notifier interface {
	Notify(result RunResult)
}

// State of a job
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// JobInfo is a read-only snapshot of a registered job
type JobInfo struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Cadence       string     `json:"cadence"`
	Gated         bool       `json:"gated"`
	State         State      `json:"state"`
	Runs          int        `json:"runs"`
	Failures      int        `json:"failures"`
	SkippedBusy   int        `json:"skipped_busy"`
	SkippedGate   int        `json:"skipped_gate"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastOutcome   Outcome    `json:"last_outcome,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastPersisted int        `json:"last_persisted"`
	LastDuration  string     `json:"last_duration,omitempty"`
}

// jobState guards one job: running is the at-most-one-execution flag, mu
// protects the counters.
type jobState struct {
	Job
	running atomic.Bool

	mu          sync.Mutex
	runs        int
	failures    int
	skippedBusy int
	skippedGate int
	last        *RunResult
}

func (js *jobState) tryAcquire() bool {
	return js.running.CompareAndSwap(false, true)
}

func (js *jobState) release() {
	js.running.Store(false)
}

func (js *jobState) observe(res RunResult) {
	js.mu.Lock()
	defer js.mu.Unlock()
	switch res.Outcome {
	case OutcomeSkippedBusy:
		js.skippedBusy++
		return
	case OutcomeSkippedGate:
		js.skippedGate++
		return
	case OutcomeFailed:
		js.failures++
	}
	js.runs++
	js.last = &res
}

func (js *jobState) info() JobInfo {
	js.mu.Lock()
	defer js.mu.Unlock()
	info := JobInfo{
		Name:        js.Name,
		Description: js.Description,
		Cadence:     js.Cadence.String(),
		Gated:       js.Gated,
		State:       StateIdle,
		Runs:        js.runs,
		Failures:    js.failures,
		SkippedBusy: js.skippedBusy,
		SkippedGate: js.skippedGate,
	}
	if js.running.Load() {
		info.State = StateRunning
	}
	if js.last != nil {
		at := js.last.StartedAt
		info.LastRunAt = &at
		info.LastOutcome = js.last.Outcome
		info.LastPersisted = js.last.Persisted
		info.LastDuration = js.last.Duration().String()
		if js.last.Err != nil {
			info.LastError = js.last.Err.Error()
		}
	}
	return info
}

func (j Job) validate() error {
	if j.Name == "" {
		return fmt.Errorf("job without name")
	}
	if j.Run == nil {
		return fmt.Errorf("job %s has no run function", j.Name)
	}
	if j.Cadence.Every <= 0 && j.Cadence.At == "" {
		return fmt.Errorf("job %s has no cadence", j.Name)
	}
	return nil
}
