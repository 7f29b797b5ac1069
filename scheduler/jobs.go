package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"budvest_data_service/config"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrJobBusy      = errors.New("job is already running")
	ErrShuttingDown = errors.New("scheduler is shutting down")
)

// Options configure a Scheduler
type Options struct {
	// Location evaluates daily cadences; defaults to UTC+8
	Location *time.Location
	// MaxConcurrent bounds how many jobs run at once; 1 is cooperative mode.
	// A firing that finds every slot taken waits for one.
	MaxConcurrent int
	Recorder      Recorder
	Notifier      Notifier
	// Now is used for gating and timestamps; defaults to time.Now
	Now func() time.Time
}

// Scheduler manages scheduled jobs. Each job runs at most once at a time: a
// firing that finds the job still running is dropped, never queued.
type Scheduler struct {
	cron     *gocron.Scheduler
	gate     Gate
	recorder Recorder
	notifier Notifier
	now      func() time.Time
	// slots bounds parallel runs across jobs
	slots    chan struct{}

	jobs   []*jobState
	byName map[string]*jobState

	mu       sync.Mutex
	started  bool
	stopping bool
	inflight sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(gate Gate, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	cron := gocron.NewScheduler(loc)
	// interval jobs wait one period; the warm-up covers the first run
	cron.WaitForScheduleAll()

	return &Scheduler{
		cron:     cron,
		slots:    make(chan struct{}, maxConcurrent),
		gate:     gate,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		now:      now,
		byName:   make(map[string]*jobState),
	}
}

// Register adds jobs to the registry. The registry is fixed once started.
func (s *Scheduler) Register(jobs ...Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot register jobs on a started scheduler")
	}
	for _, j := range jobs {
		if err := j.validate(); err != nil {
			return err
		}
		if j.Cadence.At != "" {
			if _, _, err := config.ParseClock(j.Cadence.At); err != nil {
				return fmt.Errorf("job %s: %w", j.Name, err)
			}
		}
		if _, exists := s.byName[j.Name]; exists {
			return fmt.Errorf("job %s registered twice", j.Name)
		}
		js := &jobState{Job: j}
		s.jobs = append(s.jobs, js)
		s.byName[j.Name] = js
	}
	return nil
}

// WarmUp runs the named jobs once, synchronously and in order, ignoring the
// trading window. Failures are logged and do not stop the sequence.
func (s *Scheduler) WarmUp(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, ok := s.byName[name]; !ok {
			return fmt.Errorf("warm-up %q: %w", name, ErrUnknownJob)
		}
	}

	logrus.WithField("jobs", names).Info("Running warm-up collection...")
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.RunNow(ctx, name, TriggerWarmUp); err != nil {
			logrus.WithField("job", name).WithError(err).Warn("Warm-up job not run")
		}
	}
	logrus.Info("Warm-up collection finished")
	return nil
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return ErrShuttingDown
	}
	if s.started {
		return nil
	}

	for _, js := range s.jobs {
		var err error
		if js.Cadence.Every > 0 {
			_, err = s.cron.Every(js.Cadence.Every).Tag(js.Name).Do(s.fire, js)
		} else {
			_, err = s.cron.Every(1).Day().At(js.Cadence.At).Tag(js.Name).Do(s.fire, js)
		}
		if err != nil {
			return fmt.Errorf("schedule %s: %w", js.Name, err)
		}
	}

	s.cron.StartAsync()
	s.started = true
	logrus.WithField("jobs", len(s.jobs)).Info("Scheduler started successfully")
	return nil
}

// Shutdown stops new firings and waits for in-flight runs until ctx ends
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	started := s.started
	s.mu.Unlock()

	logrus.Info("Stopping scheduler, draining running jobs...")
	drained := make(chan struct{})
	go func() {
		if started {
			s.cron.Stop()
		}
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		logrus.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler drain: %w", ctx.Err())
	}
}

// Jobs returns a snapshot of the registry in registration order
func (s *Scheduler) Jobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, js := range s.jobs {
		infos = append(infos, js.info())
	}
	return infos
}

// RunNow runs a job immediately and waits for it. The trading window is
// bypassed; a job that is already running is not started twice.
func (s *Scheduler) RunNow(ctx context.Context, name string, trigger Trigger) (RunResult, error) {
	js, ok := s.byName[name]
	if !ok {
		return RunResult{}, fmt.Errorf("%q: %w", name, ErrUnknownJob)
	}
	if !s.enter() {
		return RunResult{}, ErrShuttingDown
	}
	defer s.inflight.Done()

	if !js.tryAcquire() {
		return s.skip(js, trigger, OutcomeSkippedBusy), ErrJobBusy
	}
	return s.run(ctx, js, trigger), nil
}

// Trigger starts a manual run in the background
func (s *Scheduler) Trigger(name string) error {
	js, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownJob)
	}
	if !s.enter() {
		return ErrShuttingDown
	}
	if !js.tryAcquire() {
		s.inflight.Done()
		return ErrJobBusy
	}
	go func() {
		defer s.inflight.Done()
		s.run(context.Background(), js, TriggerManual)
	}()
	return nil
}

// enter registers an in-flight firing unless shutdown has begun
func (s *Scheduler) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.inflight.Add(1)
	return true
}

// fire is invoked by gocron for every scheduled firing
func (s *Scheduler) fire(js *jobState) {
	if !s.enter() {
		return
	}
	defer s.inflight.Done()

	if js.Gated && !s.gate.ShouldRunIntraday(s.now()) {
		s.skip(js, TriggerSchedule, OutcomeSkippedGate)
		return
	}
	if !js.tryAcquire() {
		s.skip(js, TriggerSchedule, OutcomeSkippedBusy)
		return
	}
	s.run(context.Background(), js, TriggerSchedule)
}

// run executes an acquired job and releases it. It waits for a free slot
// while the job stays marked running, so further firings of the same job
// are dropped but other jobs only queue. Shutdown does not cancel the run
// context.
func (s *Scheduler) run(ctx context.Context, js *jobState, trigger Trigger) RunResult {
	log := logrus.WithFields(logrus.Fields{"job": js.Name, "trigger": trigger})
	s.slots <- struct{}{}

	res := RunResult{
		RunID:     uuid.NewString(),
		Job:       js.Name,
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	log.Info("Job started")

	res.Persisted, res.Err = invoke(context.WithoutCancel(ctx), js.Run)
	res.FinishedAt = s.now()
	<-s.slots
	js.release()

	if res.Err != nil {
		res.Outcome = OutcomeFailed
		log.WithError(res.Err).WithField("duration", res.Duration()).Error("Job failed")
	} else {
		res.Outcome = OutcomeSuccess
		log.WithFields(logrus.Fields{
			"persisted": res.Persisted,
			"duration":  res.Duration(),
		}).Info("Job finished")
	}

	js.observe(res)
	s.publish(res)
	return res
}

// invoke converts a panic inside the job into an error
func invoke(ctx context.Context, fn RunFunc) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) skip(js *jobState, trigger Trigger, outcome Outcome) RunResult {
	now := s.now()
	res := RunResult{
		RunID:      uuid.NewString(),
		Job:        js.Name,
		Trigger:    trigger,
		Outcome:    outcome,
		StartedAt:  now,
		FinishedAt: now,
	}
	js.observe(res)

	log := logrus.WithFields(logrus.Fields{"job": js.Name, "trigger": trigger})
	if outcome == OutcomeSkippedGate {
		log.Debug("Outside trading window, skipping")
		return res
	}
	log.Warn("Previous run still in progress, skipping")
	s.publish(res)
	return res
}

func (s *Scheduler) publish(res RunResult) {
	if s.notifier != nil {
		s.notifier.Notify(res)
	}
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, res); err != nil {
		logrus.WithField("job", res.Job).WithError(err).Warn("Failed to record job run")
	}
}
