// Package scheduler owns the fixed registry of collection jobs.
// It handles:
// - Interval and daily firings on top of gocron
// - Trading-window gating of intraday jobs
// - At most one running instance per job
// - Failure and panic isolation per job
// - Warm-up runs before steady state and graceful drain on shutdown
//
// The main scheduler is implemented in jobs.go
package scheduler
