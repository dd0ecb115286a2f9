// Package jobs runs the periodic notification maintenance loops.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultSweepEvery  = time.Hour
	defaultRemindEvery = time.Hour
	defaultTimeout     = 30 * time.Second
)

// Notifications is the part of the notification recorder the runner drives.
type Notifications interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
	RemindDeadlines(ctx context.Context, now time.Time) (int, error)
}

// Config sets the loop intervals. Zero values use hourly runs with a 30s
// bound per run.
type Config struct {
	SweepEvery  time.Duration
	RemindEvery time.Duration
	Timeout     time.Duration
}

// Runner schedules retention sweeps and deadline reminders.
type Runner struct {
	notify Notifications
	log    *slog.Logger
	cfg    Config
	now    func() time.Time
}

// New constructs a Runner.
func New(notify Notifications, log *slog.Logger, cfg Config) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = defaultSweepEvery
	}
	if cfg.RemindEvery <= 0 {
		cfg.RemindEvery = defaultRemindEvery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Runner{notify: notify, log: log, cfg: cfg, now: time.Now}
}

// Run blocks until ctx is cancelled. Reminders run once on start so a
// restart does not skip a day.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("jobs runner started", "sweep_every", r.cfg.SweepEvery, "remind_every", r.cfg.RemindEvery)
	sweep := time.NewTicker(r.cfg.SweepEvery)
	defer sweep.Stop()
	remind := time.NewTicker(r.cfg.RemindEvery)
	defer remind.Stop()

	r.Remind(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("jobs runner stopped")
			return
		case <-sweep.C:
			r.Sweep(ctx)
		case <-remind.C:
			r.Remind(ctx)
		}
	}
}

// Sweep runs one retention pass.
func (r *Runner) Sweep(ctx context.Context) (int, error) {
	return r.once(ctx, "sweep", r.notify.Sweep)
}

// Remind runs one deadline reminder pass.
func (r *Runner) Remind(ctx context.Context) (int, error) {
	return r.once(ctx, "remind", r.notify.RemindDeadlines)
}

func (r *Runner) once(ctx context.Context, job string, fn func(context.Context, time.Time) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	start := time.Now()
	n, err := fn(ctx, r.now())
	if err != nil {
		r.log.Error("job failed", "job", job, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return n, err
	}
	r.log.Debug("job finished", "job", job, "count", n, "duration_ms", time.Since(start).Milliseconds())
	return n, nil
}
