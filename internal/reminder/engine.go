package reminder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vitabot/internal/plan"
	"vitabot/internal/profile"
	logx "vitabot/pkg/logx"
)

// Config controls the tick loop.
type Config struct {
	// TickInterval is the polling cadence; also the due-selection lookahead.
	TickInterval time.Duration
	// Lookbehind is the grace window for instances the scheduler missed
	// (downtime, jitter). Must be >= TickInterval or a slow tick could skip
	// reminders entirely.
	Lookbehind time.Duration
	// DispatchTimeout bounds a single send so one hung dispatch cannot stall
	// the rest of the tick.
	DispatchTimeout time.Duration
	// RatePerSec throttles outbound sends.
	RatePerSec int
}

func (c *Config) normalize() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.Lookbehind <= 0 {
		c.Lookbehind = 5 * time.Minute
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 30 * time.Second
	}
}

// Validate enforces the grace-window invariant. A lookbehind shorter than the
// tick interval silently drops reminders scheduled during a slow tick, so it
// is rejected as a configuration error rather than allowed.
func (c Config) Validate() error {
	tick := c.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	behind := c.Lookbehind
	if behind <= 0 {
		behind = 5 * time.Minute
	}
	if behind < tick {
		return fmt.Errorf("reminders: lookbehind %s must be >= tick interval %s", behind, tick)
	}
	return nil
}

// UserSource lists the users to schedule for. The engine re-reads it every
// tick and never caches snapshots across ticks.
type UserSource interface {
	ListUsers(ctx context.Context) ([]profile.User, error)
}

// MedicationSource provides the configured intakes for one user.
type MedicationSource interface {
	ListMedications(ctx context.Context, userID int64) ([]profile.MedicationSchedule, error)
}

// Engine runs the two-phase tick: materialize missing instances for every
// user, then dispatch everything due in the tick window. Ticks are strictly
// sequential; a tick that overruns delays the next one instead of
// overlapping it.
type Engine struct {
	cfg        Config
	store      Store
	dispatcher Dispatcher
	users      UserSource
	meds       MedicationSource
	log        logx.Logger

	now func() time.Time

	mu        sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
}

func NewEngine(cfg Config, store Store, dispatcher Dispatcher, users UserSource, meds MedicationSource, log logx.Logger) *Engine {
	cfg.normalize()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		users:      users,
		meds:       meds,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c != nil {
		return nil
	}
	e.runCtx, e.runCancel = context.WithCancel(ctx)

	// SkipIfStillRunning guarantees at most one tick executing at a time and
	// treats a delayed tick as a skip, not an error.
	e.c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{e.log})))
	spec := fmt.Sprintf("@every %s", e.cfg.TickInterval)
	if _, err := e.c.AddFunc(spec, func() {
		runCtx := e.runContext()
		if runCtx == nil || runCtx.Err() != nil {
			return
		}
		if err := e.tick(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			// A store outage surfaces here; keep ticking and retry next interval.
			e.log.Error("tick failed", logx.Err(err))
		}
	}); err != nil {
		e.c = nil
		e.runCancel()
		return err
	}
	e.c.Start()
	e.log.Info("reminder engine started",
		logx.Duration("tick", e.cfg.TickInterval), logx.Duration("lookbehind", e.cfg.Lookbehind))
	return nil
}

// Stop halts the tick trigger and waits for an in-flight tick, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	c := e.c
	cancel := e.runCancel
	e.c = nil
	e.runCancel = nil
	e.mu.Unlock()
	if c == nil {
		return
	}

	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		// Abandon the in-flight tick; every store mutation is atomic per
		// instance, so cutting it short cannot corrupt state.
		if cancel != nil {
			cancel()
		}
		<-done
	}
	if cancel != nil {
		cancel()
	}
	e.log.Info("reminder engine stopped")
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runCtx
}

// tick runs both phases. The materialize phase failing wholesale (e.g. user
// listing unavailable) does not block the dispatch phase: instances from
// earlier ticks may still be due.
func (e *Engine) tick(ctx context.Context) error {
	now := e.now()

	var firstErr error
	if err := e.materializeAll(ctx, now); err != nil {
		firstErr = err
	}
	if err := e.dispatchDue(ctx, now); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (e *Engine) materializeAll(ctx context.Context, now time.Time) error {
	users, err := e.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		u := &users[i]
		e.withRecover(fmt.Sprintf("materialize user %d", u.TelegramID), func() {
			if err := e.materializeUser(ctx, u, now); err != nil {
				e.log.Warn("materialize failed for user",
					logx.Int64("user", u.TelegramID), logx.Err(err))
			}
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) materializeUser(ctx context.Context, u *profile.User, now time.Time) error {
	var meds []profile.MedicationSchedule
	if u.ModuleEnabled(profile.ModuleMeds) {
		var err error
		meds, err = e.meds.ListMedications(ctx, u.TelegramID)
		if err != nil {
			// Degrade: skip medication slots this tick, keep the other kinds.
			e.log.Warn("medication listing failed",
				logx.Int64("user", u.TelegramID), logx.Err(err))
		}
	}

	var firstErr error
	for _, g := range generateAll(u, meds) {
		for _, occ := range g.occs {
			target, tzOK := plan.ResolveLocal(occ.Time, u.Timezone, now)
			if !tzOK {
				e.log.Warn("unknown timezone, using UTC",
					logx.Int64("user", u.TelegramID), logx.String("tz", u.Timezone))
			}
			created, err := e.store.MaterializeIfAbsent(ctx, u.TelegramID, g.kind, target, occ.Payload)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if created {
				e.log.Debug("reminder materialized",
					logx.Int64("user", u.TelegramID),
					logx.String("kind", string(g.kind)),
					logx.Time("at", target))
			}
		}
	}
	return firstErr
}

func (e *Engine) dispatchDue(ctx context.Context, now time.Time) error {
	due, err := e.store.SelectDue(ctx, now, e.cfg.TickInterval, e.cfg.Lookbehind)
	if err != nil {
		return fmt.Errorf("select due: %w", err)
	}
	for _, inst := range due {
		inst := inst
		panicked := e.withRecover(fmt.Sprintf("dispatch reminder %d", inst.ID), func() {
			e.dispatchOne(ctx, inst, now)
		})
		if panicked {
			// Do not leave a panicking instance pending or it would be
			// redelivered every tick until the grace window expires.
			if err := e.store.MarkTerminallyFailed(ctx, inst.ID); err != nil {
				e.log.Error("failing panicked reminder",
					logx.Int64("reminder", inst.ID), logx.Err(err))
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) dispatchOne(ctx context.Context, inst Instance, now time.Time) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
	outcome := e.dispatcher.Dispatch(dctx, inst)
	cancel()

	action, delay := Decide(inst.Kind, outcome, inst.Attempt)
	var err error
	switch action {
	case ActionComplete:
		// Committed only after the confirmed send: a crash in between can
		// duplicate at most one notification on the next tick.
		err = e.store.MarkDispatched(ctx, inst.ID)
	case ActionReschedule:
		err = e.store.MarkRescheduled(ctx, inst.ID, now.Add(delay))
		e.log.Info("reminder rescheduled",
			logx.Int64("reminder", inst.ID), logx.Int("attempt", inst.Attempt+1),
			logx.Duration("delay", delay))
	case ActionFail:
		err = e.store.MarkTerminallyFailed(ctx, inst.ID)
		e.log.Warn("reminder failed terminally",
			logx.Int64("reminder", inst.ID), logx.String("kind", string(inst.Kind)),
			logx.String("outcome", outcome.String()))
	}
	if err != nil {
		e.log.Error("store update after dispatch failed",
			logx.Int64("reminder", inst.ID), logx.Err(err))
	}
}

func (e *Engine) withRecover(what string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			e.log.Error("panic in "+what,
				logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	fn()
	return false
}

// cronLogger adapts logx to the cron.Logger interface. Skipped overlapping
// ticks land here as info lines.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
