package cleaner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/notify"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// State is a step of a cleanup cycle.
type State int

// Cycle states. A cycle runs Idle, Pruning, Measuring, Evaluating,
// optionally Notifying, then Sleeping.
const (
	StateIdle State = iota
	StatePruning
	StateMeasuring
	StateEvaluating
	StateNotifying
	StateSleeping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePruning:
		return "pruning"
	case StateMeasuring:
		return "measuring"
	case StateEvaluating:
		return "evaluating"
	case StateNotifying:
		return "notifying"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// StateHook observes every state transition. It runs on the loop goroutine
// and must not block.
type StateHook func(cycle uint64, from, to State)

// Settings are the durations and thresholds of a Loop.
type Settings struct {
	// Sleep is the pause between cycles. Must be positive.
	Sleep units.Seconds

	// CacheRetention is the retention window of the regular prune.
	CacheRetention units.Seconds

	// EmergencyRetention is the retention window of the emergency prune.
	EmergencyRetention units.Seconds

	Thresholds Thresholds
}

// Validate checks s.
func (s Settings) Validate() error {
	if s.Sleep <= 0 {
		return fmt.Errorf("sleep interval must be positive, got %v", s.Sleep)
	}
	if s.CacheRetention < 0 || s.EmergencyRetention < 0 {
		return fmt.Errorf("retention windows must not be negative")
	}
	return s.Thresholds.Validate()
}

// Stats are the loop counters since start.
type Stats struct {
	Cycles               int64 `json:"cycles"`
	PruneFailures        int64 `json:"prune_failures"`
	CollectionFailures   int64 `json:"collection_failures"`
	NotificationsSent    int64 `json:"notifications_sent"`
	NotificationFailures int64 `json:"notification_failures"`
}

// CycleResult describes one finished cycle.
type CycleResult struct {
	Cycle      uint64
	Level      Level
	Thresholds Thresholds
	Cache      usage.CacheReport
	Disk       usage.DiskReport

	// Err is the measurement error that skipped evaluation, if any.
	Err error

	// NotifyErr is the delivery error of this cycle's alert, if any.
	NotifyErr error
}

// Loop is the cleanup state machine. It is driven from a single goroutine;
// Stats may be read from any goroutine.
type Loop struct {
	cache    usage.CacheUsageSource
	disk     usage.DiskUsageSource
	pruner   Pruner
	notifier notify.Notifier
	settings Settings

	hook     StateHook
	updates  <-chan Thresholds
	hostname string
	runID    string

	state State
	cycle uint64

	cycles               atomic.Int64
	pruneFailures        atomic.Int64
	collectionFailures   atomic.Int64
	notificationsSent    atomic.Int64
	notificationFailures atomic.Int64
}

// Option is a functional option for configuring a Loop.
type Option func(*Loop)

// WithStateHook registers a transition observer.
func WithStateHook(hook StateHook) Option {
	return func(l *Loop) {
		l.hook = hook
	}
}

// WithThresholdUpdates makes the loop apply thresholds received on ch while
// it sleeps.
func WithThresholdUpdates(ch <-chan Thresholds) Option {
	return func(l *Loop) {
		l.updates = ch
	}
}

// WithHostname names the host in alert titles.
func WithHostname(hostname string) Option {
	return func(l *Loop) {
		l.hostname = hostname
	}
}

// WithRunID adds the process run ID to alert bodies.
func WithRunID(runID string) Option {
	return func(l *Loop) {
		l.runID = runID
	}
}

// New validates settings and returns a Loop in StateIdle.
func New(cache usage.CacheUsageSource, disk usage.DiskUsageSource, pruner Pruner, notifier notify.Notifier, settings Settings, opts ...Option) (*Loop, error) {
	if cache == nil || disk == nil || pruner == nil || notifier == nil {
		return nil, errors.New("cleaner: cache source, disk source, pruner and notifier are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cache:    cache,
		disk:     disk,
		pruner:   pruner,
		notifier: notifier,
		settings: settings,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State returns the current state. Only meaningful on the loop goroutine or
// after Run has returned.
func (l *Loop) State() State {
	return l.state
}

// Thresholds returns the thresholds in effect. Same caveat as State.
func (l *Loop) Thresholds() Thresholds {
	return l.settings.Thresholds
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:               l.cycles.Load(),
		PruneFailures:        l.pruneFailures.Load(),
		CollectionFailures:   l.collectionFailures.Load(),
		NotificationsSent:    l.notificationsSent.Load(),
		NotificationFailures: l.notificationFailures.Load(),
	}
}

// Run repeats RunCycle and the sleep that follows it until ctx is cancelled.
// Cancellation is a graceful shutdown and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	logger := logging.Get("cleaner")
	logger.Info("cleanup loop started",
		"sleep", units.FormatDuration(l.settings.Sleep),
		"cache_retention", units.FormatDuration(l.settings.CacheRetention),
		"warning", l.settings.Thresholds.Warning,
		"emergency", l.settings.Thresholds.Emergency)

	for {
		if ctx.Err() != nil {
			break
		}
		l.RunCycle(ctx)
		if err := l.sleep(ctx); err != nil {
			break
		}
	}

	stats := l.Stats()
	logger.Info("cleanup loop stopped",
		"cycles", stats.Cycles,
		"notifications_sent", stats.NotificationsSent,
		"notification_failures", stats.NotificationFailures,
		"collection_failures", stats.CollectionFailures)
	return nil
}

// RunCycle runs one cycle from Idle to Sleeping without the sleep itself.
// Failures are logged, counted and reported in the result; none of them stop
// the loop.
func (l *Loop) RunCycle(ctx context.Context) CycleResult {
	l.cycle++
	l.cycles.Add(1)
	result := CycleResult{Cycle: l.cycle, Thresholds: l.settings.Thresholds}
	logger := logging.Get("cleaner").With("cycle", l.cycle)

	if l.state != StateIdle {
		l.transition(StateIdle)
	}

	l.transition(StatePruning)
	l.prune(ctx, logger, l.settings.CacheRetention)

	l.transition(StateMeasuring)
	cache, disk, err := l.measure(ctx)
	if err != nil {
		l.collectionFailures.Add(1)
		logger.Error("measurement failed, skipping evaluation", "error", err)
		result.Err = err
		l.transition(StateSleeping)
		return result
	}
	result.Cache, result.Disk = cache, disk

	l.transition(StateEvaluating)
	result.Level = Evaluate(disk, l.settings.Thresholds)
	logger.Info("disk evaluated",
		"device", disk.Device,
		"total", disk.TotalGB,
		"used", disk.UsedGB,
		"used_fraction", fmt.Sprintf("%.4f", disk.UsedFraction()),
		"docker", cache.TotalUsedGB,
		"reclaimable", cache.ReclaimableGB,
		"level", result.Level)

	if result.Level == LevelEmergency {
		l.prune(ctx, logger, l.settings.EmergencyRetention)
	}

	if alert, ok := ComposeAlert(result.Level, disk, cache, AlertContext{
		Hostname: l.hostname,
		RunID:    l.runID,
		Cycle:    l.cycle,
	}); ok {
		l.transition(StateNotifying)
		if err := l.notifier.Notify(ctx, alert.Title, alert.Body); err != nil {
			l.notificationFailures.Add(1)
			logger.Error("notification failed", "level", result.Level, "error", err)
			result.NotifyErr = err
		} else {
			l.notificationsSent.Add(1)
		}
	}

	l.transition(StateSleeping)
	return result
}

func (l *Loop) prune(ctx context.Context, logger *logging.Logger, olderThan units.Seconds) {
	if err := l.pruner.Prune(ctx, olderThan); err != nil {
		l.pruneFailures.Add(1)
		logger.Warn("prune failed", "until", units.FormatDuration(olderThan), "error", err)
	}
}

func (l *Loop) measure(ctx context.Context) (usage.CacheReport, usage.DiskReport, error) {
	cache, err := l.cache.CacheUsage(ctx)
	if err != nil {
		return usage.CacheReport{}, usage.DiskReport{}, fmt.Errorf("cache usage: %w", err)
	}
	disk, err := l.disk.DiskUsage(ctx)
	if err != nil {
		return usage.CacheReport{}, usage.DiskReport{}, fmt.Errorf("disk usage: %w", err)
	}
	return cache, disk, nil
}

// sleep waits for the sleep interval, applying threshold updates as they
// arrive. It returns ctx.Err() when cancelled, leaving the loop in Sleeping.
func (l *Loop) sleep(ctx context.Context) error {
	timer := time.NewTimer(l.settings.Sleep.Duration())
	defer timer.Stop()

	updates := l.updates
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			l.transition(StateIdle)
			return nil
		case t, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			l.applyThresholds(t)
		}
	}
}

func (l *Loop) applyThresholds(t Thresholds) {
	logger := logging.Get("cleaner")
	if err := t.Validate(); err != nil {
		logger.Warn("ignoring threshold update", "error", err)
		return
	}
	if t == l.settings.Thresholds {
		return
	}
	logger.Info("thresholds updated",
		"warning", t.Warning,
		"emergency", t.Emergency,
		"previous_warning", l.settings.Thresholds.Warning,
		"previous_emergency", l.settings.Thresholds.Emergency)
	l.settings.Thresholds = t
}

func (l *Loop) transition(to State) {
	from := l.state
	l.state = to
	logging.Get("cleaner").Debug("state", "cycle", l.cycle, "from", from, "to", to)
	if l.hook != nil {
		l.hook(l.cycle, from, to)
	}
}
