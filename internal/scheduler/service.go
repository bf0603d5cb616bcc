// Package scheduler runs the periodic consistency verification. The
// schedule is a client-side convenience: its configuration persists in
// local storage, never on the hub.
package scheduler

import (
	"context"
	"sync"
	"time"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

// State is the scheduler's lifecycle state.
type State string

const (
	StateDisabled State = "DISABLED"
	StateArmed    State = "ARMED"
	StateFiring   State = "FIRING"
)

// Verifier runs one consistency check.
type Verifier interface {
	Verify(ctx context.Context) (*domain.ConsistencyCheckResult, error)
}

// verifyTimeout bounds one scheduled verification call.
const verifyTimeout = 30 * time.Second

// Scheduler is the DISABLED/ARMED/FIRING state machine. A failed check is
// logged and the schedule continues; disabling cancels the pending timer
// but never aborts an in-flight verification.
type Scheduler struct {
	verifier Verifier
	prefs    PrefsStore
	logger   logger.Logger
	onResult func(*domain.ConsistencyCheckResult, error)

	mu        sync.Mutex
	state     State
	interval  time.Duration
	next      time.Time
	lastCheck *time.Time
	timer     *time.Timer
}

// New restores persisted preferences and re-arms the scheduler if it was
// enabled. onResult, when non-nil, receives every verification outcome.
func New(verifier Verifier, prefs PrefsStore, log logger.Logger, onResult func(*domain.ConsistencyCheckResult, error)) *Scheduler {
	s := &Scheduler{
		verifier: verifier,
		prefs:    prefs,
		logger:   log,
		onResult: onResult,
		state:    StateDisabled,
	}

	stored, err := prefs.Load(context.Background())
	if err != nil {
		log.Warn("Failed to load scheduler preferences", map[string]interface{}{
			"error": err.Error(),
		})
		return s
	}
	if stored != nil {
		s.lastCheck = stored.LastCheckAt
		if stored.Enabled && stored.IntervalMinutes > 0 {
			if err := s.Enable(stored.IntervalMinutes); err != nil {
				log.Warn("Failed to restore verification schedule", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
	return s
}

// Enable arms the scheduler with the given interval, replacing any pending
// timer.
func (s *Scheduler) Enable(intervalMinutes int) error {
	if intervalMinutes < 1 {
		return errors.ErrInvalidInterval
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.interval = time.Duration(intervalMinutes) * time.Minute
	s.state = StateArmed
	s.next = time.Now().Add(s.interval)
	s.timer = time.AfterFunc(s.interval, s.fire)
	s.mu.Unlock()

	s.persist()
	s.logger.Info("Periodic verification enabled", map[string]interface{}{
		"interval_minutes": intervalMinutes,
	})
	return nil
}

// Stop cancels any pending timer without touching the persisted
// preference. This is the process-shutdown path; an enabled schedule is
// restored on the next start. Disable is the admin-facing action.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = StateDisabled
	s.next = time.Time{}
	s.mu.Unlock()
}

// Disable cancels the pending timer from any state and persists the
// choice. An in-flight verification is left to finish; only its
// rescheduling is suppressed.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = StateDisabled
	s.next = time.Time{}
	s.mu.Unlock()

	s.persist()
	s.logger.Info("Periodic verification disabled", nil)
}

// Snapshot is the scheduler's observable status.
type Snapshot struct {
	State           State      `json:"state"`
	IntervalMinutes int        `json:"interval_minutes"`
	NextCheckAt     *time.Time `json:"next_check_at,omitempty"`
	LastCheckAt     *time.Time `json:"last_check_at,omitempty"`
}

// Status reports the current state for display.
func (s *Scheduler) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:           s.state,
		IntervalMinutes: int(s.interval / time.Minute),
		LastCheckAt:     s.lastCheck,
	}
	if s.state == StateArmed && !s.next.IsZero() {
		next := s.next
		snap.NextCheckAt = &next
	}
	return snap
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return
	}
	s.state = StateFiring
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	result, err := s.verifier.Verify(ctx)
	cancel()

	now := time.Now()
	if err != nil {
		s.logger.Error("Scheduled verification failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.mu.Lock()
	s.lastCheck = &now
	// Disable may have run while the check was in flight.
	if s.state == StateFiring {
		s.state = StateArmed
		s.next = now.Add(s.interval)
		s.timer = time.AfterFunc(s.interval, s.fire)
	}
	s.mu.Unlock()

	s.persist()
	if s.onResult != nil {
		s.onResult(result, err)
	}
}

func (s *Scheduler) persist() {
	s.mu.Lock()
	prefs := &domain.SchedulerPrefs{
		Enabled:         s.state != StateDisabled,
		IntervalMinutes: int(s.interval / time.Minute),
		LastCheckAt:     s.lastCheck,
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.prefs.Save(ctx, prefs); err != nil {
		s.logger.Warn("Failed to persist scheduler preferences", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
