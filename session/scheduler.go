package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Scheduler defaults. The lead time deliberately exceeds the tick interval
// so a credential can never slip through a full tick-to-tick window
// unrenewed.
const (
	DefaultTickInterval    = 60 * time.Second
	DefaultRenewalLeadTime = 70 * time.Second
	DefaultRetryBackoff    = 5 * time.Second
)

// SchedulerConfig carries the renewal timing knobs.
type SchedulerConfig struct {
	// TickInterval is how often the remaining lifetime is evaluated.
	TickInterval time.Duration

	// RenewalLeadTime is how long before expiry a refresh is proactively
	// triggered.
	RenewalLeadTime time.Duration

	// RetryBackoff is the single short delay before re-evaluating after a
	// transient refresh failure.
	RetryBackoff time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RenewalLeadTime <= 0 {
		c.RenewalLeadTime = DefaultRenewalLeadTime
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}

// Scheduler runs the single recurring renewal task. On each tick it asks
// the machine for the remaining credential lifetime and triggers a refresh
// once the lifetime drops inside the renewal lead time. It never owns a
// credential itself.
type Scheduler struct {
	config SchedulerConfig

	// remaining reports the held credential's remaining lifetime; ok false
	// means there is nothing to renew right now.
	remaining func() (remaining time.Duration, ok bool)

	// trigger emits RefreshDue into the machine.
	trigger func(ctx context.Context)

	log zerolog.Logger

	lock       sync.Mutex
	stop       chan struct{}
	retryTimer *time.Timer
}

// SchedulerOption defines a function type to modify the Scheduler instance.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(log zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// NewScheduler initializes a Scheduler with its required dependencies.
func NewScheduler(config SchedulerConfig, remaining func() (time.Duration, bool), trigger func(ctx context.Context), options ...SchedulerOption) (*Scheduler, error) {
	if remaining == nil {
		return nil, errors.New("[NewScheduler] remaining func is required")
	}
	if trigger == nil {
		return nil, errors.New("[NewScheduler] trigger func is required")
	}
	config.applyDefaults()

	scheduler := &Scheduler{
		config:    config,
		remaining: remaining,
		trigger:   trigger,
		log:       zerolog.Nop(),
	}

	for _, opt := range options {
		opt(scheduler)
	}

	return scheduler, nil
}

// Arm starts the recurring tick. Arming an already armed scheduler is a
// no-op, so re-entering Authenticated after every refresh keeps the one
// running task.
func (s *Scheduler) Arm() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	go s.run(stop)
	s.log.Debug().Dur("tick", s.config.TickInterval).Dur("lead_time", s.config.RenewalLeadTime).Msg("renewal scheduler armed")
}

// Cancel stops the tick and drops any pending backoff retry. Idempotent:
// cancelling an unarmed scheduler is a no-op. A tick already past the stop
// check still lands in the machine, which rejects it by state.
func (s *Scheduler) Cancel() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.log.Debug().Msg("renewal scheduler cancelled")
}

// RetrySoon schedules one extra evaluation after the configured backoff,
// ahead of the next natural tick. Dropped if the scheduler has been
// cancelled by the time it fires.
func (s *Scheduler) RetrySoon() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stop == nil {
		return
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(s.config.RetryBackoff, func() {
		s.lock.Lock()
		armed := s.stop != nil
		s.lock.Unlock()
		if armed {
			s.evaluate()
		}
	})
}

// Armed reports whether the recurring task is running.
func (s *Scheduler) Armed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stop != nil
}

func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.evaluate()
		}
	}
}

// evaluate applies the trigger condition: refresh once the remaining
// lifetime is inside the renewal lead time.
func (s *Scheduler) evaluate() {
	remaining, ok := s.remaining()
	if !ok {
		return
	}
	if remaining > s.config.RenewalLeadTime {
		return
	}
	s.log.Debug().Dur("remaining", remaining).Msg("credential inside renewal window")
	s.trigger(context.Background())
}
