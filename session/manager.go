package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/credential"
)

// Observer receives the new session state after every transition. Observers
// are invoked synchronously on the transitioning goroutine and must not
// block; anything slow should hand off to its own goroutine or channel.
type Observer func(State)

// Manager composes the state machine and the renewal scheduler and exposes
// the public session operations. Construct exactly one per process and pass
// it by reference to any consumer; subscription state lives on the instance,
// never in package globals.
type Manager struct {
	machine   *Machine
	scheduler *Scheduler
	log       zerolog.Logger

	started sync.Once

	subLock     sync.RWMutex
	subscribers map[string]Observer
}

// managerSettings collects the optional knobs applied by ManagerOption.
type managerSettings struct {
	scheduler SchedulerConfig
	log       zerolog.Logger
	nowTime   func() time.Time
}

// ManagerOption defines a function type to modify the Manager configuration.
type ManagerOption func(*managerSettings)

// WithLogger sets the logger shared by the manager, machine and scheduler.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(ms *managerSettings) {
		ms.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(ms *managerSettings) {
		ms.nowTime = nowFunc
	}
}

// WithTickInterval sets how often the renewal scheduler evaluates the
// credential lifetime.
func WithTickInterval(interval time.Duration) ManagerOption {
	return func(ms *managerSettings) {
		ms.scheduler.TickInterval = interval
	}
}

// WithRenewalLeadTime sets how long before expiry a refresh is attempted.
func WithRenewalLeadTime(leadTime time.Duration) ManagerOption {
	return func(ms *managerSettings) {
		ms.scheduler.RenewalLeadTime = leadTime
	}
}

// WithRetryBackoff sets the delay before the extra evaluation after a
// transient refresh failure.
func WithRetryBackoff(backoff time.Duration) ManagerOption {
	return func(ms *managerSettings) {
		ms.scheduler.RetryBackoff = backoff
	}
}

// NewManager initializes a Manager with its required dependencies.
// Optional configuration can be provided via options (e.g. WithNowTime for
// testing).
func NewManager(store credential.Store, client authclient.Client, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if client == nil {
		return nil, errors.New("[NewManager] client is required")
	}

	settings := managerSettings{
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(&settings)
	}

	manager := &Manager{
		log:         settings.log,
		subscribers: make(map[string]Observer),
	}

	// The machine and scheduler reference each other through closures, so
	// the scheduler is built against the manager's machine field and the
	// machine's hooks close over the scheduler.
	scheduler, err := NewScheduler(
		settings.scheduler,
		func() (time.Duration, bool) { return manager.machine.RemainingLifetime() },
		func(ctx context.Context) { manager.machine.RefreshDue(ctx) },
		WithSchedulerLogger(settings.log),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[NewManager] scheduler")
	}

	machine, err := NewMachine(store, client, Hooks{
		OnTransition:  manager.notify,
		ArmRenewal:    scheduler.Arm,
		CancelRenewal: scheduler.Cancel,
		RetryRenewal:  scheduler.RetrySoon,
	},
		WithMachineNowTime(settings.nowTime),
		WithMachineLogger(settings.log),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[NewManager] machine")
	}

	manager.machine = machine
	manager.scheduler = scheduler
	return manager, nil
}

// Start runs the startup check once: it seeds the state machine from the
// persisted session, arms the scheduler when the record is still valid, and
// notifies observers of the resulting state. Subsequent calls return
// ErrAlreadyStarted.
func (m *Manager) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	m.started.Do(func() {
		err = m.machine.Start(ctx)
	})
	return err
}

// Login validates the inputs and drives a password-grant login through the
// state machine. Empty inputs fail immediately with ErrMissingCredentials,
// before any network call.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return ErrMissingCredentials
	}
	return m.machine.Login(ctx, identifier, secret)
}

// Logout returns the session to Unauthenticated, cancels the scheduler and
// revokes the refresh token best-effort. Idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	return m.machine.Logout(ctx)
}

// CurrentState returns the current observer-facing session state.
func (m *Manager) CurrentState() State {
	return m.machine.CurrentState()
}

// Subscribe registers an observer for state transitions and returns its
// unsubscribe function. Unsubscribing twice is a no-op.
func (m *Manager) Subscribe(observer Observer) func() {
	id := uuid.New().String()

	m.subLock.Lock()
	m.subscribers[id] = observer
	m.subLock.Unlock()

	return func() {
		m.subLock.Lock()
		delete(m.subscribers, id)
		m.subLock.Unlock()
	}
}

// Close shuts the manager down: logout without revocation is deliberately
// not offered, so Close simply cancels the scheduler and leaves persisted
// state untouched for the next Start.
func (m *Manager) Close() {
	m.scheduler.Cancel()
}

// notify fans the new state out to every subscriber, synchronously.
func (m *Manager) notify(state State) {
	m.subLock.RLock()
	observers := make([]Observer, 0, len(m.subscribers))
	for _, observer := range m.subscribers {
		observers = append(observers, observer)
	}
	m.subLock.RUnlock()

	for _, observer := range observers {
		observer(state)
	}
}
