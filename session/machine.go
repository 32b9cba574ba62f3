package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/credential"
)

const revokeTimeout = 5 * time.Second

// Hooks are the side-effect callbacks a Machine fires on transitions. The
// Manager wires them to the Scheduler and the observer fan-out. All fields
// are required.
type Hooks struct {
	// OnTransition is called with the new state after every transition,
	// outside the machine's lock.
	OnTransition func(State)

	// ArmRenewal starts (or keeps running) the renewal scheduler. Called on
	// entering Authenticated.
	ArmRenewal func()

	// CancelRenewal stops the scheduler. Called on logout and on expiry.
	// Must be idempotent.
	CancelRenewal func()

	// RetryRenewal schedules one short backoff re-evaluation after a
	// transient refresh failure, ahead of the next natural tick.
	RetryRenewal func()
}

// Machine is the authoritative session state machine. It is the exclusive
// owner of the live Credential and the sole writer of the credential Store.
// All mutations are serialized under a single mutex; provider calls run
// outside the lock and their results re-enter through it, where a
// generation check discards anything a logout has since invalidated.
type Machine struct {
	lock       sync.Mutex
	status     Status
	cred       credential.Credential
	errorKind  authclient.ErrorKind
	generation uint64

	store   credential.Store
	client  authclient.Client
	hooks   Hooks
	log     zerolog.Logger
	nowTime func() time.Time
}

// MachineOption defines a function type to modify the Machine instance.
type MachineOption func(*Machine)

// WithMachineNowTime sets the now time function (primarily for testing)
func WithMachineNowTime(nowFunc func() time.Time) MachineOption {
	return func(m *Machine) {
		m.nowTime = nowFunc
	}
}

// WithMachineLogger sets the machine's logger.
func WithMachineLogger(log zerolog.Logger) MachineOption {
	return func(m *Machine) {
		m.log = log
	}
}

// NewMachine initializes a Machine with its required dependencies.
func NewMachine(store credential.Store, client authclient.Client, hooks Hooks, options ...MachineOption) (*Machine, error) {
	if store == nil {
		return nil, errors.New("[NewMachine] store is required")
	}
	if client == nil {
		return nil, errors.New("[NewMachine] client is required")
	}
	if hooks.OnTransition == nil || hooks.ArmRenewal == nil || hooks.CancelRenewal == nil || hooks.RetryRenewal == nil {
		return nil, errors.New("[NewMachine] all hooks are required")
	}

	machine := &Machine{
		status:  StatusUnauthenticated,
		store:   store,
		client:  client,
		hooks:   hooks,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(machine)
	}

	return machine, nil
}

// Start runs the startup check once: a persisted record that is still valid
// seeds an Authenticated session and arms the scheduler; anything else
// clears the store and leaves the machine Unauthenticated. The resulting
// state is notified either way so observers get an initial value.
func (m *Machine) Start(ctx context.Context) error {
	persisted, err := m.store.Load()
	if err != nil {
		// Unreadable storage must not brick startup: drop the record and
		// fall through to the unauthenticated path.
		m.log.Warn().Err(err).Msg("persisted session unreadable, clearing")
		persisted = nil
	}

	m.lock.Lock()
	if persisted != nil && !persisted.Expired(m.nowTime()) {
		m.status = StatusAuthenticated
		m.cred = persisted.Credential()
		snapshot := m.snapshotLocked()
		m.lock.Unlock()

		m.log.Info().Time("expires_at", snapshot.ExpiresAt).Msg("resumed persisted session")
		m.hooks.OnTransition(snapshot)
		m.hooks.ArmRenewal()
		return nil
	}
	m.status = StatusUnauthenticated
	m.cred = credential.Credential{}
	snapshot := m.snapshotLocked()
	m.lock.Unlock()

	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed clearing stale session record")
	}
	m.hooks.OnTransition(snapshot)
	return nil
}

// Login drives Unauthenticated -> Authenticating -> Authenticated | Failed.
// A login while another login or a refresh is in flight is rejected with
// ErrLoginInProgress rather than queued.
func (m *Machine) Login(ctx context.Context, identifier, secret string) error {
	m.lock.Lock()
	if m.status == StatusAuthenticating || m.status == StatusRefreshing {
		m.lock.Unlock()
		return ErrLoginInProgress
	}
	generation := m.generation
	m.status = StatusAuthenticating
	m.errorKind = ""
	snapshot := m.snapshotLocked()
	m.lock.Unlock()
	m.hooks.OnTransition(snapshot)

	cred, err := m.client.Login(ctx, identifier, secret)

	m.lock.Lock()
	if m.generation != generation {
		m.lock.Unlock()
		return ErrLoginAborted
	}
	if err != nil {
		m.status = StatusFailed
		m.errorKind = kindOf(err)
		snapshot := m.snapshotLocked()
		m.lock.Unlock()

		m.log.Info().Str("kind", string(snapshot.ErrorKind)).Msg("login failed")
		m.hooks.OnTransition(snapshot)
		return errors.Wrap(err, "[Machine.Login] provider login")
	}

	m.status = StatusAuthenticated
	m.cred = cred
	snapshot = m.snapshotLocked()
	m.lock.Unlock()

	m.persist(cred)
	m.log.Info().Time("expires_at", cred.ExpiresAt).Msg("login succeeded")
	m.hooks.OnTransition(snapshot)
	m.hooks.ArmRenewal()
	return nil
}

// RefreshDue is the scheduler's trigger. A trigger arriving while the
// machine is not plainly Authenticated (already refreshing, logged out,
// expired) is a no-op, which keeps at most one refresh in flight and makes
// stale timer fires harmless.
func (m *Machine) RefreshDue(ctx context.Context) {
	m.lock.Lock()
	if m.status != StatusAuthenticated {
		m.lock.Unlock()
		return
	}
	generation := m.generation
	previous := m.cred
	m.status = StatusRefreshing
	snapshot := m.snapshotLocked()
	m.lock.Unlock()
	m.hooks.OnTransition(snapshot)

	cred, err := m.client.Refresh(ctx, previous.RefreshToken)

	m.lock.Lock()
	if m.generation != generation {
		// Logged out while the refresh was in flight.
		m.lock.Unlock()
		return
	}

	switch {
	case err == nil:
		m.status = StatusAuthenticated
		m.cred = cred
		snapshot := m.snapshotLocked()
		m.lock.Unlock()

		m.persist(cred)
		m.log.Debug().Time("expires_at", cred.ExpiresAt).Msg("credential renewed")
		m.hooks.OnTransition(snapshot)
		m.hooks.ArmRenewal()

	case kindOf(err) == authclient.KindRefreshTokenInvalid:
		m.status = StatusExpired
		m.cred = credential.Credential{}
		snapshot := m.snapshotLocked()
		m.lock.Unlock()

		if clearErr := m.store.Clear(); clearErr != nil {
			m.log.Warn().Err(clearErr).Msg("failed clearing session record after rejection")
		}
		m.log.Info().Msg("refresh token rejected, session expired")
		m.hooks.OnTransition(snapshot)
		m.hooks.CancelRenewal()

	default:
		// Transient failure: the old credential stays valid and persisted,
		// the session is not demoted. One short backoff retry runs ahead of
		// the next natural tick.
		m.status = StatusAuthenticated
		m.cred = previous
		snapshot := m.snapshotLocked()
		m.lock.Unlock()

		m.log.Warn().Str("kind", string(kindOf(err))).Msg("transient refresh failure, retaining credential")
		m.hooks.OnTransition(snapshot)
		m.hooks.RetryRenewal()
	}
}

// Logout unconditionally returns the machine to Unauthenticated: it bumps
// the generation so in-flight results are discarded, cancels the scheduler,
// clears the store, and revokes the refresh token best-effort. Calling it
// while already unauthenticated is a no-op.
func (m *Machine) Logout(ctx context.Context) error {
	m.lock.Lock()
	m.generation++
	wasUnauthenticated := m.status == StatusUnauthenticated
	refreshToken := m.cred.RefreshToken
	m.status = StatusUnauthenticated
	m.cred = credential.Credential{}
	m.errorKind = ""
	snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.hooks.CancelRenewal()
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed clearing session record on logout")
	}

	if refreshToken != "" {
		go m.revoke(refreshToken)
	}

	if !wasUnauthenticated {
		m.log.Info().Msg("logged out")
		m.hooks.OnTransition(snapshot)
	}
	return nil
}

// CurrentState returns the observer-facing snapshot of the session.
func (m *Machine) CurrentState() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.snapshotLocked()
}

// RemainingLifetime returns how long the held credential stays valid. ok is
// false unless the status is plainly Authenticated, so ticks during a
// refresh or after a logout evaluate to nothing.
func (m *Machine) RemainingLifetime() (time.Duration, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.status != StatusAuthenticated {
		return 0, false
	}
	return m.cred.Remaining(m.nowTime()), true
}

func (m *Machine) snapshotLocked() State {
	state := State{Status: m.status, ErrorKind: m.errorKind}
	if m.status == StatusAuthenticated || m.status == StatusRefreshing {
		state.ExpiresAt = m.cred.ExpiresAt
	}
	return state
}

// persist writes the credential through to the store. Storage trouble is
// logged, not fatal: the in-memory session stays authoritative.
func (m *Machine) persist(cred credential.Credential) {
	if err := m.store.Save(credential.FromCredential(cred)); err != nil {
		m.log.Warn().Err(err).Msg("failed persisting session record")
	}
}

func (m *Machine) revoke(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
	defer cancel()
	if err := m.client.Revoke(ctx, refreshToken); err != nil {
		m.log.Debug().Err(err).Msg("best-effort revocation failed")
	}
}

func kindOf(err error) authclient.ErrorKind {
	if kind, ok := authclient.KindOf(err); ok {
		return kind
	}
	return authclient.KindNetworkFailure
}
