package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/authclient/clientfakes"
	"github.com/jrsteele09/go-auth-client/credential"
	"github.com/jrsteele09/go-auth-client/credential/storefakes"
	"github.com/jrsteele09/go-auth-client/session"
)

const (
	testIdentifier = "john.doe@example.com"
	testSecret     = "password123"

	waitFor = 2 * time.Second
	pollEvery = 5 * time.Millisecond
)

// stateRecorder captures every observer notification in order.
type stateRecorder struct {
	lock   sync.Mutex
	states []session.State
}

func (r *stateRecorder) record(state session.State) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) statuses() []session.Status {
	r.lock.Lock()
	defer r.lock.Unlock()
	statuses := make([]session.Status, 0, len(r.states))
	for _, state := range r.states {
		statuses = append(statuses, state.Status)
	}
	return statuses
}

func (r *stateRecorder) all() []session.State {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]session.State(nil), r.states...)
}

func (r *stateRecorder) contains(status session.Status) bool {
	for _, s := range r.statuses() {
		if s == status {
			return true
		}
	}
	return false
}

// hookCounters counts scheduler hook invocations.
type hookCounters struct {
	lock              sync.Mutex
	arm, cancel, retry int
}

func (h *hookCounters) Arm() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.arm++
}

func (h *hookCounters) Cancel() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.cancel++
}

func (h *hookCounters) Retry() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.retry++
}

func (h *hookCounters) counts() (arm, cancel, retry int) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.arm, h.cancel, h.retry
}

type machineFixture struct {
	machine  *session.Machine
	store    *storefakes.FakeStore
	client   *clientfakes.FakeClient
	recorder *stateRecorder
	hooks    *hookCounters
}

func setupMachineFixture(t *testing.T) *machineFixture {
	t.Helper()

	store := storefakes.NewFakeStore()
	client := clientfakes.NewFakeClient()
	recorder := &stateRecorder{}
	counters := &hookCounters{}

	machine, err := session.NewMachine(store, client, session.Hooks{
		OnTransition:  recorder.record,
		ArmRenewal:    counters.Arm,
		CancelRenewal: counters.Cancel,
		RetryRenewal:  counters.Retry,
	})
	require.NoError(t, err)

	return &machineFixture{
		machine:  machine,
		store:    store,
		client:   client,
		recorder: recorder,
		hooks:    counters,
	}
}

func (f *machineFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.machine.Login(context.Background(), testIdentifier, testSecret))
	require.Equal(t, session.StatusAuthenticated, f.machine.CurrentState().Status)
}

func TestNewMachineValidatesDependencies(t *testing.T) {
	hooks := session.Hooks{
		OnTransition:  func(session.State) {},
		ArmRenewal:    func() {},
		CancelRenewal: func() {},
		RetryRenewal:  func() {},
	}

	_, err := session.NewMachine(nil, clientfakes.NewFakeClient(), hooks)
	require.Error(t, err)

	_, err = session.NewMachine(storefakes.NewFakeStore(), nil, hooks)
	require.Error(t, err)

	_, err = session.NewMachine(storefakes.NewFakeStore(), clientfakes.NewFakeClient(), session.Hooks{})
	require.Error(t, err)
}

func TestStartResumesValidPersistedSession(t *testing.T) {
	f := setupMachineFixture(t)
	f.store.Seed(&credential.PersistedSession{
		AccessToken:  "persisted-access",
		RefreshToken: "persisted-refresh",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	})

	require.NoError(t, f.machine.Start(context.Background()))

	state := f.machine.CurrentState()
	require.Equal(t, session.StatusAuthenticated, state.Status)
	require.True(t, state.Authenticated())
	require.False(t, state.ExpiresAt.IsZero())

	arm, _, _ := f.hooks.counts()
	require.Equal(t, 1, arm)
	require.Equal(t, []session.Status{session.StatusAuthenticated}, f.recorder.statuses())
}

func TestStartClearsExpiredPersistedSession(t *testing.T) {
	f := setupMachineFixture(t)
	f.store.Seed(&credential.PersistedSession{
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	})

	require.NoError(t, f.machine.Start(context.Background()))

	require.Equal(t, session.StatusUnauthenticated, f.machine.CurrentState().Status)
	require.False(t, f.recorder.contains(session.StatusAuthenticated))

	record, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, record)

	arm, _, _ := f.hooks.counts()
	require.Zero(t, arm)
}

func TestStartWithEmptyStore(t *testing.T) {
	f := setupMachineFixture(t)

	require.NoError(t, f.machine.Start(context.Background()))

	require.Equal(t, []session.Status{session.StatusUnauthenticated}, f.recorder.statuses())
}

func TestLoginTransitionsExactlyOnce(t *testing.T) {
	f := setupMachineFixture(t)
	receivedAt := time.Now()
	issued := credential.New("access-1", "refresh-1", 900, receivedAt)
	f.client.LoginFn = func(ctx context.Context, username, password string) (credential.Credential, error) {
		return issued, nil
	}

	require.NoError(t, f.machine.Login(context.Background(), testIdentifier, testSecret))

	require.Equal(t, []session.Status{session.StatusAuthenticating, session.StatusAuthenticated}, f.recorder.statuses())
	require.Equal(t, 1, f.client.LoginCalls())

	record, err := f.store.Load()
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, issued.ExpiresAt.UnixMilli(), record.ExpiresAt)

	arm, _, _ := f.hooks.counts()
	require.Equal(t, 1, arm)
}

func TestLoginWhileInFlightIsRejected(t *testing.T) {
	f := setupMachineFixture(t)
	release := make(chan struct{})
	f.client.LoginFn = func(ctx context.Context, username, password string) (credential.Credential, error) {
		<-release
		return credential.New("access", "refresh", 3600, time.Now()), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.machine.Login(context.Background(), testIdentifier, testSecret) }()

	require.Eventually(t, func() bool {
		return f.machine.CurrentState().Status == session.StatusAuthenticating
	}, waitFor, pollEvery)

	err := f.machine.Login(context.Background(), testIdentifier, testSecret)
	require.ErrorIs(t, err, session.ErrLoginInProgress)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.client.LoginCalls())
}

func TestLoginFailureNotifiesErrorKind(t *testing.T) {
	f := setupMachineFixture(t)
	f.client.LoginFn = func(ctx context.Context, username, password string) (credential.Credential, error) {
		return credential.Credential{}, authclient.NewAuthError(authclient.KindInvalidCredentials, "invalid_grant", "bad password", nil)
	}

	err := f.machine.Login(context.Background(), testIdentifier, "wrong")
	require.Error(t, err)

	state := f.machine.CurrentState()
	require.Equal(t, session.StatusFailed, state.Status)
	require.Equal(t, authclient.KindInvalidCredentials, state.ErrorKind)
	require.False(t, state.Authenticated())
	require.Zero(t, f.store.SaveCalls)
}

func TestLoginAbortedByLogout(t *testing.T) {
	f := setupMachineFixture(t)
	release := make(chan struct{})
	f.client.LoginFn = func(ctx context.Context, username, password string) (credential.Credential, error) {
		<-release
		return credential.New("access", "refresh", 3600, time.Now()), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.machine.Login(context.Background(), testIdentifier, testSecret) }()

	require.Eventually(t, func() bool {
		return f.machine.CurrentState().Status == session.StatusAuthenticating
	}, waitFor, pollEvery)

	require.NoError(t, f.machine.Logout(context.Background()))
	close(release)

	require.ErrorIs(t, <-done, session.ErrLoginAborted)
	require.Equal(t, session.StatusUnauthenticated, f.machine.CurrentState().Status)
	require.Zero(t, f.store.SaveCalls)
}

func TestRefreshDueRenewsCredential(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)

	f.machine.RefreshDue(context.Background())

	require.Equal(t, []session.Status{
		session.StatusAuthenticating,
		session.StatusAuthenticated,
		session.StatusRefreshing,
		session.StatusAuthenticated,
	}, f.recorder.statuses())
	require.Equal(t, 1, f.client.RefreshCalls())
	require.Equal(t, 2, f.store.SaveCalls)

	arm, _, _ := f.hooks.counts()
	require.Equal(t, 2, arm)
}

func TestRefreshDueWhileRefreshingIsNoOp(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)

	release := make(chan struct{})
	f.client.RefreshFn = func(ctx context.Context, refreshToken string) (credential.Credential, error) {
		<-release
		return credential.New("access-2", "refresh-2", 3600, time.Now()), nil
	}

	done := make(chan struct{})
	go func() {
		f.machine.RefreshDue(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.machine.CurrentState().Status == session.StatusRefreshing
	}, waitFor, pollEvery)

	// A second trigger while the first refresh is in flight does nothing.
	f.machine.RefreshDue(context.Background())
	require.Equal(t, 1, f.client.RefreshCalls())

	close(release)
	<-done
	require.Equal(t, session.StatusAuthenticated, f.machine.CurrentState().Status)
	require.Equal(t, 1, f.client.RefreshCalls())
}

func TestTransientRefreshFailureRetainsSession(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)
	loginStates := len(f.recorder.all())

	failures := 0
	f.client.RefreshFn = func(ctx context.Context, refreshToken string) (credential.Credential, error) {
		if failures == 0 {
			failures++
			return credential.Credential{}, authclient.NewAuthError(authclient.KindNetworkFailure, "", "connection refused", nil)
		}
		return credential.New("access-2", "refresh-2", 3600, time.Now()), nil
	}

	f.machine.RefreshDue(context.Background())

	require.Equal(t, session.StatusAuthenticated, f.machine.CurrentState().Status)
	_, _, retry := f.hooks.counts()
	require.Equal(t, 1, retry)
	require.Zero(t, f.store.ClearCalls)

	// The backoff retry succeeds and the observer never saw the session
	// drop out of the authenticated family.
	f.machine.RefreshDue(context.Background())
	require.Equal(t, session.StatusAuthenticated, f.machine.CurrentState().Status)

	for _, state := range f.recorder.all()[loginStates-1:] {
		require.True(t, state.Authenticated(), "status %s should remain authenticated", state.Status)
	}
	require.False(t, f.recorder.contains(session.StatusExpired))
}

func TestRefreshTokenRejectionExpiresSession(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)

	f.client.RefreshFn = func(ctx context.Context, refreshToken string) (credential.Credential, error) {
		return credential.Credential{}, authclient.NewAuthError(authclient.KindRefreshTokenInvalid, "invalid_grant", "revoked", nil)
	}

	f.machine.RefreshDue(context.Background())

	require.Equal(t, session.StatusExpired, f.machine.CurrentState().Status)
	record, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, record)

	_, cancel, _ := f.hooks.counts()
	require.Equal(t, 1, cancel)

	// A fresh login succeeds independently of the expired session.
	f.client.RefreshFn = nil
	f.client.LoginFn = nil
	require.NoError(t, f.machine.Login(context.Background(), testIdentifier, testSecret))
	require.Equal(t, session.StatusAuthenticated, f.machine.CurrentState().Status)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)

	require.NoError(t, f.machine.Logout(context.Background()))
	require.NoError(t, f.machine.Logout(context.Background()))

	require.Equal(t, session.StatusUnauthenticated, f.machine.CurrentState().Status)

	record, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, record)

	// Revocation is best-effort and fired once: the second logout holds no
	// refresh token.
	require.Eventually(t, func() bool {
		return f.client.RevokeCalls() == 1
	}, waitFor, pollEvery)
}

func TestLogoutNotifiesOnceForDoubleLogout(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)

	require.NoError(t, f.machine.Logout(context.Background()))
	require.NoError(t, f.machine.Logout(context.Background()))

	unauthenticated := 0
	for _, status := range f.recorder.statuses() {
		if status == session.StatusUnauthenticated {
			unauthenticated++
		}
	}
	require.Equal(t, 1, unauthenticated)
}

func TestLogoutDiscardsInFlightRefreshResult(t *testing.T) {
	f := setupMachineFixture(t)
	f.login(t)
	savesAfterLogin := f.store.SaveCalls

	release := make(chan struct{})
	f.client.RefreshFn = func(ctx context.Context, refreshToken string) (credential.Credential, error) {
		<-release
		return credential.New("resurrected-access", "resurrected-refresh", 3600, time.Now()), nil
	}

	done := make(chan struct{})
	go func() {
		f.machine.RefreshDue(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.machine.CurrentState().Status == session.StatusRefreshing
	}, waitFor, pollEvery)

	require.NoError(t, f.machine.Logout(context.Background()))
	close(release)
	<-done

	// The late refresh result must not resurrect the session.
	require.Equal(t, session.StatusUnauthenticated, f.machine.CurrentState().Status)
	require.Equal(t, savesAfterLogin, f.store.SaveCalls)

	record, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestRemainingLifetime(t *testing.T) {
	f := setupMachineFixture(t)

	_, ok := f.machine.RemainingLifetime()
	require.False(t, ok)

	f.client.LoginFn = func(ctx context.Context, username, password string) (credential.Credential, error) {
		return credential.New("access", "refresh", 3600, time.Now()), nil
	}
	f.login(t)

	remaining, ok := f.machine.RemainingLifetime()
	require.True(t, ok)
	require.Greater(t, remaining, 59*time.Minute)
	require.LessOrEqual(t, remaining, time.Hour)
}
