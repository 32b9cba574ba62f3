package clientfakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/credential"
)

var _ authclient.Client = (*FakeClient)(nil)

// FakeClient is a scripted authclient.Client for tests. Behaviour is
// overridden per call by assigning the Fn fields; unset functions return a
// generated credential that expires an hour out.
type FakeClient struct {
	lock sync.Mutex

	LoginFn   func(ctx context.Context, username, password string) (credential.Credential, error)
	RefreshFn func(ctx context.Context, refreshToken string) (credential.Credential, error)
	RevokeFn  func(ctx context.Context, refreshToken string) error

	loginCalls   int
	refreshCalls int
	revokeCalls  int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (fc *FakeClient) Login(ctx context.Context, username, password string) (credential.Credential, error) {
	fc.lock.Lock()
	fc.loginCalls++
	n := fc.loginCalls
	fn := fc.LoginFn
	fc.lock.Unlock()

	if fn != nil {
		return fn(ctx, username, password)
	}
	return fc.generated("login", n), nil
}

func (fc *FakeClient) Refresh(ctx context.Context, refreshToken string) (credential.Credential, error) {
	fc.lock.Lock()
	fc.refreshCalls++
	n := fc.refreshCalls
	fn := fc.RefreshFn
	fc.lock.Unlock()

	if fn != nil {
		return fn(ctx, refreshToken)
	}
	return fc.generated("refresh", n), nil
}

func (fc *FakeClient) Revoke(ctx context.Context, refreshToken string) error {
	fc.lock.Lock()
	fc.revokeCalls++
	fn := fc.RevokeFn
	fc.lock.Unlock()

	if fn != nil {
		return fn(ctx, refreshToken)
	}
	return nil
}

func (fc *FakeClient) LoginCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.loginCalls
}

func (fc *FakeClient) RefreshCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.refreshCalls
}

func (fc *FakeClient) RevokeCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.revokeCalls
}

func (fc *FakeClient) generated(prefix string, n int) credential.Credential {
	return credential.New(
		fmt.Sprintf("%s-access-%d", prefix, n),
		fmt.Sprintf("%s-refresh-%d", prefix, n),
		3600,
		time.Now(),
	)
}
