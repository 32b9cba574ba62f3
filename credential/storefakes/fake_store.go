package storefakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/credential"
)

var _ credential.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credential.Store for tests.
type FakeStore struct {
	lock    sync.RWMutex
	session *credential.PersistedSession

	SaveCalls  int
	ClearCalls int

	// Errors to return from the next matching call. Reset after use.
	LoadErr  error
	SaveErr  error
	ClearErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Load() (*credential.PersistedSession, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.LoadErr != nil {
		return nil, fs.LoadErr
	}
	if fs.session == nil {
		return nil, nil
	}
	copied := *fs.session
	return &copied, nil
}

func (fs *FakeStore) Save(session *credential.PersistedSession) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.SaveCalls++
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	copied := *session
	fs.session = &copied
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.ClearCalls++
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.session = nil
	return nil
}

// Seed sets the stored record directly, bypassing the Save counter.
func (fs *FakeStore) Seed(session *credential.PersistedSession) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if session == nil {
		fs.session = nil
		return
	}
	copied := *session
	fs.session = &copied
}
