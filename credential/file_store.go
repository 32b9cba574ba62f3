package credential

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore persists the session record as a single JSON blob on disk.
// Writes go to a temporary file in the same directory followed by a rename,
// so a reader never observes a partially written record.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore rooted at path. Parent directories are
// created on the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	return &FileStore{path: path}, nil
}

// Load implements Store.
func (fs *FileStore) Load() (*PersistedSession, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Load] read file")
	}
	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "[FileStore.Load] unmarshal record")
	}
	return &session, nil
}

// Save implements Store.
func (fs *FileStore) Save(session *PersistedSession) error {
	if session == nil {
		return errors.New("[FileStore.Save] session is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal record")
	}
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Save] create directory")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] close temp file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] chmod temp file")
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] rename temp file")
	}
	return nil
}

// Clear implements Store.
func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove file")
	}
	return nil
}
