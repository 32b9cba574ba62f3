package credential

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const bunOpTimeout = 5 * time.Second

var _ Store = (*BunStore)(nil)

// sessionRow is the single-row table backing a BunStore. The fixed primary
// key means an upsert replaces the whole record in one statement.
type sessionRow struct {
	bun.BaseModel `bun:"table:session"`

	ID           int64  `bun:"id,pk"`
	AccessToken  string `bun:"access_token"`
	RefreshToken string `bun:"refresh_token"`
	ExpiresAt    int64  `bun:"expires_at"`
}

const sessionRowID = 1

// BunStore persists the session record in a relational database through
// bun. Intended for the embedded sqlite dialect but works with any dialect
// bun supports.
type BunStore struct {
	db *bun.DB
}

// NewBunStore creates a BunStore and ensures its table exists.
func NewBunStore(db *bun.DB) (*BunStore, error) {
	if db == nil {
		return nil, errors.New("[NewBunStore] db is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), bunOpTimeout)
	defer cancel()

	if _, err := db.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "[NewBunStore] create table")
	}
	return &BunStore{db: db}, nil
}

// Load implements Store.
func (bs *BunStore) Load() (*PersistedSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bunOpTimeout)
	defer cancel()

	row := new(sessionRow)
	err := bs.db.NewSelect().Model(row).Where("id = ?", sessionRowID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[BunStore.Load] select")
	}
	return &PersistedSession{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

// Save implements Store.
func (bs *BunStore) Save(session *PersistedSession) error {
	if session == nil {
		return errors.New("[BunStore.Save] session is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), bunOpTimeout)
	defer cancel()

	row := &sessionRow{
		ID:           sessionRowID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}
	_, err := bs.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "[BunStore.Save] upsert")
	}
	return nil
}

// Clear implements Store.
func (bs *BunStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), bunOpTimeout)
	defer cancel()

	_, err := bs.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("id = ?", sessionRowID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "[BunStore.Clear] delete")
	}
	return nil
}
