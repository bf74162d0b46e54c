package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/internal/auth/store/drivers/sqlite/gen"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
	_ "modernc.org/sqlite"
)

// DefaultNamespace is used when NewStore is given an empty namespace.
const DefaultNamespace = "default"

type Store struct {
	db        *sql.DB
	q         *gen.Queries
	sealer    *cryptox.Sealer
	namespace string
	dsn       string
}

// NewStore opens the sqlite database at dsn. Every value is sealed with
// sealer and scoped to namespace (one namespace per app install).
func NewStore(dsn string, sealer *cryptox.Sealer, namespace string) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("sqlite: sealer is required")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite has a single writer; one connection keeps transactions and
	// plain reads from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:        db,
		q:         gen.New(db),
		sealer:    sealer,
		namespace: namespace,
		dsn:       dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx, s.sealer, s.namespace), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Wipe deletes every record in this store's namespace.
func (s *Store) Wipe(ctx context.Context) error {
	return s.q.DeleteNamespace(ctx, s.namespace)
}

// Len returns the number of records in this store's namespace.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.q.CountItems(ctx, s.namespace)
	return int(n), err
}

func (s *Store) items() items {
	return items{
		q:         s.q,
		sealer:    s.sealer,
		namespace: s.namespace,
		atomic:    s.atomic,
	}
}

// atomic runs fn against a fresh transaction so multi-key writes land
// together even when the caller is not in a Tx.
func (s *Store) atomic(ctx context.Context, fn func(it items) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(newTx(tx, s.sealer, s.namespace).items()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Tokens() store.Tokens           { return &tokensRepo{it: s.items()} }
func (s *Store) Profiles() store.Profiles       { return &profilesRepo{it: s.items()} }
func (s *Store) Biometrics() store.Biometrics   { return &biometricsRepo{it: s.items()} }
func (s *Store) Preferences() store.Preferences { return &preferencesRepo{it: s.items()} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ============================================================================
// Sealed Items
// ============================================================================

// items is the key/value layer the repos are built on. Values are sealed
// with the record's namespace and key as additional data.
type items struct {
	q         *gen.Queries
	sealer    *cryptox.Sealer
	namespace string
	atomic    func(ctx context.Context, fn func(it items) error) error
}

func (it items) aad(key string) []byte {
	return []byte(it.namespace + "/" + key)
}

func (it items) get(ctx context.Context, key string) (string, error) {
	row, err := it.q.GetItem(ctx, gen.GetItemParams{Namespace: it.namespace, Key: key})
	if err != nil {
		return "", mapNotFound(err)
	}

	plain, err := it.sealer.Open(row.Value, it.aad(key))
	if err != nil {
		return "", fmt.Errorf("%w: %s", store.ErrCorrupt, key)
	}

	return string(plain), nil
}

// getOptional is get with ErrNotFound mapped to "".
func (it items) getOptional(ctx context.Context, key string) (string, error) {
	v, err := it.get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (it items) put(ctx context.Context, key, value string) error {
	sealed, err := it.sealer.Seal([]byte(value), it.aad(key))
	if err != nil {
		return err
	}

	return it.q.UpsertItem(ctx, gen.UpsertItemParams{
		Namespace: it.namespace,
		Key:       key,
		Value:     sealed,
		UpdatedAt: time.Now().UTC(),
	})
}

// putOrDelete stores value, or removes the key when value is empty.
func (it items) putOrDelete(ctx context.Context, key, value string) error {
	if value == "" {
		return it.del(ctx, key)
	}
	return it.put(ctx, key, value)
}

func (it items) del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := it.q.DeleteItem(ctx, gen.DeleteItemParams{Namespace: it.namespace, Key: key}); err != nil {
			return err
		}
	}
	return nil
}
