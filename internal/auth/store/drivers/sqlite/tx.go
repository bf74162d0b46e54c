package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/internal/auth/store/drivers/sqlite/gen"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
)

type txStore struct {
	tx        *sql.Tx
	q         *gen.Queries
	sealer    *cryptox.Sealer
	namespace string
}

func newTx(tx *sql.Tx, sealer *cryptox.Sealer, namespace string) *txStore {
	return &txStore{
		tx:        tx,
		q:         gen.New(tx),
		sealer:    sealer,
		namespace: namespace,
	}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// Ping is a no-op for transactions, the connection is already held.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) items() items {
	return items{
		q:         t.q,
		sealer:    t.sealer,
		namespace: t.namespace,
		atomic:    t.atomic,
	}
}

// atomic runs fn directly, the surrounding transaction already groups writes.
func (t *txStore) atomic(ctx context.Context, fn func(it items) error) error {
	return fn(t.items())
}

func (t *txStore) Tokens() store.Tokens           { return &tokensRepo{it: t.items()} }
func (t *txStore) Profiles() store.Profiles       { return &profilesRepo{it: t.items()} }
func (t *txStore) Biometrics() store.Biometrics   { return &biometricsRepo{it: t.items()} }
func (t *txStore) Preferences() store.Preferences { return &preferencesRepo{it: t.items()} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx
