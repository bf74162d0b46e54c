package gen

import (
	"context"
	"time"
)

const countItems = `-- name: CountItems :one
SELECT COUNT(*) FROM secure_items
WHERE namespace = ?
`

func (q *Queries) CountItems(ctx context.Context, namespace string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countItems, namespace)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteItem = `-- name: DeleteItem :exec
DELETE FROM secure_items
WHERE namespace = ? AND key = ?
`

type DeleteItemParams struct {
	Namespace string
	Key       string
}

func (q *Queries) DeleteItem(ctx context.Context, arg DeleteItemParams) error {
	_, err := q.db.ExecContext(ctx, deleteItem, arg.Namespace, arg.Key)
	return err
}

const deleteNamespace = `-- name: DeleteNamespace :exec
DELETE FROM secure_items
WHERE namespace = ?
`

func (q *Queries) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := q.db.ExecContext(ctx, deleteNamespace, namespace)
	return err
}

const getItem = `-- name: GetItem :one
SELECT namespace, key, value, updated_at FROM secure_items
WHERE namespace = ? AND key = ?
`

type GetItemParams struct {
	Namespace string
	Key       string
}

func (q *Queries) GetItem(ctx context.Context, arg GetItemParams) (SecureItem, error) {
	row := q.db.QueryRowContext(ctx, getItem, arg.Namespace, arg.Key)
	var i SecureItem
	err := row.Scan(
		&i.Namespace,
		&i.Key,
		&i.Value,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertItem = `-- name: UpsertItem :exec
INSERT INTO secure_items (namespace, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (namespace, key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at
`

type UpsertItemParams struct {
	Namespace string
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

func (q *Queries) UpsertItem(ctx context.Context, arg UpsertItemParams) error {
	_, err := q.db.ExecContext(ctx, upsertItem,
		arg.Namespace,
		arg.Key,
		arg.Value,
		arg.UpdatedAt,
	)
	return err
}
