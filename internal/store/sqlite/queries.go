package sqlite

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Subscription struct {
	ID        int64
	Name      string
	Price     string
	Period    string
	NextDue   string
	CreatedAt string
}

const listSubscriptions = `
SELECT id, name, price, period, next_due, created_at
FROM subscriptions
ORDER BY id
`

func (q *Queries) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var i Subscription
		if err := rows.Scan(&i.ID, &i.Name, &i.Price, &i.Period, &i.NextDue, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const createSubscription = `
INSERT INTO subscriptions (name, price, period, next_due)
VALUES (?, ?, ?, ?)
RETURNING id
`

type CreateSubscriptionParams struct {
	Name    string
	Price   string
	Period  string
	NextDue string
}

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createSubscription, arg.Name, arg.Price, arg.Period, arg.NextDue).Scan(&id)
	return id, err
}

const findSubscriptionByName = `
SELECT id FROM subscriptions
WHERE TRIM(name) = ?
ORDER BY id
LIMIT 1
`

func (q *Queries) FindSubscriptionByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, findSubscriptionByName, name).Scan(&id)
	return id, err
}

const findSubscriptionAt = `
SELECT id FROM subscriptions
ORDER BY id
LIMIT 1 OFFSET ?
`

func (q *Queries) FindSubscriptionAt(ctx context.Context, offset int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, findSubscriptionAt, offset).Scan(&id)
	return id, err
}

const deleteSubscription = `
DELETE FROM subscriptions WHERE id = ?
`

func (q *Queries) DeleteSubscription(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteSubscription, id)
	return err
}
