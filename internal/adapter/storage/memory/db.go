// Package memory is an in-process storage driver. It implements the same
// ports as the postgres and redis adapters and is selected with
// storage.driver=memory for local runs and end-to-end tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNotMemTx = errors.New("memory: transaction was not started by this store")

// DB holds every table. Transactions are serialized: Begin takes the single
// writer slot, writes apply immediately and Rollback replays an undo log.
type DB struct {
	slot chan struct{}

	mu            sync.RWMutex
	merchants     map[uuid.UUID]domain.Merchant
	users         map[uuid.UUID]domain.User
	sessions      map[uuid.UUID]domain.SessionRecord
	refreshTokens map[string]domain.RefreshToken
	payments      map[uuid.UUID]domain.Payment
	refunds       []domain.Refund
	events        []domain.PaymentEvent
	audit         []domain.AuditLog
}

// NewDB returns an empty store.
func NewDB() *DB {
	return &DB{
		slot:          make(chan struct{}, 1),
		merchants:     make(map[uuid.UUID]domain.Merchant),
		users:         make(map[uuid.UUID]domain.User),
		sessions:      make(map[uuid.UUID]domain.SessionRecord),
		refreshTokens: make(map[string]domain.RefreshToken),
		payments:      make(map[uuid.UUID]domain.Payment),
	}
}

// Begin implements ports.DBTransactor. It waits for the running
// transaction, if any, or for ctx to end.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case db.slot <- struct{}{}:
		return &memTx{db: db}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// write runs fn under the table lock and keeps its undo step on tx.
func (db *DB) write(tx pgx.Tx, fn func() (undo func(), err error)) error {
	t, ok := tx.(*memTx)
	if !ok || t.db != db {
		return errNotMemTx
	}
	if t.done {
		return pgx.ErrTxClosed
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	undo, err := fn()
	if err != nil {
		return err
	}
	if undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

type memTx struct {
	db   *DB
	undo []func()
	done bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	<-t.db.slot
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.db.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.db.mu.Unlock()

	t.undo = nil
	<-t.db.slot
	return nil
}

var errUnsupported = errors.New("memory: raw SQL is not supported")

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errUnsupported }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnsupported
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errUnsupported }

// Ping lets the memory driver report through the health endpoint.
func (db *DB) Ping(ctx context.Context) error { return ctx.Err() }

func (db *DB) Name() string { return "memory" }

// setUndo returns a step that restores key in m to its current state.
func setUndo[K comparable, V any](m map[K]V, key K) func() {
	prev, existed := m[key]
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}
