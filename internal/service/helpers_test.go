package service

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// mockTx implements pgx.Tx for testing and records how it ended.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}
