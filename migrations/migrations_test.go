package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Ordered(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "0001_init", all[0].Version)
	assert.Equal(t, "0003_outbox_audit", all[2].Version)
	assert.Contains(t, all[1].SQL, "payments_merchant_utr_key")
	assert.Contains(t, all[2].SQL, "UNIQUE (payment_id, event_type)")
	assert.Equal(t, "0004_outbox_retry", all[3].Version)
	assert.Contains(t, all[3].SQL, "next_attempt_at")
}

func TestApply_SkipsRecordedVersions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("0001_init").AddRow("0002_payments"))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payment_events").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0003_outbox_audit").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE payment_events").
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0004_outbox_retry").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ran, err := Apply(context.Background(), mock, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"0003_outbox_audit", "0004_outbox_retry"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_StopsOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS merchants").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	ran, err := Apply(context.Background(), mock, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_init")
	assert.Empty(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}
