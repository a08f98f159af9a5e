package postgres

import (
	"context"
	"testing"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMerchant() *domain.Merchant {
	return &domain.Merchant{
		ID:         uuid.New(),
		Name:       "Test Shop",
		Email:      "shop@example.com",
		APIKey:     "ak_" + uuid.New().String()[:16],
		SecretEnc:  "encrypted_secret_key_data",
		WebhookURL: strPtr("https://example.com/webhook"),
		Status:     domain.MerchantStatusActive,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func strPtr(s string) *string { return &s }

func merchantColumns() []string {
	return []string{"id", "name", "email", "api_key", "secret_enc", "webhook_url", "status", "created_at", "updated_at", "rotated_at"}
}

func merchantRow(m *domain.Merchant) *pgxmock.Rows {
	return pgxmock.NewRows(merchantColumns()).AddRow(
		m.ID, m.Name, m.Email, m.APIKey, m.SecretEnc,
		m.WebhookURL, m.Status, m.CreatedAt, m.UpdatedAt, m.RotatedAt,
	)
}

func TestMerchantRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO merchants").
		WithArgs(m.ID, m.Name, m.Email, m.APIKey, m.SecretEnc,
			m.WebhookURL, m.Status, m.CreatedAt, m.UpdatedAt, m.RotatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_Create_DuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO merchants").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "merchants_email_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, newTestMerchant())
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)
	assert.Contains(t, err.Error(), "merchants_email_key")
}

func TestMerchantRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(m.ID).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.ID, result.ID)
	assert.Equal(t, m.Name, result.Name)
	assert.Equal(t, m.APIKey, result.APIKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(merchantColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByAPIKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE api_key").
		WithArgs(m.APIKey).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByAPIKey(context.Background(), m.APIKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.SecretEnc, result.SecretEnc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE email").
		WithArgs(m.Email).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByEmail(context.Background(), m.Email)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.Email, result.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_RotateSecret(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE merchants SET secret_enc").
		WithArgs("new_enc", at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE merchants SET secret_enc").
		WithArgs("new_enc", at, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.RotateSecret(context.Background(), id, "new_enc", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateSecret(context.Background(), uuid.New(), "new_enc", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE merchants SET status").
		WithArgs(domain.MerchantStatusSuspended, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), id, domain.MerchantStatusSuspended))

	mock.ExpectExec("UPDATE merchants SET status").
		WithArgs(domain.MerchantStatusSuspended, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), uuid.New(), domain.MerchantStatusSuspended)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
