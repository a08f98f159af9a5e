package postgres

import (
	"context"
	"encoding/json"
	"errors"
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

func newTestPayment(merchantID uuid.UUID) *domain.Payment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		ReferenceID:   "order-42",
		Amount:        150000,
		Currency:      "INR",
		Method:        domain.PaymentMethodBankTransfer,
		Status:        domain.PaymentStatusPending,
		MethodDetails: json.RawMessage(`{"ifsc_code":"HDFC0001234"}`),
		Metadata:      map[string]interface{}{"cart": "c-1"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func paymentColumns() []string {
	return []string{"id", "merchant_id", "reference_id", "amount", "currency", "method", "status", "method_details",
		"utr_number", "utr_submitted_at", "verified_by", "verified_at", "failure_reason", "metadata", "created_at", "updated_at"}
}

func addPaymentRow(rows *pgxmock.Rows, p *domain.Payment) *pgxmock.Rows {
	return rows.AddRow(
		p.ID, p.MerchantID, p.ReferenceID, p.Amount, p.Currency, p.Method, p.Status, p.MethodDetails,
		p.UTRNumber, p.UTRSubmittedAt, p.VerifiedBy, p.VerifiedAt, p.FailureReason, p.Metadata,
		p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(p.ID, p.MerchantID, p.ReferenceID, p.Amount, p.Currency, p.Method, p.Status, p.MethodDetails,
			p.UTRNumber, p.UTRSubmittedAt, p.VerifiedBy, p.VerifiedAt, p.FailureReason, p.Metadata,
			p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create_DuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_merchant_reference_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, newTestPayment(uuid.New()))
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)
}

func TestPaymentRepo_GetByID_ScopedToMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id = \\$1 AND merchant_id = \\$2").
		WithArgs(p.ID, p.MerchantID).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentColumns()), p))

	got, err := repo.GetByID(context.Background(), p.MerchantID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ReferenceID, got.ReferenceID)
	assert.Equal(t, p.Amount, got.Amount)

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(p.ID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(paymentColumns()))

	got, err = repo.GetByID(context.Background(), uuid.New(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE merchant_id = \\$1 AND reference_id = \\$2").
		WithArgs(p.MerchantID, p.ReferenceID).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentColumns()), p))

	got, err := repo.GetByReference(context.Background(), p.MerchantID, p.ReferenceID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetForUpdate_Locks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE id = \\$1 AND merchant_id = \\$2 FOR UPDATE").
		WithArgs(p.ID, p.MerchantID).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentColumns()), p))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetForUpdate(context.Background(), tx, p.MerchantID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SubmitUTR(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").
		WithArgs("UTR123456", at, domain.PaymentStatusAwaitingVerification, id,
			domain.PaymentStatusPending, domain.PaymentStatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE payments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_merchant_utr_key"})
	mock.ExpectExec("UPDATE payments").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.SubmitUTR(context.Background(), tx, id, "UTR123456", at))

	err = repo.SubmitUTR(context.Background(), tx, id, "UTR123456", at)
	assert.True(t, errors.Is(err, ports.ErrUniqueViolation))

	err = repo.SubmitUTR(context.Background(), tx, id, "UTR123456", at)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ports.ErrUniqueViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_UTRInUse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	merchantID, excludeID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(merchantID, "UTR1", excludeID, domain.PaymentStatusFailed).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inUse, err := repo.UTRInUse(context.Background(), tx, merchantID, "UTR1", excludeID)
	require.NoError(t, err)
	assert.True(t, inUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_MarkVerified_OnlyFromAwaiting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id, verifier := uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").
		WithArgs(domain.PaymentStatusSuccess, verifier, at, id, domain.PaymentStatusAwaitingVerification).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE payments").
		WithArgs(domain.PaymentStatusSuccess, verifier, at, id, domain.PaymentStatusAwaitingVerification).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkVerified(context.Background(), tx, id, verifier, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkVerified(context.Background(), tx, id, verifier, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_MarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id, verifier := uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").
		WithArgs(domain.PaymentStatusFailed, "amount mismatch", verifier, at, id, domain.PaymentStatusAwaitingVerification).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkFailed(context.Background(), tx, id, "amount mismatch", verifier, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_ListPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	merchantID := uuid.New()
	first := newTestPayment(merchantID)
	second := newTestPayment(merchantID)
	first.Status, second.Status = domain.PaymentStatusAwaitingVerification, domain.PaymentStatusAwaitingVerification

	rows := pgxmock.NewRows(paymentColumns())
	addPaymentRow(rows, first)
	addPaymentRow(rows, second)

	mock.ExpectQuery("SELECT .+ FROM payments .+ ORDER BY utr_submitted_at ASC").
		WithArgs(merchantID, domain.PaymentStatusAwaitingVerification).
		WillReturnRows(rows)

	got, err := repo.ListPending(context.Background(), merchantID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	merchantID := uuid.New()
	p := newTestPayment(merchantID)
	status := domain.PaymentStatusPending
	method := domain.PaymentMethodBankTransfer

	filter := domain.PaymentFilter{Status: &status, Method: &method, Page: 2, PageSize: 10}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments WHERE merchant_id = \\$1 AND status = \\$2 AND method = \\$3").
		WithArgs(merchantID, status, method).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT .+ FROM payments WHERE .+ LIMIT \\$4 OFFSET \\$5").
		WithArgs(merchantID, status, method, 10, 10).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentColumns()), p))

	got, total, err := repo.List(context.Background(), merchantID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
