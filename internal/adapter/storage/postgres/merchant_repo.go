package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const merchantCols = `id, name, email, api_key, secret_enc, webhook_url, status, created_at, updated_at, rotated_at`

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a merchant within tx.
func (r *MerchantRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	query := `INSERT INTO merchants (` + merchantCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		m.ID, m.Name, m.Email, m.APIKey, m.SecretEnc,
		m.WebhookURL, m.Status, m.CreatedAt, m.UpdatedAt, m.RotatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert merchant", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantCols + ` FROM merchants WHERE id = $1`
	return scanMerchant(r.pool.QueryRow(ctx, query, id), "get merchant by id")
}

// GetByAPIKey fetches a merchant by its public API key. Signature
// verification calls this on every request, so it always reads the row
// rather than a cached copy.
func (r *MerchantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantCols + ` FROM merchants WHERE api_key = $1`
	return scanMerchant(r.pool.QueryRow(ctx, query, apiKey), "get merchant by api_key")
}

// GetByEmail fetches a merchant by contact email.
func (r *MerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantCols + ` FROM merchants WHERE email = $1`
	return scanMerchant(r.pool.QueryRow(ctx, query, email), "get merchant by email")
}

// RotateSecret replaces the stored secret in a single statement.
func (r *MerchantRepo) RotateSecret(ctx context.Context, id uuid.UUID, secretEnc string, rotatedAt time.Time) (bool, error) {
	query := `UPDATE merchants SET secret_enc = $1, rotated_at = $2, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, secretEnc, rotatedAt, id)
	if err != nil {
		return false, fmt.Errorf("rotate merchant secret: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus activates, suspends, or deactivates a merchant.
func (r *MerchantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error {
	query := `UPDATE merchants SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update merchant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

func scanMerchant(row pgx.Row, op string) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(
		&m.ID, &m.Name, &m.Email, &m.APIKey, &m.SecretEnc,
		&m.WebhookURL, &m.Status, &m.CreatedAt, &m.UpdatedAt, &m.RotatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}
