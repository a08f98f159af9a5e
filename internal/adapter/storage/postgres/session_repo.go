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

// SessionRepo implements ports.SessionRepository over the sessions and
// refresh_tokens tables. Refresh tokens are keyed by their SHA-256 hash.
type SessionRepo struct {
	pool Pool
}

func NewSessionRepo(pool Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) CreateSession(ctx context.Context, tx pgx.Tx, s *domain.SessionRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, user_id, merchant_id, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.MerchantID, s.CreatedAt, s.ExpiresAt, s.RevokedAt,
	)
	if err != nil {
		return wrapWriteErr("insert session", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*domain.SessionRecord, error) {
	s := &domain.SessionRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, merchant_id, created_at, expires_at, revoked_at FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.MerchantID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// RevokeSession keeps the first revocation time if called again.
func (r *SessionRepo) RevokeSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $1) WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *SessionRepo) CreateRefreshToken(ctx context.Context, tx pgx.Tx, t *domain.RefreshToken) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO refresh_tokens (token_hash, session_id, expires_at, created_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.Hash, t.SessionID, t.ExpiresAt, t.CreatedAt, t.ConsumedAt,
	)
	if err != nil {
		return wrapWriteErr("insert refresh token", err)
	}
	return nil
}

// GetRefreshTokenForUpdate locks the token row so two concurrent refreshes
// with the same token serialize and the second sees it consumed.
func (r *SessionRepo) GetRefreshTokenForUpdate(ctx context.Context, tx pgx.Tx, hash string) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{}
	err := tx.QueryRow(ctx,
		`SELECT token_hash, session_id, expires_at, created_at, consumed_at
		FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, hash,
	).Scan(&t.Hash, &t.SessionID, &t.ExpiresAt, &t.CreatedAt, &t.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

func (r *SessionRepo) ConsumeRefreshToken(ctx context.Context, tx pgx.Tx, hash string, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET consumed_at = $1 WHERE token_hash = $2 AND consumed_at IS NULL`, at, hash)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refresh token already consumed")
	}
	return nil
}
