package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements ports.SessionRepository.
type SessionRepo struct{ db *DB }

func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) CreateSession(ctx context.Context, tx pgx.Tx, s *domain.SessionRecord) error {
	return r.db.write(tx, func() (func(), error) {
		if _, ok := r.db.sessions[s.ID]; ok {
			return nil, fmt.Errorf("insert session: %w", ports.ErrUniqueViolation)
		}
		undo := setUndo(r.db.sessions, s.ID)
		r.db.sessions[s.ID] = *s
		return undo, nil
	})
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*domain.SessionRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepo) RevokeSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	return r.db.write(tx, func() (func(), error) {
		s, ok := r.db.sessions[id]
		if !ok || s.RevokedAt != nil {
			return nil, nil
		}
		undo := setUndo(r.db.sessions, id)
		s.RevokedAt = &at
		r.db.sessions[id] = s
		return undo, nil
	})
}

func (r *SessionRepo) CreateRefreshToken(ctx context.Context, tx pgx.Tx, t *domain.RefreshToken) error {
	return r.db.write(tx, func() (func(), error) {
		if _, ok := r.db.refreshTokens[t.Hash]; ok {
			return nil, fmt.Errorf("insert refresh token: %w", ports.ErrUniqueViolation)
		}
		undo := setUndo(r.db.refreshTokens, t.Hash)
		r.db.refreshTokens[t.Hash] = *t
		return undo, nil
	})
}

// GetRefreshTokenForUpdate needs no row lock: holding tx already excludes
// every other writer.
func (r *SessionRepo) GetRefreshTokenForUpdate(ctx context.Context, tx pgx.Tx, hash string) (*domain.RefreshToken, error) {
	if _, ok := tx.(*memTx); !ok {
		return nil, errNotMemTx
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.refreshTokens[hash]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *SessionRepo) ConsumeRefreshToken(ctx context.Context, tx pgx.Tx, hash string, at time.Time) error {
	return r.db.write(tx, func() (func(), error) {
		t, ok := r.db.refreshTokens[hash]
		if !ok || t.ConsumedAt != nil {
			return nil, errors.New("refresh token already consumed")
		}
		undo := setUndo(r.db.refreshTokens, hash)
		t.ConsumedAt = &at
		r.db.refreshTokens[hash] = t
		return undo, nil
	})
}
