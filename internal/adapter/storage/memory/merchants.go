package memory

import (
	"context"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct{ db *DB }

func NewMerchantRepo(db *DB) *MerchantRepo { return &MerchantRepo{db: db} }

func (r *MerchantRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	return r.db.write(tx, func() (func(), error) {
		for _, existing := range r.db.merchants {
			if existing.Email == m.Email || existing.APIKey == m.APIKey || existing.ID == m.ID {
				return nil, fmt.Errorf("insert merchant: %w", ports.ErrUniqueViolation)
			}
		}
		undo := setUndo(r.db.merchants, m.ID)
		r.db.merchants[m.ID] = *m
		return undo, nil
	})
}

func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.merchants[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MerchantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	return r.find(func(m domain.Merchant) bool { return m.APIKey == apiKey }), nil
}

func (r *MerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	return r.find(func(m domain.Merchant) bool { return m.Email == email }), nil
}

func (r *MerchantRepo) RotateSecret(ctx context.Context, id uuid.UUID, secretEnc string, rotatedAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.merchants[id]
	if !ok {
		return false, nil
	}
	m.SecretEnc = secretEnc
	m.RotatedAt = &rotatedAt
	m.UpdatedAt = rotatedAt
	r.db.merchants[id] = m
	return true, nil
}

func (r *MerchantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found: %s", id)
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	r.db.merchants[id] = m
	return nil
}

func (r *MerchantRepo) find(match func(domain.Merchant) bool) *domain.Merchant {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, m := range r.db.merchants {
		if match(m) {
			return &m
		}
	}
	return nil
}

// UserRepo implements ports.UserRepository.
type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	return r.db.write(tx, func() (func(), error) {
		for _, existing := range r.db.users {
			if existing.Email == u.Email {
				return nil, fmt.Errorf("insert user: %w", ports.ErrUniqueViolation)
			}
		}
		undo := setUndo(r.db.users, u.ID)
		r.db.users[u.ID] = *u
		return undo, nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ db *DB }

func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.audit = append(r.db.audit, *log)
	return nil
}

// Entries returns a copy of the audit trail.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.db.audit...)
}
