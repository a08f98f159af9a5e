package postgres

import (
	"context"
	"errors"
	"fmt"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, company_name, merchant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.PasswordHash, u.CompanyName, u.MerchantID, u.CreatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert user", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepo) getOne(ctx context.Context, column string, value any) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT id, email, password_hash, company_name, merchant_id, created_at
		FROM users WHERE %s = $1`, column)

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CompanyName, &u.MerchantID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}
