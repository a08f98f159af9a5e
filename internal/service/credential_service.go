package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	apiKeyPrefix = "ak_"
	apiKeyBytes  = 24
	secretPrefix = "sk_"
	secretBytes  = 32 // 256 bits
)

// CredentialServiceImpl implements ports.CredentialService.
type CredentialServiceImpl struct {
	merchantRepo ports.MerchantRepository
	transactor   ports.DBTransactor
	encSvc       ports.EncryptionService
	log          zerolog.Logger
	now          func() time.Time
}

// NewCredentialService creates a new CredentialServiceImpl.
func NewCredentialService(
	merchantRepo ports.MerchantRepository,
	transactor ports.DBTransactor,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) *CredentialServiceImpl {
	return &CredentialServiceImpl{
		merchantRepo: merchantRepo,
		transactor:   transactor,
		encSvc:       encSvc,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RegisterMerchant creates an active merchant together with its first
// credential. The secret in the result is never retrievable again.
func (s *CredentialServiceImpl) RegisterMerchant(ctx context.Context, req ports.MerchantRegistration) (*domain.IssuedCredential, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.merchantRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	now := s.now()
	merchant := &domain.Merchant{
		ID:         uuid.New(),
		Name:       req.Name,
		Email:      email,
		WebhookURL: req.WebhookURL,
		Status:     domain.MerchantStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	cred, err := s.Issue(ctx, dbTx, merchant)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("api_key", cred.APIKey).
		Msg("merchant registered")

	return cred, nil
}

// Issue generates an API key and secret for merchant and inserts it in tx.
func (s *CredentialServiceImpl) Issue(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant) (*domain.IssuedCredential, error) {
	apiKey, err := generateKey(apiKeyPrefix, apiKeyBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	secret, err := generateKey(secretPrefix, secretBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	merchant.APIKey = apiKey
	merchant.SecretEnc = secretEnc

	if err := s.merchantRepo.Create(ctx, tx, merchant); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.Storage(fmt.Errorf("create merchant: %w", err))
	}

	return &domain.IssuedCredential{
		MerchantID: merchant.ID,
		APIKey:     apiKey,
		Secret:     secret,
		IssuedAt:   merchant.CreatedAt,
	}, nil
}

// Rotate replaces the merchant's secret. The API key is unchanged. Once the
// update commits, no later Resolve can return the old secret.
func (s *CredentialServiceImpl) Rotate(ctx context.Context, merchantID uuid.UUID) (*domain.IssuedCredential, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrMerchantNotFound()
	}
	if !merchant.IsActive() {
		return nil, apperror.ErrMerchantInactive()
	}

	secret, err := generateKey(secretPrefix, secretBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	now := s.now()
	ok, err := s.merchantRepo.RotateSecret(ctx, merchantID, secretEnc, now)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("rotate secret: %w", err))
	}
	if !ok {
		return nil, apperror.ErrMerchantNotFound()
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Msg("merchant secret rotated")

	return &domain.IssuedCredential{
		MerchantID: merchantID,
		APIKey:     merchant.APIKey,
		Secret:     secret,
		IssuedAt:   now,
	}, nil
}

// Resolve reads the current secret for apiKey straight from the store.
// Unknown and inactive merchants are indistinguishable.
func (s *CredentialServiceImpl) Resolve(ctx context.Context, apiKey string) (*ports.ResolvedCredential, error) {
	merchant, err := s.merchantRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find merchant by api key: %w", err))
	}
	if merchant == nil || !merchant.IsActive() {
		return nil, apperror.ErrNotFound("Credential")
	}

	secret, err := s.encSvc.Decrypt(merchant.SecretEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	return &ports.ResolvedCredential{
		MerchantID: merchant.ID,
		APIKey:     merchant.APIKey,
		Secret:     secret,
	}, nil
}

// Profile returns the merchant without any secret material.
func (s *CredentialServiceImpl) Profile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrMerchantNotFound()
	}
	out := *merchant
	out.SecretEnc = ""
	return &out, nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
