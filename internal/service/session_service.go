package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
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
	minPasswordLength = 8
	refreshTokenBytes = 32
)

// SessionTTLs bounds the two dashboard tokens.
type SessionTTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

// SessionServiceImpl implements ports.SessionService.
//
// Refresh tokens are single use. Each refresh consumes the presented token
// and issues a new pair; presenting a consumed token again revokes the
// whole session.
type SessionServiceImpl struct {
	userRepo     ports.UserRepository
	merchantRepo ports.MerchantRepository
	sessionRepo  ports.SessionRepository
	credentials  ports.CredentialService
	transactor   ports.DBTransactor
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
	revocations  ports.RevocationStore
	ttls         SessionTTLs
	log          zerolog.Logger
	now          func() time.Time
}

// NewSessionService creates a new SessionServiceImpl.
func NewSessionService(
	userRepo ports.UserRepository,
	merchantRepo ports.MerchantRepository,
	sessionRepo ports.SessionRepository,
	credentials ports.CredentialService,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	revocations ports.RevocationStore,
	ttls SessionTTLs,
	log zerolog.Logger,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		userRepo:     userRepo,
		merchantRepo: merchantRepo,
		sessionRepo:  sessionRepo,
		credentials:  credentials,
		transactor:   transactor,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
		revocations:  revocations,
		ttls:         ttls,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a dashboard user, its merchant with a fresh API
// credential, and a first session, all in one transaction.
func (s *SessionServiceImpl) Register(ctx context.Context, req ports.UserRegistration) (*ports.Registration, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("email is invalid")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		return nil, apperror.Validation("company_name is required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	merchant := &domain.Merchant{
		ID:         uuid.New(),
		Name:       company,
		Email:      email,
		WebhookURL: req.WebhookURL,
		Status:     domain.MerchantStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CompanyName:  company,
		MerchantID:   merchant.ID,
		CreatedAt:    now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	cred, err := s.credentials.Issue(ctx, dbTx, merchant)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.Storage(fmt.Errorf("create user: %w", err))
	}
	session, err := s.openSession(ctx, dbTx, user, now)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("merchant_id", merchant.ID.String()).
		Msg("dashboard user registered")

	out := *user
	out.PasswordHash = ""
	return &ports.Registration{Session: session, User: &out, Credential: cred}, nil
}

// Login checks the password and opens a new session. Existing sessions are
// left alone.
func (s *SessionServiceImpl) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidCredentials()
	}

	merchant, err := s.merchantRepo.GetByID(ctx, user.MerchantID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil || !merchant.IsActive() {
		return nil, apperror.ErrMerchantInactive()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	session, err := s.openSession(ctx, dbTx, user, s.now())
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("session_id", session.ID.String()).
		Msg("user logged in")

	return session, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *SessionServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperror.ErrUnauthorized()
	}
	hash := hashRefreshToken(refreshToken)
	now := s.now()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	token, err := s.sessionRepo.GetRefreshTokenForUpdate(ctx, dbTx, hash)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find refresh token: %w", err))
	}
	if token == nil {
		return nil, apperror.ErrUnauthorized()
	}

	if token.ConsumedAt != nil {
		if err := s.sessionRepo.RevokeSession(ctx, dbTx, token.SessionID, now); err != nil {
			return nil, apperror.Storage(fmt.Errorf("revoke session: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
		}
		s.revokeAccess(ctx, token.SessionID)
		s.log.Warn().
			Str("session_id", token.SessionID.String()).
			Msg("refresh token reused, session revoked")
		return nil, apperror.ErrUnauthorized()
	}
	if !now.Before(token.ExpiresAt) {
		return nil, apperror.ErrUnauthorized()
	}

	record, err := s.sessionRepo.GetSession(ctx, token.SessionID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find session: %w", err))
	}
	if record == nil || !record.IsLive(now) {
		return nil, apperror.ErrUnauthorized()
	}

	if err := s.sessionRepo.ConsumeRefreshToken(ctx, dbTx, hash, now); err != nil {
		return nil, apperror.Storage(fmt.Errorf("consume refresh token: %w", err))
	}
	session, err := s.issueTokens(ctx, dbTx, record, now)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	return session, nil
}

// Logout revokes the session behind principal. Logging out twice is fine.
func (s *SessionServiceImpl) Logout(ctx context.Context, principal domain.Principal) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.sessionRepo.RevokeSession(ctx, dbTx, principal.SessionID, s.now()); err != nil {
		return apperror.Storage(fmt.Errorf("revoke session: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	if err := s.revocations.Revoke(ctx, principal.SessionID.String(), s.ttls.Access); err != nil {
		// The row is revoked; a retry repeats both steps harmlessly.
		return apperror.Unavailable(fmt.Errorf("revocation store: %w", err))
	}

	s.log.Info().
		Str("user_id", principal.UserID.String()).
		Str("session_id", principal.SessionID.String()).
		Msg("user logged out")
	return nil
}

// Authenticate resolves an access token to its principal. Every rejection,
// expiry included, is the same Unauthorized error. A storage failure is
// reported as such.
func (s *SessionServiceImpl) Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error) {
	claims, err := s.tokenSvc.Validate(accessToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized()
	}

	// The revocation set rejects logged-out tokens without a DB read. The
	// session row stays authoritative, since a revocation write can be lost.
	revoked, err := s.revocations.IsRevoked(ctx, claims.SessionID.String())
	if err != nil {
		s.log.Warn().Err(err).Msg("revocation store unavailable, checking session row")
	}
	if revoked {
		return nil, apperror.ErrUnauthorized()
	}

	record, err := s.sessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find session: %w", err))
	}
	if record == nil || !record.IsLive(s.now()) {
		return nil, apperror.ErrUnauthorized()
	}

	return &domain.Principal{
		UserID:     claims.UserID,
		MerchantID: claims.MerchantID,
		SessionID:  claims.SessionID,
		ExpiresAt:  claims.ExpiresAt,
	}, nil
}

// CurrentUser returns the principal's user without the password hash.
func (s *SessionServiceImpl) CurrentUser(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	out := *user
	out.PasswordHash = ""
	return &out, nil
}

func (s *SessionServiceImpl) openSession(ctx context.Context, tx pgx.Tx, user *domain.User, now time.Time) (*domain.Session, error) {
	record := &domain.SessionRecord{
		ID:         uuid.New(),
		UserID:     user.ID,
		MerchantID: user.MerchantID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttls.Refresh),
	}
	if err := s.sessionRepo.CreateSession(ctx, tx, record); err != nil {
		return nil, apperror.Storage(fmt.Errorf("create session: %w", err))
	}
	return s.issueTokens(ctx, tx, record, now)
}

func (s *SessionServiceImpl) issueTokens(ctx context.Context, tx pgx.Tx, record *domain.SessionRecord, now time.Time) (*domain.Session, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate refresh token: %w", err))
	}
	refresh := hex.EncodeToString(raw)

	refreshExpires := now.Add(s.ttls.Refresh)
	if refreshExpires.After(record.ExpiresAt) {
		refreshExpires = record.ExpiresAt
	}
	if err := s.sessionRepo.CreateRefreshToken(ctx, tx, &domain.RefreshToken{
		Hash:      hashRefreshToken(refresh),
		SessionID: record.ID,
		ExpiresAt: refreshExpires,
		CreatedAt: now,
	}); err != nil {
		return nil, apperror.Storage(fmt.Errorf("create refresh token: %w", err))
	}

	access, expiresAt, err := s.tokenSvc.Generate(ports.AccessClaims{
		UserID:     record.UserID,
		MerchantID: record.MerchantID,
		SessionID:  record.ID,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate access token: %w", err))
	}

	return &domain.Session{
		ID:               record.ID,
		UserID:           record.UserID,
		MerchantID:       record.MerchantID,
		AccessToken:      access,
		RefreshToken:     refresh,
		IssuedAt:         now,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (s *SessionServiceImpl) revokeAccess(ctx context.Context, sessionID uuid.UUID) {
	if err := s.revocations.Revoke(ctx, sessionID.String(), s.ttls.Access); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to record session revocation")
	}
}

// hashRefreshToken is what the store keys refresh tokens by, so a leaked
// table does not yield usable tokens.
func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
