package service

import (
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessTokenClaims is the JWT body of a dashboard access token.
type accessTokenClaims struct {
	MerchantID string `json:"mid"`
	SessionID  string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService using HS256 JWT.
type JWTTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, ttl time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Generate signs an access token for the given session.
func (s *JWTTokenService) Generate(c ports.AccessClaims) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := accessTokenClaims{
		MerchantID: c.MerchantID.String(),
		SessionID:  c.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   c.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and validates a token. Any failure, including expiry,
// is returned as an error; callers must not distinguish the cases outward.
func (s *JWTTokenService) Validate(tokenString string) (*ports.AccessClaims, error) {
	var claims accessTokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	merchantID, err := uuid.Parse(claims.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant claim: %w", err)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session claim: %w", err)
	}

	return &ports.AccessClaims{
		UserID:     userID,
		MerchantID: merchantID,
		SessionID:  sessionID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}
