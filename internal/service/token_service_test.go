package service

import (
	"testing"
	"time"

	"merchant-trust-gateway/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims() ports.AccessClaims {
	return ports.AccessClaims{UserID: uuid.New(), MerchantID: uuid.New(), SessionID: uuid.New()}
}

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-key-32-chars-long!!", 15*time.Minute, "test-issuer")
	in := testClaims()

	token, expiresAt, err := svc.Generate(in)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 2*time.Second)

	out, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.MerchantID, out.MerchantID)
	assert.Equal(t, in.SessionID, out.SessionID)
}

func TestJWTTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("secret", 15*time.Minute, "iss")
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := svc.Generate(testClaims())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_WrongSecret(t *testing.T) {
	a := NewJWTTokenService("secret-a", time.Hour, "iss")
	b := NewJWTTokenService("secret-b", time.Hour, "iss")

	token, _, err := a.Generate(testClaims())
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	a := NewJWTTokenService("secret", time.Hour, "iss-a")
	b := NewJWTTokenService("secret", time.Hour, "iss-b")

	token, _, err := a.Generate(testClaims())
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsNoneAlg(t *testing.T) {
	svc := NewJWTTokenService("secret", time.Hour, "iss")

	claims := jwt.MapClaims{
		"sub": uuid.NewString(),
		"mid": uuid.NewString(),
		"sid": uuid.NewString(),
		"iss": "iss",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Garbage(t *testing.T) {
	svc := NewJWTTokenService("secret", time.Hour, "iss")
	_, err := svc.Validate("not.a.jwt")
	assert.Error(t, err)
}
