package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the suite fast; the format is identical.
var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	hash, err := svc.Hash("SecureP@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	match, err := svc.Verify("SecureP@ssw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashServiceWithParams(testArgon2Params)

	h1, err := svc.Hash("same-password")
	require.NoError(t, err)
	h2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon2HashService_VerifyAcrossParams(t *testing.T) {
	old := NewArgon2HashServiceWithParams(testArgon2Params)
	hash, err := old.Hash("pw")
	require.NoError(t, err)

	current := NewArgon2HashServiceWithParams(Argon2Params{Time: 2, Memory: 2048, Threads: 2, KeyLen: 32, SaltLen: 16})
	match, err := current.Verify("pw", hash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2HashService()

	for _, bad := range []string{
		"not-a-valid-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
	} {
		_, err := svc.Verify("password", bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultArgon2Params(t *testing.T) {
	assert.Equal(t, uint32(64*1024), DefaultArgon2Params.Memory)
	assert.Equal(t, uint32(32), DefaultArgon2Params.KeyLen)
}
