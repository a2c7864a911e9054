package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerify_RoundTrips(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Hour)

	token, jti, _, err := signer.Mint("run-1", 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	runID, checkpoint, gotJTI, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.EqualValues(t, 42, checkpoint)
	assert.Equal(t, jti, gotJTI)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), -time.Minute)
	token, _, _, err := signer.Mint("run-1", 0)
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token)
	assert.Error(t, err)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	signer := NewTokenSigner([]byte("secret-a"), time.Hour)
	token, _, _, err := signer.Mint("run-1", 0)
	require.NoError(t, err)

	other := NewTokenSigner([]byte("secret-b"), time.Hour)
	_, _, _, err = other.Verify(token)
	assert.Error(t, err)
}
