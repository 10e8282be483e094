package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	// generate arbitrary data
	msg := make([]byte, 100)
	_, err := rand.Read(msg)
	require.NoError(t, err)
	// hash the data directly
	hash := Hash(msg)
	expected := sha256.Sum256(msg)
	require.Equal(t, expected[:], hash)
	// ensure size is correct
	require.Len(t, hash, HashSize)
	// validate the short forms
	require.Equal(t, hash[:20], ShortHash(msg))
	require.Equal(t, hex.EncodeToString(hash[:20]), ShortHashString(msg))
}
