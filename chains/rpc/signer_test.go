package rpc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestSignerSign(t *testing.T) {
	signer, err := NewSigner("0x" + testKeyHex)
	require.NoError(t, err)

	payload := []byte(`{"lane":"0x00000001","nonce":5}`)
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// the signature must recover to the signer's address
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSignerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.key")
	require.NoError(t, os.WriteFile(path, []byte(testKeyHex+"\n"), 0o600))

	signer, err := NewSignerFromFile(path)
	require.NoError(t, err)

	direct, err := NewSigner(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, direct.Address(), signer.Address())
}

func TestSignerRejectsInvalidKey(t *testing.T) {
	_, err := NewSigner("not-a-key")
	assert.Error(t, err)

	_, err = NewSignerFromFile("/nonexistent/signer.key")
	assert.Error(t, err)
}
