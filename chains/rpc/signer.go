package rpc

import (
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs submission payload digests with a secp256k1 key. The key
// comes from the configuration (inline hex or a key file), never from a
// baked-in default.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signer key")
	}
	return &Signer{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func NewSignerFromFile(path string) (*Signer, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read signer key file %s", path)
	}
	return NewSigner(string(bz))
}

func (s *Signer) Address() common.Address {
	return s.addr
}

// Sign returns a recoverable secp256k1 signature over keccak256(payload).
func (s *Signer) Sign(payload []byte) ([]byte, error) {
	digest := crypto.Keccak256(payload)
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign payload")
	}
	return sig, nil
}
