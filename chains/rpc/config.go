package rpc

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
)

const DefaultPort = 8645

type ChainConfig struct {
	Type    string `json:"type" yaml:"type"`
	ChainID string `json:"chain_id" yaml:"chain_id"`

	// Endpoint wins over Host/Port when set.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`

	// Exactly one of the two key sources must be set. SignerKeyFile is
	// resolved relative to the home path when not absolute.
	SignerKeyHex  string `json:"signer_key_hex,omitempty" yaml:"signer_key_hex,omitempty"`
	SignerKeyFile string `json:"signer_key_file,omitempty" yaml:"signer_key_file,omitempty"`
}

var _ config.ChainConfig = (*ChainConfig)(nil)

func (c ChainConfig) Validate() error {
	if c.ChainID == "" {
		return errors.Wrap(core.ErrConfiguration, "chain_id is empty")
	}
	if c.Endpoint == "" && c.Host == "" {
		return errors.Wrap(core.ErrConfiguration, "either endpoint or host must be set")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Wrapf(core.ErrConfiguration, "port %d is out of range", c.Port)
	}
	if c.SignerKeyHex == "" && c.SignerKeyFile == "" {
		return errors.Wrap(core.ErrConfiguration, "either signer_key_hex or signer_key_file must be set")
	}
	if c.SignerKeyHex != "" && c.SignerKeyFile != "" {
		return errors.Wrap(core.ErrConfiguration, "signer_key_hex and signer_key_file are mutually exclusive")
	}
	return nil
}

func (c ChainConfig) Build() (core.Chain, error) {
	return NewChain(c), nil
}

func (c ChainConfig) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("http://%s:%d", c.Host, port)
}

func (c ChainConfig) signer(homePath string) (*Signer, error) {
	if c.SignerKeyHex != "" {
		return NewSigner(c.SignerKeyHex)
	}
	path := c.SignerKeyFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(homePath, path)
	}
	return NewSignerFromFile(path)
}

type ProverConfig struct {
	Type string `json:"type" yaml:"type"`
}

var _ config.ProverConfig = (*ProverConfig)(nil)

func (c ProverConfig) Validate() error {
	return nil
}

func (c ProverConfig) Build(chain core.Chain) (core.Prover, error) {
	rpcChain, ok := chain.(*Chain)
	if !ok {
		return nil, errors.Wrapf(core.ErrConfiguration, "chain type %T is not an rpc chain", chain)
	}
	return NewProver(rpcChain), nil
}
