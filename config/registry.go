package config

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// ChainConfig defines a chain configuration and its builder
type ChainConfig interface {
	Validate() error
	Build() (core.Chain, error)
}

// ProverConfig defines a prover configuration and its builder
type ProverConfig interface {
	Validate() error
	Build(core.Chain) (core.Prover, error)
}

// Registry resolves the "type" discriminator of chain/prover config
// entries to the concrete config struct registered by a module.
type Registry struct {
	chains  map[string]func() ChainConfig
	provers map[string]func() ProverConfig
}

func NewRegistry() *Registry {
	return &Registry{
		chains:  map[string]func() ChainConfig{},
		provers: map[string]func() ProverConfig{},
	}
}

func (r *Registry) RegisterChain(typeName string, factory func() ChainConfig) {
	if _, ok := r.chains[typeName]; ok {
		panic("chain config type already registered: " + typeName)
	}
	r.chains[typeName] = factory
}

func (r *Registry) RegisterProver(typeName string, factory func() ProverConfig) {
	if _, ok := r.provers[typeName]; ok {
		panic("prover config type already registered: " + typeName)
	}
	r.provers[typeName] = factory
}

type typeEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalChainConfig decodes `{"type": "...", ...}` into the config
// struct registered for the type.
func (r *Registry) UnmarshalChainConfig(bz []byte) (ChainConfig, error) {
	var env typeEnvelope
	if err := json.Unmarshal(bz, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode chain config envelope")
	}
	factory, ok := r.chains[env.Type]
	if !ok {
		return nil, errors.Wrapf(core.ErrConfiguration, "unknown chain type %q", env.Type)
	}
	cfg := factory()
	if err := json.Unmarshal(bz, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q chain config", env.Type)
	}
	return cfg, nil
}

func (r *Registry) UnmarshalProverConfig(bz []byte) (ProverConfig, error) {
	var env typeEnvelope
	if err := json.Unmarshal(bz, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode prover config envelope")
	}
	factory, ok := r.provers[env.Type]
	if !ok {
		return nil, errors.Wrapf(core.ErrConfiguration, "unknown prover type %q", env.Type)
	}
	cfg := factory()
	if err := json.Unmarshal(bz, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q prover config", env.Type)
	}
	return cfg, nil
}
