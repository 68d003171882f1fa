package mock

import (
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// ChainConfig configures an in-memory mock chain. PreEmit seeds the given
// number of messages on each lane listed in PreEmitLanes.
type ChainConfig struct {
	Type          string   `json:"type" yaml:"type"`
	ChainID       string   `json:"chain_id" yaml:"chain_id"`
	FinalityDelay uint64   `json:"finality_delay" yaml:"finality_delay"`
	Signer        string   `json:"signer" yaml:"signer"`
	PreEmit       uint64   `json:"pre_emit,omitempty" yaml:"pre_emit,omitempty"`
	PreEmitLanes  []string `json:"pre_emit_lanes,omitempty" yaml:"pre_emit_lanes,omitempty"`
}

var _ config.ChainConfig = (*ChainConfig)(nil)

func (c *ChainConfig) Validate() error {
	if c.ChainID == "" {
		return errors.New("chain_id is empty")
	}
	if c.PreEmit > 0 && len(c.PreEmitLanes) == 0 {
		return errors.New("pre_emit requires pre_emit_lanes")
	}
	return nil
}

func (c *ChainConfig) Build() (core.Chain, error) {
	backend := NewBackend(c.ChainID, c.FinalityDelay)
	for _, laneStr := range c.PreEmitLanes {
		lane, err := core.ParseLaneID(laneStr)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < c.PreEmit; i++ {
			backend.EmitMessage(lane, []byte("mock payload"), 1, 0)
		}
	}
	return NewChain(backend, c.Signer), nil
}

// ProverConfig configures the prover of a mock chain. It shares the
// backend of the chain it is built on.
type ProverConfig struct {
	Type string `json:"type" yaml:"type"`
}

var _ config.ProverConfig = (*ProverConfig)(nil)

func (c *ProverConfig) Validate() error {
	return nil
}

func (c *ProverConfig) Build(chain core.Chain) (core.Prover, error) {
	mockChain, ok := chain.(*Chain)
	if !ok {
		return nil, errors.Newf("mock prover requires a mock chain, got %T", chain)
	}
	return NewProver(mockChain.Backend()), nil
}
