package rpc

import (
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/spf13/cobra"
)

type Module struct{}

var _ config.ModuleI = (*Module)(nil)

// Name implements config.ModuleI
func (Module) Name() string {
	return "rpc"
}

// RegisterConfigs implements config.ModuleI
func (Module) RegisterConfigs(registry *config.Registry) {
	registry.RegisterChain("rpc", func() config.ChainConfig { return &ChainConfig{} })
	registry.RegisterProver("rpc", func() config.ProverConfig { return &ProverConfig{} })
}

// GetCmd implements config.ModuleI
func (Module) GetCmd(ctx *config.Context) *cobra.Command {
	return nil
}
