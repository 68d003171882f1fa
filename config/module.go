package config

import (
	"github.com/spf13/cobra"
)

// ModuleI defines an interface of Module
type ModuleI interface {
	// Name returns the name of the module
	Name() string

	// RegisterConfigs registers the module's chain/prover config types
	RegisterConfigs(registry *Registry)

	// GetCmd returns the module's command, or nil if it has none
	GetCmd(ctx *Context) *cobra.Command
}
