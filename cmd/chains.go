package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func chainsCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "manage chain configurations",
		RunE:  noCommand,
	}

	cmd.AddCommand(
		chainsAddCmd(ctx),
		chainsListCmd(ctx),
	)

	return cmd
}

func chainsAddCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new chain to the configuration file from a json file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file := viper.GetString(flagFile)
			if file == "" {
				return fmt.Errorf("chain configuration file must be specified with --file")
			}
			byt, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %v", file, err)
			}
			var entry config.ChainProverConfig
			if err := json.Unmarshal(byt, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal file %s: %v", file, err)
			}
			if err := ctx.Config.AddChain(ctx.Registry, entry); err != nil {
				return err
			}
			return ctx.Config.Save()
		},
	}

	return fileFlag(cmd)
}

func chainsListCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "Returns chain configuration data",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, entry := range ctx.Config.Chains {
				chainCfg, err := ctx.Registry.UnmarshalChainConfig(entry.Chain)
				if err != nil {
					return err
				}
				chain, err := chainCfg.Build()
				if err != nil {
					return err
				}
				fmt.Println(chain.ChainID())
			}
			return nil
		},
	}

	return cmd
}
