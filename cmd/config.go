package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

func configCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "manage configuration file",
		RunE:    noCommand,
	}

	cmd.AddCommand(
		configShowCmd(ctx),
		configInitCmd(ctx),
	)

	return cmd
}

// Command for initializing an empty config at the --home location
func configInitCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "Creates a default home directory at path defined by --home",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := ctx.Config.ConfigPath
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			return ctx.Config.Save()
		},
	}
	return cmd
}

// Command for printing current configuration
func configShowCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"s", "list", "l"},
		Short:   "Prints current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := ctx.Config.ConfigPath
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				return fmt.Errorf("config does not exist: %s", cfgPath)
			}
			return printOutput(*ctx.Config)
		},
	}
	return yamlFlag(cmd)
}

// printOutput writes v to stdout as indented json, or yaml when -y is set
func printOutput(v any) error {
	if viper.GetBool(flagYAML) {
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
