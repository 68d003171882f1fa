package cmd

import (
	"os"
	"path/filepath"

	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/log"
	"github.com/spf13/cobra"
)

const (
	appName = "lrly"

	// config file location under the home directory
	configDir  = "config"
	configName = "config.json"
)

var (
	homePath  string
	debugFlag bool
)

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

// Execute builds the command tree for the given modules and runs it.
// This is called by main.main().
func Execute(modules ...config.ModuleI) error {
	cobra.EnableCommandSorting = false

	ctx := &config.Context{
		Modules:  modules,
		Registry: config.NewRegistry(),
	}
	for _, m := range modules {
		m.RegisterConfigs(ctx.Registry)
	}

	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "This application relays messages over configured lanes between two chains",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&homePath, flagHome, defaultHome(), "set home directory")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, flagDebug, "d", false, "debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// reads `homeDir/config/config.json` into ctx.Config before each command
		return initConfig(ctx, cmd)
	}

	rootCmd.AddCommand(
		configCmd(ctx),
		chainsCmd(ctx),
		lanesCmd(ctx),
		txCmd(ctx),
		queryCmd(ctx),
		serviceCmd(ctx),
		relayMessagesCmd(ctx),
		modulesCmd(ctx),
	)
	for _, m := range modules {
		if cmd := m.GetCmd(ctx); cmd != nil {
			rootCmd.AddCommand(cmd)
		}
	}

	return rootCmd.Execute()
}

func configPath() string {
	return filepath.Join(homePath, configDir, configName)
}

// initConfig loads the config file when it exists, falls back to the
// default config otherwise, and initializes the logger from it. The
// RELAYER_LOG_LEVEL environment variable overrides the configured level.
func initConfig(ctx *config.Context, cmd *cobra.Command) error {
	ctx.HomePath = homePath
	ctx.Debug = debugFlag

	cfgPath := configPath()
	if _, err := os.Stat(cfgPath); err == nil {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		ctx.Config = cfg
	} else {
		cfg := config.DefaultConfig(cfgPath)
		ctx.Config = &cfg
	}

	logLevel := ctx.Config.Global.LogLevel
	if lv := os.Getenv("RELAYER_LOG_LEVEL"); lv != "" {
		logLevel = lv
	}
	if err := log.InitLogger(logLevel, ctx.Config.Global.LogFormat, ctx.Config.Global.LogOutput, true); err != nil {
		return err
	}

	return ctx.Config.InitChains(ctx.Registry, homePath, debugFlag)
}

func noCommand(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
