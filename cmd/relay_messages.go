package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/chains/rpc"
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// relayMessagesCmd is the one-shot surface: it builds an ad-hoc two-chain
// configuration from flags and runs the relay service for a single lane,
// without touching the config file.
func relayMessagesCmd(ctx *config.Context) *cobra.Command {
	const (
		flagLane         = "lane"
		flagSourceHost   = "source-host"
		flagSourcePort   = "source-port"
		flagSourceSigner = "source-signer"
		flagTargetHost   = "target-host"
		flagTargetPort   = "target-port"
		flagTargetSigner = "target-signer"
	)

	cmd := &cobra.Command{
		Use:   "relay-messages [source]-to-[target]",
		Args:  cobra.ExactArgs(1),
		Short: "Relays messages over one lane between two chains given by flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			srcID, dstID, ok := strings.Cut(args[0], "-to-")
			if !ok || srcID == "" || dstID == "" {
				return errors.Wrapf(core.ErrConfiguration, "malformed bridge %q, expected <source>-to-<target>", args[0])
			}

			lane, err := core.ParseLaneID(mustGetString(cmd, flagLane))
			if err != nil {
				return errors.Wrap(core.ErrConfiguration, err.Error())
			}

			srcPort, err := portOverride("SOURCE_PORT", mustGetInt(cmd, flagSourcePort))
			if err != nil {
				return err
			}
			dstPort, err := portOverride("TARGET_PORT", mustGetInt(cmd, flagTargetPort))
			if err != nil {
				return err
			}

			src, err := buildAdHocChain(cmd.Context(), ctx, srcID, mustGetString(cmd, flagSourceHost), srcPort, mustGetString(cmd, flagSourceSigner))
			if err != nil {
				return err
			}
			dst, err := buildAdHocChain(cmd.Context(), ctx, dstID, mustGetString(cmd, flagTargetHost), dstPort, mustGetString(cmd, flagTargetSigner))
			if err != nil {
				return err
			}

			shutdown, err := telemetry.SetupOTelSDK(cmd.Context(), mustGetString(cmd, flagPrometheusAddr))
			if err != nil {
				return fmt.Errorf("failed to initialize the telemetry subsystem: %v", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					fmt.Printf("failed to shutdown the telemetry subsystem: %v\n", err)
				}
			}()
			if err := telemetry.InitializeMetrics(); err != nil {
				return fmt.Errorf("failed to initialize metrics: %v", err)
			}

			kv, err := buildStore(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer kv.Close()

			return core.StartService(cmd.Context(), lane, src, dst,
				core.NewTracker(kv), buildLimiter(ctx), core.EngineConfig{}, core.ServiceConfig{})
		},
	}

	cmd.Flags().String(flagLane, "", "hex lane identifier to relay over")
	cmd.Flags().String(flagSourceHost, "localhost", "source chain rpc host")
	cmd.Flags().Int(flagSourcePort, rpc.DefaultPort, "source chain rpc port")
	cmd.Flags().String(flagSourceSigner, "", "source chain signer key (hex or key file path)")
	cmd.Flags().String(flagTargetHost, "localhost", "target chain rpc host")
	cmd.Flags().Int(flagTargetPort, rpc.DefaultPort, "target chain rpc port")
	cmd.Flags().String(flagTargetSigner, "", "target chain signer key (hex or key file path)")
	cmd.Flags().String(flagPrometheusAddr, defaultPrometheusAddr, "host address to which the prometheus exporter listens")
	// --prometheus-host is an accepted alias kept for older invocations
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "prometheus-host" {
			name = flagPrometheusAddr
		}
		return pflag.NormalizedName(name)
	})
	if err := cmd.MarkFlagRequired(flagLane); err != nil {
		panic(err)
	}

	return cmd
}

// portOverride applies the environment variable override for the one-shot
// surface, e.g. SOURCE_PORT=9944.
func portOverride(envName string, flagValue int) (int, error) {
	v := os.Getenv(envName)
	if v == "" {
		return flagValue, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(core.ErrConfiguration, "invalid %s %q: %v", envName, v, err)
	}
	return port, nil
}

func buildAdHocChain(c context.Context, ctx *config.Context, chainID, host string, port int, signer string) (*core.ProvableChain, error) {
	cfg := rpc.ChainConfig{
		Type:    "rpc",
		ChainID: chainID,
		Host:    host,
		Port:    port,
	}
	if _, err := os.Stat(signer); err == nil {
		cfg.SignerKeyFile = signer
	} else {
		cfg.SignerKeyHex = signer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chain := rpc.NewChain(cfg)
	to, err := ctx.Config.Timeout()
	if err != nil {
		return nil, err
	}
	if err := chain.Init(ctx.HomePath, to, ctx.Debug); err != nil {
		return nil, errors.Wrap(core.ErrConfiguration, err.Error())
	}
	return core.NewProvableChain(chain, rpc.NewProver(chain)), nil
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(err)
	}
	return v
}

func mustGetInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(err)
	}
	return v
}
