package cmd

import (
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/spf13/cobra"
)

func txCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Relay transactions command",
		RunE:  noCommand,
	}

	cmd.AddCommand(
		relayMsgsCmd(ctx),
		confirmMsgsCmd(ctx),
	)

	return cmd
}

func relayMsgsCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay [lane-name]",
		Args:  cobra.ExactArgs(1),
		Short: "Performs a single delivery round over the named lane",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := buildEngine(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()
			return eng.RelayMessages(cmd.Context())
		},
	}
	return cmd
}

func confirmMsgsCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm [lane-name]",
		Args:  cobra.ExactArgs(1),
		Short: "Performs a single confirmation round over the named lane",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := buildEngine(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()
			return eng.ConfirmMessages(cmd.Context())
		},
	}
	return cmd
}

// buildEngine prepares a ready-to-run engine for a one-shot tx command.
func buildEngine(cmd *cobra.Command, ctx *config.Context, laneName string) (*core.LaneEngine, func(), error) {
	if err := telemetry.InitializeMetrics(); err != nil {
		return nil, nil, err
	}
	src, dst, laneCfg, err := ctx.Config.ChainsFromLane(laneName)
	if err != nil {
		return nil, nil, err
	}
	kv, err := buildStore(cmd.Context(), ctx)
	if err != nil {
		return nil, nil, err
	}
	tracker := core.NewTracker(kv)
	eng := core.NewLaneEngine(laneCfg.LaneID, src, dst, tracker, buildLimiter(ctx), laneCfg.Engine)
	if err := eng.SetupRelay(cmd.Context()); err != nil {
		kv.Close()
		return nil, nil, err
	}
	return eng, func() { kv.Close() }, nil
}
