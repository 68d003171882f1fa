package cmd

import (
	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func queryCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query lane data from a configured chain",
		RunE:  noCommand,
	}

	cmd.AddCommand(
		queryStateCmd(ctx),
		queryMessagesCmd(ctx),
	)

	return cmd
}

func queryStateCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state [chain-id] [lane-id]",
		Args:  cobra.ExactArgs(2),
		Short: "Query the outbound and inbound lane state of a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, qctx, lane, err := queryTarget(cmd, ctx, args[0], args[1])
			if err != nil {
				return err
			}
			outState, err := chain.QueryOutboundLaneState(qctx, lane)
			if err != nil {
				return err
			}
			inState, err := chain.QueryInboundLaneState(qctx, lane)
			if err != nil {
				return err
			}
			return printOutput(struct {
				Height   uint64                  `json:"height" yaml:"height"`
				Outbound *core.OutboundLaneState `json:"outbound" yaml:"outbound"`
				Inbound  *core.InboundLaneState  `json:"inbound" yaml:"inbound"`
			}{qctx.Height(), outState, inState})
		},
	}
	return yamlFlag(cmd)
}

func queryMessagesCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages [chain-id] [lane-id]",
		Args:  cobra.ExactArgs(2),
		Short: "Query the undelivered outbound messages of a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, qctx, lane, err := queryTarget(cmd, ctx, args[0], args[1])
			if err != nil {
				return err
			}
			msgs, err := chain.QueryOutboundMessages(qctx, lane, viper.GetUint64(flagFrom), viper.GetUint64(flagLimit))
			if err != nil {
				return err
			}
			return printOutput(msgs)
		},
	}
	cmd.Flags().Uint64(flagFrom, 0, "return messages with nonce strictly greater than this")
	cmd.Flags().Uint64(flagLimit, 128, "maximum number of messages to return")
	if err := viper.BindPFlag(flagFrom, cmd.Flags().Lookup(flagFrom)); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag(flagLimit, cmd.Flags().Lookup(flagLimit)); err != nil {
		panic(err)
	}
	return yamlFlag(cmd)
}

// queryTarget resolves the chain, connects to it, and pins a query context
// at its latest finalized height.
func queryTarget(cmd *cobra.Command, ctx *config.Context, chainID, laneID string) (*core.ProvableChain, core.QueryContext, core.LaneID, error) {
	lane, err := core.ParseLaneID(laneID)
	if err != nil {
		return nil, nil, lane, err
	}
	chain, err := ctx.Config.GetChain(chainID)
	if err != nil {
		return nil, nil, lane, err
	}
	if err := chain.SetupForRelay(cmd.Context()); err != nil {
		return nil, nil, lane, err
	}
	header, err := chain.GetLatestFinalizedHeader(cmd.Context())
	if err != nil {
		return nil, nil, lane, err
	}
	return chain, core.NewQueryContext(cmd.Context(), header.Height), lane, nil
}
