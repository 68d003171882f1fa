package cmd

import (
	"fmt"

	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/spf13/cobra"
)

func lanesCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lanes",
		Short: "manage lane configurations",
		RunE:  noCommand,
	}

	cmd.AddCommand(
		lanesAddCmd(ctx),
		lanesListCmd(ctx),
	)

	return cmd
}

func lanesAddCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [src-chain-id] [dst-chain-id] [lane-id]",
		Args:  cobra.ExactArgs(3),
		Short: "Add a lane between two configured chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			laneID, err := core.ParseLaneID(args[2])
			if err != nil {
				return err
			}
			if _, err := ctx.Config.GetChain(src); err != nil {
				return err
			}
			if _, err := ctx.Config.GetChain(dst); err != nil {
				return err
			}
			name, err := cmd.Flags().GetString(flagName)
			if err != nil {
				return err
			}
			if name == "" {
				name = fmt.Sprintf("%s-%s-%s", src, dst, laneID)
			}
			if err := ctx.Config.AddLane(config.LaneConfig{
				Name:   name,
				LaneID: laneID,
				Src:    src,
				Dst:    dst,
			}); err != nil {
				return err
			}
			return ctx.Config.Save()
		},
	}
	cmd.Flags().String(flagName, "", "name of the lane (defaults to src-dst-laneid)")

	return cmd
}

func lanesListCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "Returns lane configuration data",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, lane := range ctx.Config.Lanes {
				fmt.Printf("%2d: %s: lane %s over %s -> %s\n", i, lane.Name, lane.LaneID, lane.Src, lane.Dst)
			}
			return nil
		},
	}

	return cmd
}
