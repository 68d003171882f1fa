package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hyperledger-labs/lane-relayer/config"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/hyperledger-labs/lane-relayer/store"
	"github.com/hyperledger-labs/lane-relayer/store/filestore"
	"github.com/hyperledger-labs/lane-relayer/store/redisstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

const defaultPrometheusAddr = "localhost:9616"

func serviceCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Relay Service Commands",
		Long:  "Commands to manage the relay service",
		RunE:  noCommand,
	}
	cmd.AddCommand(
		startCmd(ctx),
	)
	return cmd
}

func startCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [lane-name ...]",
		Short: "Starts the relay service over the named lanes, or all configured lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			shutdown, err := telemetry.SetupOTelSDK(cmd.Context(), viper.GetString(flagPrometheusAddr))
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

			lanes := ctx.Config.Lanes
			if len(args) > 0 {
				lanes = nil
				for _, name := range args {
					lane, err := ctx.Config.GetLane(name)
					if err != nil {
						return err
					}
					lanes = append(lanes, *lane)
				}
			}

			kv, err := buildStore(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer kv.Close()
			tracker := core.NewTracker(kv)
			limiter := buildLimiter(ctx)

			sched := core.NewScheduler()
			for _, lane := range lanes {
				src, dst, laneCfg, err := ctx.Config.ChainsFromLane(lane.Name)
				if err != nil {
					return err
				}
				svcCfg := laneCfg.Service
				if cmd.Flags().Changed(flagRelayInterval) {
					svcCfg.Interval = viper.GetDuration(flagRelayInterval)
				}
				eng := core.NewLaneEngine(laneCfg.LaneID, src, dst, tracker, limiter, laneCfg.Engine)
				if err := eng.SetupRelay(cmd.Context()); err != nil {
					return err
				}
				if err := sched.Add(laneCfg.LaneID, core.NewRelayService(eng, svcCfg)); err != nil {
					return err
				}
			}
			return sched.Run(cmd.Context())
		},
	}
	cmd.Flags().Duration(flagRelayInterval, 3*time.Second, "time interval to perform relays")
	cmd.Flags().String(flagPrometheusAddr, defaultPrometheusAddr, "host address to which the prometheus exporter listens")
	if err := viper.BindPFlag(flagRelayInterval, cmd.Flags().Lookup(flagRelayInterval)); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag(flagPrometheusAddr, cmd.Flags().Lookup(flagPrometheusAddr)); err != nil {
		panic(err)
	}
	return cmd
}

// buildStore returns the lane-state persistence backend selected by the
// global config. The file store keeps state under `homeDir/state`.
func buildStore(c context.Context, ctx *config.Context) (store.KV, error) {
	switch ctx.Config.Global.Store.Type {
	case "", "file":
		return filestore.New(filepath.Join(ctx.HomePath, "state"))
	case "redis":
		return redisstore.New(c, ctx.Config.Global.Store.Redis)
	default:
		return nil, fmt.Errorf("unknown store type %q", ctx.Config.Global.Store.Type)
	}
}

// buildLimiter returns the submission rate limiter shared across lanes.
func buildLimiter(ctx *config.Context) *rate.Limiter {
	limit := ctx.Config.Global.SubmitRateLimit
	if limit <= 0 {
		limit = 4
	}
	burst := ctx.Config.Global.SubmitRateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}
