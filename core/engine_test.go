package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hyperledger-labs/lane-relayer/chains/mock"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/hyperledger-labs/lane-relayer/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	if err := log.InitLoggerWithWriter("debug", "text", os.Stdout, false); err != nil {
		panic(err)
	}
	if err := telemetry.InitializeMetrics(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// testChains returns a connected mock chain pair sharing nothing but the
// test's lane identifiers.
func testChains(finalityDelay uint64) (src, dst *core.ProvableChain, srcBackend, dstBackend *mock.Backend) {
	srcBackend = mock.NewBackend("srcchain", finalityDelay)
	dstBackend = mock.NewBackend("dstchain", finalityDelay)
	src = core.NewProvableChain(mock.NewChain(srcBackend, "src-signer"), mock.NewProver(srcBackend))
	dst = core.NewProvableChain(mock.NewChain(dstBackend, "dst-signer"), mock.NewProver(dstBackend))
	return src, dst, srcBackend, dstBackend
}

func testEngineConfig() core.EngineConfig {
	return core.EngineConfig{
		FinalityRetryInterval: time.Millisecond,
		FinalityMaxRetry:      100,
	}
}

func testLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func setupEngine(t *testing.T, src, dst *core.ProvableChain) *core.LaneEngine {
	t.Helper()
	tracker := core.NewTracker(nil)
	eng := core.NewLaneEngine(testLane, src, dst, tracker, testLimiter(), testEngineConfig())
	require.NoError(t, eng.SetupRelay(context.TODO()))
	return eng
}

func laneState(t *testing.T, chain *core.ProvableChain, lane core.LaneID) (*core.OutboundLaneState, *core.InboundLaneState) {
	t.Helper()
	ctx := context.TODO()
	header, err := chain.GetLatestFinalizedHeader(ctx)
	require.NoError(t, err)
	qctx := core.NewQueryContext(ctx, header.Height)
	outState, err := chain.QueryOutboundLaneState(qctx, lane)
	require.NoError(t, err)
	inState, err := chain.QueryInboundLaneState(qctx, lane)
	require.NoError(t, err)
	return outState, inState
}

// Emit nonces 1..5, run one round: all five are delivered in one batch,
// finalized, and confirmed back to the source chain.
func TestServeDeliversAndConfirms(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	for i := 0; i < 5; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}

	eng := setupEngine(t, src, dst)
	require.NoError(t, eng.Serve(context.TODO()))
	assert.Equal(t, core.StateIdle, eng.State())

	outState, _ := laneState(t, src, testLane)
	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(5), inState.LastDeliveredNonce)
	assert.Equal(t, uint64(5), outState.LatestReceivedNonce)

	// a second round with nothing to relay is a no-op
	require.NoError(t, eng.Serve(context.TODO()))
	_, inState = laneState(t, dst, testLane)
	assert.Equal(t, uint64(5), inState.LastDeliveredNonce)

	// a later emission is picked up from the current cursor
	srcBackend.EmitMessage(testLane, []byte{6}, 1, 0)
	require.NoError(t, eng.Serve(context.TODO()))
	_, inState = laneState(t, dst, testLane)
	assert.Equal(t, uint64(6), inState.LastDeliveredNonce)
}

func TestServeSplitsBatches(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	for i := 0; i < 7; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}

	tracker := core.NewTracker(nil)
	cfg := testEngineConfig()
	cfg.Batch = core.BatchConfig{MaxBatchMessages: 3}
	eng := core.NewLaneEngine(testLane, src, dst, tracker, testLimiter(), cfg)
	require.NoError(t, eng.SetupRelay(context.TODO()))
	require.NoError(t, eng.Serve(context.TODO()))

	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(7), inState.LastDeliveredNonce)
}

// Reconciliation aligns the tracker with the lane state another relayer
// already advanced, so nothing is delivered twice.
func TestSetupRelayReconciles(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	for i := 0; i < 5; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}

	// simulate a previous relayer delivering 1..3
	_, err := dst.SubmitMessages(context.TODO(), testLane, mustMessages(t, src, testLane, 0, 3))
	require.NoError(t, err)

	eng := setupEngine(t, src, dst)
	require.NoError(t, eng.Serve(context.TODO()))

	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(5), inState.LastDeliveredNonce)
}

func mustMessages(t *testing.T, chain *core.ProvableChain, lane core.LaneID, from, limit uint64) core.MessageList {
	t.Helper()
	ctx := context.TODO()
	header, err := chain.GetLatestFinalizedHeader(ctx)
	require.NoError(t, err)
	msgs, err := chain.QueryOutboundMessages(core.NewQueryContext(ctx, header.Height), lane, from, limit)
	require.NoError(t, err)
	return msgs
}

func TestRelayAndConfirmOnce(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	for i := 0; i < 3; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}

	eng := setupEngine(t, src, dst)

	require.NoError(t, eng.RelayMessages(context.TODO()))
	outState, _ := laneState(t, src, testLane)
	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(3), inState.LastDeliveredNonce)
	assert.Equal(t, uint64(0), outState.LatestReceivedNonce, "delivery alone does not confirm")

	require.NoError(t, eng.ConfirmMessages(context.TODO()))
	outState, _ = laneState(t, src, testLane)
	assert.Equal(t, uint64(3), outState.LatestReceivedNonce)
}

// State can be read while a round is in progress on another goroutine.
func TestStateConcurrentRead(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	for i := 0; i < 5; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}
	eng := setupEngine(t, src, dst)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, eng.Serve(context.TODO()))
	}()
	for {
		select {
		case <-done:
			assert.Equal(t, core.StateIdle, eng.State())
			return
		default:
			_ = eng.State()
		}
	}
}

// cancellingChain simulates a lane cancellation arriving while a delivery
// submission is on the wire.
type cancellingChain struct {
	core.Chain
	cancel context.CancelFunc
}

func (c *cancellingChain) SubmitMessages(ctx context.Context, lane core.LaneID, msgs core.MessageList) (core.MsgID, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, core.ConnectionError(err)
	}
	return c.Chain.SubmitMessages(ctx, lane, msgs)
}

// A cancellation arriving mid-submission must not abort the transaction;
// it takes effect at the next suspension point instead.
func TestCancelCompletesInFlightSubmission(t *testing.T) {
	src, _, srcBackend, dstBackend := testChains(2)
	for i := 0; i < 3; i++ {
		srcBackend.EmitMessage(testLane, []byte{byte(i)}, 1, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dst := core.NewProvableChain(
		&cancellingChain{Chain: mock.NewChain(dstBackend, "dst-signer"), cancel: cancel},
		mock.NewProver(dstBackend),
	)

	eng := core.NewLaneEngine(testLane, src, dst, core.NewTracker(nil), testLimiter(), testEngineConfig())
	require.NoError(t, eng.SetupRelay(context.TODO()))

	err := eng.Serve(ctx)
	require.Error(t, err)

	// the delivery reached the chain despite the cancellation
	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(3), inState.LastDeliveredNonce)
}
