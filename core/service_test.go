package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		Interval:           2 * time.Millisecond,
		MaxBackoffAttempts: 3,
		InitialBackoff:     time.Millisecond,
		MaxBackoff:         10 * time.Millisecond,
	}
}

// A persistently failing connection exhausts the backoff attempts and moves
// the lane to the terminal Failed state.
func TestServiceBackoffExhaustion(t *testing.T) {
	src, dst, srcBackend, dstBackend := testChains(2)
	srcBackend.EmitMessage(testLane, []byte{1}, 1, 0)
	dstBackend.FailSubmissions(100, core.ConnectionError(errors.New("connection refused")))

	eng := setupEngine(t, src, dst)
	srv := core.NewRelayService(eng, testServiceConfig())

	err := srv.Start(context.TODO())
	require.Error(t, err)
	assert.True(t, core.IsRetriable(err))
	assert.Equal(t, core.StateFailed, eng.State())
}

// A transient failure that clears within the attempt budget is retried and
// the lane recovers.
func TestServiceBackoffRecovery(t *testing.T) {
	src, dst, srcBackend, dstBackend := testChains(2)
	srcBackend.EmitMessage(testLane, []byte{1}, 1, 0)
	dstBackend.FailSubmissions(2, core.ConnectionError(errors.New("connection refused")))

	eng := setupEngine(t, src, dst)
	srv := core.NewRelayService(eng, testServiceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, inState := laneState(t, dst, testLane)
		return inState.LastDeliveredNonce == 1
	}, 5*time.Second, time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

// A malformed response is not retried: the lane fails immediately.
func TestServiceFailsOnInvalidResponse(t *testing.T) {
	src, dst, srcBackend, dstBackend := testChains(2)
	srcBackend.EmitMessage(testLane, []byte{1}, 1, 0)
	dstBackend.FailSubmissions(1, core.InvalidResponseError(errors.New("unexpected payload encoding")))

	eng := setupEngine(t, src, dst)
	srv := core.NewRelayService(eng, testServiceConfig())

	err := srv.Start(context.TODO())
	require.Error(t, err)
	assert.False(t, core.IsRetriable(err))
	assert.Equal(t, core.StateFailed, eng.State())
}

// One lane entering Failed leaves the other lanes running.
func TestSchedulerLaneIsolation(t *testing.T) {
	laneA := core.LaneID{0, 0, 0, 0xa}
	laneB := core.LaneID{0, 0, 0, 0xb}

	srcA, dstA, srcBackendA, _ := testChains(2)
	srcB, dstB, srcBackendB, dstBackendB := testChains(2)
	for i := 0; i < 3; i++ {
		srcBackendA.EmitMessage(laneA, []byte{byte(i)}, 1, 0)
	}
	srcBackendB.EmitMessage(laneB, []byte{1}, 1, 0)
	dstBackendB.FailSubmissions(1, core.InvalidResponseError(errors.New("unexpected payload encoding")))

	engA := core.NewLaneEngine(laneA, srcA, dstA, core.NewTracker(nil), testLimiter(), testEngineConfig())
	require.NoError(t, engA.SetupRelay(context.TODO()))
	engB := core.NewLaneEngine(laneB, srcB, dstB, core.NewTracker(nil), testLimiter(), testEngineConfig())
	require.NoError(t, engB.SetupRelay(context.TODO()))

	sched := core.NewScheduler()
	require.NoError(t, sched.Add(laneA, core.NewRelayService(engA, testServiceConfig())))
	require.NoError(t, sched.Add(laneB, core.NewRelayService(engB, testServiceConfig())))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, inState := laneState(t, dstA, laneA)
		return inState.LastDeliveredNonce == 3 && engB.State() == core.StateFailed
	}, 5*time.Second, time.Millisecond)
	assert.NotEqual(t, core.StateFailed, engA.State())

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestSchedulerRejectsDuplicateLane(t *testing.T) {
	src, dst, _, _ := testChains(2)
	eng := core.NewLaneEngine(testLane, src, dst, core.NewTracker(nil), testLimiter(), testEngineConfig())

	sched := core.NewScheduler()
	require.NoError(t, sched.Add(testLane, core.NewRelayService(eng, testServiceConfig())))
	err := sched.Add(testLane, core.NewRelayService(eng, testServiceConfig()))
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestSchedulerWithoutLanes(t *testing.T) {
	sched := core.NewScheduler()
	err := sched.Run(context.TODO())
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

// Cancelling a lane stops its loop cleanly; the in-flight round completes
// before the cancellation takes effect.
func TestSchedulerCancelLane(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	srcBackend.EmitMessage(testLane, []byte{1}, 1, 0)

	eng := setupEngine(t, src, dst)
	sched := core.NewScheduler()
	require.NoError(t, sched.Add(testLane, core.NewRelayService(eng, testServiceConfig())))

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		_, inState := laneState(t, dst, testLane)
		return inState.LastDeliveredNonce == 1
	}, 5*time.Second, time.Millisecond)

	sched.Cancel(testLane)
	assert.NoError(t, <-done)
}

// Cancelling a lane before Run keeps it from starting at all.
func TestSchedulerCancelBeforeRun(t *testing.T) {
	src, dst, srcBackend, _ := testChains(2)
	srcBackend.EmitMessage(testLane, []byte{1}, 1, 0)

	eng := setupEngine(t, src, dst)
	sched := core.NewScheduler()
	require.NoError(t, sched.Add(testLane, core.NewRelayService(eng, testServiceConfig())))
	sched.Cancel(testLane)

	require.NoError(t, sched.Run(context.Background()))

	_, inState := laneState(t, dst, testLane)
	assert.Equal(t, uint64(0), inState.LastDeliveredNonce)
	assert.Equal(t, core.StateIdle, eng.State())
}
