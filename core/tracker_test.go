package core_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/store/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLane = core.LaneID{0, 0, 0, 1}

func newTracker(t *testing.T) *core.Tracker {
	t.Helper()
	tracker := core.NewTracker(nil)
	require.NoError(t, tracker.Load(context.TODO(), testLane))
	return tracker
}

func TestTrackerCursors(t *testing.T) {
	ctx := context.TODO()
	tracker := newTracker(t)

	state, err := tracker.State(testLane)
	require.NoError(t, err)
	assert.Equal(t, core.RelayState{}, state)

	require.NoError(t, tracker.ObserveEmitted(testLane, 5))
	require.NoError(t, tracker.MarkInFlight(ctx, testLane, core.NonceRange{Begin: 1, End: 3}))
	require.NoError(t, tracker.AdvanceDelivered(ctx, testLane, 3))
	require.NoError(t, tracker.AdvanceConfirmed(ctx, testLane, 2))

	state, err = tracker.State(testLane)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), state.DeliveredNonce)
	assert.Equal(t, uint64(2), state.ConfirmedNonce)
	assert.Nil(t, state.InFlight, "AdvanceDelivered clears the in-flight record")
}

func TestTrackerInvariantViolations(t *testing.T) {
	ctx := context.TODO()

	t.Run("confirmed beyond delivered", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.ObserveEmitted(testLane, 10))
		require.NoError(t, tracker.MarkInFlight(ctx, testLane, core.NonceRange{Begin: 1, End: 5}))
		require.NoError(t, tracker.AdvanceDelivered(ctx, testLane, 5))
		err := tracker.AdvanceConfirmed(ctx, testLane, 6)
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})

	t.Run("delivered beyond emitted", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.ObserveEmitted(testLane, 3))
		err := tracker.AdvanceDelivered(ctx, testLane, 4)
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})

	t.Run("delivered regression", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.ObserveEmitted(testLane, 10))
		require.NoError(t, tracker.AdvanceDelivered(ctx, testLane, 5))
		err := tracker.AdvanceDelivered(ctx, testLane, 4)
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})

	t.Run("reset with confirmed beyond delivered", func(t *testing.T) {
		tracker := newTracker(t)
		err := tracker.Reset(ctx, testLane, 3, 4)
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})

	t.Run("in-flight batch must extend delivered", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.ObserveEmitted(testLane, 10))
		require.NoError(t, tracker.AdvanceDelivered(ctx, testLane, 3))
		err := tracker.MarkInFlight(ctx, testLane, core.NonceRange{Begin: 5, End: 6})
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})

	t.Run("overlapping in-flight batches", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.MarkInFlight(ctx, testLane, core.NonceRange{Begin: 1, End: 3}))
		err := tracker.MarkInFlight(ctx, testLane, core.NonceRange{Begin: 1, End: 5})
		assert.True(t, errors.Is(err, core.ErrStateInvariant))
	})
}

// TestTrackerInvariantProperty drives the tracker with randomized cursor
// movements and checks that confirmed <= delivered <= emitted holds after
// every accepted mutation, for any interleaving.
func TestTrackerInvariantProperty(t *testing.T) {
	ctx := context.TODO()
	rnd := rand.New(rand.NewSource(42))

	for iter := 0; iter < 100; iter++ {
		tracker := newTracker(t)
		emitted := uint64(0)
		require.NoError(t, tracker.ObserveEmitted(testLane, emitted))

		for op := 0; op < 200; op++ {
			state, err := tracker.State(testLane)
			require.NoError(t, err)

			switch rnd.Intn(4) {
			case 0:
				emitted += uint64(rnd.Intn(3))
				if emitted >= state.DeliveredNonce {
					require.NoError(t, tracker.ObserveEmitted(testLane, emitted))
				}
			case 1:
				next := state.DeliveredNonce + uint64(rnd.Intn(3))
				err := tracker.AdvanceDelivered(ctx, testLane, next)
				if next > emitted {
					assert.True(t, errors.Is(err, core.ErrStateInvariant))
				} else {
					require.NoError(t, err)
				}
			case 2:
				next := state.ConfirmedNonce + uint64(rnd.Intn(3))
				err := tracker.AdvanceConfirmed(ctx, testLane, next)
				if next > state.DeliveredNonce {
					assert.True(t, errors.Is(err, core.ErrStateInvariant))
				} else {
					require.NoError(t, err)
				}
			case 3:
				span := core.NonceRange{Begin: state.DeliveredNonce + 1, End: state.DeliveredNonce + 1 + uint64(rnd.Intn(3))}
				err := tracker.MarkInFlight(ctx, testLane, span)
				if state.InFlight != nil {
					assert.True(t, errors.Is(err, core.ErrStateInvariant))
				} else {
					require.NoError(t, err)
				}
			}

			state, err = tracker.State(testLane)
			require.NoError(t, err)
			assert.LessOrEqual(t, state.ConfirmedNonce, state.DeliveredNonce)
			assert.LessOrEqual(t, state.DeliveredNonce, emitted)
		}
	}
}

func TestTrackerPersistence(t *testing.T) {
	ctx := context.TODO()
	dir := t.TempDir()

	kv, err := filestore.New(dir)
	require.NoError(t, err)

	tracker := core.NewTracker(kv)
	require.NoError(t, tracker.Load(ctx, testLane))
	require.NoError(t, tracker.ObserveEmitted(testLane, 9))
	require.NoError(t, tracker.AdvanceDelivered(ctx, testLane, 7))
	require.NoError(t, tracker.AdvanceConfirmed(ctx, testLane, 4))
	require.NoError(t, kv.Close())

	// a restarted tracker resumes from the persisted cursors
	kv2, err := filestore.New(dir)
	require.NoError(t, err)
	defer kv2.Close()

	reloaded := core.NewTracker(kv2)
	require.NoError(t, reloaded.Load(ctx, testLane))
	state, err := reloaded.State(testLane)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), state.DeliveredNonce)
	assert.Equal(t, uint64(4), state.ConfirmedNonce)
}

func TestTrackerLoadCorruptedState(t *testing.T) {
	ctx := context.TODO()
	dir := t.TempDir()

	kv, err := filestore.New(dir)
	require.NoError(t, err)
	defer kv.Close()
	require.NoError(t, kv.Put(ctx, testLane.String(), []byte("{not json")))

	tracker := core.NewTracker(kv)
	assert.Error(t, tracker.Load(ctx, testLane))
}

func TestTrackerLoadInvalidCursors(t *testing.T) {
	ctx := context.TODO()
	dir := t.TempDir()

	kv, err := filestore.New(dir)
	require.NoError(t, err)
	defer kv.Close()
	require.NoError(t, kv.Put(ctx, testLane.String(), []byte(`{"delivered_nonce":3,"confirmed_nonce":5}`)))

	tracker := core.NewTracker(kv)
	err = tracker.Load(ctx, testLane)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}
