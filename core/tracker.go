package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/store"
)

// Tracker owns the per-lane relay cursors. It is the only component that
// mutates RelayState, and it does so only on request of the engine after
// on-chain effects are confirmed.
//
// Every mutation enforces the ordering invariant
//
//	confirmed nonce <= delivered nonce <= highest emitted nonce
//
// and fails with ErrStateInvariant when it would be violated.
type Tracker struct {
	mu      sync.Mutex
	kv      store.KV
	states  map[LaneID]*RelayState
	emitted map[LaneID]uint64
}

// NewTracker returns a tracker backed by the given store. A nil store keeps
// state in memory only.
func NewTracker(kv store.KV) *Tracker {
	return &Tracker{
		kv:      kv,
		states:  map[LaneID]*RelayState{},
		emitted: map[LaneID]uint64{},
	}
}

// Load reads the persisted state of the lane into the tracker. A lane with
// no persisted state starts at zero cursors.
func (t *Tracker) Load(ctx context.Context, lane LaneID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.kv == nil {
		t.states[lane] = &RelayState{}
		return nil
	}
	bz, found, err := t.kv.Get(ctx, lane.String())
	if err != nil {
		return err
	}
	state := &RelayState{}
	if found {
		if err := json.Unmarshal(bz, state); err != nil {
			return errors.Wrapf(err, "corrupted state for lane %s", lane)
		}
	}
	if state.ConfirmedNonce > state.DeliveredNonce {
		return errors.Wrapf(ErrStateInvariant, "lane %s: loaded confirmed nonce %d > delivered nonce %d",
			lane, state.ConfirmedNonce, state.DeliveredNonce)
	}
	t.states[lane] = state
	return nil
}

// State returns a copy of the lane's current state.
func (t *Tracker) State(lane LaneID) (RelayState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return RelayState{}, errors.Newf("lane %s not loaded", lane)
	}
	ret := *state
	if state.InFlight != nil {
		span := *state.InFlight
		ret.InFlight = &span
	}
	return ret, nil
}

// ObserveEmitted records the source chain's highest emitted nonce for the
// lane. The delivered cursor may never advance past it.
func (t *Tracker) ObserveEmitted(lane LaneID, nonce uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return errors.Newf("lane %s not loaded", lane)
	}
	if nonce < state.DeliveredNonce {
		return errors.Wrapf(ErrStateInvariant, "lane %s: emitted nonce %d < delivered nonce %d",
			lane, nonce, state.DeliveredNonce)
	}
	t.emitted[lane] = nonce
	return nil
}

// Reset aligns the cursors with on-chain truth. Used once at startup after
// reading the lane state from both chains.
func (t *Tracker) Reset(ctx context.Context, lane LaneID, delivered, confirmed uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if confirmed > delivered {
		return errors.Wrapf(ErrStateInvariant, "lane %s: reset confirmed nonce %d > delivered nonce %d",
			lane, confirmed, delivered)
	}
	state := &RelayState{DeliveredNonce: delivered, ConfirmedNonce: confirmed}
	t.states[lane] = state
	return t.persist(ctx, lane, state)
}

// MarkInFlight records the nonce range of a submitted but unacknowledged
// delivery batch.
func (t *Tracker) MarkInFlight(ctx context.Context, lane LaneID, span NonceRange) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return errors.Newf("lane %s not loaded", lane)
	}
	if state.InFlight != nil {
		return errors.Wrapf(ErrStateInvariant, "lane %s: batch %d..%d already in flight",
			lane, state.InFlight.Begin, state.InFlight.End)
	}
	if span.Begin != state.DeliveredNonce+1 {
		return errors.Wrapf(ErrStateInvariant, "lane %s: batch begins at %d, expected %d",
			lane, span.Begin, state.DeliveredNonce+1)
	}
	state.InFlight = &span
	return t.persist(ctx, lane, state)
}

// ClearInFlight drops the in-flight record without advancing cursors, e.g.
// after a failed submission.
func (t *Tracker) ClearInFlight(ctx context.Context, lane LaneID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return errors.Newf("lane %s not loaded", lane)
	}
	state.InFlight = nil
	return t.persist(ctx, lane, state)
}

// AdvanceDelivered moves the delivered cursor forward after the delivery
// transaction is finalized on the target chain.
func (t *Tracker) AdvanceDelivered(ctx context.Context, lane LaneID, nonce uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return errors.Newf("lane %s not loaded", lane)
	}
	if nonce < state.DeliveredNonce {
		return errors.Wrapf(ErrStateInvariant, "lane %s: delivered nonce would regress %d -> %d",
			lane, state.DeliveredNonce, nonce)
	}
	if emitted, ok := t.emitted[lane]; ok && nonce > emitted {
		return errors.Wrapf(ErrStateInvariant, "lane %s: delivered nonce %d > emitted nonce %d",
			lane, nonce, emitted)
	}
	state.DeliveredNonce = nonce
	state.InFlight = nil
	return t.persist(ctx, lane, state)
}

// AdvanceConfirmed moves the confirmed cursor forward after the source chain
// applies the confirmation receipt.
func (t *Tracker) AdvanceConfirmed(ctx context.Context, lane LaneID, nonce uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[lane]
	if !ok {
		return errors.Newf("lane %s not loaded", lane)
	}
	if nonce < state.ConfirmedNonce {
		return errors.Wrapf(ErrStateInvariant, "lane %s: confirmed nonce would regress %d -> %d",
			lane, state.ConfirmedNonce, nonce)
	}
	if nonce > state.DeliveredNonce {
		return errors.Wrapf(ErrStateInvariant, "lane %s: confirmed nonce %d > delivered nonce %d",
			lane, nonce, state.DeliveredNonce)
	}
	state.ConfirmedNonce = nonce
	return t.persist(ctx, lane, state)
}

func (t *Tracker) persist(ctx context.Context, lane LaneID, state *RelayState) error {
	if t.kv == nil {
		return nil
	}
	bz, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal state for lane %s", lane)
	}
	return t.kv.Put(ctx, lane.String(), bz)
}
