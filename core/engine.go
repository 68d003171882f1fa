package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/hyperledger-labs/lane-relayer/log"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// LaneState is the engine state of a lane.
type LaneState int

const (
	StateIdle LaneState = iota
	StateFetching
	StateBatching
	StateSubmitting
	StateAwaitingFinality
	StateConfirming
	StateBackoff
	StateFailed
)

func (s LaneState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBatching:
		return "batching"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingFinality:
		return "awaiting_finality"
	case StateConfirming:
		return "confirming"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// EngineConfig configures a lane engine. Zero values fall back to the
// defaults below.
type EngineConfig struct {
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// FetchLimit bounds the number of messages fetched per round
	FetchLimit uint64 `json:"fetch_limit" yaml:"fetch_limit"`

	// FinalityRetryInterval and FinalityMaxRetry bound the wait for the
	// finalization of a submitted transaction
	FinalityRetryInterval time.Duration `json:"finality_retry_interval" yaml:"finality_retry_interval"`
	FinalityMaxRetry      uint          `json:"finality_max_retry" yaml:"finality_max_retry"`
}

const (
	defaultFetchLimit            = 128
	defaultFinalityRetryInterval = time.Second
	defaultFinalityMaxRetry      = uint(30)
)

func (c EngineConfig) fetchLimit() uint64 {
	if c.FetchLimit == 0 {
		return defaultFetchLimit
	}
	return c.FetchLimit
}

func (c EngineConfig) finalityRetryInterval() time.Duration {
	if c.FinalityRetryInterval == 0 {
		return defaultFinalityRetryInterval
	}
	return c.FinalityRetryInterval
}

func (c EngineConfig) finalityMaxRetry() uint {
	if c.FinalityMaxRetry == 0 {
		return defaultFinalityMaxRetry
	}
	return c.FinalityMaxRetry
}

// LaneEngine relays messages on a single lane from src to dst and returns
// delivery confirmations from dst back to src.
//
// One round of Serve walks the states
// Fetching -> Batching -> Submitting -> AwaitingFinality -> Confirming -> Idle.
// Transient failures surface to the caller, which drives Backoff and retry;
// non-retriable failures move the lane to Failed.
type LaneEngine struct {
	lane    LaneID
	src     *ProvableChain
	dst     *ProvableChain
	tracker *Tracker
	limiter *rate.Limiter
	sh      SyncHeaders
	cfg     EngineConfig

	// state is written only by the goroutine driving the engine but read
	// concurrently via State()
	state atomic.Int32
}

// NewLaneEngine returns an engine for the lane. The limiter is the global
// submission rate limiter shared across all lanes.
func NewLaneEngine(lane LaneID, src, dst *ProvableChain, tracker *Tracker, limiter *rate.Limiter, cfg EngineConfig) *LaneEngine {
	return &LaneEngine{
		lane:    lane,
		src:     src,
		dst:     dst,
		tracker: tracker,
		limiter: limiter,
		cfg:     cfg,
	}
}

func (e *LaneEngine) Lane() LaneID {
	return e.lane
}

func (e *LaneEngine) State() LaneState {
	return LaneState(e.state.Load())
}

func (e *LaneEngine) logger() *log.RelayLogger {
	return log.GetLogger().WithLane(e.src.ChainID(), e.dst.ChainID(), e.lane.String())
}

func (e *LaneEngine) transition(next LaneState) {
	old := LaneState(e.state.Load())
	if old == next {
		return
	}
	e.logger().Debug("lane state transition", "old_state", old.String(), "new_state", next.String())
	e.state.Store(int32(next))
	telemetry.LaneStateGauge.Set(int64(next),
		AttributeKeyLaneID.String(e.lane.String()),
		AttributeKeyChainID.String(e.dst.ChainID()),
		AttributeKeyState.String(next.String()),
	)
}

// Fail moves the lane to the terminal Failed state. Recovery requires
// operator intervention (restart of the lane).
func (e *LaneEngine) Fail(err error) {
	e.logger().ErrorWithStack("lane failed", err)
	e.transition(StateFailed)
}

// MarkBackoff records that the lane is waiting out a transient failure.
func (e *LaneEngine) MarkBackoff() {
	e.transition(StateBackoff)
}

// SetupRelay loads the persisted lane state and reconciles it with the
// on-chain lane state of both chains. It must be called once before Serve.
func (e *LaneEngine) SetupRelay(ctx context.Context) error {
	logger := e.logger()

	if err := e.src.SetupForRelay(ctx); err != nil {
		logger.Error("failed to setup for src", err)
		return err
	}
	if err := e.dst.SetupForRelay(ctx); err != nil {
		logger.Error("failed to setup for dst", err)
		return err
	}

	if err := e.tracker.Load(ctx, e.lane); err != nil {
		return err
	}

	sh, err := NewSyncHeaders(ctx, e.src, e.dst)
	if err != nil {
		return err
	}
	e.sh = sh

	return e.reconcile(ctx)
}

// reconcile aligns the tracker cursors with the lane state reported by the
// chains themselves. Stale local state must never cause regressed or
// duplicate submissions.
func (e *LaneEngine) reconcile(ctx context.Context) error {
	srcCtx := NewQueryContext(ctx, e.sh.GetLatestFinalizedHeader(e.src.ChainID()).Height)
	dstCtx := NewQueryContext(ctx, e.sh.GetLatestFinalizedHeader(e.dst.ChainID()).Height)

	outState, err := e.src.QueryOutboundLaneState(srcCtx, e.lane)
	if err != nil {
		return err
	}
	inState, err := e.dst.QueryInboundLaneState(dstCtx, e.lane)
	if err != nil {
		return err
	}

	if err := e.tracker.Reset(ctx, e.lane, inState.LastDeliveredNonce, outState.LatestReceivedNonce); err != nil {
		return err
	}
	if err := e.tracker.ObserveEmitted(e.lane, outState.LatestGeneratedNonce); err != nil {
		return err
	}

	e.logger().Info("lane state reconciled",
		"delivered", inState.LastDeliveredNonce,
		"confirmed", outState.LatestReceivedNonce,
		"emitted", outState.LatestGeneratedNonce,
	)
	return nil
}

// Serve performs one relay round over the lane.
func (e *LaneEngine) Serve(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "LaneEngine.Serve", WithLanePairAttributes(e.src, e.dst, e.lane))
	defer span.End()
	logger := e.logger()

	fail := func(err error) error {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// First, update the latest finalized headers for src and dst
	e.transition(StateFetching)
	if err := e.sh.Updates(ctx, e.src, e.dst); err != nil {
		logger.Error("failed to update headers", err)
		return fail(err)
	}

	msgs, err := e.fetchUndelivered(ctx)
	if err != nil {
		logger.Error("failed to fetch undelivered messages", err)
		return fail(err)
	}

	if len(msgs) > 0 {
		e.transition(StateBatching)
		for _, batch := range e.cfg.Batch.Split(msgs) {
			if err := e.deliverBatch(ctx, batch); err != nil {
				logger.Error("failed to deliver batch", err)
				return fail(err)
			}
		}
		// refresh headers so that the confirmation proof is taken at a
		// height that covers the deliveries above
		if err := e.sh.Updates(ctx, e.src, e.dst); err != nil {
			logger.Error("failed to update headers", err)
			return fail(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	e.transition(StateConfirming)
	if err := e.confirmDelivered(ctx); err != nil {
		logger.Error("failed to confirm delivered messages", err)
		return fail(err)
	}

	e.transition(StateIdle)
	return nil
}

// RelayMessages performs a single delivery pass: fetch undelivered messages
// and submit them to dst in batches, without confirming.
func (e *LaneEngine) RelayMessages(ctx context.Context) error {
	e.transition(StateFetching)
	if err := e.sh.Updates(ctx, e.src, e.dst); err != nil {
		return err
	}
	msgs, err := e.fetchUndelivered(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		e.transition(StateIdle)
		return nil
	}
	e.transition(StateBatching)
	for _, batch := range e.cfg.Batch.Split(msgs) {
		if err := e.deliverBatch(ctx, batch); err != nil {
			return err
		}
	}
	e.transition(StateIdle)
	return nil
}

// ConfirmMessages performs a single confirmation pass for already delivered
// messages.
func (e *LaneEngine) ConfirmMessages(ctx context.Context) error {
	e.transition(StateFetching)
	if err := e.sh.Updates(ctx, e.src, e.dst); err != nil {
		return err
	}
	e.transition(StateConfirming)
	if err := e.confirmDelivered(ctx); err != nil {
		return err
	}
	e.transition(StateIdle)
	return nil
}

// fetchUndelivered returns the messages that are emitted on src but not yet
// delivered to dst, and refreshes the tracker's view of both lane ends.
func (e *LaneEngine) fetchUndelivered(ctx context.Context) (MessageList, error) {
	logger := e.logger()
	srcCtx := NewQueryContext(ctx, e.sh.GetLatestFinalizedHeader(e.src.ChainID()).Height)
	dstCtx := NewQueryContext(ctx, e.sh.GetLatestFinalizedHeader(e.dst.ChainID()).Height)

	var outState *OutboundLaneState
	if err := retry.Do(func() error {
		var err error
		outState, err = e.src.QueryOutboundLaneState(srcCtx, e.lane)
		return err
	}, rtyAtt, rtyDel, rtyErr, retry.Context(ctx), retry.RetryIf(IsRetriable), retry.OnRetry(func(n uint, err error) {
		logger.Info(
			"query outbound lane state",
			"height", srcCtx.Height(),
			"try", fmt.Sprintf("%d/%d", n+1, rtyAttNum),
			"error", err.Error(),
		)
	})); err != nil {
		return nil, err
	}

	var inState *InboundLaneState
	if err := retry.Do(func() error {
		var err error
		inState, err = e.dst.QueryInboundLaneState(dstCtx, e.lane)
		return err
	}, rtyAtt, rtyDel, rtyErr, retry.Context(ctx), retry.RetryIf(IsRetriable), retry.OnRetry(func(n uint, err error) {
		logger.Info(
			"query inbound lane state",
			"height", dstCtx.Height(),
			"try", fmt.Sprintf("%d/%d", n+1, rtyAttNum),
			"error", err.Error(),
		)
	})); err != nil {
		return nil, err
	}

	if err := e.tracker.ObserveEmitted(e.lane, outState.LatestGeneratedNonce); err != nil {
		return nil, err
	}

	state, err := e.tracker.State(e.lane)
	if err != nil {
		return nil, err
	}

	// another relayer may have advanced the lane; never re-deliver
	if inState.LastDeliveredNonce > state.DeliveredNonce {
		if err := e.tracker.AdvanceDelivered(ctx, e.lane, inState.LastDeliveredNonce); err != nil {
			return nil, err
		}
		state.DeliveredNonce = inState.LastDeliveredNonce
	}

	telemetry.BacklogSizeGauge.Set(int64(outState.LatestGeneratedNonce-state.ConfirmedNonce),
		AttributeKeyLaneID.String(e.lane.String()),
		AttributeKeyChainID.String(e.src.ChainID()),
	)

	if outState.LatestGeneratedNonce == state.DeliveredNonce {
		return nil, nil
	}

	var msgs MessageList
	if err := retry.Do(func() error {
		var err error
		msgs, err = e.src.QueryOutboundMessages(srcCtx, e.lane, state.DeliveredNonce, e.cfg.fetchLimit())
		return err
	}, rtyAtt, rtyDel, rtyErr, retry.Context(ctx), retry.RetryIf(IsRetriable), retry.OnRetry(func(n uint, err error) {
		logger.Info(
			"query outbound messages",
			"from_nonce", state.DeliveredNonce,
			"try", fmt.Sprintf("%d/%d", n+1, rtyAttNum),
			"error", err.Error(),
		)
	})); err != nil {
		return nil, err
	}

	// idempotence: drop anything the target chain already received
	return msgs.Filter(state.DeliveredNonce), nil
}

// deliverBatch submits one delivery transaction to dst and waits until the
// inclusion block is finalized.
func (e *LaneEngine) deliverBatch(ctx context.Context, batch MessageList) error {
	if len(batch) == 0 {
		return nil
	}
	logger := e.logger()
	span := NonceRange{Begin: batch[0].Nonce, End: batch[len(batch)-1].Nonce}

	e.transition(StateSubmitting)
	if err := e.tracker.MarkInFlight(ctx, e.lane, span); err != nil {
		return err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return errors.CombineErrors(err, e.tracker.ClearInFlight(ctx, e.lane))
	}

	// a started submission runs to completion even when the lane is being
	// cancelled; cancellation takes effect at the next suspension point
	id, err := e.dst.SubmitMessages(context.WithoutCancel(ctx), e.lane, batch)
	if err != nil {
		// the submission never reached the chain; safe to retry later
		return errors.CombineErrors(err, e.tracker.ClearInFlight(ctx, e.lane))
	}
	logger.Info("delivery transaction submitted",
		"begin_nonce", span.Begin,
		"end_nonce", span.End,
		"msg_id", fmt.Sprint(id),
	)

	e.transition(StateAwaitingFinality)
	if _, err := GetFinalizedMsgResult(ctx, e.dst, id, e.cfg.finalityRetryInterval(), e.cfg.finalityMaxRetry()); err != nil {
		// the transaction may still be included later; the next round
		// re-reads the inbound lane state before re-submitting
		return errors.CombineErrors(err, e.tracker.ClearInFlight(ctx, e.lane))
	}

	if err := e.tracker.AdvanceDelivered(ctx, e.lane, span.End); err != nil {
		return err
	}
	telemetry.MessagesDeliveredCounter.Add(ctx, int64(len(batch)))
	logger.Info("messages delivered", "begin_nonce", span.Begin, "end_nonce", span.End)
	return nil
}

// confirmDelivered proves the delivery on dst and submits the confirmation
// receipt back to src.
func (e *LaneEngine) confirmDelivered(ctx context.Context) error {
	logger := e.logger()

	state, err := e.tracker.State(e.lane)
	if err != nil {
		return err
	}
	if state.DeliveredNonce <= state.ConfirmedNonce {
		return nil
	}

	dstHeader := e.sh.GetLatestFinalizedHeader(e.dst.ChainID())
	dstCtx := NewQueryContext(ctx, dstHeader.Height)
	span := NonceRange{Begin: state.ConfirmedNonce + 1, End: state.DeliveredNonce}

	var proof *DeliveryProof
	if err := retry.Do(func() error {
		var err error
		proof, err = e.dst.QueryDeliveryProof(dstCtx, e.lane, span, dstHeader.Height)
		return err
	}, rtyAtt, rtyDel, rtyErr, retry.Context(ctx), retry.RetryIf(IsRetriable), retry.OnRetry(func(n uint, err error) {
		logger.Info(
			"query delivery proof",
			"begin_nonce", span.Begin,
			"end_nonce", span.End,
			"try", fmt.Sprintf("%d/%d", n+1, rtyAttNum),
			"error", err.Error(),
		)
	})); err != nil {
		return err
	}

	if err := e.dst.VerifyDeliveryProof(proof, dstHeader); err != nil {
		return InvalidResponseError(err)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	receipt := &ConfirmationReceipt{Lane: e.lane, Nonce: span.End, Proof: proof.Data}
	id, err := e.src.SubmitConfirmation(context.WithoutCancel(ctx), receipt)
	if err != nil {
		return err
	}
	logger.Info("confirmation transaction submitted", "nonce", span.End, "msg_id", fmt.Sprint(id))

	if _, err := GetFinalizedMsgResult(ctx, e.src, id, e.cfg.finalityRetryInterval(), e.cfg.finalityMaxRetry()); err != nil {
		return err
	}

	if err := e.tracker.AdvanceConfirmed(ctx, e.lane, span.End); err != nil {
		return err
	}
	telemetry.MessagesConfirmedCounter.Add(ctx, int64(span.Count()))
	logger.Info("messages confirmed", "nonce", span.End)
	return nil
}
