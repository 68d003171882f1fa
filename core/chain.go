package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Chain represents a chain endpoint that supports reading lane state and
// submitting signed transactions.
//
// Implementations wrap every transport failure with ConnectionError and
// every malformed response with InvalidResponseError so that the engine
// can decide whether to retry.
type Chain interface {
	// ChainID returns ID of the chain
	ChainID() string

	// GetAddress returns the address of the relayer's signer account
	GetAddress() (string, error)

	// Init initializes the chain
	Init(homePath string, timeout time.Duration, debug bool) error

	// SetupForRelay performs chain-specific setup before starting the relay
	SetupForRelay(ctx context.Context) error

	// QueryOutboundMessages returns up to `limit` undelivered messages on the
	// lane with nonce strictly greater than `fromNonce`, sorted by nonce
	QueryOutboundMessages(ctx QueryContext, lane LaneID, fromNonce uint64, limit uint64) (MessageList, error)

	// QueryOutboundLaneState returns the chain's outbound bookkeeping for the lane
	QueryOutboundLaneState(ctx QueryContext, lane LaneID) (*OutboundLaneState, error)

	// QueryInboundLaneState returns the chain's inbound bookkeeping for the lane
	QueryInboundLaneState(ctx QueryContext, lane LaneID) (*InboundLaneState, error)

	// QueryDeliveryProof returns a proof that the messages in `span` are
	// included in the chain state at the given finalized height
	QueryDeliveryProof(ctx QueryContext, lane LaneID, span NonceRange, height uint64) (*DeliveryProof, error)

	// SubmitMessages submits a signed delivery transaction carrying `msgs`
	// and returns an identifier for querying its result
	SubmitMessages(ctx context.Context, lane LaneID, msgs MessageList) (MsgID, error)

	// SubmitConfirmation submits a signed confirmation transaction carrying
	// the delivery receipt back to the chain
	SubmitConfirmation(ctx context.Context, receipt *ConfirmationReceipt) (MsgID, error)

	// GetMsgResult returns the execution result of a previously submitted
	// transaction. It fails until the transaction is included in a block.
	GetMsgResult(ctx context.Context, id MsgID) (MsgResult, error)
}

// Prover tracks the finality of a chain and verifies proofs against
// finalized headers.
type Prover interface {
	// GetLatestFinalizedHeader returns the latest finalized header of the chain
	GetLatestFinalizedHeader(ctx context.Context) (*Header, error)

	// VerifyDeliveryProof checks the proof against the given finalized header
	VerifyDeliveryProof(proof *DeliveryProof, header *Header) error
}

// ProvableChain represents a chain that is supported by the relayer
type ProvableChain struct {
	Chain
	Prover
}

// NewProvableChain returns a new ProvableChain instance
func NewProvableChain(chain Chain, prover Prover) *ProvableChain {
	return &ProvableChain{Chain: chain, Prover: prover}
}

func (pc *ProvableChain) GetLatestFinalizedHeader(ctx context.Context) (*Header, error) {
	ctx, span := tracer.Start(ctx, "Prover.GetLatestFinalizedHeader", WithChainAttributes(pc.ChainID()))
	defer span.End()

	header, err := pc.Prover.GetLatestFinalizedHeader(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return header, err
}

func (pc *ProvableChain) QueryOutboundMessages(ctx QueryContext, lane LaneID, fromNonce uint64, limit uint64) (MessageList, error) {
	ctx, span := StartTraceWithQueryContext(tracer, ctx, "Chain.QueryOutboundMessages",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(lane.String()), AttributeKeyNonce.Int64(int64(fromNonce))),
	)
	defer span.End()

	msgs, err := pc.Chain.QueryOutboundMessages(ctx, lane, fromNonce, limit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return msgs, err
}

func (pc *ProvableChain) QueryOutboundLaneState(ctx QueryContext, lane LaneID) (*OutboundLaneState, error) {
	ctx, span := StartTraceWithQueryContext(tracer, ctx, "Chain.QueryOutboundLaneState",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(lane.String())),
	)
	defer span.End()

	state, err := pc.Chain.QueryOutboundLaneState(ctx, lane)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (pc *ProvableChain) QueryInboundLaneState(ctx QueryContext, lane LaneID) (*InboundLaneState, error) {
	ctx, span := StartTraceWithQueryContext(tracer, ctx, "Chain.QueryInboundLaneState",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(lane.String())),
	)
	defer span.End()

	state, err := pc.Chain.QueryInboundLaneState(ctx, lane)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (pc *ProvableChain) QueryDeliveryProof(ctx QueryContext, lane LaneID, nonceSpan NonceRange, height uint64) (*DeliveryProof, error) {
	ctx, span := StartTraceWithQueryContext(tracer, ctx, "Chain.QueryDeliveryProof",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(lane.String()), AttributeKeyHeight.Int64(int64(height))),
	)
	defer span.End()

	proof, err := pc.Chain.QueryDeliveryProof(ctx, lane, nonceSpan, height)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return proof, err
}

func (pc *ProvableChain) SubmitMessages(ctx context.Context, lane LaneID, msgs MessageList) (MsgID, error) {
	ctx, span := tracer.Start(ctx, "Chain.SubmitMessages",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(lane.String())),
	)
	defer span.End()

	id, err := pc.Chain.SubmitMessages(ctx, lane, msgs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return id, err
}

func (pc *ProvableChain) SubmitConfirmation(ctx context.Context, receipt *ConfirmationReceipt) (MsgID, error) {
	ctx, span := tracer.Start(ctx, "Chain.SubmitConfirmation",
		WithChainAttributes(pc.ChainID()),
		trace.WithAttributes(AttributeKeyLaneID.String(receipt.Lane.String()), AttributeKeyNonce.Int64(int64(receipt.Nonce))),
	)
	defer span.End()

	id, err := pc.Chain.SubmitConfirmation(ctx, receipt)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return id, err
}

// MsgID is an opaque identifier of a submitted transaction.
type MsgID interface {
	IsMsgID()
}

// MsgResult is the execution result of a submitted transaction.
type MsgResult interface {
	// BlockHeight returns the height of the block that includes the transaction
	BlockHeight() uint64

	// Status returns the execution status and, on failure, its reason
	Status() (bool, string)
}

// QueryContext is a context that contains a height of the target chain for querying states
type QueryContext interface {
	// Context returns `context.Context`
	Context() context.Context

	// Height returns a height of the target chain for querying a state
	Height() uint64
}

type queryContext struct {
	ctx    context.Context
	height uint64
}

var _ QueryContext = (*queryContext)(nil)

// NewQueryContext returns a new context for querying states
func NewQueryContext(ctx context.Context, height uint64) QueryContext {
	return queryContext{ctx: ctx, height: height}
}

func (qc queryContext) Context() context.Context {
	return qc.ctx
}

func (qc queryContext) Height() uint64 {
	return qc.height
}
