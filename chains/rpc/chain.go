// Package rpc implements core.Chain and core.Prover over the lane JSON-RPC
// API exposed by a chain node.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hyperledger-labs/lane-relayer/core"
)

type Chain struct {
	config ChainConfig

	client  *rpc.Client
	signer  *Signer
	timeout time.Duration
}

var _ core.Chain = (*Chain)(nil)

func NewChain(config ChainConfig) *Chain {
	return &Chain{config: config}
}

func (c *Chain) ChainID() string {
	return c.config.ChainID
}

func (c *Chain) GetAddress() (string, error) {
	if c.signer == nil {
		return "", errors.Wrap(core.ErrConfiguration, "signer is not initialized")
	}
	return c.signer.Address().Hex(), nil
}

func (c *Chain) Init(homePath string, timeout time.Duration, debug bool) error {
	c.timeout = timeout
	signer, err := c.config.signer(homePath)
	if err != nil {
		return err
	}
	c.signer = signer
	return nil
}

func (c *Chain) SetupForRelay(ctx context.Context) error {
	client, err := rpc.DialContext(ctx, c.config.endpoint())
	if err != nil {
		return core.ConnectionError(errors.Wrapf(err, "failed to dial %s", c.config.endpoint()))
	}
	c.client = client
	return nil
}

// call performs one RPC call with the configured timeout and classifies
// the failure: json-rpc level errors are invalid responses, everything
// else (dial, I/O, timeout) is a connection error.
func (c *Chain) call(ctx context.Context, result any, method string, args ...any) error {
	if c.client == nil {
		return core.ConnectionError(errors.New("rpc client is not connected"))
	}
	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.client.CallContext(cctx, result, method, args...); err != nil {
		return classify(errors.Wrapf(err, "rpc call %s failed", method))
	}
	return nil
}

func classify(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return core.InvalidResponseError(err)
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return core.InvalidResponseError(err)
	}
	return core.ConnectionError(err)
}

func (c *Chain) QueryOutboundMessages(ctx core.QueryContext, lane core.LaneID, fromNonce uint64, limit uint64) (core.MessageList, error) {
	var raw []rpcMessage
	if err := c.call(ctx.Context(), &raw, "lane_outboundMessages", lane.String(), fromNonce, limit, ctx.Height()); err != nil {
		return nil, err
	}
	msgs, err := toMessageList(lane, fromNonce, raw)
	if err != nil {
		return nil, core.InvalidResponseError(err)
	}
	return msgs, nil
}

func (c *Chain) QueryOutboundLaneState(ctx core.QueryContext, lane core.LaneID) (*core.OutboundLaneState, error) {
	var raw rpcOutboundLaneState
	if err := c.call(ctx.Context(), &raw, "lane_outboundLaneState", lane.String(), ctx.Height()); err != nil {
		return nil, err
	}
	if raw.LatestReceivedNonce > raw.LatestGeneratedNonce {
		return nil, core.InvalidResponseError(errors.Newf(
			"outbound lane state is inconsistent: received %d > generated %d",
			raw.LatestReceivedNonce, raw.LatestGeneratedNonce))
	}
	return &core.OutboundLaneState{
		LatestGeneratedNonce: uint64(raw.LatestGeneratedNonce),
		LatestReceivedNonce:  uint64(raw.LatestReceivedNonce),
		OldestUnprunedNonce:  uint64(raw.OldestUnprunedNonce),
	}, nil
}

func (c *Chain) QueryInboundLaneState(ctx core.QueryContext, lane core.LaneID) (*core.InboundLaneState, error) {
	var raw rpcInboundLaneState
	if err := c.call(ctx.Context(), &raw, "lane_inboundLaneState", lane.String(), ctx.Height()); err != nil {
		return nil, err
	}
	return &core.InboundLaneState{
		LastDeliveredNonce: uint64(raw.LastDeliveredNonce),
		LastConfirmedNonce: uint64(raw.LastConfirmedNonce),
	}, nil
}

func (c *Chain) QueryDeliveryProof(ctx core.QueryContext, lane core.LaneID, span core.NonceRange, height uint64) (*core.DeliveryProof, error) {
	var raw rpcDeliveryProof
	if err := c.call(ctx.Context(), &raw, "lane_deliveryProof", lane.String(), span.Begin, span.End, height); err != nil {
		return nil, err
	}
	if uint64(raw.BeginNonce) != span.Begin || uint64(raw.EndNonce) != span.End {
		return nil, core.InvalidResponseError(errors.Newf(
			"proof covers %d..%d, requested %d..%d", raw.BeginNonce, raw.EndNonce, span.Begin, span.End))
	}
	if len(raw.Data) == 0 {
		return nil, core.InvalidResponseError(errors.New("proof data is empty"))
	}
	return &core.DeliveryProof{
		Lane:         lane,
		Range:        span,
		HeaderHeight: uint64(raw.HeaderHeight),
		Data:         raw.Data,
	}, nil
}

func (c *Chain) SubmitMessages(ctx context.Context, lane core.LaneID, msgs core.MessageList) (core.MsgID, error) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode delivery batch")
	}
	sig, err := c.signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	var txHash common.Hash
	if err := c.call(ctx, &txHash, "lane_submitDelivery", lane.String(), json.RawMessage(payload), c.signer.Address(), sig); err != nil {
		return nil, err
	}
	return &MsgID{TxHash: txHash}, nil
}

func (c *Chain) SubmitConfirmation(ctx context.Context, receipt *core.ConfirmationReceipt) (core.MsgID, error) {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode confirmation receipt")
	}
	sig, err := c.signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	var txHash common.Hash
	if err := c.call(ctx, &txHash, "lane_submitConfirmation", receipt.Lane.String(), json.RawMessage(payload), c.signer.Address(), sig); err != nil {
		return nil, err
	}
	return &MsgID{TxHash: txHash}, nil
}

func (c *Chain) GetMsgResult(ctx context.Context, id core.MsgID) (core.MsgResult, error) {
	mid, ok := id.(*MsgID)
	if !ok {
		return nil, errors.Newf("unexpected MsgID type %T", id)
	}
	var raw rpcMsgResult
	if err := c.call(ctx, &raw, "lane_messageResult", mid.TxHash); err != nil {
		return nil, err
	}
	if !raw.Included {
		// pending inclusion is transient from the relayer's point of view
		return nil, core.ConnectionError(errors.Newf("transaction %s is not yet included", mid.TxHash))
	}
	return &MsgResult{
		Height:        uint64(raw.BlockHeight),
		Success:       raw.Success,
		FailureReason: raw.FailureReason,
	}, nil
}

// MsgID identifies a submitted transaction by its hash.
type MsgID struct {
	TxHash common.Hash
}

func (*MsgID) IsMsgID() {}

func (id *MsgID) String() string {
	return fmt.Sprintf("tx(%s)", id.TxHash.Hex())
}

type MsgResult struct {
	Height        uint64
	Success       bool
	FailureReason string
}

func (r *MsgResult) BlockHeight() uint64 {
	return r.Height
}

func (r *MsgResult) Status() (bool, string) {
	return r.Success, r.FailureReason
}
