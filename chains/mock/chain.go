// Package mock provides an in-memory chain pair for development and tests.
// Block production is simulated: the head advances on every submission and
// on every finalized-header query, and a block becomes final after the
// configured finality delay.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// Backend is the simulated chain state shared by a Chain and its Prover.
type Backend struct {
	mu            sync.Mutex
	chainID       string
	height        uint64
	finalityDelay uint64
	genesis       time.Time

	outbound map[core.LaneID]*outboundLane
	inbound  map[core.LaneID]*inboundLane

	// failure injection for tests: the next submitErrCount submissions
	// fail with submitErr
	submitErr      error
	submitErrCount int
}

type outboundLane struct {
	messages core.MessageList // all emitted messages, nonce = index+1
	received uint64           // latest confirmed-back nonce
}

type inboundLane struct {
	delivered uint64
	confirmed uint64
}

func NewBackend(chainID string, finalityDelay uint64) *Backend {
	return &Backend{
		chainID:       chainID,
		height:        finalityDelay + 1,
		finalityDelay: finalityDelay,
		genesis:       time.Unix(1700000000, 0),
		outbound:      map[core.LaneID]*outboundLane{},
		inbound:       map[core.LaneID]*inboundLane{},
	}
}

// EmitMessage appends a message to the lane's outbound queue and returns
// its nonce.
func (b *Backend) EmitMessage(lane core.LaneID, payload []byte, weight, fee uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.ensureOutbound(lane)
	nonce := uint64(len(out.messages)) + 1
	out.messages = append(out.messages, &core.Message{
		Lane:    lane,
		Nonce:   nonce,
		Payload: payload,
		Weight:  weight,
		Fee:     fee,
	})
	b.height++
	return nonce
}

// FailSubmissions makes the next `count` submissions fail with err.
func (b *Backend) FailSubmissions(count int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
	b.submitErrCount = count
}

func (b *Backend) ensureOutbound(lane core.LaneID) *outboundLane {
	if _, ok := b.outbound[lane]; !ok {
		b.outbound[lane] = &outboundLane{}
	}
	return b.outbound[lane]
}

func (b *Backend) ensureInbound(lane core.LaneID) *inboundLane {
	if _, ok := b.inbound[lane]; !ok {
		b.inbound[lane] = &inboundLane{}
	}
	return b.inbound[lane]
}

func (b *Backend) takeSubmitErr() error {
	if b.submitErrCount > 0 {
		b.submitErrCount--
		return b.submitErr
	}
	return nil
}

func (b *Backend) headerAt(height uint64) *core.Header {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], height)
	hash := sha256.Sum256(append([]byte(b.chainID), seed[:]...))
	return &core.Header{
		Height:    height,
		Hash:      hash[:],
		Timestamp: b.genesis.Add(time.Duration(height) * 6 * time.Second),
	}
}

func proofData(lane core.LaneID, span core.NonceRange, height uint64) []byte {
	var buf [20]byte
	copy(buf[:4], lane[:])
	binary.BigEndian.PutUint64(buf[4:12], span.End)
	binary.BigEndian.PutUint64(buf[12:20], height)
	sum := sha256.Sum256(buf[:])
	return sum[:]
}

// Chain implements core.Chain on a Backend.
type Chain struct {
	backend *Backend
	signer  string
}

var _ core.Chain = (*Chain)(nil)

func NewChain(backend *Backend, signer string) *Chain {
	return &Chain{backend: backend, signer: signer}
}

func (c *Chain) Backend() *Backend {
	return c.backend
}

func (c *Chain) ChainID() string {
	return c.backend.chainID
}

func (c *Chain) GetAddress() (string, error) {
	return c.signer, nil
}

func (c *Chain) Init(homePath string, timeout time.Duration, debug bool) error {
	return nil
}

func (c *Chain) SetupForRelay(ctx context.Context) error {
	return nil
}

func (c *Chain) QueryOutboundMessages(ctx core.QueryContext, lane core.LaneID, fromNonce uint64, limit uint64) (core.MessageList, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.ensureOutbound(lane)
	var ret core.MessageList
	for _, msg := range out.messages {
		if msg.Nonce <= fromNonce {
			continue
		}
		ret = append(ret, msg)
		if uint64(len(ret)) >= limit {
			break
		}
	}
	return ret, nil
}

func (c *Chain) QueryOutboundLaneState(ctx core.QueryContext, lane core.LaneID) (*core.OutboundLaneState, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.ensureOutbound(lane)
	return &core.OutboundLaneState{
		LatestGeneratedNonce: uint64(len(out.messages)),
		LatestReceivedNonce:  out.received,
		OldestUnprunedNonce:  1,
	}, nil
}

func (c *Chain) QueryInboundLaneState(ctx core.QueryContext, lane core.LaneID) (*core.InboundLaneState, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	in := b.ensureInbound(lane)
	return &core.InboundLaneState{
		LastDeliveredNonce: in.delivered,
		LastConfirmedNonce: in.confirmed,
	}, nil
}

func (c *Chain) QueryDeliveryProof(ctx core.QueryContext, lane core.LaneID, span core.NonceRange, height uint64) (*core.DeliveryProof, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	in := b.ensureInbound(lane)
	if span.End > in.delivered {
		return nil, core.InvalidResponseError(errors.Newf("nonce %d not delivered yet", span.End))
	}
	return &core.DeliveryProof{
		Lane:         lane,
		Range:        span,
		HeaderHeight: height,
		Data:         proofData(lane, span, height),
	}, nil
}

func (c *Chain) SubmitMessages(ctx context.Context, lane core.LaneID, msgs core.MessageList) (core.MsgID, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeSubmitErr(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, core.InvalidResponseError(errors.New("empty delivery batch"))
	}
	in := b.ensureInbound(lane)
	for _, msg := range msgs {
		// re-delivery of an already received nonce is a no-op
		if msg.Nonce == in.delivered+1 {
			in.delivered = msg.Nonce
		} else if msg.Nonce > in.delivered+1 {
			return nil, core.InvalidResponseError(errors.Newf("nonce gap: got %d, expected %d", msg.Nonce, in.delivered+1))
		}
	}
	b.height++
	return &MsgID{Height: b.height}, nil
}

func (c *Chain) SubmitConfirmation(ctx context.Context, receipt *core.ConfirmationReceipt) (core.MsgID, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeSubmitErr(); err != nil {
		return nil, err
	}
	out := b.ensureOutbound(receipt.Lane)
	if receipt.Nonce > uint64(len(out.messages)) {
		return nil, core.InvalidResponseError(errors.Newf("confirmation for unemitted nonce %d", receipt.Nonce))
	}
	if receipt.Nonce > out.received {
		out.received = receipt.Nonce
	}
	b.height++
	return &MsgID{Height: b.height}, nil
}

func (c *Chain) GetMsgResult(ctx context.Context, id core.MsgID) (core.MsgResult, error) {
	mid, ok := id.(*MsgID)
	if !ok {
		return nil, core.InvalidResponseError(errors.Newf("unexpected MsgID type %T", id))
	}
	return &MsgResult{Height: mid.Height}, nil
}

// MsgID identifies a submitted mock transaction by its inclusion height.
type MsgID struct {
	Height uint64
}

func (*MsgID) IsMsgID() {}

func (id *MsgID) String() string {
	return fmt.Sprintf("mock(height=%d)", id.Height)
}

type MsgResult struct {
	Height uint64
}

func (r *MsgResult) BlockHeight() uint64 {
	return r.Height
}

func (r *MsgResult) Status() (bool, string) {
	return true, ""
}
