package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// LaneID identifies a unidirectional message lane between two chains.
// It is an opaque 4-byte value, rendered as 0x-prefixed hex.
type LaneID [4]byte

func ParseLaneID(s string) (LaneID, error) {
	var lane LaneID
	s = strings.TrimPrefix(s, "0x")
	bz, err := hex.DecodeString(s)
	if err != nil {
		return lane, errors.Wrapf(err, "invalid lane id %q", s)
	}
	if len(bz) != len(lane) {
		return lane, errors.Newf("invalid lane id %q: expected %d bytes, got %d", s, len(lane), len(bz))
	}
	copy(lane[:], bz)
	return lane, nil
}

func (l LaneID) String() string {
	return "0x" + hex.EncodeToString(l[:])
}

func (l LaneID) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LaneID) UnmarshalText(text []byte) error {
	lane, err := ParseLaneID(string(text))
	if err != nil {
		return err
	}
	*l = lane
	return nil
}

// Message is a single message emitted on a lane by the source chain.
// Messages are immutable once emitted.
type Message struct {
	Lane    LaneID `json:"lane"`
	Nonce   uint64 `json:"nonce"`
	Payload []byte `json:"payload"`
	Weight  uint64 `json:"weight"`
	Fee     uint64 `json:"fee"`
}

// MessageList is a list of messages sorted by increasing nonce.
type MessageList []*Message

func (ms MessageList) Nonces() []uint64 {
	var nonces []uint64
	for _, m := range ms {
		nonces = append(nonces, m.Nonce)
	}
	return nonces
}

// Filter returns the messages with nonce strictly greater than `after`.
func (ms MessageList) Filter(after uint64) MessageList {
	var ret MessageList
	for _, m := range ms {
		if m.Nonce > after {
			ret = append(ret, m)
		}
	}
	return ret
}

func (ms MessageList) TotalWeight() uint64 {
	var w uint64
	for _, m := range ms {
		w += m.Weight
	}
	return w
}

// Header is a finalized block header of either chain.
type Header struct {
	Height    uint64    `json:"height"`
	Hash      []byte    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// NonceRange is an inclusive range of message nonces.
type NonceRange struct {
	Begin uint64 `json:"begin"`
	End   uint64 `json:"end"`
}

func (r NonceRange) Count() uint64 {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin + 1
}

func (r NonceRange) Contains(nonce uint64) bool {
	return r.Begin <= nonce && nonce <= r.End
}

// DeliveryProof proves that the messages in Range are included in the target
// chain state at the referenced finalized header.
type DeliveryProof struct {
	Lane         LaneID     `json:"lane"`
	Range        NonceRange `json:"range"`
	HeaderHeight uint64     `json:"header_height"`
	Data         []byte     `json:"data"`
}

// ConfirmationReceipt is sent back to the source chain to prove that
// messages up to Nonce were delivered.
type ConfirmationReceipt struct {
	Lane  LaneID `json:"lane"`
	Nonce uint64 `json:"nonce"`
	Proof []byte `json:"proof"`
}

// OutboundLaneState is the source chain's bookkeeping for a lane.
type OutboundLaneState struct {
	LatestGeneratedNonce uint64 `json:"latest_generated_nonce"`
	LatestReceivedNonce  uint64 `json:"latest_received_nonce"`
	OldestUnprunedNonce  uint64 `json:"oldest_unpruned_nonce"`
}

// InboundLaneState is the target chain's bookkeeping for a lane.
type InboundLaneState struct {
	LastDeliveredNonce uint64 `json:"last_delivered_nonce"`
	LastConfirmedNonce uint64 `json:"last_confirmed_nonce"`
}

// RelayState holds the relayer's per-lane cursors. Invariant:
// ConfirmedNonce <= DeliveredNonce <= the source chain's highest emitted
// nonce. The tracker enforces this on every mutation.
type RelayState struct {
	DeliveredNonce uint64      `json:"delivered_nonce"`
	ConfirmedNonce uint64      `json:"confirmed_nonce"`
	InFlight       *NonceRange `json:"in_flight,omitempty"`
}
