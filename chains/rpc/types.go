package rpc

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// Wire types of the lane RPC API. Quantities are hex-encoded, byte strings
// are 0x-prefixed hex.

type rpcHeader struct {
	Height    hexutil.Uint64 `json:"height"`
	Hash      hexutil.Bytes  `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (h *rpcHeader) toHeader() (*core.Header, error) {
	if len(h.Hash) == 0 {
		return nil, errors.New("header hash is empty")
	}
	return &core.Header{
		Height:    uint64(h.Height),
		Hash:      h.Hash,
		Timestamp: time.Unix(int64(h.Timestamp), 0).UTC(),
	}, nil
}

type rpcMessage struct {
	Nonce   hexutil.Uint64 `json:"nonce"`
	Payload hexutil.Bytes  `json:"payload"`
	Weight  hexutil.Uint64 `json:"weight"`
	Fee     hexutil.Uint64 `json:"fee"`
}

func toMessageList(lane core.LaneID, fromNonce uint64, msgs []rpcMessage) (core.MessageList, error) {
	var ret core.MessageList
	prev := fromNonce
	for _, m := range msgs {
		if uint64(m.Nonce) != prev+1 {
			return nil, errors.Newf("outbound queue is not contiguous: got nonce %d after %d", m.Nonce, prev)
		}
		prev = uint64(m.Nonce)
		ret = append(ret, &core.Message{
			Lane:    lane,
			Nonce:   uint64(m.Nonce),
			Payload: m.Payload,
			Weight:  uint64(m.Weight),
			Fee:     uint64(m.Fee),
		})
	}
	return ret, nil
}

type rpcOutboundLaneState struct {
	LatestGeneratedNonce hexutil.Uint64 `json:"latestGeneratedNonce"`
	LatestReceivedNonce  hexutil.Uint64 `json:"latestReceivedNonce"`
	OldestUnprunedNonce  hexutil.Uint64 `json:"oldestUnprunedNonce"`
}

type rpcInboundLaneState struct {
	LastDeliveredNonce hexutil.Uint64 `json:"lastDeliveredNonce"`
	LastConfirmedNonce hexutil.Uint64 `json:"lastConfirmedNonce"`
}

type rpcDeliveryProof struct {
	BeginNonce   hexutil.Uint64 `json:"beginNonce"`
	EndNonce     hexutil.Uint64 `json:"endNonce"`
	HeaderHeight hexutil.Uint64 `json:"headerHeight"`
	Data         hexutil.Bytes  `json:"data"`
}

type rpcMsgResult struct {
	Included      bool           `json:"included"`
	BlockHeight   hexutil.Uint64 `json:"blockHeight"`
	Success       bool           `json:"success"`
	FailureReason string         `json:"failureReason,omitempty"`
}
