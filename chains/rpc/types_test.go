package rpc

import (
	"testing"

	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessageList(t *testing.T) {
	lane := core.LaneID{0, 0, 0, 1}

	msgs, err := toMessageList(lane, 3, []rpcMessage{
		{Nonce: 4, Payload: []byte{1}, Weight: 10, Fee: 1},
		{Nonce: 5, Payload: []byte{2}, Weight: 20, Fee: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, msgs.Nonces())
	assert.Equal(t, uint64(30), msgs.TotalWeight())
	assert.Equal(t, lane, msgs[0].Lane)

	// a gap in the queue means the node returned inconsistent data
	_, err = toMessageList(lane, 3, []rpcMessage{
		{Nonce: 4},
		{Nonce: 6},
	})
	assert.Error(t, err)

	// the first nonce must directly follow the cursor
	_, err = toMessageList(lane, 3, []rpcMessage{
		{Nonce: 5},
	})
	assert.Error(t, err)
}

func TestHeaderConversion(t *testing.T) {
	h := rpcHeader{Height: 42, Hash: []byte{0xab, 0xcd}, Timestamp: 1700000000}
	header, err := h.toHeader()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), header.Height)
	assert.Equal(t, int64(1700000000), header.Timestamp.Unix())

	_, err = (&rpcHeader{Height: 42}).toHeader()
	assert.Error(t, err, "header without hash is invalid")
}

func TestChainConfigValidate(t *testing.T) {
	valid := ChainConfig{Type: "rpc", ChainID: "testchain", Host: "localhost", SignerKeyHex: "ab"}
	assert.NoError(t, valid.Validate())

	cases := map[string]ChainConfig{
		"missing chain id": {Type: "rpc", Host: "localhost", SignerKeyHex: "ab"},
		"missing endpoint": {Type: "rpc", ChainID: "testchain", SignerKeyHex: "ab"},
		"missing signer":   {Type: "rpc", ChainID: "testchain", Host: "localhost"},
		"conflicting signer sources": {
			Type: "rpc", ChainID: "testchain", Host: "localhost",
			SignerKeyHex: "ab", SignerKeyFile: "key.txt",
		},
		"port out of range": {
			Type: "rpc", ChainID: "testchain", Host: "localhost",
			Port: 70000, SignerKeyHex: "ab",
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestChainConfigEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:8645", ChainConfig{Host: "localhost"}.endpoint())
	assert.Equal(t, "http://node0:9944", ChainConfig{Host: "node0", Port: 9944}.endpoint())
	assert.Equal(t, "ws://node0:9944", ChainConfig{Endpoint: "ws://node0:9944", Host: "ignored"}.endpoint())
}
