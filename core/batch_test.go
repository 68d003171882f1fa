package core_test

import (
	"testing"

	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/stretchr/testify/assert"
)

func makeMessages(weights ...uint64) core.MessageList {
	var msgs core.MessageList
	for i, w := range weights {
		msgs = append(msgs, &core.Message{Nonce: uint64(i) + 1, Weight: w})
	}
	return msgs
}

func TestBatchSplit(t *testing.T) {
	cases := map[string]struct {
		config  core.BatchConfig
		msgs    core.MessageList
		batches [][]uint64 // expected nonces per batch
	}{
		"no limits, single batch": {
			core.BatchConfig{},
			makeMessages(1, 1, 1, 1, 1),
			[][]uint64{{1, 2, 3, 4, 5}},
		},
		"empty input": {
			core.BatchConfig{MaxBatchMessages: 2},
			nil,
			nil,
		},
		"message count limit": {
			core.BatchConfig{MaxBatchMessages: 2},
			makeMessages(1, 1, 1, 1, 1),
			[][]uint64{{1, 2}, {3, 4}, {5}},
		},
		"weight limit": {
			core.BatchConfig{MaxBatchWeight: 10},
			makeMessages(4, 4, 4, 4),
			[][]uint64{{1, 2}, {3, 4}},
		},
		"oversized message forms its own batch": {
			core.BatchConfig{MaxBatchWeight: 10},
			makeMessages(4, 25, 4),
			[][]uint64{{1}, {2}, {3}},
		},
		"both limits": {
			core.BatchConfig{MaxBatchMessages: 3, MaxBatchWeight: 5},
			makeMessages(1, 1, 1, 1, 4, 1),
			[][]uint64{{1, 2, 3}, {4, 5}, {6}},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var got [][]uint64
			for _, batch := range tc.config.Split(tc.msgs) {
				got = append(got, batch.Nonces())
			}
			assert.Equal(t, tc.batches, got)
		})
	}
}
