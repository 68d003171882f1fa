package core

// BatchConfig bounds a single delivery transaction. MaxBatchMessages and
// MaxBatchWeight are ignored if they are set to zero.
type BatchConfig struct {
	MaxBatchMessages uint64 `json:"max_batch_messages" yaml:"max_batch_messages"`
	MaxBatchWeight   uint64 `json:"max_batch_weight" yaml:"max_batch_weight"`
}

func (bc BatchConfig) IsMaxBatch(msgLen, weight uint64) bool {
	return (bc.MaxBatchMessages != 0 && msgLen > bc.MaxBatchMessages) ||
		(bc.MaxBatchWeight != 0 && weight > bc.MaxBatchWeight)
}

// Split cuts the message list into delivery batches that each respect the
// configured limits. Nonce order is preserved within and across batches.
// A single message heavier than MaxBatchWeight still forms its own batch.
func (bc BatchConfig) Split(msgs MessageList) []MessageList {
	var (
		batches []MessageList
		batch   MessageList
		msgLen  uint64
		weight  uint64
	)
	for _, msg := range msgs {
		msgLen++
		weight += msg.Weight
		if len(batch) > 0 && bc.IsMaxBatch(msgLen, weight) {
			batches = append(batches, batch)
			batch = nil
			msgLen, weight = 1, msg.Weight
		}
		batch = append(batch, msg)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}
