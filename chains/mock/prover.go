package mock

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// Prover implements core.Prover on a Backend. Every finalized-header query
// advances the simulated head by one block so that awaited finality always
// makes progress.
type Prover struct {
	backend *Backend
}

var _ core.Prover = (*Prover)(nil)

func NewProver(backend *Backend) *Prover {
	return &Prover{backend: backend}
}

func (p *Prover) GetLatestFinalizedHeader(ctx context.Context) (*core.Header, error) {
	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.height++
	finalized := b.height - b.finalityDelay
	return b.headerAt(finalized), nil
}

func (p *Prover) VerifyDeliveryProof(proof *core.DeliveryProof, header *core.Header) error {
	if proof.HeaderHeight > header.Height {
		return errors.Newf("proof height %d is not finalized (finalized height %d)", proof.HeaderHeight, header.Height)
	}
	if !bytes.Equal(proof.Data, proofData(proof.Lane, proof.Range, proof.HeaderHeight)) {
		return errors.New("proof data mismatch")
	}
	return nil
}
