package rpc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
)

// Prover reads finality from the same node the Chain talks to and performs
// structural checks on delivery proofs. Cryptographic verification against a
// light client is delegated to the target chain's runtime on submission.
type Prover struct {
	chain *Chain
}

var _ core.Prover = (*Prover)(nil)

func NewProver(chain *Chain) *Prover {
	return &Prover{chain: chain}
}

func (p *Prover) GetLatestFinalizedHeader(ctx context.Context) (*core.Header, error) {
	var raw rpcHeader
	if err := p.chain.call(ctx, &raw, "lane_latestFinalizedHeader"); err != nil {
		return nil, err
	}
	header, err := raw.toHeader()
	if err != nil {
		return nil, core.InvalidResponseError(err)
	}
	return header, nil
}

func (p *Prover) VerifyDeliveryProof(proof *core.DeliveryProof, header *core.Header) error {
	if proof.HeaderHeight > header.Height {
		return core.InvalidResponseError(errors.Newf(
			"proof height %d is ahead of finalized height %d", proof.HeaderHeight, header.Height))
	}
	if proof.Range.Count() == 0 {
		return core.InvalidResponseError(errors.Newf(
			"proof covers empty nonce range %d..%d", proof.Range.Begin, proof.Range.End))
	}
	if len(proof.Data) == 0 {
		return core.InvalidResponseError(errors.New("proof data is empty"))
	}
	return nil
}
