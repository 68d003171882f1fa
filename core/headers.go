package core

import (
	"context"

	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// SyncHeaders caches the latest finalized headers of both chains and can
// be kept reasonably up to date.
type SyncHeaders interface {
	// Updates updates the headers on both chains
	Updates(ctx context.Context, src, dst *ProvableChain) error

	// GetLatestFinalizedHeader returns the latest finalized header of the chain
	GetLatestFinalizedHeader(chainID string) *Header
}

type syncHeaders struct {
	headers map[string]*Header
}

var _ SyncHeaders = (*syncHeaders)(nil)

// NewSyncHeaders returns a new SyncHeaders instance
func NewSyncHeaders(ctx context.Context, src, dst *ProvableChain) (SyncHeaders, error) {
	sh := &syncHeaders{headers: map[string]*Header{}}
	if err := sh.Updates(ctx, src, dst); err != nil {
		return nil, err
	}
	return sh, nil
}

func (sh *syncHeaders) Updates(ctx context.Context, src, dst *ProvableChain) error {
	var (
		eg                 = new(errgroup.Group)
		srcHeader, dstHeader *Header
	)
	eg.Go(func() error {
		var err error
		srcHeader, err = src.GetLatestFinalizedHeader(ctx)
		return err
	})
	eg.Go(func() error {
		var err error
		dstHeader, err = dst.GetLatestFinalizedHeader(ctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	sh.headers[src.ChainID()] = srcHeader
	sh.headers[dst.ChainID()] = dstHeader

	telemetry.ProcessedBlockHeightGauge.Set(int64(srcHeader.Height), AttributeKeyChainID.String(src.ChainID()))
	telemetry.ProcessedBlockHeightGauge.Set(int64(dstHeader.Height), AttributeKeyChainID.String(dst.ChainID()))

	return nil
}

func (sh *syncHeaders) GetLatestFinalizedHeader(chainID string) *Header {
	return sh.headers[chainID]
}
