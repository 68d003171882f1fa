package core

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
)

// GetFinalizedMsgResult waits for the finalization of the message execution and then returns the result.
func GetFinalizedMsgResult(ctx context.Context, chain *ProvableChain, id MsgID, retryInterval time.Duration, maxRetry uint) (MsgResult, error) {
	var msgRes MsgResult

	if err := retry.Do(func() error {
		// query LFH for each retry because it can proceed.
		lfHeader, err := chain.GetLatestFinalizedHeader(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get latest finalized header")
		}

		// query MsgResult for each retry because it can be included in a different block because of reorg
		msgRes, err = chain.GetMsgResult(ctx, id)
		if err != nil {
			if IsRetriable(err) {
				return err
			}
			return retry.Unrecoverable(errors.Wrap(err, "failed to get message result"))
		} else if ok, failureReason := msgRes.Status(); !ok {
			return retry.Unrecoverable(errors.Newf("msg(id=%v) execution failed: %v", id, failureReason))
		}

		// check whether the block that includes the message has been finalized, or not
		if msgHeight, lfHeight := msgRes.BlockHeight(), lfHeader.Height; msgHeight > lfHeight {
			return errors.Newf("msg(id=%v) not finalized: msg.height(%v) > lfh.height(%v)", id, msgHeight, lfHeight)
		}

		return nil
	}, retry.Attempts(maxRetry), retry.Delay(retryInterval), retry.Context(ctx), rtyErr); err != nil {
		return nil, err
	}

	return msgRes, nil
}
