package core

import (
	"github.com/cockroachdb/errors"
)

// The relayer classifies every failure into one of four kinds. Only
// connection errors may be retried; everything else is surfaced.
var (
	// ErrConnection marks a transient transport failure (dial, I/O,
	// timeout, dropped subscription). Retriable.
	ErrConnection = errors.New("connection error")

	// ErrInvalidResponse marks malformed or undecodable chain data.
	// Non-retriable; the lane is stopped and reported upstream.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrStateInvariant marks a violated cursor ordering. It indicates a
	// logic bug in the relayer, never a chain condition.
	ErrStateInvariant = errors.New("relay state invariant violated")

	// ErrConfiguration marks an invalid startup configuration.
	ErrConfiguration = errors.New("configuration error")
)

func ConnectionError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrConnection)
}

func InvalidResponseError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrInvalidResponse)
}

// IsRetriable reports whether retrying the failed operation may succeed.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrConnection)
}
