package chain

import "errors"

// ErrNegativeSeek is returned when a Seek would move the stream pointer
// before the start of the chain.
var ErrNegativeSeek = errors.New("chain: seek before start of stream")

// ErrTooLarge is returned when a requested size exceeds what SectorID
// arithmetic can address.
var ErrTooLarge = errors.New("chain: requested size is too large")
