// Package memory batches completed translations into the history store.
package memory

import "time"

// History batcher defaults
const (
	DefaultBatcherMaxSize    = 50
	DefaultBatcherFlushDelay = 2 * time.Second
)
