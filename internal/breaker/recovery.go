package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RecoveryQueue is the core's own admission control for provider-recovery
// probes: at most MaxConcurrent probes in flight, one batch per
// InterBatchDelay, and at most one pending entry per symbol.
type RecoveryQueue struct {
	maxConcurrent  int
	interBatchGap  time.Duration

	mu      sync.Mutex
	pending map[string]func(context.Context) error
}

// NewRecoveryQueue builds a RecoveryQueue admitting at most maxConcurrent
// probes per batch, with interBatchGap between batches.
func NewRecoveryQueue(maxConcurrent int, interBatchGap time.Duration) *RecoveryQueue {
	return &RecoveryQueue{
		maxConcurrent: maxConcurrent,
		interBatchGap: interBatchGap,
		pending:       make(map[string]func(context.Context) error),
	}
}

// Enqueue registers a recovery probe for symbol, replacing any not-yet-run
// probe already queued for that symbol (at most one pending entry per symbol).
func (q *RecoveryQueue) Enqueue(symbol string, probe func(context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[symbol] = probe
}

// Run drains the queue in batches of maxConcurrent, sleeping interBatchGap
// between batches, until ctx is done or the queue is empty.
func (q *RecoveryQueue) Run(ctx context.Context) {
	for {
		batch := q.takeBatch()
		if len(batch) == 0 {
			return
		}
		var wg sync.WaitGroup
		for symbol, probe := range batch {
			wg.Add(1)
			go func(symbol string, probe func(context.Context) error) {
				defer wg.Done()
				if err := probe(ctx); err != nil {
					log.Warn().Str("symbol", symbol).Err(err).Msg("recovery probe failed")
				}
			}(symbol, probe)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.interBatchGap):
		}
	}
}

func (q *RecoveryQueue) takeBatch() map[string]func(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	batch := make(map[string]func(context.Context) error, q.maxConcurrent)
	for symbol, probe := range q.pending {
		batch[symbol] = probe
		delete(q.pending, symbol)
		if len(batch) >= q.maxConcurrent {
			break
		}
	}
	return batch
}
