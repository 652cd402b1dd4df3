package workers

import (
	"context"
	"sync"
)

// WorkerPool manages a pool of worker goroutines for parallel account scoring
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10 // Default to 10 workers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// NumWorkers returns the configured worker count
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// ComputeFunc scores a single account. A non-nil error marks the account
// as skipped in the batch result.
type ComputeFunc func(ctx context.Context, accountID string) error

// ComputeBatch scores multiple accounts in parallel using the worker pool
//
// This is the main entry point for bulk recomputation. It distributes
// account IDs across worker goroutines and collects per-account outcomes.
// When ctx is cancelled, accounts not yet started fail fast with ctx.Err()
// instead of being scored.
//
// Args:
//   - ctx: cancellation context for the whole batch
//   - accountIDs: accounts to score
//   - compute: scoring function invoked once per account
//
// Returns:
//   - Per-account errors (same order as input; nil means scored)
func (wp *WorkerPool) ComputeBatch(
	ctx context.Context,
	accountIDs []string,
	compute ComputeFunc,
) []error {
	numAccounts := len(accountIDs)
	if numAccounts == 0 {
		return []error{}
	}

	// Create channels for work distribution and result collection
	jobs := make(chan jobItem, numAccounts)
	results := make(chan resultItem, numAccounts)

	// Start workers
	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numAccounts < numActualWorkers {
		numActualWorkers = numAccounts // Don't spawn more workers than accounts
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, compute)
		}()
	}

	// Send jobs to workers
	for idx, accountID := range accountIDs {
		jobs <- jobItem{
			index:     idx,
			accountID: accountID,
		}
	}
	close(jobs)

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	resultSlice := make([]error, numAccounts)
	for result := range results {
		resultSlice[result.index] = result.err
	}

	return resultSlice
}

// jobItem represents a single scoring job
type jobItem struct {
	index     int
	accountID string
}

// resultItem represents the outcome of a scoring job
type resultItem struct {
	index int
	err   error
}

// worker is the worker goroutine that processes scoring jobs
func worker(
	ctx context.Context,
	jobs <-chan jobItem,
	results chan<- resultItem,
	compute ComputeFunc,
) {
	for job := range jobs {
		// Drain remaining jobs without scoring once the batch is cancelled
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, err: err}
			continue
		}

		results <- resultItem{
			index: job.index,
			err:   compute(ctx, job.accountID),
		}
	}
}
