package document

import (
	"context"
	"errors"
	"sync"

	"github.com/helixir/citation-tracker-service/internal/papersources"
)

// ErrSearchClosed is returned by PooledSearch after Close.
var ErrSearchClosed = errors.New("document: search pool closed")

type searchJob struct {
	ctx    context.Context
	query  papersources.SearchQuery
	result chan searchResult
}

type searchResult struct {
	candidates []papersources.Candidate
	err        error
}

// PooledSearch runs a blocking Searcher on a fixed set of worker goroutines
// so that concurrent paper tasks share a bounded number of in-flight searches.
type PooledSearch struct {
	searcher  papersources.Searcher
	jobs      chan searchJob
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Compile-time check that PooledSearch implements DocumentSearch.
var _ DocumentSearch = (*PooledSearch)(nil)

// NewPooledSearch starts workers goroutines (at least one) serving searcher.
// Call Close to stop them.
func NewPooledSearch(searcher papersources.Searcher, workers int) *PooledSearch {
	if workers <= 0 {
		workers = 1
	}

	p := &PooledSearch{
		searcher: searcher,
		jobs:     make(chan searchJob),
		done:     make(chan struct{}),
	}

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// Search queues query on the pool and waits for its result or for ctx to end.
func (p *PooledSearch) Search(ctx context.Context, query papersources.SearchQuery) ([]papersources.Candidate, error) {
	job := searchJob{
		ctx:    ctx,
		query:  query,
		result: make(chan searchResult, 1),
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrSearchClosed
	}

	select {
	case r := <-job.result:
		return r.candidates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers and waits for in-flight searches to return.
func (p *PooledSearch) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *PooledSearch) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			if err := job.ctx.Err(); err != nil {
				job.result <- searchResult{err: err}
				continue
			}
			candidates, err := p.searcher.Search(job.ctx, job.query)
			job.result <- searchResult{candidates: candidates, err: err}
		}
	}
}
