package document

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/helixir/citation-tracker-service/internal/papersources"
)

type fakeSearcher struct {
	mu         sync.Mutex
	candidates []papersources.Candidate
	err        error
	queries    []papersources.SearchQuery

	// block, when set, makes Search wait for release or ctx.
	block    chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSearcher) Search(ctx context.Context, q papersources.SearchQuery) ([]papersources.Candidate, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if n <= prev || f.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.candidates, f.err
}

func (f *fakeSearcher) calls() []papersources.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]papersources.SearchQuery(nil), f.queries...)
}

type fakeLanding struct {
	url   string
	ok    bool
	calls atomic.Int32
}

func (f *fakeLanding) PDFURL(context.Context, string) (string, bool) {
	f.calls.Add(1)
	return f.url, f.ok
}
