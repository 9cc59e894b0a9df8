package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// runStoreContract exercises behavior every Store backend must share.
// newStore returns an empty, migrated store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("unknown paper is not found", func(t *testing.T) {
		s := newStore(t)

		status, err := s.StatusOf(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusNotFound, status)

		_, err = s.Entry(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("first failure starts retry count at one", func(t *testing.T) {
		s := newStore(t)

		entry, err := s.RecordFailure(ctx, "p1", "PDF download failed", 3)
		require.NoError(t, err)
		assert.Equal(t, 1, entry.RetryCount)
		assert.Equal(t, domain.LedgerStatusPending, entry.Status)
		require.NotNil(t, entry.ErrorMessage)
		assert.Equal(t, "PDF download failed", *entry.ErrorMessage)

		stored, err := s.Entry(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Equal(t, domain.LedgerStatusPending, stored.Status)
		assert.False(t, stored.ProcessedAt.IsZero())
	})

	t.Run("failed exactly when retries reach the bound", func(t *testing.T) {
		s := newStore(t)
		const maxRetries = 4

		for i := 1; i <= maxRetries; i++ {
			entry, err := s.RecordFailure(ctx, "p1", fmt.Sprintf("attempt %d", i), maxRetries)
			require.NoError(t, err)
			assert.Equal(t, i, entry.RetryCount)

			want := domain.LedgerStatusPending
			if i == maxRetries {
				want = domain.LedgerStatusFailed
			}
			assert.Equal(t, want, entry.Status, "after failure %d", i)

			status, err := s.StatusOf(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, want, status)
		}

		stored, err := s.Entry(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "attempt 4", *stored.ErrorMessage)
	})

	t.Run("max retries of one fails immediately", func(t *testing.T) {
		s := newStore(t)

		entry, err := s.RecordFailure(ctx, "p1", "boom", 1)
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusFailed, entry.Status)
	})

	t.Run("mark processed", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkProcessed(ctx, "p1"))
		require.NoError(t, s.MarkProcessed(ctx, "p1"))

		status, err := s.StatusOf(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusProcessed, status)
	})

	t.Run("processed after pending keeps retry count", func(t *testing.T) {
		s := newStore(t)

		_, err := s.RecordFailure(ctx, "p1", "transient", 3)
		require.NoError(t, err)
		require.NoError(t, s.MarkProcessed(ctx, "p1"))

		entry, err := s.Entry(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusProcessed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
	})

	t.Run("filter keeps pending and unknown in order", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkProcessed(ctx, "done"))
		_, err := s.RecordFailure(ctx, "dead", "x", 1)
		require.NoError(t, err)
		_, err = s.RecordFailure(ctx, "retry", "x", 3)
		require.NoError(t, err)

		got, err := s.FilterUnprocessed(ctx, []string{"new2", "done", "retry", "dead", "new1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"new2", "retry", "new1"}, got)

		got, err = s.FilterUnprocessed(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("filter spans chunks", func(t *testing.T) {
		s := newStore(t)

		ids := make([]string, filterChunkSize*2+7)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%04d", i)
		}
		require.NoError(t, s.MarkProcessed(ctx, ids[3]))
		require.NoError(t, s.MarkProcessed(ctx, ids[filterChunkSize+1]))
		require.NoError(t, s.MarkProcessed(ctx, ids[len(ids)-1]))

		got, err := s.FilterUnprocessed(ctx, ids)
		require.NoError(t, err)
		assert.Len(t, got, len(ids)-3)
		assert.NotContains(t, got, ids[filterChunkSize+1])
		assert.Equal(t, ids[0], got[0])
	})

	t.Run("second pass over the same ids is empty", func(t *testing.T) {
		s := newStore(t)
		ids := []string{"a", "b", "c"}

		first, err := s.FilterUnprocessed(ctx, ids)
		require.NoError(t, err)
		require.Equal(t, ids, first)

		require.NoError(t, s.MarkProcessed(ctx, "a"))
		require.NoError(t, s.MarkProcessed(ctx, "b"))
		_, err = s.RecordFailure(ctx, "c", "x", 1)
		require.NoError(t, err)

		second, err := s.FilterUnprocessed(ctx, ids)
		require.NoError(t, err)
		assert.Empty(t, second)
	})

	t.Run("stats and reset", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkProcessed(ctx, "a"))
		require.NoError(t, s.MarkProcessed(ctx, "b"))
		_, err := s.RecordFailure(ctx, "c", "x", 3)
		require.NoError(t, err)
		_, err = s.RecordFailure(ctx, "d", "x", 1)
		require.NoError(t, err)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{Processed: 2, Pending: 1, Failed: 1, Total: 4}, stats)

		existed, err := s.Reset(ctx, "d")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.Reset(ctx, "d")
		require.NoError(t, err)
		assert.False(t, existed)

		status, err := s.StatusOf(ctx, "d")
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusNotFound, status)
	})

	t.Run("concurrent writers on distinct keys", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("p%d", i)
				if i%2 == 0 {
					assert.NoError(t, s.MarkProcessed(ctx, id))
					return
				}
				_, err := s.RecordFailure(ctx, id, "x", 3)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, stats.Processed)
		assert.Equal(t, 10, stats.Pending)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
