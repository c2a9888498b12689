package workcode_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

func fixedClock() time.Time {
	return time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
}

func newAllocator(t *testing.T, history workcode.History, entries map[string]int) *workcode.Allocator {
	t.Helper()
	alloc, err := workcode.NewAllocator(history, workcode.Options{
		Country:     "DM",
		Registrant:  "A0D",
		Directory:   workcode.NewDirectory(entries),
		FallbackID:  99,
		MaxAttempts: 64,
		Clock:       fixedClock,
	})
	require.NoError(t, err)
	return alloc
}

func TestAllocateParityScenario(t *testing.T) {
	ctx := context.Background()
	alloc := newAllocator(t, newMemoryHistory(), map[string]int{"JCro": 1})

	first, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "JCro", WorkTitle: "One", Original: true})
	require.NoError(t, err)
	assert.Equal(t, "DM-A0D-25-01-001", first.Identifier.String())
	assert.False(t, first.Degraded)

	second, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "JCro", WorkTitle: "Two", Original: true})
	require.NoError(t, err)
	assert.Equal(t, "DM-A0D-25-01-003", second.Identifier.String())

	remix, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "jcro", WorkTitle: "Two (Remix)", Original: false})
	require.NoError(t, err)
	assert.Equal(t, "DM-A0D-25-01-004", remix.Identifier.String())
	assert.False(t, remix.Identifier.IsOriginal())

	third, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "JCro", WorkTitle: "Three", Original: true})
	require.NoError(t, err)
	assert.Equal(t, "DM-A0D-25-01-005", third.Identifier.String())
}

func TestAllocateSequencesStrictlyIncreaseWithParity(t *testing.T) {
	ctx := context.Background()
	alloc := newAllocator(t, newMemoryHistory(), nil)
	explicit := 7
	last := 0
	pattern := []bool{true, false, false, true, true, false, true}
	for _, original := range pattern {
		got, err := alloc.Allocate(ctx, workcode.Request{ContributorID: &explicit, Original: original})
		require.NoError(t, err)
		seq := got.Identifier.Sequence
		assert.Greater(t, seq, last)
		assert.Equal(t, original, seq%2 == 1, "sequence %d parity", seq)
		last = seq
	}
}

func TestAllocateRegistersNewContributorAboveStaticTable(t *testing.T) {
	ctx := context.Background()
	history := newMemoryHistory()
	alloc := newAllocator(t, history, map[string]int{"Janet Azzouz": 2, "Princess Trinidad": 4})

	got, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "New Artist", Original: true})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Identifier.ContributorID)

	again, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "NEW ARTIST", Original: true})
	require.NoError(t, err)
	assert.Equal(t, 5, again.Identifier.ContributorID)
	assert.Equal(t, 3, again.Identifier.Sequence)

	other, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "Another", Original: true})
	require.NoError(t, err)
	assert.Equal(t, 6, other.Identifier.ContributorID)
}

func TestAllocateFallsBackWhenContributorHistoryFails(t *testing.T) {
	ctx := context.Background()
	history := newMemoryHistory()
	history.failReads = errors.New("database is locked")
	alloc := newAllocator(t, history, nil)

	got, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "Unknown", Original: true})
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.NotEmpty(t, got.Reason)
	assert.Equal(t, "DM-A0D-25-99-001", got.Identifier.String())
}

func TestAllocateReportsDegradedWhenSequencesUnavailable(t *testing.T) {
	ctx := context.Background()
	history := newMemoryHistory()
	history.failSequences = errSequences
	alloc := newAllocator(t, history, map[string]int{"JCro": 1})

	_, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "JCro", Original: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrAllocationDegraded)
}

func TestAllocateRejectsBadExplicitContributor(t *testing.T) {
	alloc := newAllocator(t, newMemoryHistory(), nil)
	bad := 100
	_, err := alloc.Allocate(context.Background(), workcode.Request{ContributorID: &bad, Original: true})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = alloc.Allocate(context.Background(), workcode.Request{ContributorName: "  ", Original: true})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAllocateRejectsReservedFallbackContributor(t *testing.T) {
	history := newMemoryHistory()
	alloc := newAllocator(t, history, nil)
	reserved := 99
	_, err := alloc.Allocate(context.Background(), workcode.Request{ContributorID: &reserved, Original: true})
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, services.Reason(err), "reserved")

	seqs, err := history.Sequences(context.Background(), 99, 25)
	require.NoError(t, err)
	assert.Empty(t, seqs)
}

func TestAllocateConcurrentCallersNeverShareSequence(t *testing.T) {
	ctx := context.Background()
	alloc := newAllocator(t, newMemoryHistory(), map[string]int{"JCro": 1})

	const workers = 24
	results := make([]workcode.Identifier, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := alloc.Allocate(ctx, workcode.Request{ContributorName: "JCro", Original: i%2 == 0})
			if err != nil {
				t.Errorf("allocate %d: %v", i, err)
				return
			}
			results[i] = got.Identifier
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i, id := range results {
		require.False(t, seen[id.String()], "duplicate %s", id)
		seen[id.String()] = true
		assert.Equal(t, i%2 == 0, id.IsOriginal())
	}
}

func TestNextSequence(t *testing.T) {
	assert.Equal(t, 1, workcode.NextSequence(nil, true))
	assert.Equal(t, 2, workcode.NextSequence(nil, false))
	assert.Equal(t, 3, workcode.NextSequence([]int{1}, true))
	assert.Equal(t, 4, workcode.NextSequence([]int{1, 3}, false))
	assert.Equal(t, 5, workcode.NextSequence([]int{4, 1, 3}, true))
}

func TestNewAllocatorValidatesNamespace(t *testing.T) {
	_, err := workcode.NewAllocator(newMemoryHistory(), workcode.Options{Country: "DMA", Registrant: "A0D"})
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = workcode.NewAllocator(nil, workcode.Options{Country: "DM", Registrant: "A0D"})
	assert.Error(t, err)
}
