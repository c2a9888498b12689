package reference_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsheet/internal/reference"
	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

type memoryCounter struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{values: make(map[string]string)}
}

func (c *memoryCounter) ReferenceCount(_ context.Context, suffix, date string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	count := 0
	for _, scope := range c.values {
		if scope == suffix+"/"+date {
			count++
		}
	}
	return count, nil
}

func (c *memoryCounter) ReserveReference(_ context.Context, value, suffix, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[value]; ok {
		return services.ErrConflict
	}
	c.values[value] = suffix + "/" + date
	return nil
}

func clock() time.Time {
	return time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC)
}

func TestGenerateSequentialPerSuffixAndDate(t *testing.T) {
	ctx := context.Background()
	gen := reference.NewGenerator(newMemoryCounter(), reference.Options{DefaultSuffix: "DMA0D", Clock: clock})
	id := workcode.MustParse("DM-A0D-25-01-001")

	first := gen.Generate(ctx, id)
	second := gen.Generate(ctx, id)
	other := gen.Generate(ctx, workcode.MustParse("US-XYZ-25-01-001"))

	assert.Equal(t, "WM-SS-DMA0D-20250602-001", first.Value)
	assert.Equal(t, "WM-SS-DMA0D-20250602-002", second.Value)
	assert.Equal(t, "WM-SS-USXYZ-20250602-001", other.Value)
	assert.False(t, first.Degraded)
	assert.NoError(t, reference.Validate(first.Value))
}

func TestGenerateWithoutWorkCodeUsesDefaultSuffix(t *testing.T) {
	gen := reference.NewGenerator(newMemoryCounter(), reference.Options{DefaultSuffix: "dma0d", Clock: clock})
	got := gen.Generate(context.Background(), workcode.Identifier{})
	assert.Equal(t, "WM-SS-DMA0D-20250602-001", got.Value)
}

func TestGenerateFallsBackOnCounterFailure(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("database is locked")
	gen := reference.NewGenerator(counter, reference.Options{Clock: clock})

	got := gen.Generate(context.Background(), workcode.MustParse("DM-A0D-25-01-001"))
	assert.True(t, got.Degraded)
	assert.True(t, reference.IsFallback(got.Value))
	assert.Regexp(t, `^WM-SS-FALLBACK-\d{6}-[0-9A-F]{8}-001$`, got.Value)
	assert.Error(t, reference.Validate(got.Value))
}

func TestGenerateConcurrentCallersGetDistinctValues(t *testing.T) {
	ctx := context.Background()
	gen := reference.NewGenerator(newMemoryCounter(), reference.Options{Clock: clock, MaxAttempts: 64})
	id := workcode.MustParse("DM-A0D-25-01-001")

	const workers = 20
	values := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i] = gen.Generate(ctx, id).Value
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, v := range values {
		require.False(t, seen[v], "duplicate %s", v)
		require.False(t, reference.IsFallback(v))
		seen[v] = true
	}
}

func TestFallbackUsesLastSixEpochDigits(t *testing.T) {
	at := time.UnixMilli(1717320600123)
	assert.Regexp(t, `^WM-SS-FALLBACK-600123-[0-9A-F]{8}-001$`, reference.Fallback(at))
}

func TestFallbacksInSameMillisecondDiffer(t *testing.T) {
	at := time.UnixMilli(1717320600123)
	later := at.Add(1_000_000 * time.Millisecond)
	seen := map[string]bool{}
	for _, ts := range []time.Time{at, at, later} {
		v := reference.Fallback(ts)
		require.False(t, seen[v], "duplicate %s", v)
		seen[v] = true
	}
}
