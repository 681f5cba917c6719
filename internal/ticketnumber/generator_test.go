package ticketnumber

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mirrors the database counter: one monotonic value per prefix and year.
type memStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *memStore) Next(_ context.Context, prefix string, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	key := fmt.Sprintf("%s-%d", prefix, year)
	m.counters[key]++
	return m.counters[key], nil
}

type failingStore struct{}

func (failingStore) Next(context.Context, string, int) (int64, error) {
	return 0, errors.New("boom")
}

func TestGeneratorSequencePerYear(t *testing.T) {
	g, err := NewGenerator("")
	require.NoError(t, err)
	ms := &memStore{}
	ctx := context.Background()

	a, _ := g.Next(ctx, ms, 2024)
	b, _ := g.Next(ctx, ms, 2024)
	c, _ := g.Next(ctx, ms, 2025)
	assert.Equal(t, "BRTS-2024-0001", a)
	assert.Equal(t, "BRTS-2024-0002", b)
	assert.Equal(t, "BRTS-2025-0001", c)
}

func TestGeneratorConcurrentUnique(t *testing.T) {
	g, err := NewGenerator("HD")
	require.NoError(t, err)
	ms := &memStore{}

	const n = 64
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := g.Next(context.Background(), ms, 2025)
			if err == nil {
				results <- num
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for num := range results {
		assert.False(t, seen[num], "duplicate %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestGeneratorStoreError(t *testing.T) {
	g, _ := NewGenerator("BRTS")
	_, err := g.Next(context.Background(), failingStore{}, 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewGeneratorRejectsBadPrefix(t *testing.T) {
	for _, p := range []string{"brts", "BR-TS", "1BRTS", "TOOLONGPREFIX"} {
		_, err := NewGenerator(p)
		assert.Error(t, err, p)
	}
}

func TestFormatWidensPastPadding(t *testing.T) {
	assert.Equal(t, "BRTS-2025-0042", Format("BRTS", 2025, 42))
	assert.Equal(t, "BRTS-2025-12345", Format("BRTS", 2025, 12345))
}

func TestFormatFitsColumn(t *testing.T) {
	n := Format("ABCDEFGHIJ", 9999, math.MaxInt64)
	assert.LessOrEqual(t, len(n), MaxLength)
}

func TestParse(t *testing.T) {
	n, err := Parse("BRTS-2025-0042")
	require.NoError(t, err)
	assert.Equal(t, Number{Prefix: "BRTS", Year: 2025, Sequence: 42}, n)

	n, err = Parse("BRTS-2025-10001")
	require.NoError(t, err)
	assert.EqualValues(t, 10001, n.Sequence)

	for _, bad := range []string{"", "BRTS-2025", "BRTS-25-0001", "BRTS-2025-01", "BRTS-2025-abcd", "BRTS-2025-0000"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
