package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance the sampling clock without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// -----------------------------------------------------------------------------

func TestPutFirstTickInitializesSeries(t *testing.T) {
	s := NewQuoteStore(20, time.Minute)

	s.Put("AAPL", 190.5, 100, 1700000000000)

	quote, ok := s.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 190.5, quote.Price)
	assert.Equal(t, int64(100), quote.Volume)

	assert.Equal(t, []float64{190.5}, s.Sparkline("AAPL"))
}

func TestPutWithinIntervalUpdatesLastSampleInPlace(t *testing.T) {
	clock := newFakeClock()
	s := NewQuoteStore(20, time.Minute)
	s.SetClock(clock.Now)

	s.Put("AAPL", 190.0, 100, 1)
	clock.Advance(10 * time.Second)
	s.Put("AAPL", 191.0, 200, 2)
	clock.Advance(10 * time.Second)
	s.Put("AAPL", 192.0, 300, 3)

	// Three ticks inside one interval leave exactly one sample, holding the
	// latest price.
	assert.Equal(t, []float64{192.0}, s.Sparkline("AAPL"))

	quote, _ := s.Get("AAPL")
	assert.Equal(t, 192.0, quote.Price)
}

func TestPutAcrossIntervalAppendsSample(t *testing.T) {
	clock := newFakeClock()
	s := NewQuoteStore(20, time.Minute)
	s.SetClock(clock.Now)

	s.Put("AAPL", 190.0, 100, 1)
	clock.Advance(time.Minute)
	s.Put("AAPL", 191.0, 200, 2)
	clock.Advance(time.Minute)
	s.Put("AAPL", 192.0, 300, 3)

	assert.Equal(t, []float64{190.0, 191.0, 192.0}, s.Sparkline("AAPL"))
}

func TestSparklineCapacityEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	s := NewQuoteStore(20, time.Minute)
	s.SetClock(clock.Now)

	for i := 0; i < 50; i++ {
		s.Put("AAPL", float64(i), 0, int64(i))
		clock.Advance(time.Minute)
	}

	series := s.Sparkline("AAPL")
	require.Len(t, series, 20)
	assert.Equal(t, 30.0, series[0])
	assert.Equal(t, 49.0, series[19])
}

func TestSeedAppendsPrevCloseBeforePrice(t *testing.T) {
	s := NewQuoteStore(20, time.Minute)

	s.Seed("MSFT", 420.0, 415.0, 1000, 1700000000000)

	assert.Equal(t, []float64{415.0, 420.0}, s.Sparkline("MSFT"))

	quote, ok := s.Get("MSFT")
	require.True(t, ok)
	assert.Equal(t, 420.0, quote.Price)
}

func TestSeedWithoutPrevClose(t *testing.T) {
	s := NewQuoteStore(20, time.Minute)

	s.Seed("MSFT", 420.0, 0, 1000, 1700000000000)

	assert.Equal(t, []float64{420.0}, s.Sparkline("MSFT"))
}

func TestSparklineReturnsSnapshotCopy(t *testing.T) {
	clock := newFakeClock()
	s := NewQuoteStore(20, time.Minute)
	s.SetClock(clock.Now)

	s.Put("AAPL", 190.0, 0, 1)
	series := s.Sparkline("AAPL")

	clock.Advance(time.Minute)
	s.Put("AAPL", 200.0, 0, 2)

	assert.Equal(t, []float64{190.0}, series)
}

func TestGetUnknownSymbol(t *testing.T) {
	s := NewQuoteStore(20, time.Minute)

	_, ok := s.Get("ZZZZ")
	assert.False(t, ok)
	assert.Empty(t, s.Sparkline("ZZZZ"))
}

func TestAllReturnsSnapshot(t *testing.T) {
	s := NewQuoteStore(20, time.Minute)
	s.Put("AAPL", 190.0, 0, 1)
	s.Put("MSFT", 420.0, 0, 2)

	all := s.All()
	require.Len(t, all, 2)

	// Mutating the returned map must not touch the store.
	delete(all, "AAPL")
	assert.Equal(t, 2, s.Len())
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := NewQuoteStore(20, time.Millisecond)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			symbol := fmt.Sprintf("SYM%d", i%5)
			s.Put(symbol, float64(i), int64(i), int64(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				symbol := fmt.Sprintf("SYM%d", i%5)
				if quote, ok := s.Get(symbol); ok {
					// The quote and its series are updated under one lock, so
					// a visible quote implies a non-empty series.
					series := s.Sparkline(symbol)
					assert.NotEmpty(t, series)
					assert.GreaterOrEqual(t, quote.Price, 0.0)
				}
				s.All()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}
