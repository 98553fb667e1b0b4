package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fonreal/internal/backoff"
	"fonreal/internal/core"
)

type fakeSource struct {
	calls atomic.Int32
	fail  atomic.Int32 // number of leading calls that fail
	perm  bool
	delay time.Duration
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) (*core.Table, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if n <= f.fail.Load() {
		err := errors.New("upstream down")
		if f.perm {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return core.NewTable([]core.Record{{Normalization: "u", Item: "i", Jurisdiction: "j", Abbreviation: "J", Value: float64(n)}}), nil
}

var fastPolicy = backoff.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLoaderMemoizes(t *testing.T) {
	src := &fakeSource{}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy))

	a, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second Load returned a different table")
	}
	if src.calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", src.calls.Load())
	}
}

func TestLoaderTTLAndInvalidate(t *testing.T) {
	clk := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	l := NewLoader(src, time.Minute, WithPolicy(fastPolicy), WithClock(clk.Now))

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Minute)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("fetches after expiry = %d, want 2", src.calls.Load())
	}

	l.Invalidate()
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 3 {
		t.Errorf("fetches after invalidate = %d, want 3", src.calls.Load())
	}
}

func TestLoaderSharesInFlightFetch(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if src.calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", src.calls.Load())
	}
}

func TestLoaderRetries(t *testing.T) {
	src := &fakeSource{}
	src.fail.Store(2)
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy))

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.calls.Load() != 3 {
		t.Errorf("fetches = %d, want 3", src.calls.Load())
	}
}

func TestLoaderFailsWithoutPreviousTable(t *testing.T) {
	src := &fakeSource{perm: true}
	src.fail.Store(100)
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy))

	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if src.calls.Load() != 1 {
		t.Errorf("permanent error retried: %d calls", src.calls.Load())
	}
	if l.Loaded() {
		t.Error("Loaded should be false")
	}
}

func TestLoaderServesPreviousTableOnRefreshFailure(t *testing.T) {
	src := &fakeSource{}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy))

	first, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	src.fail.Store(100)
	l.Invalidate()

	got, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != first {
		t.Error("expected previous table")
	}
	if !l.Loaded() {
		t.Error("Loaded should be true")
	}
}

func TestLoaderCachesPreviousTableAfterFailure(t *testing.T) {
	clk := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy), WithClock(clk.Now), WithFailureTTL(time.Minute))

	first, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	src.fail.Store(1000)
	l.Invalidate()

	for i := 0; i < 5; i++ {
		got, err := l.Load(context.Background())
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("Load %d: expected previous table", i)
		}
	}
	// One initial fetch plus one retry cycle for the outage.
	if got, want := src.calls.Load(), int32(1+fastPolicy.Attempts); got != want {
		t.Errorf("fetches = %d, want %d", got, want)
	}

	clk.Advance(2 * time.Minute)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := src.calls.Load(), int32(1+2*fastPolicy.Attempts); got != want {
		t.Errorf("fetches after failure TTL = %d, want %d", got, want)
	}
}

func TestLoaderFailureTTLCappedByTTL(t *testing.T) {
	l := NewLoader(&fakeSource{}, time.Second, WithFailureTTL(time.Hour))
	if l.failureTTL != time.Second {
		t.Errorf("failureTTL = %v, want 1s", l.failureTTL)
	}
}

type versionedSource struct {
	fakeSource
	mu      sync.Mutex
	version string
	checks  int
}

func (v *versionedSource) Version(context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checks++
	return v.version, nil
}

func (v *versionedSource) setVersion(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = s
}

func TestLoaderRefetchesWhenVersionMoves(t *testing.T) {
	clk := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &versionedSource{version: "v1"}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy), WithClock(clk.Now), WithVersionCheck(5*time.Second))

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Second)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("unchanged version refetched: %d fetches", src.calls.Load())
	}

	src.setVersion("v2")
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 1 {
		t.Errorf("check should be throttled: %d fetches", src.calls.Load())
	}

	clk.Advance(10 * time.Second)
	got, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 2 || got.At(0).Value != 2 {
		t.Errorf("fetches = %d value = %v, want a refetch", src.calls.Load(), got.At(0).Value)
	}
}

func TestLoaderVersionCheckDisabled(t *testing.T) {
	clk := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &versionedSource{version: "v1"}
	l := NewLoader(src, time.Hour, WithPolicy(fastPolicy), WithClock(clk.Now), WithVersionCheck(0))

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.setVersion("v2")
	clk.Advance(time.Minute)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", src.calls.Load())
	}
}
