package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fonreal/internal/amqp"
	"fonreal/internal/backoff"
	"fonreal/internal/core"
)

type fakeSource struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) (*core.Table, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return core.NewTable([]core.Record{{Normalization: "u", Item: "i", Jurisdiction: "j", Abbreviation: "J"}}), nil
}

type fakeStore struct {
	mu      sync.Mutex
	writes  int
	source  string
	lastLen int
	err     error
}

func (f *fakeStore) ReplaceSnapshot(_ context.Context, source string, t *core.Table, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.source = source
	f.lastLen = t.Len()
	return nil
}

func (f *fakeStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

var fast = backoff.Policy{Attempts: 2, Base: time.Millisecond, Max: time.Millisecond}

func TestImport(t *testing.T) {
	src, store := &fakeSource{}, &fakeStore{}
	n, err := NewImporter(src, store, fast, nil).Import(context.Background())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 || store.writes != 1 || store.source != "fake" {
		t.Errorf("n=%d store=%+v", n, store)
	}
}

func TestImportErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	if _, err := NewImporter(src, &fakeStore{}, fast, nil).Import(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if src.calls.Load() != 2 {
		t.Errorf("fetch attempts = %d, want 2", src.calls.Load())
	}

	storeErr := errors.New("disk full")
	_, err := NewImporter(&fakeSource{}, &fakeStore{err: storeErr}, fast, nil).Import(context.Background())
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want store error", err)
	}
}

type fakeConsumer struct {
	msgs []*amqp.RefreshMessage
	errs []error
}

func (f *fakeConsumer) ConsumeRefresh(ctx context.Context, h amqp.Handler) error {
	for _, m := range f.msgs {
		f.errs = append(f.errs, h(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunServesRefreshAndSchedule(t *testing.T) {
	store := &fakeStore{}
	w := NewImporter(&fakeSource{}, store, fast, nil)
	consumer := &fakeConsumer{msgs: []*amqp.RefreshMessage{amqp.NewRefreshMessage("manual")}}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, consumer, 10*time.Millisecond); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}

	// startup + refresh + at least one tick
	if got := store.Writes(); got < 3 {
		t.Errorf("writes = %d, want >= 3", got)
	}
	if len(consumer.errs) != 1 || consumer.errs[0] != nil {
		t.Errorf("handler errors = %v", consumer.errs)
	}
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	w := NewImporter(&fakeSource{err: backoff.Permanent(errors.New("bad"))}, &fakeStore{}, fast, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, nil, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
