package dataset

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fonreal/internal/backoff"
	"fonreal/internal/cache"
	"fonreal/internal/core"
	"fonreal/internal/log"
)

const cacheKey = "dataset"

// Defaults for the loader's secondary timers.
const (
	DefaultFailureTTL   = time.Minute
	DefaultVersionCheck = 5 * time.Second
)

// Loader memoizes the table from a Source. Concurrent misses share one
// fetch. After the first success a failed refetch serves the previous
// table, and that table is cached for the failure TTL so an outage costs
// one retry cycle per failure TTL. When the Source is Versioned the cached
// table is dropped as soon as the reported version moves.
type Loader struct {
	source Source
	cache  *cache.LRUCache[*core.Table]
	group  singleflight.Group
	policy backoff.Policy
	logger *log.Logger
	now    func() time.Time

	failureTTL   time.Duration
	versionCheck time.Duration

	last atomic.Pointer[core.Table]

	mu        sync.Mutex
	version   string
	checkedAt time.Time
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithPolicy sets the retry policy.
func WithPolicy(p backoff.Policy) LoaderOption {
	return func(l *Loader) { l.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
		l.cache.WithClock(now)
	}
}

// WithFailureTTL sets how long the previous table is served after a failed
// refetch before the upstream is tried again.
func WithFailureTTL(d time.Duration) LoaderOption {
	return func(l *Loader) { l.failureTTL = d }
}

// WithVersionCheck sets how often a Versioned source is asked for its
// version. Zero disables the check.
func WithVersionCheck(d time.Duration) LoaderOption {
	return func(l *Loader) { l.versionCheck = d }
}

// NewLoader caches source for ttl.
func NewLoader(source Source, ttl time.Duration, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:       source,
		cache:        cache.NewLRUCache[*core.Table](1, ttl),
		policy:       backoff.DefaultPolicy,
		now:          time.Now,
		failureTTL:   DefaultFailureTTL,
		versionCheck: DefaultVersionCheck,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.failureTTL <= 0 || l.failureTTL > ttl {
		l.failureTTL = ttl
	}
	if l.logger == nil {
		l.logger = log.Default(log.ComponentDataset)
	}
	return l
}

// Load returns the cached table, fetching it when missing, expired or
// superseded by a newer version of the source.
func (l *Loader) Load(ctx context.Context) (*core.Table, error) {
	l.checkVersion(ctx)
	if t, ok := l.cache.Get(cacheKey); ok {
		return t, nil
	}

	v, err, _ := l.group.Do(cacheKey, func() (any, error) {
		if t, ok := l.cache.Get(cacheKey); ok {
			return t, nil
		}
		t, err := l.fetch(ctx)
		if err == nil {
			return t, nil
		}
		prev := l.last.Load()
		if prev == nil {
			return nil, err
		}
		l.cache.SetWithTTL(cacheKey, prev, l.failureTTL)
		l.logger.WarnContext(ctx, "Dataset refresh failed, serving previous table",
			log.FieldSource, l.source.Name(), log.FieldError, err,
			"retry_in", l.failureTTL.String())
		return prev, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Table), nil
}

// checkVersion drops the cached table when a Versioned source reports a
// version other than the one last loaded. Calls are throttled to one per
// versionCheck.
func (l *Loader) checkVersion(ctx context.Context) {
	vs, ok := l.source.(Versioned)
	if !ok || l.versionCheck <= 0 || l.last.Load() == nil {
		return
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.checkedAt) < l.versionCheck {
		l.mu.Unlock()
		return
	}
	l.checkedAt = now
	loaded := l.version
	l.mu.Unlock()

	current, err := vs.Version(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "Dataset version check failed",
			log.FieldSource, l.source.Name(), log.FieldError, err)
		return
	}
	if current != loaded {
		l.logger.InfoContext(ctx, "Dataset version changed",
			log.FieldSource, l.source.Name(), "loaded_version", loaded, "current_version", current)
		l.cache.Delete(cacheKey)
	}
}

func (l *Loader) fetch(ctx context.Context) (*core.Table, error) {
	start := l.now()

	// The version is read before the rows so an import landing in between
	// is picked up by the next check.
	var version string
	if vs, ok := l.source.(Versioned); ok {
		v, err := vs.Version(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "Dataset version check failed",
				log.FieldSource, l.source.Name(), log.FieldError, err)
		}
		version = v
	}

	attempt := 0
	var table *core.Table
	err := backoff.Retry(ctx, l.policy, func(ctx context.Context) error {
		attempt++
		t, err := l.source.Fetch(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "Dataset fetch failed",
				log.FieldSource, l.source.Name(), log.FieldAttempt, attempt, log.FieldError, err)
			return err
		}
		table = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset from %s: %w", l.source.Name(), err)
	}

	l.cache.Set(cacheKey, table)
	l.last.Store(table)
	l.mu.Lock()
	l.version = version
	l.checkedAt = l.now()
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Dataset loaded", append(
		log.NewFields().WithDataset(l.source.Name(), table.Len()).ToSlice(),
		log.FieldDuration, l.now().Sub(start).Milliseconds())...)
	return table, nil
}

// Invalidate drops the cached table so the next Load refetches.
func (l *Loader) Invalidate() {
	l.cache.Delete(cacheKey)
}

// Loaded reports whether a table has been loaded at least once.
func (l *Loader) Loaded() bool {
	return l.last.Load() != nil
}

// Cache exposes the underlying cache for a cache.Manager.
func (l *Loader) Cache() cache.Cleaner {
	return l.cache
}
