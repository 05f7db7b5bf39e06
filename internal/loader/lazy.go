package loader

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
	"github.com/jackdevtech455/youtube-analytics/pkg/telemetry"
)

// Status is the load state of one lazily fetched key
type Status int

const (
	// NotLoaded means no fetch was ever started for the key
	NotLoaded Status = iota
	// Loading means a fetch is in flight
	Loading
	// Loaded means the fetch succeeded; the value may be empty
	Loaded
	// Failed means the fetch failed; the cached value is empty
	Failed
)

func (s Status) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Resolved reports whether the key needs no further automatic fetch
func (s Status) Resolved() bool {
	return s == Loaded || s == Failed
}

// Entry is a snapshot of one key
type Entry[V any] struct {
	Status Status
	Value  V
	Err    error
}

type lazyEntry[V any] struct {
	Entry[V]
	done chan struct{}
}

// Lazy loads expensive per-key resources on demand and keeps at most one
// result per key for the lifetime of its base context
type Lazy[K comparable, V any] struct {
	name   string
	base   context.Context
	fetch  func(ctx context.Context, key K) (V, error)
	logger *zap.Logger

	mu      sync.Mutex
	entries map[K]*lazyEntry[V]
}

// NewLazy creates a lazy loader whose fetches run on base
func NewLazy[K comparable, V any](base context.Context, name string, fetch func(ctx context.Context, key K) (V, error)) *Lazy[K, V] {
	return &Lazy[K, V]{
		name:    name,
		base:    base,
		fetch:   fetch,
		logger:  logging.WithComponent("lazy-loader").With(zap.String("resource", name)),
		entries: make(map[K]*lazyEntry[V]),
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// EnsureLoaded starts a fetch for key unless it is already resolved or
// loading. The returned channel is closed once the key is resolved.
func (l *Lazy[K, V]) EnsureLoaded(key K) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		if e.Status == Loading {
			return e.done
		}
		return closedChan
	}
	return l.startLocked(key)
}

// Refresh refetches key even when it is resolved. A load already in flight
// is joined rather than duplicated.
func (l *Lazy[K, V]) Refresh(key K) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok && e.Status == Loading {
		return e.done
	}
	return l.startLocked(key)
}

func (l *Lazy[K, V]) startLocked(key K) <-chan struct{} {
	e := &lazyEntry[V]{done: make(chan struct{})}
	if prev, ok := l.entries[key]; ok {
		e.Value = prev.Value
	}
	e.Status = Loading
	l.entries[key] = e

	go l.load(key, e)
	return e.done
}

func (l *Lazy[K, V]) load(key K, e *lazyEntry[V]) {
	defer close(e.done)

	ctx, span := telemetry.StartSpan(l.base, "lazy."+l.name)
	defer span.End()
	span.SetAttributes(attribute.String("key", fmt.Sprint(key)))

	v, err := l.fetch(ctx, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		var empty V
		e.Status = Failed
		e.Value = empty
		e.Err = err
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("Lazy fetch failed", zap.Any("key", key), zap.Error(err))
		return
	}

	e.Status = Loaded
	e.Value = v
	e.Err = nil
}

// Entry returns the current state of key
func (l *Lazy[K, V]) Entry(key K) Entry[V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return Entry[V]{Status: NotLoaded}
	}
	return e.Entry
}

// Value returns the cached value of key and whether it is resolved
func (l *Lazy[K, V]) Value(key K) (V, bool) {
	e := l.Entry(key)
	return e.Value, e.Status.Resolved()
}

// Loading reports whether key has a fetch in flight
func (l *Lazy[K, V]) Loading(key K) bool {
	return l.Entry(key).Status == Loading
}
