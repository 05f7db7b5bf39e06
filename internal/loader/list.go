package loader

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
)

// ErrStaleRefresh is returned by a refresh whose response arrived after a
// newer refresh had already been applied
var ErrStaleRefresh = errors.New("stale refresh discarded")

// ListState is a consistent snapshot of a list loader
type ListState[T any] struct {
	Items   []T
	Err     error
	Loading bool
	Loaded  bool
}

// List holds one wholesale-replaced list, such as a tracker's ranked items
type List[T any] struct {
	name   string
	fetch  func(ctx context.Context) ([]T, error)
	logger *zap.Logger

	mu       sync.Mutex
	seq      uint64
	applied  uint64
	inflight int
	items    []T
	err      error
	loaded   bool
	onLoaded []func([]T)
}

// NewList creates a list loader
func NewList[T any](name string, fetch func(ctx context.Context) ([]T, error)) *List[T] {
	return &List[T]{
		name:   name,
		fetch:  fetch,
		logger: logging.WithComponent("list-loader").With(zap.String("resource", name)),
	}
}

// OnLoaded registers fn to run after every successfully applied refresh
func (l *List[T]) OnLoaded(fn func(items []T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLoaded = append(l.onLoaded, fn)
}

// Refresh fetches the list unconditionally and replaces the held items.
// Nothing is applied once ctx is done. A response older than the latest
// applied one is discarded with ErrStaleRefresh. On failure the previous
// items are kept and the error is recorded.
func (l *List[T]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.inflight++
	l.mu.Unlock()

	items, err := l.fetch(ctx)

	l.mu.Lock()
	l.inflight--

	if ctxErr := ctx.Err(); ctxErr != nil {
		l.mu.Unlock()
		return ctxErr
	}
	if seq < l.applied {
		l.mu.Unlock()
		l.logger.Debug("Discarding stale refresh", zap.Uint64("seq", seq))
		return ErrStaleRefresh
	}
	l.applied = seq

	if err != nil {
		l.err = err
		l.mu.Unlock()
		l.logger.Warn("List refresh failed", zap.Error(err))
		return err
	}

	if items == nil {
		items = []T{}
	}
	l.items = items
	l.err = nil
	l.loaded = true
	hooks := append(([]func([]T))(nil), l.onLoaded...)
	l.mu.Unlock()

	l.logger.Debug("List refreshed", zap.Int("items", len(items)))
	for _, fn := range hooks {
		fn(items)
	}
	return nil
}

// State returns a snapshot of items, last error and loading flags
func (l *List[T]) State() ListState[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListState[T]{
		Items:   append([]T(nil), l.items...),
		Err:     l.err,
		Loading: l.inflight > 0,
		Loaded:  l.loaded,
	}
}

// Items returns a copy of the held items
func (l *List[T]) Items() []T {
	return l.State().Items
}

// Err returns the error of the latest applied refresh
func (l *List[T]) Err() error {
	return l.State().Err
}

// Loading reports whether a refresh is in flight
func (l *List[T]) Loading() bool {
	return l.State().Loading
}

// PrefetchTop returns an OnLoaded hook that warms lazy for the first item
func PrefetchTop[T any, K comparable, V any](lazy *Lazy[K, V], key func(T) K) func([]T) {
	return func(items []T) {
		if len(items) == 0 {
			return
		}
		lazy.EnsureLoaded(key(items[0]))
	}
}
