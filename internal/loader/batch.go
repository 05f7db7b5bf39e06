package loader

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/cache"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
	"github.com/jackdevtech455/youtube-analytics/pkg/telemetry"
)

// FetchFunc performs one network request for a batch of keys. Keys the
// remote side cannot resolve are simply absent from the result.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Batch resolves keys into a shared store, one chunk at a time
type Batch[K comparable, V any] struct {
	name      string
	store     *cache.Store[K, V]
	fetch     FetchFunc[K, V]
	chunkSize int
	base      context.Context
	logger    *zap.Logger
}

// NewBatch creates a batch resolver. Network calls run on base, the owning
// session's context, so that they outlive the consumer that started them.
func NewBatch[K comparable, V any](base context.Context, name string, store *cache.Store[K, V], fetch FetchFunc[K, V], chunkSize int) *Batch[K, V] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Batch[K, V]{
		name:      name,
		store:     store,
		fetch:     fetch,
		chunkSize: chunkSize,
		base:      base,
		logger:    logging.WithComponent("batch-loader").With(zap.String("resource", name)),
	}
}

// Store returns the store the batch merges into
func (b *Batch[K, V]) Store() *cache.Store[K, V] {
	return b.store
}

// Resolve fetches every requested key that is neither cached nor in flight.
// Chunks are issued strictly in sequence and each result is merged before the
// next request starts. onMerge is called after every merge while ctx is
// still alive; once ctx is done no further chunk is issued, but a chunk
// already on the wire still lands in the store.
//
// The first failing chunk stops the run; keys already merged stay merged and
// the keys that were not resolved become eligible for a later call.
func (b *Batch[K, V]) Resolve(ctx context.Context, keys []K, onMerge func(map[K]V)) error {
	missing := b.store.Claim(keys)
	telemetry.RecordKeysSkipped(ctx, b.name, uniqueCount(keys)-len(missing))
	if len(missing) == 0 {
		return nil
	}

	chunks := Chunk(missing, b.chunkSize)
	b.logger.Debug("Resolving keys",
		zap.Int("requested", len(keys)),
		zap.Int("missing", len(missing)),
		zap.Int("chunks", len(chunks)))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			b.releaseFrom(chunks, i)
			return err
		}

		// keep the consumer's trace, drop its cancellation
		fetchCtx := trace.ContextWithSpan(b.base, trace.SpanFromContext(ctx))
		result, err := b.fetch(fetchCtx, chunk)
		if err != nil {
			b.releaseFrom(chunks, i)
			b.logger.Debug("Chunk fetch failed",
				zap.Int("chunk", i+1),
				zap.Int("keys", len(chunk)),
				zap.Error(err))
			return fmt.Errorf("%s chunk %d/%d: %w", b.name, i+1, len(chunks), err)
		}

		result = requested(chunk, result)
		added := b.store.Merge(result)
		b.store.Settle(absent(chunk, result))

		b.logger.Debug("Merged chunk",
			zap.Int("chunk", i+1),
			zap.Int("keys", len(chunk)),
			zap.Int("added", added))

		if ctx.Err() == nil && onMerge != nil {
			onMerge(result)
		}
	}

	return nil
}

func (b *Batch[K, V]) releaseFrom(chunks [][]K, from int) {
	for _, chunk := range chunks[from:] {
		b.store.Release(chunk)
	}
}

// requested drops entries for keys the chunk did not ask for, which may be
// in flight under another call
func requested[K comparable, V any](chunk []K, result map[K]V) map[K]V {
	out := make(map[K]V, len(chunk))
	for _, k := range chunk {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}
	return out
}

func absent[K comparable, V any](keys []K, result map[K]V) []K {
	var out []K
	for _, k := range keys {
		if _, ok := result[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func uniqueCount[K comparable](keys []K) int {
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	return len(seen)
}
