package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/pkg/config"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
)

var (
	// ErrCacheDisabled is returned when mirror operations are attempted but the mirror is disabled
	ErrCacheDisabled = fmt.Errorf("cache is disabled")
)

// Mirror is an optional Redis copy of resolved entries, namespaced by session
// id so that dashboard replicas sharing a session id share resolutions. The
// namespace is removed when the session ends.
type Mirror struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewMirror connects to Redis. It returns a nil mirror when Redis is not
// configured; every method of a nil mirror is a no-op or ErrCacheDisabled.
func NewMirror(cfg *config.RedisConfig, sessionID string) (*Mirror, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis mirror disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.WithComponent("cache-mirror").With(zap.String("session_id", sessionID))
	logger.Info("Redis connection established")

	return &Mirror{
		client:    client,
		namespace: "yta:" + sessionID + ":",
		ttl:       cfg.TTL,
		logger:    logger,
	}, nil
}

func (m *Mirror) namespaceKey(resource, key string) string {
	return m.namespace + resource + ":" + key
}

// GetMany returns the raw mirrored payloads found for keys
func (m *Mirror) GetMany(ctx context.Context, resource string, keys []string) (map[string][]byte, error) {
	if m == nil || m.client == nil {
		return nil, ErrCacheDisabled
	}
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	nsKeys := make([]string, len(keys))
	for i, k := range keys {
		nsKeys[i] = m.namespaceKey(resource, k)
	}

	values, err := m.client.MGet(ctx, nsKeys...).Result()
	if err != nil {
		return nil, err
	}

	found := make(map[string][]byte, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			found[keys[i]] = []byte(s)
		}
	}
	return found, nil
}

// SetMany stores raw payloads with the mirror TTL
func (m *Mirror) SetMany(ctx context.Context, resource string, entries map[string][]byte) error {
	if m == nil || m.client == nil {
		return ErrCacheDisabled
	}
	if len(entries) == 0 {
		return nil
	}

	pipe := m.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, m.namespaceKey(resource, k), v, m.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Clear deletes every key of the session namespace
func (m *Mirror) Clear(ctx context.Context) error {
	if m == nil || m.client == nil {
		return ErrCacheDisabled
	}

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := m.client.Scan(ctx, cursor, m.namespace+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan mirror namespace: %w", err)
		}
		if len(keys) > 0 {
			if err := m.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete mirror keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.logger.Info("Mirror namespace cleared", zap.Int("keys", deleted))
	return nil
}

// Close closes the Redis connection
func (m *Mirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Health checks Redis health
func (m *Mirror) Health(ctx context.Context) error {
	if m == nil || m.client == nil {
		return ErrCacheDisabled
	}
	return m.client.Ping(ctx).Err()
}

// Mirrored wraps a batch fetch so that keys already mirrored in Redis are
// served from there and fresh results are written back. Mirror errors only
// degrade to a plain fetch.
func Mirrored[V any](m *Mirror, resource string, fetch func(context.Context, []string) (map[string]V, error)) func(context.Context, []string) (map[string]V, error) {
	if m == nil {
		return fetch
	}

	return func(ctx context.Context, keys []string) (map[string]V, error) {
		result := make(map[string]V, len(keys))

		raw, err := m.GetMany(ctx, resource, keys)
		if err != nil {
			m.logger.Debug("Mirror read failed", zap.String("resource", resource), zap.Error(err))
		}
		for k, payload := range raw {
			var v V
			if err := json.Unmarshal(payload, &v); err != nil {
				continue
			}
			result[k] = v
		}

		remaining := make([]string, 0, len(keys)-len(result))
		for _, k := range keys {
			if _, ok := result[k]; !ok {
				remaining = append(remaining, k)
			}
		}
		if len(remaining) == 0 {
			return result, nil
		}

		fetched, err := fetch(ctx, remaining)
		if err != nil {
			return nil, err
		}

		toMirror := make(map[string][]byte, len(fetched))
		for k, v := range fetched {
			result[k] = v
			if payload, err := json.Marshal(v); err == nil {
				toMirror[k] = payload
			}
		}
		if err := m.SetMany(ctx, resource, toMirror); err != nil {
			m.logger.Debug("Mirror write failed", zap.String("resource", resource), zap.Error(err))
		}

		return result, nil
	}
}
