package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/cache"
	"github.com/jackdevtech455/youtube-analytics/internal/loader"
	"github.com/jackdevtech455/youtube-analytics/internal/models"
	"github.com/jackdevtech455/youtube-analytics/pkg/config"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
)

// API is the part of the tracker API the dashboard consumes
type API interface {
	ListTrackers(ctx context.Context) ([]models.Tracker, error)
	CreateTracker(ctx context.Context, payload models.TrackerCreate) (*models.Tracker, error)
	TopVideos(ctx context.Context, trackerID int64) ([]models.VideoTopItem, error)
	ChannelsMeta(ctx context.Context, ids []string) (map[string]models.ChannelMeta, error)
	Timeseries(ctx context.Context, videoID, metric string, days int) ([]models.TimeSeriesPoint, error)
}

const channelResource = "channel_meta"

// Session owns the caches shared by every view of one dashboard session.
// Closing it cancels outstanding fetches and drops the Redis mirror.
type Session struct {
	ID string

	api    API
	ctx    context.Context
	cancel context.CancelFunc

	channels *loader.Batch[string, models.ChannelMeta]
	series   *loader.Lazy[string, []models.TimeSeriesPoint]
	mirror   *cache.Mirror

	metric string
	days   int
	logger *zap.Logger
}

// NewSession creates a session. A Redis mirror is attached when configured;
// failing to reach Redis only disables the mirror.
func NewSession(api API, cfg *config.Config) *Session {
	id := cfg.Cache.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	logger := logging.WithSession(id).With(zap.String("component", "dashboard"))

	mirror, err := cache.NewMirror(&cfg.Redis, id)
	if err != nil {
		logger.Warn("Redis mirror unavailable, continuing without it", zap.Error(err))
		mirror = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		api:    api,
		ctx:    ctx,
		cancel: cancel,
		mirror: mirror,
		metric: cfg.Cache.TimeseriesMetric,
		days:   cfg.Cache.TimeseriesDays,
		logger: logger,
	}

	fetchChannels := cache.Mirrored(mirror, channelResource, api.ChannelsMeta)
	s.channels = loader.NewBatch(ctx, channelResource, cache.NewStore[string, models.ChannelMeta](),
		loader.FetchFunc[string, models.ChannelMeta](fetchChannels), cfg.Cache.ChannelChunkSize)
	s.series = loader.NewLazy(ctx, "timeseries", s.fetchSeries)

	logger.Info("Dashboard session started")
	return s
}

func (s *Session) fetchSeries(ctx context.Context, videoID string) ([]models.TimeSeriesPoint, error) {
	return s.api.Timeseries(ctx, videoID, s.metric, s.days)
}

// Context is cancelled when the session closes
func (s *Session) Context() context.Context {
	return s.ctx
}

// ResolveChannels fetches metadata for the channel ids that are not known
// yet. Failures are logged and otherwise ignored; callers fall back to the
// raw id.
func (s *Session) ResolveChannels(ctx context.Context, ids []string, onMerge func(map[string]models.ChannelMeta)) {
	keys := cache.NormalizeKeys(ids)
	if len(keys) == 0 {
		return
	}
	if err := s.channels.Resolve(ctx, keys, onMerge); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Channel metadata unavailable", zap.Int("channels", len(keys)), zap.Error(err))
	}
}

// Channel returns cached metadata for a channel id
func (s *Session) Channel(id string) (models.ChannelMeta, bool) {
	return s.channels.Store().Get(id)
}

// ChannelsLoading reports whether any channel metadata is in flight
func (s *Session) ChannelsLoading() bool {
	return s.channels.Store().Loading()
}

// EnsureSeries loads the time series of a video once per session
func (s *Session) EnsureSeries(videoID string) <-chan struct{} {
	return s.series.EnsureLoaded(videoID)
}

// RefreshSeries reloads the time series of a video on user request
func (s *Session) RefreshSeries(videoID string) <-chan struct{} {
	return s.series.Refresh(videoID)
}

// Series returns the cached time series state of a video
func (s *Session) Series(videoID string) loader.Entry[[]models.TimeSeriesPoint] {
	return s.series.Entry(videoID)
}

// Close cancels every fetch started by the session and clears its mirror
func (s *Session) Close() {
	s.cancel()
	defer s.logger.Info("Dashboard session closed")

	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.mirror.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear Redis mirror", zap.Error(err))
	}
	if err := s.mirror.Close(); err != nil {
		s.logger.Warn("Failed to close Redis mirror", zap.Error(err))
	}
}
