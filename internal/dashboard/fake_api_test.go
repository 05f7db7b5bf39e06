package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackdevtech455/youtube-analytics/internal/models"
	"github.com/jackdevtech455/youtube-analytics/pkg/config"
)

type fakeAPI struct {
	mu sync.Mutex

	trackers   []models.Tracker
	top        map[int64][]models.VideoTopItem
	topErr     error
	metas      map[string]models.ChannelMeta
	metaErr    error
	metaGate   chan struct{}
	series     map[string][]models.TimeSeriesPoint
	seriesErr  error
	seriesGate chan struct{}
	createErr  error

	listCalls    int
	createCalls  int
	topCalls     int
	metaCalls    [][]string
	seriesCalls  map[string]int
	seriesParams []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		top:         make(map[int64][]models.VideoTopItem),
		metas:       make(map[string]models.ChannelMeta),
		series:      make(map[string][]models.TimeSeriesPoint),
		seriesCalls: make(map[string]int),
	}
}

func (f *fakeAPI) ListTrackers(context.Context) ([]models.Tracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]models.Tracker(nil), f.trackers...), nil
}

func (f *fakeAPI) CreateTracker(_ context.Context, p models.TrackerCreate) (*models.Tracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	t := models.Tracker{
		ID:                int64(len(f.trackers) + 1),
		Type:              p.Type,
		TopN:              p.TopN,
		CandidatePoolSize: p.CandidatePoolSize,
		RankingMetric:     p.RankingMetric,
		IsActive:          true,
	}
	if p.ChannelID != "" {
		id := p.ChannelID
		t.ChannelID = &id
	}
	if p.SearchQuery != "" {
		q := p.SearchQuery
		t.SearchQuery = &q
	}
	f.trackers = append(f.trackers, t)
	return &t, nil
}

func (f *fakeAPI) TopVideos(_ context.Context, trackerID int64) ([]models.VideoTopItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topCalls++
	if f.topErr != nil {
		return nil, f.topErr
	}
	return append([]models.VideoTopItem(nil), f.top[trackerID]...), nil
}

func (f *fakeAPI) ChannelsMeta(ctx context.Context, ids []string) (map[string]models.ChannelMeta, error) {
	f.mu.Lock()
	f.metaCalls = append(f.metaCalls, append([]string(nil), ids...))
	gate, err := f.metaGate, f.metaErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.ChannelMeta)
	for _, id := range ids {
		if m, ok := f.metas[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeAPI) Timeseries(ctx context.Context, videoID, metric string, days int) ([]models.TimeSeriesPoint, error) {
	f.mu.Lock()
	f.seriesCalls[videoID]++
	f.seriesParams = append(f.seriesParams, metric)
	gate, err := f.seriesGate, f.seriesErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.series[videoID], nil
}

func (f *fakeAPI) metaCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.metaCalls)
}

func (f *fakeAPI) seriesCallCount(videoID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seriesCalls[videoID]
}

func testConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			SessionID:        "test-session",
			ChannelChunkSize: 40,
			TimeseriesMetric: "view_count",
			TimeseriesDays:   7,
		},
	}
}

func newTestSession(t *testing.T, api API) *Session {
	t.Helper()
	s := NewSession(api, testConfig())
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func strPtr(v string) *string { return &v }
func int64Ptr(v int64) *int64 { return &v }

func item(videoID, channelID string, score float64) models.VideoTopItem {
	it := models.VideoTopItem{VideoID: videoID, Score: score}
	if channelID != "" {
		it.ChannelID = strPtr(channelID)
	}
	return it
}
