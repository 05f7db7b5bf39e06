package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func TestRankingMetric_NeedsWindow(t *testing.T) {
	want := map[RankingMetric]bool{
		MetricViews:         false,
		MetricLikes:         false,
		MetricComments:      false,
		MetricViewsDelta:    true,
		MetricViewsVelocity: true,
		MetricLikesDelta:    true,
		MetricCommentsDelta: true,
	}
	for _, m := range RankingMetrics {
		assert.Equal(t, want[m], m.NeedsWindow(), string(m))
	}
}

func TestTracker_WindowHours(t *testing.T) {
	absolute := Tracker{RankingMetric: MetricViews, RankingWindowHours: intPtr(24)}
	_, ok := absolute.WindowHours()
	assert.False(t, ok, "absolute metrics ignore any stored window")

	delta := Tracker{RankingMetric: MetricViewsDelta, RankingWindowHours: intPtr(168)}
	hours, ok := delta.WindowHours()
	assert.True(t, ok)
	assert.Equal(t, 168, hours)

	missing := Tracker{RankingMetric: MetricViewsVelocity}
	_, ok = missing.WindowHours()
	assert.False(t, ok)
}

func TestTrackerChannelIDs(t *testing.T) {
	trackers := []Tracker{
		{ID: 1, Type: TrackerTypeChannel, ChannelID: strPtr("UC1")},
		{ID: 2, Type: TrackerTypeSearch, SearchQuery: strPtr("van build")},
		{ID: 3, Type: TrackerTypeChannel},
		{ID: 4, Type: TrackerTypeChannel, ChannelID: strPtr("UC2")},
	}
	assert.Equal(t, []string{"UC1", "UC2"}, TrackerChannelIDs(trackers))
}

func TestTrackerCreate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload func() TrackerCreate
		wantErr string
	}{
		{
			name: "valid channel tracker",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeChannel)
				p.ChannelID = "  @handle "
				return p
			},
		},
		{
			name: "valid search tracker with window",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "van build timelapse"
				p.RankingMetric = MetricViewsVelocity
				p.RankingWindowHours = intPtr(24)
				return p
			},
		},
		{
			name: "channel tracker without channel",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeChannel)
				p.ChannelID = "   "
				p.SearchQuery = "ignored"
				return p
			},
			wantErr: "channel_id is required for channel trackers",
		},
		{
			name: "search tracker without query",
			payload: func() TrackerCreate {
				return NewTrackerCreate(TrackerTypeSearch)
			},
			wantErr: "search_query is required for search trackers",
		},
		{
			name: "pool smaller than top n",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "q"
				p.TopN = 150
				p.CandidatePoolSize = 100
				return p
			},
			wantErr: "candidate_pool_size must be at least top_n",
		},
		{
			name: "unknown type",
			payload: func() TrackerCreate {
				p := NewTrackerCreate("playlist")
				return p
			},
			wantErr: "type must be one of channel|search",
		},
		{
			name: "window out of range",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "q"
				p.RankingMetric = MetricLikesDelta
				p.RankingWindowHours = intPtr(0)
				return p
			},
			wantErr: "ranking_window_hours must be at least 1",
		},
		{
			name: "delta metric without window",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "q"
				p.RankingMetric = MetricViewsDelta
				p.RankingWindowHours = nil
				return p
			},
			wantErr: "ranking_window_hours is required for views_delta",
		},
		{
			name: "velocity metric keeps default window",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "q"
				p.RankingMetric = MetricViewsVelocity
				return p
			},
		},
		{
			name: "absolute metric needs no window",
			payload: func() TrackerCreate {
				p := NewTrackerCreate(TrackerTypeSearch)
				p.SearchQuery = "q"
				p.RankingWindowHours = nil
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload().Normalize().Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTrackerCreate_Normalize(t *testing.T) {
	p := NewTrackerCreate(TrackerTypeChannel)
	p.ChannelID = " UC123 "
	p.SearchQuery = "leftover"
	p.RankingWindowHours = intPtr(24)

	n := p.Normalize()
	assert.Equal(t, "UC123", n.ChannelID)
	assert.Empty(t, n.SearchQuery)
	assert.Nil(t, n.RankingWindowHours, "absolute metric drops the window")

	p.RankingMetric = MetricViewsDelta
	assert.Equal(t, intPtr(24), p.Normalize().RankingWindowHours)
}

func TestVideoTopItem_Helpers(t *testing.T) {
	item := VideoTopItem{VideoID: "abc123", Score: 1234.5678}
	assert.Equal(t, "1234.57", item.FormattedScore())
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", item.WatchURL())

	items := []VideoTopItem{
		{VideoID: "V1", ChannelID: strPtr("C1")},
		{VideoID: "V2"},
		{VideoID: "V3", ChannelID: strPtr("C2")},
	}
	assert.Equal(t, []string{"C1", "", "C2"}, ChannelIDs(items))
}

func TestObservedPoints(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []TimeSeriesPoint{
		{CapturedAt: t0, Value: int64Ptr(10)},
		{CapturedAt: t0.Add(time.Hour)},
		{CapturedAt: t0.Add(2 * time.Hour), Value: int64Ptr(0)},
	}

	observed := ObservedPoints(points)
	require.Len(t, observed, 2)
	assert.Equal(t, t0, observed[0].CapturedAt)
	assert.Equal(t, int64(0), *observed[1].Value, "zero is an observation, not an absence")
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in       int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1.0K"},
		{15_240, "15.2K"},
		{2_500_000, "2.50M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatCompact(tt.in))
	}
}
