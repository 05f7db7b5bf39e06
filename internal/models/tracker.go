package models

import (
	"strings"
	"time"
)

// TrackerType discriminates channel trackers from search trackers
type TrackerType string

const (
	TrackerTypeChannel TrackerType = "channel"
	TrackerTypeSearch  TrackerType = "search"
)

// RankingMetric is the server-side sort key of a tracker's top list
type RankingMetric string

const (
	MetricViews         RankingMetric = "views"
	MetricLikes         RankingMetric = "likes"
	MetricComments      RankingMetric = "comments"
	MetricViewsDelta    RankingMetric = "views_delta"
	MetricViewsVelocity RankingMetric = "views_velocity"
	MetricLikesDelta    RankingMetric = "likes_delta"
	MetricCommentsDelta RankingMetric = "comments_delta"
)

// RankingMetrics lists every metric accepted by the API
var RankingMetrics = []RankingMetric{
	MetricViews,
	MetricLikes,
	MetricComments,
	MetricViewsDelta,
	MetricViewsVelocity,
	MetricLikesDelta,
	MetricCommentsDelta,
}

// NeedsWindow reports whether the metric is a rate of change and therefore
// requires a ranking window
func (m RankingMetric) NeedsWindow() bool {
	s := string(m)
	return strings.Contains(s, "delta") || strings.Contains(s, "velocity")
}

// Tracker is a user-defined tracking configuration as returned by the API
type Tracker struct {
	ID                 int64         `json:"id"`
	OwnerUserID        int64         `json:"owner_user_id,omitempty"`
	Type               TrackerType   `json:"type"`
	ChannelID          *string       `json:"channel_id"`
	SearchQuery        *string       `json:"search_query"`
	TopN               int           `json:"top_n"`
	CandidatePoolSize  int           `json:"candidate_pool_size"`
	RankingMetric      RankingMetric `json:"ranking_metric"`
	RankingWindowHours *int          `json:"ranking_window_hours"`
	IsActive           bool          `json:"is_active"`
	CreatedAt          time.Time     `json:"created_at"`
}

// WindowHours returns the ranking window. Absolute metrics have no window
// whatever value is stored.
func (t Tracker) WindowHours() (int, bool) {
	if !t.RankingMetric.NeedsWindow() || t.RankingWindowHours == nil {
		return 0, false
	}
	return *t.RankingWindowHours, true
}

// TrackerChannelIDs returns the raw channel ids of channel-type trackers
func TrackerChannelIDs(trackers []Tracker) []string {
	ids := make([]string, 0, len(trackers))
	for _, t := range trackers {
		if t.Type == TrackerTypeChannel && t.ChannelID != nil {
			ids = append(ids, *t.ChannelID)
		}
	}
	return ids
}
