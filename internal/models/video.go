package models

import (
	"fmt"
	"net/url"
	"time"
)

// VideoTopItem is one row of a tracker's ranked list. List order as returned
// by the API is the rank order.
type VideoTopItem struct {
	VideoID            string     `json:"video_id"`
	Title              *string    `json:"title"`
	ChannelID          *string    `json:"channel_id"`
	PublishedAt        *time.Time `json:"published_at"`
	Score              float64    `json:"score"`
	LatestViewCount    *int64     `json:"latest_view_count"`
	LatestLikeCount    *int64     `json:"latest_like_count"`
	LatestCommentCount *int64     `json:"latest_comment_count"`
}

// FormattedScore renders the server score with two decimals
func (v VideoTopItem) FormattedScore() string {
	return fmt.Sprintf("%.2f", v.Score)
}

// WatchURL returns the public YouTube URL of the video
func (v VideoTopItem) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(v.VideoID)
}

// ChannelIDs returns the raw channel id of every item in rank order; missing
// ids become empty strings
func ChannelIDs(items []VideoTopItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.ChannelID != nil {
			ids[i] = *item.ChannelID
		}
	}
	return ids
}
