package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/loader"
	"github.com/jackdevtech455/youtube-analytics/internal/models"
)

const noVideosMessage = "No results yet. Wait for discovery + the next hourly snapshot."

// SeriesView is the chart data of one row
type SeriesView struct {
	Status string                   `json:"status"`
	Points []models.TimeSeriesPoint `json:"points"`
}

// VideoRow is one ranked item ready for display
type VideoRow struct {
	Rank        int        `json:"rank"`
	Top         bool       `json:"top"`
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	ChannelID   string     `json:"channel_id,omitempty"`
	Channel     string     `json:"channel"`
	Score       string     `json:"score"`
	Views       string     `json:"views"`
	Likes       string     `json:"likes"`
	Comments    string     `json:"comments"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	URL         string     `json:"url"`
	Expanded    bool       `json:"expanded"`
	Series      SeriesView `json:"series"`
}

// TrackerState is a snapshot of a tracker detail view
type TrackerState struct {
	TrackerID       int64      `json:"tracker_id"`
	Phase           Phase      `json:"phase"`
	Error           string     `json:"error,omitempty"`
	Message         string     `json:"message,omitempty"`
	ChannelsLoading bool       `json:"channels_loading"`
	Rows            []VideoRow `json:"rows"`
}

// TrackerView is the consumer of one tracker's ranked list. Its context
// ends with Close; shared session caches keep whatever was fetched.
type TrackerView struct {
	TrackerID int64

	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	list    *loader.List[models.VideoTopItem]
	wg      sync.WaitGroup
	logger  *zap.Logger

	mu       sync.Mutex
	expanded map[string]bool
	merged   int
}

// OpenTracker creates a detail view for a tracker. Nothing is fetched until
// Refresh.
func (s *Session) OpenTracker(trackerID int64) *TrackerView {
	ctx, cancel := context.WithCancel(s.ctx)
	v := &TrackerView{
		TrackerID: trackerID,
		session:   s,
		ctx:       ctx,
		cancel:    cancel,
		logger:    s.logger.With(zap.Int64("tracker_id", trackerID)),
		expanded:  make(map[string]bool),
	}

	v.list = loader.NewList("top_videos", func(ctx context.Context) ([]models.VideoTopItem, error) {
		return s.api.TopVideos(ctx, trackerID)
	})
	v.list.OnLoaded(loader.PrefetchTop(s.series, func(item models.VideoTopItem) string {
		return item.VideoID
	}))
	v.list.OnLoaded(v.resolveChannels)

	return v
}

// Refresh reloads the ranked list. The error is also kept for State.
func (v *TrackerView) Refresh() error {
	err := v.list.Refresh(v.ctx)
	if errors.Is(err, loader.ErrStaleRefresh) {
		return nil
	}
	return err
}

func (v *TrackerView) resolveChannels(items []models.VideoTopItem) {
	ids := models.ChannelIDs(items)
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.session.ResolveChannels(v.ctx, ids, v.channelsMerged)
	}()
}

func (v *TrackerView) channelsMerged(metas map[string]models.ChannelMeta) {
	v.mu.Lock()
	v.merged += len(metas)
	v.mu.Unlock()
	v.logger.Debug("Channel metadata merged", zap.Int("channels", len(metas)))
}

// Expand opens a row and loads its series if needed. The returned channel
// closes when the series is resolved.
func (v *TrackerView) Expand(videoID string) <-chan struct{} {
	v.mu.Lock()
	v.expanded[videoID] = true
	v.mu.Unlock()
	return v.session.EnsureSeries(videoID)
}

// Collapse closes a row
func (v *TrackerView) Collapse(videoID string) {
	v.mu.Lock()
	v.expanded[videoID] = false
	v.mu.Unlock()
}

// RefreshSeries reloads a row's series on explicit request
func (v *TrackerView) RefreshSeries(videoID string) <-chan struct{} {
	return v.session.RefreshSeries(videoID)
}

// Wait blocks until background metadata resolution started by refreshes is
// done
func (v *TrackerView) Wait() {
	v.wg.Wait()
}

// Close tears the view down. Fetches already on the wire still populate the
// session caches.
func (v *TrackerView) Close() {
	v.cancel()
}

// State renders the current view
func (v *TrackerView) State() TrackerState {
	ls := v.list.State()
	st := TrackerState{
		TrackerID:       v.TrackerID,
		Phase:           phaseOf(ls),
		ChannelsLoading: v.session.ChannelsLoading(),
		Rows:            []VideoRow{},
	}

	switch st.Phase {
	case PhaseError:
		st.Error = errorText(ls.Err, "Failed to load top videos")
		return st
	case PhaseEmpty:
		st.Message = noVideosMessage
		return st
	case PhaseLoading:
		return st
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i, item := range ls.Items {
		st.Rows = append(st.Rows, v.row(i, item))
	}
	return st
}

func (v *TrackerView) row(index int, item models.VideoTopItem) VideoRow {
	open, set := v.expanded[item.VideoID]
	if !set {
		open = index == 0
	}

	title := item.VideoID
	if item.Title != nil && *item.Title != "" {
		title = *item.Title
	}

	row := VideoRow{
		Rank:        index + 1,
		Top:         index == 0,
		VideoID:     item.VideoID,
		Title:       title,
		Channel:     "unknown channel",
		Score:       item.FormattedScore(),
		Views:       formatCount(item.LatestViewCount),
		Likes:       formatCount(item.LatestLikeCount),
		Comments:    formatCount(item.LatestCommentCount),
		PublishedAt: item.PublishedAt,
		URL:         item.WatchURL(),
		Expanded:    open,
	}

	if item.ChannelID != nil && *item.ChannelID != "" {
		row.ChannelID = *item.ChannelID
		meta, _ := v.session.Channel(row.ChannelID)
		row.Channel = channelLine(row.ChannelID, meta)
	}

	entry := v.session.Series(item.VideoID)
	row.Series = SeriesView{
		Status: entry.Status.String(),
		Points: models.ObservedPoints(entry.Value),
	}
	return row
}

// channelLine renders "handle • title", falling back to the raw id for a
// missing handle and dropping a missing title
func channelLine(id string, meta models.ChannelMeta) string {
	line := id
	if meta.Handle != nil && *meta.Handle != "" {
		line = *meta.Handle
	}
	if meta.Title != nil && *meta.Title != "" {
		line += " • " + *meta.Title
	}
	return line
}

// MergedChannels returns how many channel entries were merged while the
// view was open
func (v *TrackerView) MergedChannels() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.merged
}
