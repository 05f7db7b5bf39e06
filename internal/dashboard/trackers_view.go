package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/loader"
	"github.com/jackdevtech455/youtube-analytics/internal/models"
)

const noTrackersMessage = "No trackers yet."

// TrackerRow is one tracker ready for display
type TrackerRow struct {
	ID       int64              `json:"id"`
	Type     models.TrackerType `json:"type"`
	Active   bool               `json:"active"`
	Title    string             `json:"title"`
	Subtitle string             `json:"subtitle,omitempty"`
	Summary  string             `json:"summary"`
}

// TrackersState is a snapshot of the trackers list view
type TrackersState struct {
	Phase   Phase        `json:"phase"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Rows    []TrackerRow `json:"rows"`
}

// TrackersView lists trackers and creates new ones
type TrackersView struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	list    *loader.List[models.Tracker]
	wg      sync.WaitGroup
	logger  *zap.Logger

	mu        sync.Mutex
	createErr error
}

// OpenTrackers creates the trackers list view
func (s *Session) OpenTrackers() *TrackersView {
	ctx, cancel := context.WithCancel(s.ctx)
	v := &TrackersView{
		session: s,
		ctx:     ctx,
		cancel:  cancel,
		logger:  s.logger.With(zap.String("view", "trackers")),
	}

	v.list = loader.NewList("trackers", s.api.ListTrackers)
	v.list.OnLoaded(v.resolveChannels)
	return v
}

// Refresh reloads the tracker list
func (v *TrackersView) Refresh() error {
	v.setCreateErr(nil)
	err := v.list.Refresh(v.ctx)
	if errors.Is(err, loader.ErrStaleRefresh) {
		return nil
	}
	return err
}

func (v *TrackersView) resolveChannels(trackers []models.Tracker) {
	ids := models.TrackerChannelIDs(trackers)
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.session.ResolveChannels(v.ctx, ids, nil)
	}()
}

// Create validates the payload, submits it and reloads the list. Validation
// and server errors are returned and shown by State.
func (v *TrackersView) Create(payload models.TrackerCreate) (*models.Tracker, error) {
	v.setCreateErr(nil)

	payload = payload.Normalize()
	if err := payload.Validate(); err != nil {
		v.setCreateErr(err)
		return nil, err
	}

	created, err := v.session.api.CreateTracker(v.ctx, payload)
	if err != nil {
		v.setCreateErr(err)
		return nil, err
	}
	v.logger.Info("Tracker created", zap.Int64("tracker_id", created.ID), zap.String("type", string(created.Type)))

	if err := v.Refresh(); err != nil {
		v.logger.Warn("Failed to reload trackers after create", zap.Error(err))
	}
	return created, nil
}

func (v *TrackersView) setCreateErr(err error) {
	v.mu.Lock()
	v.createErr = err
	v.mu.Unlock()
}

// Wait blocks until background metadata resolution is done
func (v *TrackersView) Wait() {
	v.wg.Wait()
}

// Close tears the view down
func (v *TrackersView) Close() {
	v.cancel()
}

// State renders the current view
func (v *TrackersView) State() TrackersState {
	ls := v.list.State()
	st := TrackersState{Phase: phaseOf(ls), Rows: []TrackerRow{}}

	v.mu.Lock()
	createErr := v.createErr
	v.mu.Unlock()

	switch {
	case createErr != nil:
		// the list stays visible under a failed create
		st.Phase = PhaseError
		st.Error = errorText(createErr, "Failed to create tracker")
	case st.Phase == PhaseError:
		st.Error = errorText(ls.Err, "Failed to load trackers")
		return st
	}

	switch st.Phase {
	case PhaseEmpty:
		st.Message = noTrackersMessage
	case PhaseReady, PhaseError:
		for _, t := range ls.Items {
			st.Rows = append(st.Rows, v.row(t))
		}
	}
	return st
}

func (v *TrackersView) row(t models.Tracker) TrackerRow {
	row := TrackerRow{
		ID:      t.ID,
		Type:    t.Type,
		Active:  t.IsActive,
		Summary: trackerSummary(t),
	}

	switch t.Type {
	case models.TrackerTypeChannel:
		row.Title = "channel"
		if t.ChannelID != nil && *t.ChannelID != "" {
			row.Title = *t.ChannelID
			if meta, ok := v.session.Channel(*t.ChannelID); ok {
				if meta.Handle != nil && *meta.Handle != "" {
					row.Title = *meta.Handle
				}
				if meta.Title != nil {
					row.Subtitle = *meta.Title
				}
			}
		}
	default:
		row.Title = "search"
		if t.SearchQuery != nil && strings.TrimSpace(*t.SearchQuery) != "" {
			row.Title = *t.SearchQuery
		}
		row.Subtitle = "Search tracker"
	}
	return row
}

func trackerSummary(t models.Tracker) string {
	s := fmt.Sprintf("top_n=%d, pool=%d, metric=%s", t.TopN, t.CandidatePoolSize, t.RankingMetric)
	if hours, ok := t.WindowHours(); ok {
		s += fmt.Sprintf(" (%dh)", hours)
	}
	return s
}
