package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/dashboard"
	"github.com/jackdevtech455/youtube-analytics/internal/loader"
	"github.com/jackdevtech455/youtube-analytics/internal/models"
	"github.com/jackdevtech455/youtube-analytics/internal/trackerapi"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
)

// HealthChecker checks the upstream tracker API
type HealthChecker interface {
	Health(ctx context.Context) error
}

// DefaultMaxViews bounds the tracker detail views a router keeps open
const DefaultMaxViews = 32

// Router exposes dashboard views as JSON. Detail views stay open until a
// DELETE releases them or, past maxViews, the least recently used is closed.
type Router struct {
	session  *dashboard.Session
	health   HealthChecker
	logger   *zap.Logger
	maxViews int

	mu       sync.Mutex
	trackers *dashboard.TrackersView
	views    map[int64]*dashboard.TrackerView
	recent   []int64 // least recently used first
}

// NewRouter creates a router over one dashboard session
func NewRouter(session *dashboard.Session, health HealthChecker) *Router {
	return &Router{
		session:  session,
		health:   health,
		logger:   logging.WithComponent("dashboard-router"),
		maxViews: DefaultMaxViews,
		views:    make(map[int64]*dashboard.TrackerView),
	}
}

// SetupRoutes sets up all routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.GET("/trackers", r.listTrackers)
	api.POST("/trackers", r.createTracker)
	api.POST("/trackers/refresh", r.refreshTrackers)
	api.GET("/trackers/:id", r.getTracker)
	api.POST("/trackers/:id/refresh", r.refreshTracker)
	api.DELETE("/trackers/:id", r.closeTracker)
	api.POST("/trackers/:id/videos/:videoID/expand", r.expandVideo)
	api.POST("/trackers/:id/videos/:videoID/collapse", r.collapseVideo)
	api.GET("/videos/:videoID/timeseries", r.getTimeseries)
}

// Close tears down every open view
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trackers != nil {
		r.trackers.Close()
		r.trackers = nil
	}
	for id, v := range r.views {
		v.Close()
		delete(r.views, id)
	}
	r.recent = nil
}

func (r *Router) healthHandler(c *gin.Context) {
	status := gin.H{
		"status":  "OK",
		"service": "yta-dashboard",
		"session": r.session.ID,
	}
	if r.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := r.health.Health(ctx); err != nil {
			status["status"] = "DEGRADED"
			status["upstream"] = trackerapi.Message(err)
		} else {
			status["upstream"] = "OK"
		}
	}
	c.JSON(http.StatusOK, status)
}

// trackersView returns the list view, opening and loading it on first use
func (r *Router) trackersView() (*dashboard.TrackersView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trackers != nil {
		return r.trackers, false
	}
	r.trackers = r.session.OpenTrackers()
	return r.trackers, true
}

func (r *Router) listTrackers(c *gin.Context) {
	v, opened := r.trackersView()
	if opened {
		r.refreshLogged(v.Refresh, "trackers")
	}
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) refreshTrackers(c *gin.Context) {
	v, _ := r.trackersView()
	r.refreshLogged(v.Refresh, "trackers")
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) createTracker(c *gin.Context) {
	payload := models.NewTrackerCreate(models.TrackerTypeChannel)
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON body: " + err.Error()})
		return
	}

	v, _ := r.trackersView()
	created, err := v.Create(payload)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"detail": trackerapi.Message(err)})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// trackerView returns the detail view of the :id param, opening and loading
// it on first use
func (r *Router) trackerView(c *gin.Context) (*dashboard.TrackerView, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid tracker id"})
		return nil, false
	}

	r.mu.Lock()
	v, ok := r.views[id]
	var evicted []*dashboard.TrackerView
	if !ok {
		evicted = r.evictLocked(r.maxViews - 1)
		v = r.session.OpenTracker(id)
		r.views[id] = v
	}
	r.touchLocked(id)
	r.mu.Unlock()

	for _, old := range evicted {
		old.Close()
	}
	if !ok {
		r.refreshLogged(v.Refresh, "tracker "+strconv.FormatInt(id, 10))
	}
	return v, true
}

// touchLocked marks id as the most recently used view
func (r *Router) touchLocked(id int64) {
	r.forgetLocked(id)
	r.recent = append(r.recent, id)
}

func (r *Router) forgetLocked(id int64) {
	for i, open := range r.recent {
		if open == id {
			r.recent = append(r.recent[:i], r.recent[i+1:]...)
			return
		}
	}
}

// evictLocked drops least recently used views until at most keep remain and
// returns them for closing outside the lock
func (r *Router) evictLocked(keep int) []*dashboard.TrackerView {
	var evicted []*dashboard.TrackerView
	for len(r.recent) > 0 && len(r.recent) > keep {
		id := r.recent[0]
		r.recent = r.recent[1:]
		if v, ok := r.views[id]; ok {
			evicted = append(evicted, v)
			delete(r.views, id)
			r.logger.Debug("Evicting tracker view", zap.Int64("tracker_id", id))
		}
	}
	return evicted
}

func (r *Router) getTracker(c *gin.Context) {
	v, ok := r.trackerView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) refreshTracker(c *gin.Context) {
	v, ok := r.trackerView(c)
	if !ok {
		return
	}
	r.refreshLogged(v.Refresh, "tracker "+c.Param("id"))
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) closeTracker(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid tracker id"})
		return
	}

	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.forgetLocked(id)
	r.mu.Unlock()

	if ok {
		v.Close()
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) expandVideo(c *gin.Context) {
	v, ok := r.trackerView(c)
	if !ok {
		return
	}

	done := v.Expand(c.Param("videoID"))
	if c.Query("wait") == "true" {
		select {
		case <-done:
		case <-c.Request.Context().Done():
			return
		}
	}
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) collapseVideo(c *gin.Context) {
	v, ok := r.trackerView(c)
	if !ok {
		return
	}
	v.Collapse(c.Param("videoID"))
	c.JSON(http.StatusOK, v.State())
}

func (r *Router) getTimeseries(c *gin.Context) {
	videoID := c.Param("videoID")

	var done <-chan struct{}
	if c.Query("refresh") == "true" {
		done = r.session.RefreshSeries(videoID)
	} else {
		done = r.session.EnsureSeries(videoID)
	}
	if c.Query("wait") == "true" {
		select {
		case <-done:
		case <-c.Request.Context().Done():
			return
		}
	}

	entry := r.session.Series(videoID)
	c.JSON(http.StatusOK, gin.H{
		"video_id": videoID,
		"status":   entry.Status.String(),
		"points":   models.ObservedPoints(entry.Value),
	})
}

func (r *Router) refreshLogged(refresh func() error, what string) {
	if err := refresh(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, loader.ErrStaleRefresh) {
		r.logger.Warn("Refresh failed", zap.String("view", what), zap.Error(err))
	}
}

func statusFor(err error) int {
	if errors.Is(err, models.ErrValidation) {
		return http.StatusBadRequest
	}
	var apiErr *trackerapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
