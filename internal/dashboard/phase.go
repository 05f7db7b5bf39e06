package dashboard

import (
	"strconv"

	"github.com/jackdevtech455/youtube-analytics/internal/loader"
	"github.com/jackdevtech455/youtube-analytics/internal/trackerapi"
)

// Phase is what a view should currently render
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
	PhaseEmpty   Phase = "empty"
	PhaseReady   Phase = "ready"
)

// phaseOf maps a list state to a phase. A refresh in flight wins, then an
// error, even when older items are still held.
func phaseOf[T any](st loader.ListState[T]) Phase {
	switch {
	case st.Loading, !st.Loaded && st.Err == nil:
		return PhaseLoading
	case st.Err != nil:
		return PhaseError
	case len(st.Items) == 0:
		return PhaseEmpty
	default:
		return PhaseReady
	}
}

func errorText(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := trackerapi.Message(err); msg != "" {
		return msg
	}
	return fallback
}

func formatCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
