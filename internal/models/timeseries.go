package models

import (
	"fmt"
	"strconv"
	"time"
)

// TimeSeriesPoint is one observation of a video metric. A nil value means
// nothing was observed at that instant.
type TimeSeriesPoint struct {
	CapturedAt time.Time `json:"captured_at"`
	Value      *int64    `json:"value"`
}

// ObservedPoints drops points without a value, keeping capture order
func ObservedPoints(points []TimeSeriesPoint) []TimeSeriesPoint {
	observed := make([]TimeSeriesPoint, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			observed = append(observed, p)
		}
	}
	return observed
}

// FormatCompact renders a counter as 1.23M / 4.5K / 999
func FormatCompact(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return strconv.FormatInt(v, 10)
	}
}
