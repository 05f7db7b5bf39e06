package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is wrapped by every client-side payload validation failure
var ErrValidation = errors.New("validation failed")

// DefaultRankingWindowHours is the form's window for rate-of-change metrics
const DefaultRankingWindowHours = 24

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterStructValidation(trackerCreateRules, TrackerCreate{})
	})
	return validate
}

// trackerCreateRules holds the cross-field rules the tags cannot express
func trackerCreateRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(TrackerCreate)
	if p.RankingMetric.NeedsWindow() && p.RankingWindowHours == nil {
		sl.ReportError(p.RankingWindowHours, "ranking_window_hours", "RankingWindowHours", "required_window", string(p.RankingMetric))
	}
}

// TrackerCreate is the payload submitted to create a tracker
type TrackerCreate struct {
	Type               TrackerType   `json:"type" validate:"required,oneof=channel search"`
	ChannelID          string        `json:"channel_id,omitempty" validate:"required_if=Type channel"`
	SearchQuery        string        `json:"search_query,omitempty" validate:"required_if=Type search"`
	TopN               int           `json:"top_n" validate:"min=1,max=200"`
	CandidatePoolSize  int           `json:"candidate_pool_size" validate:"min=20,max=1000,gtefield=TopN"`
	RankingMetric      RankingMetric `json:"ranking_metric" validate:"required,oneof=views likes comments views_delta views_velocity likes_delta comments_delta"`
	RankingWindowHours *int          `json:"ranking_window_hours" validate:"omitempty,min=1,max=2160"`
}

// NewTrackerCreate returns a payload with the dashboard's form defaults
func NewTrackerCreate(kind TrackerType) TrackerCreate {
	window := DefaultRankingWindowHours
	return TrackerCreate{
		Type:               kind,
		TopN:               20,
		CandidatePoolSize:  200,
		RankingMetric:      MetricViews,
		RankingWindowHours: &window,
	}
}

// Normalize trims identifiers, clears the field that does not belong to the
// tracker type and drops the window for absolute metrics
func (p TrackerCreate) Normalize() TrackerCreate {
	p.ChannelID = strings.TrimSpace(p.ChannelID)
	p.SearchQuery = strings.TrimSpace(p.SearchQuery)
	switch p.Type {
	case TrackerTypeChannel:
		p.SearchQuery = ""
	case TrackerTypeSearch:
		p.ChannelID = ""
	}
	if !p.RankingMetric.NeedsWindow() {
		p.RankingWindowHours = nil
	}
	return p
}

// Validate checks the normalized payload before submission
func (p TrackerCreate) Validate() error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_if":
		return fmt.Sprintf("%s is required for %s trackers", fe.Field(), strings.Fields(fe.Param())[1])
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", "|"))
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be at least top_n", fe.Field())
	case "required_window":
		return fmt.Sprintf("%s is required for %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
