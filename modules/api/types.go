package api

import (
	"github.com/kenrgriggs/whatskennethdoing/analytics"
	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CurrentResponse wraps GetCurrent.
type CurrentResponse struct {
	Current *domain.ActiveRecord `json:"current"`
}

// StartResponse wraps StartOrUpdateCurrent. Active is null when the call
// recorded an already-closed historical entry.
type StartResponse struct {
	Active *domain.ActiveRecord `json:"active"`
}

// StopResponse wraps StopCurrent.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// EventsResponse wraps ListEvents.
type EventsResponse struct {
	Events []domain.Event `json:"events"`
}

// EventResponse wraps UpdateEvent.
type EventResponse struct {
	Event *domain.Event `json:"event"`
}

// SuggestionsResponse wraps GetSuggestions.
type SuggestionsResponse struct {
	Titles     []string             `json:"titles"`
	Categories []string             `json:"categories"`
	TaskNotes  []activity.TaskNotes `json:"taskNotes"`
}

// AnalyticsResponse wraps GetAnalytics.
type AnalyticsResponse = analytics.Report
