package api

import (
	"time"

	"github.com/goodtune/timekeeper/internal/usage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// ActivityRequest is the optional body of POST /api/activity.
type ActivityRequest struct {
	Source string `json:"source"`
}

// GoalRequest is the body of PUT /api/goal.
type GoalRequest struct {
	Hours   *int `json:"hours"`
	Minutes *int `json:"minutes"`
}

// GoalResponse reports the goal that took effect.
type GoalResponse struct {
	GoalMillis      int64  `json:"goal_millis"`
	Goal            string `json:"goal"`
	RequestedMillis int64  `json:"requested_millis"`
	Clamped         bool   `json:"clamped"`
	Reason          string `json:"reason,omitempty"`
	Message         string `json:"message,omitempty"`
}

// NotificationResponse is a goal notification that is currently present.
type NotificationResponse struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// StatusResponse is the current tracking state.
type StatusResponse struct {
	Day             string                `json:"day"`
	UsageMillis     int64                 `json:"usage_millis"`
	Usage           string                `json:"usage"`
	GoalMillis      int64                 `json:"goal_millis"`
	Goal            string                `json:"goal"`
	RemainingMillis int64                 `json:"remaining_millis"`
	Remaining       string                `json:"remaining"`
	Exceeded        bool                  `json:"exceeded"`
	Active          bool                  `json:"active"`
	Notification    *NotificationResponse `json:"notification,omitempty"`
}

// HistoryEntryResponse is one finalized day.
type HistoryEntryResponse struct {
	Date        string `json:"date"`
	UsageMillis int64  `json:"usage_millis"`
	Usage       string `json:"usage"`
	Exceeded    bool   `json:"exceeded"`
}

// HistoryResponse lists finalized days, most recent first.
type HistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
	Count   int                    `json:"count"`
}

func newStatusResponse(s usage.Snapshot) StatusResponse {
	resp := StatusResponse{
		UsageMillis:     s.Usage.Milliseconds(),
		Usage:           usage.FormatDuration(s.Usage),
		GoalMillis:      s.Goal.Milliseconds(),
		Goal:            usage.FormatDuration(s.Goal),
		RemainingMillis: s.Remaining.Milliseconds(),
		Remaining:       usage.FormatDuration(s.Remaining),
		Exceeded:        s.Exceeded,
		Active:          s.Active,
	}
	if !s.Day.IsZero() {
		resp.Day = s.Day.String()
	}
	if s.Notification != nil {
		resp.Notification = &NotificationResponse{Message: s.Notification.Message, At: s.Notification.At}
	}
	return resp
}

func newGoalResponse(d usage.GoalDecision) GoalResponse {
	return GoalResponse{
		GoalMillis:      d.Effective.Milliseconds(),
		Goal:            usage.FormatDuration(d.Effective),
		RequestedMillis: d.Requested.Milliseconds(),
		Clamped:         d.Clamped,
		Reason:          string(d.Reason),
		Message:         d.Message(),
	}
}

func newHistoryEntryResponse(e usage.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		Date:        e.Day.String(),
		UsageMillis: e.Usage.Milliseconds(),
		Usage:       usage.FormatDuration(e.Usage),
		Exceeded:    e.Exceeded,
	}
}
