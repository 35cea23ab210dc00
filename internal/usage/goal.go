package usage

import (
	"fmt"
	"time"
)

const (
	// DefaultMinGoal is the lowest goal a user may set.
	DefaultMinGoal = 50 * time.Minute

	// DefaultMaxGoal is the highest goal a user may set.
	DefaultMaxGoal = 90 * time.Minute

	// DefaultGoal is the goal used before the user sets one. It lies outside
	// [DefaultMinGoal, DefaultMaxGoal] and is only clamped when Config.ClampOnLoad is set.
	DefaultGoal = 2 * time.Hour
)

// ClampReason explains why a requested goal was adjusted.
type ClampReason string

const (
	ReasonNone         ClampReason = ""
	ReasonExceedsMax   ClampReason = "exceeds maximum"
	ReasonBelowMinimum ClampReason = "below minimum"
)

// ValidationError reports goal input outside the accepted hours and minutes range.
type ValidationError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid goal %s %d: must be between %d and %d", e.Field, e.Value, e.Min, e.Max)
}

// GoalFromHoursMinutes validates user input and converts it to a duration.
func GoalFromHoursMinutes(hours, minutes int) (time.Duration, error) {
	if hours < 0 || hours > 23 {
		return 0, &ValidationError{Field: "hours", Value: hours, Min: 0, Max: 23}
	}
	if minutes < 0 || minutes > 59 {
		return 0, &ValidationError{Field: "minutes", Value: minutes, Min: 0, Max: 59}
	}
	return HoursMinutes(hours, minutes), nil
}

// GoalPolicy bounds the daily goal.
type GoalPolicy struct {
	Min time.Duration
	Max time.Duration
}

// DefaultGoalPolicy returns the 50 to 90 minute policy.
func DefaultGoalPolicy() GoalPolicy {
	return GoalPolicy{Min: DefaultMinGoal, Max: DefaultMaxGoal}
}

// GoalDecision is the outcome of clamping a requested goal.
type GoalDecision struct {
	Requested time.Duration
	Effective time.Duration
	Clamped   bool
	Reason    ClampReason
}

// Clamp returns the goal that takes effect for requested. It has no side effects.
func (p GoalPolicy) Clamp(requested time.Duration) GoalDecision {
	decision := GoalDecision{Requested: requested, Effective: requested}
	switch {
	case requested > p.Max:
		decision.Effective = p.Max
		decision.Clamped = true
		decision.Reason = ReasonExceedsMax
	case requested < p.Min:
		decision.Effective = p.Min
		decision.Clamped = true
		decision.Reason = ReasonBelowMinimum
	}
	return decision
}

// Message returns the correction shown to the user, or "" when nothing was clamped.
func (d GoalDecision) Message() string {
	switch d.Reason {
	case ReasonExceedsMax:
		return fmt.Sprintf("The goal can be at most %s. It has been set to %s.",
			FormatDuration(d.Effective), FormatDuration(d.Effective))
	case ReasonBelowMinimum:
		return fmt.Sprintf("The goal cannot be lower than %s. It has been set to %s.",
			FormatDuration(d.Effective), FormatDuration(d.Effective))
	default:
		return ""
	}
}
