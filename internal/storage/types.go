package storage

import (
	"encoding/json"
	"fmt"
)

// Key names shared by every backend.
const (
	KeySessionState = "sessionState"
	KeyUsageHistory = "usageHistory"
)

// SessionRecord is the persisted form of the running session.
type SessionRecord struct {
	DailyUsageMillis int64  `json:"dailyUsageMillis"`
	DailyGoalMillis  int64  `json:"dailyGoalMillis"`
	LastUpdatedDate  string `json:"lastUpdatedDate"`
}

// EncodeSession marshals a session record to its JSON wire form.
func EncodeSession(record SessionRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

// DecodeSession parses a session record, wrapping any failure in ErrCorrupt.
func DecodeSession(data []byte) (*SessionRecord, error) {
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: session: %v", ErrCorrupt, err)
	}
	return &record, nil
}

// EncodeHistory marshals a history map to its JSON wire form.
func EncodeHistory(history map[string]int64) ([]byte, error) {
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// DecodeHistory parses a history map, wrapping any failure in ErrCorrupt.
func DecodeHistory(data []byte) (map[string]int64, error) {
	history := make(map[string]int64)
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrCorrupt, err)
	}
	return history, nil
}
