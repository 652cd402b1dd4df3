package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ScoreUpdatedData contains data for ScoreUpdated events
type ScoreUpdatedData struct {
	OrgID     string  `json:"org_id"`
	AccountID string  `json:"account_id"`
	Score     float64 `json:"score"`
	Tier      string  `json:"tier"`
	Trend     string  `json:"trend"`
}

// EventType returns the event type for ScoreUpdatedData
func (d *ScoreUpdatedData) EventType() EventType {
	return ScoreUpdated
}

// RecomputeStartedData contains data for RecomputeStarted events
type RecomputeStartedData struct {
	OrgID    string `json:"org_id"`
	Accounts int    `json:"accounts"`
	Trigger  string `json:"trigger"` // "api", "schedule"
}

// EventType returns the event type for RecomputeStartedData
func (d *RecomputeStartedData) EventType() EventType {
	return RecomputeStarted
}

// RecomputeCompletedData contains data for RecomputeCompleted events
type RecomputeCompletedData struct {
	OrgID      string   `json:"org_id"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skipped_ids,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// EventType returns the event type for RecomputeCompletedData
func (d *RecomputeCompletedData) EventType() EventType {
	return RecomputeCompleted
}

// ConfigUpdatedData contains data for ConfigUpdated events
type ConfigUpdatedData struct {
	OrgID     string  `json:"org_id"`
	RuleCount int     `json:"rule_count"`
	MaxScore  float64 `json:"max_score"`
}

// EventType returns the event type for ConfigUpdatedData
func (d *ConfigUpdatedData) EventType() EventType {
	return ConfigUpdated
}

// ConfigResetData contains data for ConfigReset events
type ConfigResetData struct {
	OrgID string `json:"org_id"`
}

// EventType returns the event type for ConfigResetData
func (d *ConfigResetData) EventType() EventType {
	return ConfigReset
}

// SignalIngestedData contains data for SignalIngested events
type SignalIngestedData struct {
	OrgID      string `json:"org_id"`
	SignalID   string `json:"signal_id"`
	AccountID  string `json:"account_id"`
	SignalType string `json:"signal_type"`
}

// EventType returns the event type for SignalIngestedData
func (d *SignalIngestedData) EventType() EventType {
	return SignalIngested
}

// AccountAddedData contains data for AccountAdded events
type AccountAddedData struct {
	OrgID     string `json:"org_id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// EventType returns the event type for AccountAddedData
func (d *AccountAddedData) EventType() EventType {
	return AccountAdded
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Checksum  string  `json:"checksum"`
	Duration  float64 `json:"duration,omitempty"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case ScoreUpdated:
			eventData = &ScoreUpdatedData{}
		case RecomputeStarted:
			eventData = &RecomputeStartedData{}
		case RecomputeCompleted:
			eventData = &RecomputeCompletedData{}
		case ConfigUpdated:
			eventData = &ConfigUpdatedData{}
		case ConfigReset:
			eventData = &ConfigResetData{}
		case SignalIngested:
			eventData = &SignalIngestedData{}
		case AccountAdded:
			eventData = &AccountAddedData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			// Convert to generic data type
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
