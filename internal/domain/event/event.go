package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event emitted by the lifecycle engine.
// Recipients carries the roles and user ids downstream notification
// delivery should target; the delivery mechanism itself is out of scope.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TaskID        int64                  `json:"task_id"`
	CompanyID     int64                  `json:"company_id"`
	Recipients    []string               `json:"recipients,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// New creates a new domain event with auto-generated ID and timestamp
func New(eventType Type, taskID, companyID int64, recipients []string, payload map[string]interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TaskID:        taskID,
		CompanyID:     companyID,
		Recipients:    recipients,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewWithCorrelation creates an event linked to a correlation chain
func NewWithCorrelation(eventType Type, taskID, companyID int64, recipients []string, payload map[string]interface{}, correlationID string) *Event {
	evt := New(eventType, taskID, companyID, recipients, payload)
	evt.CorrelationID = correlationID
	return evt
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
