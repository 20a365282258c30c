package entity

import "time"

// Notification is an outbound notification record produced by the event
// dispatcher. Delivery transport is out of scope; the record tracks what was
// emitted and to whom.
type Notification struct {
	ID         int64      `json:"id"`
	EventType  string     `json:"event_type"`
	TaskID     int64      `json:"task_id"`
	CompanyID  int64      `json:"company_id"`
	Recipients []string   `json:"recipients"`
	Status     string     `json:"status"`
	ErrorMsg   string     `json:"error_msg,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
