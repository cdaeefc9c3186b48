package notification

import "time"

type Permission string

const (
	Granted     Permission = "granted"
	Denied      Permission = "denied"
	Unsupported Permission = "unsupported"
)

// Notification is one transition alert handed to the sink.
type Notification struct {
	TargetID string    `json:"target_id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}
