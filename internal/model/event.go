package model

// Event types recorded in the append-only hangout event log.
type HangoutEventType string

const (
	EventAutoConcluded      HangoutEventType = "auto_concluded"
	EventConcludedNoOptions HangoutEventType = "concluded_no_suggestions"
	EventConcludedOneOption HangoutEventType = "concluded_single_suggestion"
)

type HangoutEvent struct {
	ID        int64            `db:"id" json:"id"`
	HangoutID string           `db:"hangout_id" json:"hangoutId"`
	EventType HangoutEventType `db:"event_type" json:"eventType"`
	Detail    string           `db:"detail" json:"detail"`
	CreatedAt int64            `db:"created_at" json:"createdAt"`
}

// ErrorLogEntry is a retained record of an unexpected internal failure,
// swept once it passes the retention bound.
type ErrorLogEntry struct {
	ID        int64  `db:"id" json:"id"`
	Source    string `db:"source" json:"source"`
	Message   string `db:"message" json:"message"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
}
