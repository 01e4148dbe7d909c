package audit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSignInSuccess    EventType = "sign_in_success"
	EventSignInFailure    EventType = "sign_in_failure"
	EventSignOut          EventType = "sign_out"
	EventSessionCreate    EventType = "session_create"
	EventSessionRotate    EventType = "session_rotate"
	EventSessionPurge     EventType = "session_purge"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
	EventWSConnect        EventType = "ws_connect"
	EventWSReject         EventType = "ws_reject"
	EventHangoutConcluded EventType = "hangout_concluded"
)

type Event struct {
	Type      EventType
	UserID    int64
	UserKind  string
	HangoutID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != 0 {
		logger = logger.With().Int64("user_id", event.UserID).Logger()
	}
	if event.UserKind != "" {
		logger = logger.With().Str("user_kind", event.UserKind).Logger()
	}
	if event.HangoutID != "" {
		logger = logger.With().Str("hangout_id", event.HangoutID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(event)
}

func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
