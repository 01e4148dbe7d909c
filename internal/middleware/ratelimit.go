package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/audit"
	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/observability"
	"github.com/hangplan/hangout-server/internal/util"
)

// RateTracker is the slice of the rate-counter store the middleware needs.
type RateTracker interface {
	CheckAndIncrement(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error)
}

// AbuseRecorder tracks repeat offenders by IP, independent of the per-token
// counters so a client rotating tokens from one IP is still visible.
type AbuseRecorder interface {
	RecordViolation(ctx context.Context, ip string, nowMillis int64) error
}

type RateLimitMiddleware struct {
	tracker      RateTracker
	abuse        AbuseRecorder
	generalLimit int
	chatLimit    int
	cookieSecure bool
	now          func() time.Time
}

func NewRateLimitMiddleware(tracker RateTracker, abuse AbuseRecorder, generalLimit, chatLimit int, cookieSecure bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		tracker:      tracker,
		abuse:        abuse,
		generalLimit: generalLimit,
		chatLimit:    chatLimit,
		cookieSecure: cookieSecure,
		now:          time.Now,
	}
}

// classify charges chat posts against the tighter chat counter; everything
// else is general traffic.
func classify(r *http.Request) model.RequestClass {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/chat") {
		return model.RequestClassChat
	}
	return model.RequestClassGeneral
}

// Handler admits or rejects the request before any business logic runs.
// Clients are identified by an opaque token cookie, not IP. A missing or
// malformed token gets a fresh one that faces the chat limit for this first
// request, whatever the endpoint class.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classify(r)
		limit := m.generalLimit
		if class == model.RequestClassChat {
			limit = m.chatLimit
		}

		token := ""
		if cookie, err := r.Cookie(config.RateTokenCookie); err == nil {
			token = cookie.Value
		}

		if !util.IsValidRateToken(token) {
			fresh, err := util.GenerateRateToken()
			if err != nil {
				log.Error().Err(err).Msg("rate limit: token generation failed")
				next.ServeHTTP(w, r)
				return
			}
			token = fresh
			limit = m.chatLimit
			http.SetCookie(w, &http.Cookie{
				Name:     config.RateTokenCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		allowed, err := m.tracker.CheckAndIncrement(r.Context(), token, class, limit, m.now().UnixMilli())
		if err != nil {
			// A broken counter store must not take the whole service down
			// with it; admission errors open rather than queueing behind a
			// failing database.
			log.Error().Err(err).Msg("rate limit: counter update failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			ip := audit.ClientIP(r)
			observability.IncRateLimitRejection(string(class))
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"class": string(class)},
			})
			if err := m.abuse.RecordViolation(r.Context(), ip, m.now().UnixMilli()); err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("rate limit: abuse ledger update failed")
			}
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
