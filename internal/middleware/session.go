package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/util"
)

type contextKey string

const IdentityContextKey contextKey = "identity"
const SessionTokenContextKey contextKey = "sessionToken"

// GetIdentity returns the authenticated identity, or nil when the request
// did not pass the session middleware.
func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

// GetSessionToken returns the raw session token for the request, if any.
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenContextKey).(string); ok {
		return token
	}
	return ""
}

// SessionResolver is the slice of the session store the middleware needs.
type SessionResolver interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
}

type SessionMiddleware struct {
	sessions SessionResolver
	now      func() time.Time
}

func NewSessionMiddleware(sessions SessionResolver) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions, now: time.Now}
}

// Handler authenticates the session cookie and loads the identity into
// context. Expiry is checked here because the store only sweeps expired
// rows periodically. Any ambiguity is treated as unauthenticated.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(config.SessionCookie)
		if err != nil || !util.IsValidSessionToken(cookie.Value) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		session, err := m.sessions.FindByTokenHash(r.Context(), util.HashToken(cookie.Value))
		if err != nil {
			log.Error().Err(err).Msg("session middleware: database error")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		if session == nil || session.Expired(m.now().UnixMilli()) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		identity := session.Identity()
		ctx := context.WithValue(r.Context(), IdentityContextKey, &identity)
		ctx = context.WithValue(ctx, SessionTokenContextKey, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookies sets the two sign-in cookies with identical max-age:
// the HttpOnly session token and the readable identity-kind indicator. The
// kind cookie is a rendering hint only, never a capability.
func SetSessionCookies(w http.ResponseWriter, token string, kind model.UserKind, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     config.SignedInAsCookie,
		Value:    string(kind),
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   config.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:   config.SignedInAsCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
