package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/audit"
	"github.com/hangplan/hangout-server/internal/config"
	apperrors "github.com/hangplan/hangout-server/internal/errors"
	"github.com/hangplan/hangout-server/internal/middleware"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/service"
	"github.com/hangplan/hangout-server/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	signInLimiter  *service.SignInLimiter
	accountRepo    repository.AccountRepository
	guestRepo      repository.GuestRepository
	authRequired   func(http.Handler) http.Handler
	cookieSecure   bool
}

func NewSessionHandler(
	sessionService *service.SessionService,
	signInLimiter *service.SignInLimiter,
	accountRepo repository.AccountRepository,
	guestRepo repository.GuestRepository,
	authRequired func(http.Handler) http.Handler,
	cookieSecure bool,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		signInLimiter:  signInLimiter,
		accountRepo:    accountRepo,
		guestRepo:      guestRepo,
		authRequired:   authRequired,
		cookieSecure:   cookieSecure,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sign-in", h.SignIn)
	r.Post("/guest", h.GuestSignIn)
	r.Post("/sign-out", h.SignOut)
	r.With(h.authRequired).Post("/sign-out-all", h.SignOutAll)

	return r
}

type signInRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	KeepSignedIn bool   `json:"keepSignedIn"`
}

// POST /v1/sessions/sign-in
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ip := audit.ClientIP(r)
	allowed, resetAt := h.signInLimiter.CheckLimit(r.Context(), ip, config.SignInAttemptLimit, config.SignInAttemptWindow)
	if !allowed {
		secondsLeft := int(time.Until(resetAt).Seconds()) + 1
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secondsLeft))
		writeError(w, apperrors.RateLimitExceeded())
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed request body"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, apperrors.MissingRequired("username"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}

	account, err := h.accountRepo.FindByUsername(r.Context(), req.Username)
	if err != nil {
		log.Error().Err(err).Msg("sign-in: account lookup failed")
		writeError(w, apperrors.Unauthorized("Invalid credentials"))
		return
	}
	if account == nil || !util.CheckPasswordHash(req.Password, account.PasswordHash) {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventSignInFailure})
		writeError(w, apperrors.Unauthorized("Invalid credentials"))
		return
	}
	if account.IsLocked {
		// A locked account keeps no live sessions.
		identity := model.Identity{UserID: account.ID, Kind: model.UserKindAccount}
		if _, err := h.sessionService.Purge(r.Context(), identity); err != nil {
			log.Error().Err(err).Int64("userId", account.ID).Msg("failed to purge locked account sessions")
		}
		writeError(w, apperrors.AccountLocked())
		return
	}

	identity := model.Identity{UserID: account.ID, Kind: model.UserKindAccount}
	h.issueSession(w, r, identity, req.KeepSignedIn)
}

type guestSignInRequest struct {
	DisplayName  string `json:"displayName"`
	KeepSignedIn bool   `json:"keepSignedIn"`
}

// POST /v1/sessions/guest
func (h *SessionHandler) GuestSignIn(w http.ResponseWriter, r *http.Request) {
	var req guestSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed request body"))
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, apperrors.MissingRequired("displayName"))
		return
	}

	guest, err := h.guestRepo.Create(r.Context(), req.DisplayName, time.Now().UnixMilli())
	if err != nil {
		log.Error().Err(err).Msg("guest sign-in: create failed")
		writeError(w, apperrors.Database(err))
		return
	}

	identity := model.Identity{UserID: guest.ID, Kind: model.UserKindGuest}
	h.issueSession(w, r, identity, req.KeepSignedIn)
}

func (h *SessionHandler) issueSession(w http.ResponseWriter, r *http.Request, identity model.Identity, keepSignedIn bool) {
	result, err := h.sessionService.Create(r.Context(), identity, keepSignedIn, 1)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, apperrors.Internal("Failed to create session"))
		return
	}

	middleware.SetSessionCookies(w, result.Token, identity.Kind, result.MaxAge, h.cookieSecure)
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSessionCreate,
		UserID:   identity.UserID,
		UserKind: string(identity.Kind),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"signedInAs": identity.Kind,
		"maxAge":     int(result.MaxAge.Seconds()),
	})
}

// POST /v1/sessions/sign-out
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.SessionCookie)
	if err == nil && util.IsValidSessionToken(cookie.Value) {
		if err := h.sessionService.Destroy(r.Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("sign-out: destroy failed")
		}
	}

	middleware.ClearSessionCookies(w)
	audit.LogFromRequest(r, audit.Event{Type: audit.EventSignOut})
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// POST /v1/sessions/sign-out-all
func (h *SessionHandler) SignOutAll(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	count, err := h.sessionService.Purge(r.Context(), *identity)
	if err != nil {
		log.Error().Err(err).Msg("sign-out-all: purge failed")
		writeError(w, apperrors.Database(err))
		return
	}

	middleware.ClearSessionCookies(w)
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSessionPurge,
		UserID:   identity.UserID,
		UserKind: string(identity.Kind),
	})
	writeJSON(w, http.StatusOK, map[string]any{"purged": count})
}
