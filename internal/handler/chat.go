package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/hangplan/hangout-server/internal/errors"
	"github.com/hangplan/hangout-server/internal/middleware"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/util"
	"github.com/hangplan/hangout-server/internal/ws"
)

const maxChatMessageLength = 2000

type ChatHandler struct {
	hangoutRepo repository.HangoutRepository
	memberRepo  repository.MemberRepository
	broadcaster Broadcaster
}

// Broadcaster is the fan-out surface mutation endpoints push updates through.
type Broadcaster interface {
	Broadcast(hangoutID string, env ws.Envelope)
}

func NewChatHandler(hangoutRepo repository.HangoutRepository, memberRepo repository.MemberRepository, broadcaster Broadcaster) *ChatHandler {
	return &ChatHandler{
		hangoutRepo: hangoutRepo,
		memberRepo:  memberRepo,
		broadcaster: broadcaster,
	}
}

type chatMessageRequest struct {
	HangoutMemberID string `json:"hangoutMemberId"`
	Message         string `json:"message"`
}

// POST /v1/hangouts/{hangoutID}/chat
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	hangoutID := chi.URLParam(r, "hangoutID")
	if !util.IsValidHangoutID(hangoutID) {
		writeError(w, apperrors.InvalidInput("hangoutID", "malformed hangout identifier"))
		return
	}

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed request body"))
		return
	}

	memberID, ok := util.ParseMemberID(req.HangoutMemberID)
	if !ok {
		writeError(w, apperrors.InvalidInput("hangoutMemberId", "must be a positive integer"))
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, apperrors.MissingRequired("message"))
		return
	}
	if len(req.Message) > maxChatMessageLength {
		writeError(w, apperrors.InvalidInput("message", "exceeds maximum length"))
		return
	}

	hangout, err := h.hangoutRepo.FindByID(r.Context(), hangoutID)
	if err != nil {
		log.Error().Err(err).Str("hangoutId", hangoutID).Msg("chat: hangout lookup failed")
		writeError(w, apperrors.Database(err))
		return
	}
	if hangout == nil {
		writeError(w, apperrors.NotFound("hangout"))
		return
	}

	isMember, err := h.memberRepo.ExistsMembership(r.Context(), memberID, hangoutID, *identity)
	if err != nil {
		log.Error().Err(err).Str("hangoutId", hangoutID).Msg("chat: membership lookup failed")
		writeError(w, apperrors.Database(err))
		return
	}
	if !isMember {
		writeError(w, apperrors.Forbidden("Not a member of this hangout"))
		return
	}

	sentAt := time.Now().UnixMilli()
	h.broadcaster.Broadcast(hangoutID, ws.Envelope{
		Type:   ws.TypeChatUpdate,
		Reason: ws.ReasonNewChatMessage,
		Data: map[string]any{
			"hangoutId":       hangoutID,
			"hangoutMemberId": strconv.FormatInt(memberID, 10),
			"message":         req.Message,
			"sentAt":          sentAt,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{"sentAt": sentAt})
}
