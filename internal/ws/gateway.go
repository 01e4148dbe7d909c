package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/audit"
	"github.com/hangplan/hangout-server/internal/config"
	apperrors "github.com/hangplan/hangout-server/internal/errors"
	"github.com/hangplan/hangout-server/internal/httputil"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/observability"
	"github.com/hangplan/hangout-server/internal/util"
)

// SessionResolver resolves a hashed session token to its row.
type SessionResolver interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
}

// MembershipChecker verifies that an identity owns a member row within a hangout.
type MembershipChecker interface {
	ExistsMembership(ctx context.Context, memberID int64, hangoutID string, identity model.Identity) (bool, error)
}

// HandshakeInfo is the authenticated result of a websocket upgrade request.
type HandshakeInfo struct {
	HangoutMemberID int64
	HangoutID       string
	Identity        model.Identity
}

type Gateway struct {
	hub          *Hub
	sessions     SessionResolver
	members      MembershipChecker
	maxHeapBytes uint64
	heapInUse    func() uint64
	now          func() time.Time
	upgrader     websocket.Upgrader
}

func NewGateway(hub *Hub, sessions SessionResolver, members MembershipChecker, maxHeapBytes uint64) *Gateway {
	return &Gateway{
		hub:          hub,
		sessions:     sessions,
		members:      members,
		maxHeapBytes: maxHeapBytes,
		heapInUse:    heapInUse,
		now:          time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// HandleUpgrade admits, authenticates and registers a realtime connection.
// The memory-pressure check runs before any authentication work so an
// overloaded process sheds connections as cheaply as possible.
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if g.heapInUse() > g.maxHeapBytes {
		observability.IncWSRejection("overloaded")
		httputil.WriteError(w, apperrors.Overloaded())
		return
	}

	info := g.authenticateHandshake(r)
	if info == nil {
		observability.IncWSRejection("unauthorized")
		audit.LogFromRequest(r, audit.Event{Type: audit.EventWSReject})
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("hangoutId", info.HangoutID).Msg("websocket upgrade failed")
		return
	}

	g.hub.Add(info.HangoutID, conn)
	observability.IncWSActive()
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventWSConnect,
		UserID:    info.Identity.UserID,
		UserKind:  string(info.Identity.Kind),
		HangoutID: info.HangoutID,
	})

	go g.readLoop(conn, info)
}

// authenticateHandshake binds the session cookie to a hangout membership.
// Every check fails closed: a missing cookie, malformed id, expired session
// or membership mismatch all yield nil with no partial trust.
func (g *Gateway) authenticateHandshake(r *http.Request) *HandshakeInfo {
	cookie, err := r.Cookie(config.SessionCookie)
	if err != nil || !util.IsValidSessionToken(cookie.Value) {
		return nil
	}

	memberID, ok := util.ParseMemberID(r.URL.Query().Get("hangoutMemberId"))
	if !ok {
		return nil
	}

	hangoutID := r.URL.Query().Get("hangoutId")
	if !util.IsValidHangoutID(hangoutID) {
		return nil
	}

	session, err := g.sessions.FindByTokenHash(r.Context(), util.HashToken(cookie.Value))
	if err != nil {
		log.Error().Err(err).Msg("ws handshake: session lookup failed")
		return nil
	}
	if session == nil || session.Expired(g.now().UnixMilli()) {
		return nil
	}

	isMember, err := g.members.ExistsMembership(r.Context(), memberID, hangoutID, session.Identity())
	if err != nil {
		log.Error().Err(err).Str("hangoutId", hangoutID).Msg("ws handshake: membership lookup failed")
		return nil
	}
	if !isMember {
		return nil
	}

	return &HandshakeInfo{
		HangoutMemberID: memberID,
		HangoutID:       hangoutID,
		Identity:        session.Identity(),
	}
}

// readLoop drains client frames until the connection drops. Inbound messages
// are parsed defensively; malformed ones are dropped without a response.
func (g *Gateway) readLoop(conn *websocket.Conn, info *HandshakeInfo) {
	defer func() {
		g.hub.Remove(info.HangoutID, conn)
		observability.DecWSActive()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == "" {
			continue
		}

		log.Debug().
			Str("hangoutId", info.HangoutID).
			Str("type", env.Type).
			Str("reason", env.Reason).
			Msg("client message")
	}
}
