package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/middleware"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/service"
	"github.com/hangplan/hangout-server/internal/util"
)

type mockGuestRepo struct {
	createFunc func(ctx context.Context, displayName string, nowMillis int64) (*model.Guest, error)
}

func (m *mockGuestRepo) Create(ctx context.Context, displayName string, nowMillis int64) (*model.Guest, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, displayName, nowMillis)
	}
	return &model.Guest{ID: 99, DisplayName: displayName, CreatedAt: nowMillis}, nil
}

func (m *mockGuestRepo) SelectPurgeable(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (m *mockGuestRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	return 0, nil
}

func (m *mockGuestRepo) WithTx(tx *sqlx.Tx) repository.GuestRepository {
	return m
}

type mockAccountRepo struct{}

func (m *mockAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) WithTx(tx *sqlx.Tx) repository.AccountRepository {
	return m
}

type mockSessionRepo struct {
	deletedHashes  []string
	purgedIdentity *model.Identity
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) CountLive(ctx context.Context, identity model.Identity, nowMillis int64) (int, error) {
	return 0, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) error {
	return nil
}

func (m *mockSessionRepo) RotateOldest(ctx context.Context, identity model.Identity, tokenHash string, nowMillis, expiresAt int64) (int64, error) {
	return 1, nil
}

func (m *mockSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	m.deletedHashes = append(m.deletedHashes, tokenHash)
	return nil
}

func (m *mockSessionRepo) DeleteByIdentity(ctx context.Context, identity model.Identity) (int64, error) {
	m.purgedIdentity = &identity
	return 3, nil
}

func (m *mockSessionRepo) DeleteByKindAndUserIDs(ctx context.Context, kind model.UserKind, userIDs []int64) (int64, error) {
	return 0, nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, nowMillis int64) (int64, error) {
	return 0, nil
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestSessionHandler(guests repository.GuestRepository, sessions repository.SessionRepository) *SessionHandler {
	return NewSessionHandler(
		service.NewSessionService(sessions),
		service.NewSignInLimiter(nil),
		&mockAccountRepo{},
		guests,
		passthrough,
		false,
	)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestGuestSignIn(t *testing.T) {
	t.Run("creates a guest and issues the cookie pair", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		h := newTestSessionHandler(&mockGuestRepo{}, sessions)

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/guest", strings.NewReader(`{"displayName":"dana"}`))
		rec := httptest.NewRecorder()
		h.GuestSignIn(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		sessionCookie := findCookie(rec, config.SessionCookie)
		require.NotNil(t, sessionCookie)
		assert.True(t, util.IsValidSessionToken(sessionCookie.Value))
		assert.True(t, sessionCookie.HttpOnly)

		kindCookie := findCookie(rec, config.SignedInAsCookie)
		require.NotNil(t, kindCookie)
		assert.Equal(t, "guest", kindCookie.Value)
		assert.Equal(t, sessionCookie.MaxAge, kindCookie.MaxAge)
		assert.Equal(t, int(config.SessionMaxAgeDefault.Seconds()), sessionCookie.MaxAge)
	})

	t.Run("keepSignedIn extends the cookie lifetime", func(t *testing.T) {
		h := newTestSessionHandler(&mockGuestRepo{}, &mockSessionRepo{})

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/guest", strings.NewReader(`{"displayName":"dana","keepSignedIn":true}`))
		rec := httptest.NewRecorder()
		h.GuestSignIn(rec, req)

		sessionCookie := findCookie(rec, config.SessionCookie)
		require.NotNil(t, sessionCookie)
		assert.Equal(t, int(config.SessionMaxAgeKeepSignedIn.Seconds()), sessionCookie.MaxAge)
	})

	t.Run("rejects blank display name", func(t *testing.T) {
		h := newTestSessionHandler(&mockGuestRepo{}, &mockSessionRepo{})

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/guest", strings.NewReader(`{"displayName":"  "}`))
		rec := httptest.NewRecorder()
		h.GuestSignIn(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h := newTestSessionHandler(&mockGuestRepo{}, &mockSessionRepo{})

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/guest", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		h.GuestSignIn(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignOut(t *testing.T) {
	t.Run("destroys the presented session and clears cookies", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		h := newTestSessionHandler(&mockGuestRepo{}, sessions)

		token, err := util.GenerateToken()
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sign-out", nil)
		req.AddCookie(&http.Cookie{Name: config.SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		h.SignOut(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sessions.deletedHashes, 1)
		assert.Equal(t, util.HashToken(token), sessions.deletedHashes[0])

		cleared := findCookie(rec, config.SessionCookie)
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)
	})

	t.Run("still clears cookies without a valid session", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		h := newTestSessionHandler(&mockGuestRepo{}, sessions)

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sign-out", nil)
		rec := httptest.NewRecorder()
		h.SignOut(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sessions.deletedHashes)
		require.NotNil(t, findCookie(rec, config.SessionCookie))
	})
}

func TestSignOutAll(t *testing.T) {
	t.Run("purges every session of the identity", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		h := newTestSessionHandler(&mockGuestRepo{}, sessions)

		identity := &model.Identity{UserID: 7, Kind: model.UserKindAccount}
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sign-out-all", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.IdentityContextKey, identity))
		rec := httptest.NewRecorder()
		h.SignOutAll(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, sessions.purgedIdentity)
		assert.Equal(t, *identity, *sessions.purgedIdentity)
	})

	t.Run("rejects requests without an identity", func(t *testing.T) {
		h := newTestSessionHandler(&mockGuestRepo{}, &mockSessionRepo{})

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sign-out-all", nil)
		rec := httptest.NewRecorder()
		h.SignOutAll(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
