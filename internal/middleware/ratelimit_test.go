package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/model"
	"github.com/hangplan/hangout-server/internal/util"
)

type mockRateTracker struct {
	checkAndIncrementFunc func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error)
}

func (m *mockRateTracker) CheckAndIncrement(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
	if m.checkAndIncrementFunc != nil {
		return m.checkAndIncrementFunc(ctx, token, class, limit, nowMillis)
	}
	return true, nil
}

type mockAbuseRecorder struct {
	violations []string
}

func (m *mockAbuseRecorder) RecordViolation(ctx context.Context, ip string, nowMillis int64) error {
	m.violations = append(m.violations, ip)
	return nil
}

func TestClassify(t *testing.T) {
	t.Run("chat posts use the chat class", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/hangouts/abc/chat", nil)
		assert.Equal(t, model.RequestClassChat, classify(req))
	})

	t.Run("reads of chat paths stay general", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/hangouts/abc/chat", nil)
		assert.Equal(t, model.RequestClassGeneral, classify(req))
	})

	t.Run("other posts stay general", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sign-in", nil)
		assert.Equal(t, model.RequestClassGeneral, classify(req))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	const generalLimit, chatLimit = 100, 20

	validToken, err := util.GenerateRateToken()
	require.NoError(t, err)

	serve := func(m *RateLimitMiddleware, req *http.Request) (*httptest.ResponseRecorder, bool) {
		reached := false
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec, reached
	}

	t.Run("admits request with a valid token", func(t *testing.T) {
		var seenToken string
		var seenLimit int
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				seenToken = token
				seenLimit = limit
				return true, nil
			},
		}
		m := NewRateLimitMiddleware(tracker, &mockAbuseRecorder{}, generalLimit, chatLimit, false)

		req := httptest.NewRequest(http.MethodGet, "/v1/hangouts", nil)
		req.AddCookie(&http.Cookie{Name: config.RateTokenCookie, Value: validToken})

		rec, reached := serve(m, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, reached)
		assert.Equal(t, validToken, seenToken)
		assert.Equal(t, generalLimit, seenLimit)
	})

	t.Run("mints a token for fresh clients and charges the chat limit once", func(t *testing.T) {
		var seenLimit int
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				assert.True(t, util.IsValidRateToken(token))
				seenLimit = limit
				return true, nil
			},
		}
		m := NewRateLimitMiddleware(tracker, &mockAbuseRecorder{}, generalLimit, chatLimit, false)

		req := httptest.NewRequest(http.MethodGet, "/v1/hangouts", nil)
		rec, reached := serve(m, req)

		assert.True(t, reached)
		assert.Equal(t, chatLimit, seenLimit, "fresh tokens face the chat limit regardless of class")

		var minted *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == config.RateTokenCookie {
				minted = c
			}
		}
		require.NotNil(t, minted)
		assert.True(t, util.IsValidRateToken(minted.Value))
		assert.True(t, minted.HttpOnly)
	})

	t.Run("malformed tokens are replaced, not trusted", func(t *testing.T) {
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				assert.NotEqual(t, "garbage", token)
				return true, nil
			},
		}
		m := NewRateLimitMiddleware(tracker, &mockAbuseRecorder{}, generalLimit, chatLimit, false)

		req := httptest.NewRequest(http.MethodGet, "/v1/hangouts", nil)
		req.AddCookie(&http.Cookie{Name: config.RateTokenCookie, Value: "garbage"})
		_, reached := serve(m, req)
		assert.True(t, reached)
	})

	t.Run("rejects over-limit requests and records abuse", func(t *testing.T) {
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				return false, nil
			},
		}
		abuse := &mockAbuseRecorder{}
		m := NewRateLimitMiddleware(tracker, abuse, generalLimit, chatLimit, false)

		req := httptest.NewRequest(http.MethodPost, "/v1/hangouts/abc/chat", nil)
		req.Header.Set("X-Real-IP", "203.0.113.9")
		req.AddCookie(&http.Cookie{Name: config.RateTokenCookie, Value: validToken})

		rec, reached := serve(m, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.False(t, reached)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.Equal(t, []string{"203.0.113.9"}, abuse.violations)
	})

	t.Run("fails open when the counter store errors", func(t *testing.T) {
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				return false, errors.New("db down")
			},
		}
		m := NewRateLimitMiddleware(tracker, &mockAbuseRecorder{}, generalLimit, chatLimit, false)

		req := httptest.NewRequest(http.MethodGet, "/v1/hangouts", nil)
		req.AddCookie(&http.Cookie{Name: config.RateTokenCookie, Value: validToken})

		rec, reached := serve(m, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, reached)
	})

	t.Run("chat class uses the chat limit", func(t *testing.T) {
		var seenClass model.RequestClass
		var seenLimit int
		tracker := &mockRateTracker{
			checkAndIncrementFunc: func(ctx context.Context, token string, class model.RequestClass, limit int, nowMillis int64) (bool, error) {
				seenClass = class
				seenLimit = limit
				return true, nil
			},
		}
		m := NewRateLimitMiddleware(tracker, &mockAbuseRecorder{}, generalLimit, chatLimit, false)
		m.now = func() time.Time { return time.UnixMilli(1749132800000) }

		req := httptest.NewRequest(http.MethodPost, "/v1/hangouts/abc/chat", nil)
		req.AddCookie(&http.Cookie{Name: config.RateTokenCookie, Value: validToken})
		serve(m, req)

		assert.Equal(t, model.RequestClassChat, seenClass)
		assert.Equal(t, chatLimit, seenLimit)
	})
}
