package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job cadences
const (
	RateReplenishInterval = 30 * time.Second
	StageTickInterval     = time.Minute
	HourlyCleanupInterval = time.Hour
	DailyCleanupInterval  = 24 * time.Hour
	JobRunTimeout         = 30 * time.Second
)

// Session lifetimes and the per-identity concurrent cap
const (
	SessionMaxAgeDefault      = 6 * time.Hour
	SessionMaxAgeKeepSignedIn = 7 * 24 * time.Hour
	MaxSessionsPerIdentity    = 3
	MaxSessionCreateAttempts  = 3
)

// Cookie names. The session cookie is the only secret; signedInAs exists so
// the client can render signed-in state without an extra round trip.
const (
	SessionCookie    = "hangout_session"
	SignedInAsCookie = "signedInAs"
	RateTokenCookie  = "rate_token"
)

// Rate limiter windows. Decay subtracts half of a class limit from every
// counter whose window is stale; idle zeroed counters are garbage collected.
const (
	RateDecayWindow   = 30 * time.Second
	RateIdleTTL       = 60 * time.Second
	AbuseQuietPeriod  = time.Hour
	AbuseForgiveCount = 10
)

// Sign-in attempt limiting (redis sliding window, per client IP)
const (
	SignInAttemptLimit  = 5
	SignInAttemptWindow = time.Minute
)

// Retained error log bound
const ErrorLogRetention = 30 * 24 * time.Hour
