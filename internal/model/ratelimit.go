package model

// RateTrackerEntry holds the two independent request counters for one
// client token. WindowTimestamp marks when the current decay window opened
// and is advanced only by the decay pass; LastRequestTimestamp tracks
// activity for the idle GC.
type RateTrackerEntry struct {
	Token                string `db:"token" json:"token"`
	GeneralCount         int    `db:"general_count" json:"generalCount"`
	ChatCount            int    `db:"chat_count" json:"chatCount"`
	WindowTimestamp      int64  `db:"window_timestamp" json:"windowTimestamp"`
	LastRequestTimestamp int64  `db:"last_request_timestamp" json:"lastRequestTimestamp"`
}

// AbusiveUser is the IP-keyed abuse ledger row, tracked independently of
// per-token counters so rotating tokens does not reset it.
type AbusiveUser struct {
	IP                    string `db:"ip" json:"ip"`
	RateLimitReachedCount int    `db:"rate_limit_reached_count" json:"rateLimitReachedCount"`
	FirstAbuseTimestamp   int64  `db:"first_abuse_timestamp" json:"firstAbuseTimestamp"`
	LatestAbuseTimestamp  int64  `db:"latest_abuse_timestamp" json:"latestAbuseTimestamp"`
}
