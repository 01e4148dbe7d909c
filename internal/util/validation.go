package util

import (
	"regexp"
	"strconv"
)

// Hangout identifiers are a 32-char random segment, an underscore, and the
// 13-digit millisecond creation timestamp.
var hangoutIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{32}_[0-9]{13}$`)

// Session tokens are 32 random bytes hex encoded.
var sessionTokenRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Rate tokens carry a fixed "rt" prefix and a 30-char alphanumeric body.
var rateTokenRegex = regexp.MustCompile(`^rt[A-Za-z0-9]{30}$`)

func IsValidHangoutID(s string) bool {
	return hangoutIDRegex.MatchString(s)
}

func IsValidSessionToken(s string) bool {
	return sessionTokenRegex.MatchString(s)
}

func IsValidRateToken(s string) bool {
	return rateTokenRegex.MatchString(s)
}

// ParseMemberID parses a hangout member id, which must be a positive integer.
func ParseMemberID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
