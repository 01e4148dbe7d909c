package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

const rateTokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateToken returns a 64-char hex session token.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken is the at-rest form of a session token; the raw token only ever
// lives in the client cookie.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GenerateRateToken returns a rate-limiting token: the fixed "rt" prefix
// followed by 30 random alphanumerics.
func GenerateRateToken() (string, error) {
	buf := make([]byte, 0, 32)
	buf = append(buf, 'r', 't')
	for i := 0; i < 30; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(rateTokenChars))))
		if err != nil {
			return "", err
		}
		buf = append(buf, rateTokenChars[n.Int64()])
	}
	return string(buf), nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
