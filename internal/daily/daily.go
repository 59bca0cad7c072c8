// internal/daily/daily.go
//
// Deterministic daily word index.
// Every process given the same salt picks the same word for a user on a
// given UTC date.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UserWordIndex returns HMAC(salt, YYYY-MM-DD|userID) % n, giving each user a
// stable word per day that differs between users.
func UserWordIndex(date time.Time, salt, userID string, n int) int {
	return index(salt, DateKey(date)+"|"+userID, n)
}

func index(salt, msg string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(msg))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}
