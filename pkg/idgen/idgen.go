// Package idgen mints monotonic, lexicographically sortable identifiers for
// banks, memory units, entities, links, and paths.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New mints an ID as of now: a 12-hex-digit millisecond timestamp followed
// by 10 hex digits of randomness, combining crypto/rand and encoding/hex
// with a sortable prefix, since Bank.id and friends must sort by creation
// order.
func New() string {
	return NewAt(time.Now())
}

// NewAt mints an ID as of instant t. Two IDs minted within the same
// millisecond still compare correctly against IDs from other milliseconds
// because the timestamp prefix dominates lexicographic comparison; within
// the same millisecond, ordering falls back to the random suffix and is not
// guaranteed.
func NewAt(t time.Time) string {
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("idgen: rand.Read: %v", err))
	}
	return fmt.Sprintf("%012x%s", ms, hex.EncodeToString(buf[:]))
}
