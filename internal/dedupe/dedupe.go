// Package dedupe rejects retries of the same content that arrive within a
// short window. Two backends are provided: an in-process MemoryCache and a
// RedisCache shared between server instances.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Cache records retry attempts by content fingerprint.
type Cache interface {
	// CheckAndRecord reports whether content is accepted. An accepted
	// attempt is recorded so that the same content is rejected until the
	// window elapses. The check and the record happen atomically.
	CheckAndRecord(ctx context.Context, content string) (bool, error)
}

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Scoped prefixes content with a user scope so that identical content from
// different users does not collide.
func Scoped(userID, content string) string {
	return userID + "\x00" + content
}
