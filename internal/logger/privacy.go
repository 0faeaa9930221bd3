package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const minHashSaltLength = 32

var hashSalt = "default-salt-change-in-production"

// InitHashSalt loads the salt used for hashing identifiers in logs.
// It panics when LOG_HASH_SALT is missing or shorter than 32 characters.
func InitHashSalt() {
	salt := os.Getenv("LOG_HASH_SALT")
	if len(salt) < minHashSaltLength {
		panic(fmt.Sprintf("LOG_HASH_SALT must be at least %d characters", minHashSaltLength))
	}
	hashSalt = salt
}

// InitHashSaltForTesting sets the salt directly.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashUserID creates a privacy-preserving hash of a user ID.
// This allows tracking user actions without exposing actual user IDs.
func HashUserID(userID string) string {
	if userID == "" {
		return "<none>"
	}
	hash := sha256.Sum256([]byte(userID + ":" + hashSalt))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeEmail keeps the domain and the first character of the local part.
func SanitizeEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return SanitizeText(email)
	}
	return local[:1] + "***@" + domain
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
