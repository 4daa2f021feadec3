package model

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// generateSecureID creates a secure random ID with a prefix
func generateSecureID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s%s", prefix, base64.RawURLEncoding.EncodeToString(b))
}

// GenerateSecureToken creates a secure random token string
func GenerateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// splitFields splits a space-separated field list, tolerating extra spaces
func splitFields(s string) []string {
	return strings.Fields(s)
}
