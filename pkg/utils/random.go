package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomToken returns length random bytes encoded as unpadded
// base64url, safe for cookies and query strings.
func GenerateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	// err == nil only if len(b) bytes were read.
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
