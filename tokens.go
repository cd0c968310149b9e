package defects

import (
	"crypto/rand"
	"encoding/base64"
)

const opaqueTokenBytes = 32

// GenerateOpaqueToken returns a URL safe random string used for one time
// email confirmation. It is not signed, a token is valid while it is stored
// on a pending user.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
