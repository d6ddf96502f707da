package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashCode hashes a registration code with the given cost.
func HashCode(code string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CodeVerifier checks the shared moderator registration code. A bcrypt hash
// takes precedence over the plaintext code when both are configured.
type CodeVerifier struct {
	plain string
	hash  string
}

// NewCodeVerifier builds a verifier.
func NewCodeVerifier(plain, hash string) *CodeVerifier {
	return &CodeVerifier{plain: plain, hash: hash}
}

// Verify reports whether code matches the configured secret.
func (v *CodeVerifier) Verify(code string) bool {
	if v.hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(v.hash), []byte(code)) == nil
	}
	if v.plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.plain), []byte(code)) == 1
}
