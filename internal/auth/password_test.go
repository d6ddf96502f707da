package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCodeVerifier(t *testing.T) {
	hash, err := HashCode("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tests := []struct {
		name     string
		verifier *CodeVerifier
		code     string
		want     bool
	}{
		{name: "plain match", verifier: NewCodeVerifier("s3cret", ""), code: "s3cret", want: true},
		{name: "plain mismatch", verifier: NewCodeVerifier("s3cret", ""), code: "nope", want: false},
		{name: "hash match", verifier: NewCodeVerifier("", hash), code: "s3cret", want: true},
		{name: "hash wins over plain", verifier: NewCodeVerifier("other", hash), code: "other", want: false},
		{name: "nothing configured", verifier: NewCodeVerifier("", ""), code: "", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.verifier.Verify(tc.code); got != tc.want {
				t.Fatalf("Verify(%q)=%v want %v", tc.code, got, tc.want)
			}
		})
	}
}
