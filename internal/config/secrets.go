package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// DefaultModeratorCode is written to a fresh secrets file.
const DefaultModeratorCode = "change-me"

// Secrets is the on-disk secrets document.
type Secrets struct {
	ModeratorCode string `json:"moderatorCode"`
	JWTSecret     string `json:"jwtSecret"`
}

// EnsureSecrets loads the secrets file, creating or repairing it with
// defaults when it is missing or incomplete.
func EnsureSecrets(path string) (Secrets, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var s Secrets
		if jsonErr := json.Unmarshal(data, &s); jsonErr == nil && s.ModeratorCode != "" && s.JWTSecret != "" {
			return s, nil
		}
	} else if !os.IsNotExist(err) {
		return Secrets{}, fmt.Errorf("read secrets file: %w", err)
	}

	secret, err := randomSecret()
	if err != nil {
		return Secrets{}, err
	}
	s := Secrets{ModeratorCode: DefaultModeratorCode, JWTSecret: secret}
	if err := writeSecrets(path, s); err != nil {
		return Secrets{}, err
	}
	return s, nil
}

func writeSecrets(path string, s Secrets) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
