package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const userIDFile = "user_id"

// LoadOrCreateUserID returns the user id stored in dir, generating and
// saving one on first use. It survives restarts of the client.
func LoadOrCreateUserID(dir string) (string, error) {
	path := filepath.Join(dir, userIDFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}

	id := "user_" + uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to save user id: %w", err)
	}
	return id, nil
}

// NewSessionID returns a session id for one run of the client.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}
