package signer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ore "github.com/Milo123459/ore-app"
)

// FileKeyStore persists the active keypair as a base58 string in a
// single file, created owner-read-only.
type FileKeyStore struct {
	path string
}

// NewFileKeyStore creates a store at the given path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

var _ ore.KeyStore = (*FileKeyStore)(nil)

// Save writes the key, replacing any previous one. The key text is
// validated before it touches disk so a corrupt paste can never
// clobber a working keypair.
func (s *FileKeyStore) Save(privateKeyBase58 string) error {
	if v := ore.ValidateKeyInput(privateKeyBase58); !v.Valid {
		return fmt.Errorf("refusing to persist an invalid keypair")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(privateKeyBase58+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// Load reads the persisted key.
func (s *FileKeyStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read keystore: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
