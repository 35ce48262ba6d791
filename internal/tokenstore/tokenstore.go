// Package tokenstore handles encryption of provider credentials before they
// reach the connections table, and decryption when an adapter needs them.
package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JustinD79/diaguard/internal/crypto"
	"github.com/JustinD79/diaguard/internal/database/connections"
	"github.com/JustinD79/diaguard/internal/entities"
)

const (
	// EnvEncryptionKey is the environment variable for the encryption key.
	EnvEncryptionKey = "TOKEN_ENCRYPTION_KEY"

	// DefaultKeyFileName is the default name for the key file.
	DefaultKeyFileName = ".diaguard-token-key"
)

// TokenStore seals and opens connection credentials.
type TokenStore struct {
	encryptor *crypto.Encryptor
}

// Credentials is a plaintext token pair as received from a provider's
// authorization flow. It is never persisted in this form.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
}

// New creates a TokenStore with the given base64-encoded 32-byte key.
// An empty key falls back to the TOKEN_ENCRYPTION_KEY environment variable,
// then to a key file in the user's home directory (generated on first use).
func New(encodedKey string) (*TokenStore, error) {
	key, err := resolveEncryptionKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}

	encryptor, err := crypto.NewEncryptorFromBase64(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &TokenStore{encryptor: encryptor}, nil
}

// Seal encrypts plaintext credentials into the form stored on a connection.
func (s *TokenStore) Seal(creds Credentials) (connections.AuthData, error) {
	access, err := s.encryptor.Encrypt(creds.AccessToken)
	if err != nil {
		return connections.AuthData{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := s.encryptor.Encrypt(creds.RefreshToken)
	if err != nil {
		return connections.AuthData{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return connections.AuthData{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  creds.TokenExpiry,
	}, nil
}

// Open decrypts the credentials stored on a connection for adapter use.
func (s *TokenStore) Open(conn *entities.ProviderConnection) (Credentials, error) {
	access, err := s.encryptor.Decrypt(conn.AccessToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := s.encryptor.Decrypt(conn.RefreshToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  conn.TokenExpiry,
	}, nil
}

func resolveEncryptionKey(encodedKey string) (string, error) {
	if encodedKey != "" {
		return encodedKey, nil
	}

	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return envKey, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	keyFilePath := filepath.Join(homeDir, DefaultKeyFileName)

	if data, err := os.ReadFile(keyFilePath); err == nil {
		return string(data), nil
	}

	newKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	if err := os.WriteFile(keyFilePath, []byte(newKey), 0600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	return newKey, nil
}
