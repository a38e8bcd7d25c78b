package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the current access token outside the process.
// Load returns (nil, nil) when nothing has been stored yet.
type Store interface {
	Load(ctx context.Context) (*AccessToken, error)
	Save(ctx context.Context, tok AccessToken) error
}

// record is the persisted shape shared by every Store implementation.
type record struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// legacyTimeLayout matches timestamps written without a zone offset by
// older deployments of the service.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

func encodeRecord(tok AccessToken) ([]byte, error) {
	return json.MarshalIndent(record{
		AccessToken: tok.Value,
		ExpiresAt:   tok.ExpiresAt.Format(time.RFC3339Nano),
	}, "", "  ")
}

func decodeRecord(data []byte) (*AccessToken, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse token record: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, errors.New("token record has no access_token")
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, rec.ExpiresAt)
	if err != nil {
		expiresAt, err = time.ParseInLocation(legacyTimeLayout, rec.ExpiresAt, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at %q: %w", rec.ExpiresAt, err)
		}
	}

	return &AccessToken{Value: rec.AccessToken, ExpiresAt: expiresAt}, nil
}

// FileStore keeps the token in a single JSON file. There is no locking:
// concurrent writers race and the last rename wins.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed token store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the cache file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cached token from disk
func (s *FileStore) Load(_ context.Context) (*AccessToken, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache %s: %w", s.path, err)
	}
	return decodeRecord(data)
}

// Save writes the token as one complete JSON document. The document is
// written to a temporary file first and renamed over the cache file.
func (s *FileStore) Save(_ context.Context, tok AccessToken) error {
	data, err := encodeRecord(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close token cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token cache %s: %w", s.path, err)
	}
	return nil
}
