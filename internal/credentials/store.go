package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jvanloon/google-actions-proxy/internal/logger"
)

// Store persists the single TokenSet record.
type Store interface {
	// Load returns the stored TokenSet, or (nil, nil) when no usable record
	// exists. Callers must treat absence the same as "never authenticated".
	Load() (*TokenSet, error)

	// Save atomically overwrites the stored record.
	Save(*TokenSet) error
}

// FileStore implements Store on top of a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns /data/tokens.json when a /data disk is mounted,
// otherwise tokens.json in the working directory. The working directory is
// not durable on most hosting platforms, so a mounted disk wins.
func DefaultPath() string {
	if info, err := os.Stat("/data"); err == nil && info.IsDir() {
		return "/data/tokens.json"
	}
	return "tokens.json"
}

// Load reads the record from disk. A missing, unreadable or corrupt file is
// not an error: it reads as absent, the same state as before the first
// authorization.
func (s *FileStore) Load() (*TokenSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Get().Warn().Err(err).Str("path", s.path).Msg("Token file unreadable, treating as absent")
		}
		return nil, nil
	}

	ts := &TokenSet{}
	if err := json.Unmarshal(data, ts); err != nil {
		logger.Get().Warn().Err(err).Str("path", s.path).Msg("Token file corrupt, treating as absent")
		return nil, nil
	}
	return ts, nil
}

// Save writes the record via a temp file and rename so no concurrent reader
// ever observes a partial write.
func (s *FileStore) Save(ts *TokenSet) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("failed to marshal token set: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token file %s: %w", s.path, err)
	}
	return nil
}
