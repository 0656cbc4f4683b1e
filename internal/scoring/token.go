package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// tokenFile is the on-disk format. The wrapper object leaves room for
// cached metadata alongside the token later.
type tokenFile struct {
	Token *oauth2.Token `json:"token"`
}

// LoadToken reads a saved token from disk. Returns (nil, nil) if the
// file does not exist.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("scoring: reading token %s: %w", path, err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("scoring: decoding token %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("scoring: token file %s missing token field (re-login required)", path)
	}

	return tf.Token, nil
}

// SaveToken writes the token to disk atomically (write-to-temp +
// rename) with 0600 permissions. Never logs token values.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tokenFile{Token: tok}, "", "  ")
	if err != nil {
		return fmt.Errorf("scoring: encoding token: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("scoring: creating directory %s: %w", dir, mkErr)
	}

	// Temp file in the same directory guarantees same filesystem for
	// rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("scoring: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("scoring: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("scoring: writing token: %w", err)
	}

	// Flush before rename so a power loss cannot leave a partial token
	// file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("scoring: syncing token: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scoring: closing token file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("scoring: renaming token file: %w", err)
	}

	success = true

	return nil
}

// TokenProvider supplies bearer tokens to the client. Invalidate is
// called after a 401 so the next Token call refreshes.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Invalidate()
}

// FileTokenStore is a TokenProvider backed by a token file and an
// oauth2 refresh flow. Refreshed tokens are persisted back to disk so
// a restart does not re-refresh.
type FileTokenStore struct {
	path string
	cfg  *oauth2.Config

	mu      sync.Mutex
	cached  *oauth2.Token
	expired bool
}

// NewFileTokenStore loads the token at path. Returns ErrAuthExpired
// when no token file exists: the user has never logged in.
func NewFileTokenStore(path string, cfg *oauth2.Config) (*FileTokenStore, error) {
	tok, err := LoadToken(path)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, fmt.Errorf("scoring: no token at %s: %w", path, ErrAuthExpired)
	}

	return &FileTokenStore{path: path, cfg: cfg, cached: tok}, nil
}

// Token returns the cached token, refreshing it when it has expired or
// was invalidated. A failed refresh maps to ErrAuthExpired.
func (s *FileTokenStore) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached.Valid() && !s.expired {
		return s.cached, nil
	}

	if s.cfg == nil || s.cached.RefreshToken == "" {
		return nil, ErrAuthExpired
	}

	fresh, err := s.cfg.TokenSource(ctx, s.cached).Token()
	if err != nil {
		return nil, fmt.Errorf("scoring: refreshing token: %w", ErrAuthExpired)
	}

	s.cached = fresh
	s.expired = false

	if err := SaveToken(s.path, fresh); err != nil {
		// The refreshed token still works this session.
		return fresh, nil
	}

	return fresh, nil
}

// Invalidate marks the cached token stale so the next Token call
// forces a refresh.
func (s *FileTokenStore) Invalidate() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

// StaticTokenProvider returns a fixed token and never refreshes. Used
// in tests and for long-lived API keys.
type StaticTokenProvider oauth2.Token

func (p *StaticTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	return (*oauth2.Token)(p), nil
}

func (p *StaticTokenProvider) Invalidate() {}
