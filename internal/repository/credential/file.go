package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/face-attendance/internal/config"
)

// Credential is the persisted authentication material.
type Credential struct {
	// Token is the bearer token issued by the portal.
	Token string `json:"token"`
	// SavedAt is when the token was stored.
	SavedAt time.Time `json:"saved_at"`
}

// Repository defines persistence operations for the credential.
type Repository interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, credential *Credential) error
	Delete(ctx context.Context) error
}

// FileRepository persists the credential to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the credential file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no credential has been stored yet.
	ErrNotFound = errors.New("credential not found")
	// errEmptyToken is returned when saving a credential without a token.
	errEmptyToken = errors.New("credential token is empty")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the credential from disk. An empty file counts as missing.
func (r *FileRepository) Load(_ context.Context) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var stored Credential
	if err = json.Unmarshal(contents, &stored); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}

	if strings.TrimSpace(stored.Token) == "" {
		return nil, ErrNotFound
	}

	return &stored, nil
}

// Save writes the credential to disk, readable by the owner only.
func (r *FileRepository) Save(_ context.Context, credential *Credential) error {
	if credential == nil || strings.TrimSpace(credential.Token) == "" {
		return errEmptyToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credential directory: %w", err)
		}
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}

	return nil
}

// Delete removes the credential file. Deleting a missing file is not an error.
func (r *FileRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}

	return nil
}
