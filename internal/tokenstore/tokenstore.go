// Package tokenstore persists authorization tokens on the local filesystem.
// Each beneficiary's credential lives in its own JSON file under the token
// directory; an optional passphrase seals the file with an authenticated
// cipher so tokens never rest on disk in the clear.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benelink/benelink-go/internal/auth"
	"github.com/benelink/benelink-go/internal/util"
)

const filePrefix = "benelink-"

var patientNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store persists authorization tokens under a base directory.
type Store struct {
	mu         sync.Mutex
	baseDir    string
	passphrase string
}

// NewStore creates a token store rooted at dir. A leading tilde resolves to
// the user's home directory.
func NewStore(dir string) (*Store, error) {
	resolved, err := util.ResolveTokenDir(dir)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, fmt.Errorf("tokenstore: directory is empty")
	}
	return &Store{baseDir: resolved}, nil
}

// SetPassphrase enables encryption at rest. Tokens saved afterwards are
// sealed; Load requires the same passphrase for sealed files.
func (s *Store) SetPassphrase(passphrase string) {
	s.mu.Lock()
	s.passphrase = passphrase
	s.mu.Unlock()
}

// Dir returns the resolved base directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// PathFor returns the file path used for the given patient identifier.
// Tokens without a patient binding are stored under "anonymous".
func (s *Store) PathFor(patient string) string {
	name := strings.TrimSpace(patient)
	if name == "" {
		name = "anonymous"
	}
	name = patientNameSanitizer.ReplaceAllString(name, "_")
	return filepath.Join(s.baseDir, fmt.Sprintf("%s%s.json", filePrefix, name))
}

// Save persists the token under its patient-derived default path.
func (s *Store) Save(token *auth.AuthorizationToken) (string, error) {
	if token == nil {
		return "", fmt.Errorf("tokenstore: token is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.PathFor(token.Patient), token)
}

// SavePath persists the token to an explicit file path.
func (s *Store) SavePath(path string, token *auth.AuthorizationToken) (string, error) {
	if token == nil {
		return "", fmt.Errorf("tokenstore: token is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(path, token)
}

// write persists the token in its canonical wire format, creating the parent
// directory with owner-only permissions on first use. The caller holds the
// store lock.
func (s *Store) write(path string, token *auth.AuthorizationToken) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("tokenstore: create dir failed: %w", err)
	}

	raw, errMarshal := json.MarshalIndent(token.Payload(), "", "  ")
	if errMarshal != nil {
		return "", fmt.Errorf("tokenstore: marshal token failed: %w", errMarshal)
	}

	if s.passphrase != "" {
		sealed, errSeal := seal(raw, s.passphrase)
		if errSeal != nil {
			return "", fmt.Errorf("tokenstore: seal token failed: %w", errSeal)
		}
		raw = sealed
	}

	if errWrite := os.WriteFile(path, raw, 0o600); errWrite != nil {
		return "", fmt.Errorf("tokenstore: write file failed: %w", errWrite)
	}
	return path, nil
}

// Load reads the token stored for the given patient identifier.
func (s *Store) Load(patient string) (*auth.AuthorizationToken, error) {
	return s.LoadPath(s.PathFor(patient))
}

// LoadPath reads a token from an explicit file path. Sealed files are
// detected automatically and require the store passphrase.
func (s *Store) LoadPath(path string) (*auth.AuthorizationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("tokenstore: read file failed: %w", errRead)
	}

	if isSealed(data) {
		if s.passphrase == "" {
			return nil, fmt.Errorf("tokenstore: %s is encrypted and no passphrase is set", filepath.Base(path))
		}
		plain, errOpen := open(data, s.passphrase)
		if errOpen != nil {
			return nil, fmt.Errorf("tokenstore: unseal token failed: %w", errOpen)
		}
		data = plain
	}

	var payload auth.TokenPayload
	if errUnmarshal := json.Unmarshal(data, &payload); errUnmarshal != nil {
		return nil, fmt.Errorf("tokenstore: parse token failed: %w", errUnmarshal)
	}
	return auth.TokenFromPayload(&payload), nil
}

// List returns the patient identifiers that have stored tokens, sorted. A
// missing token directory yields an empty list, not an error.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenstore: read dir failed: %w", err)
	}

	var patients []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		patients = append(patients, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json"))
	}
	sort.Strings(patients)
	return patients, nil
}

// LatestPath returns the most recently written token file, for command-line
// flows that operate on "the" token without naming a patient.
func (s *Store) LatestPath() (string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("tokenstore: read dir failed: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(s.baseDir, name)
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("tokenstore: no stored tokens in %s", s.baseDir)
	}
	return latest, nil
}
