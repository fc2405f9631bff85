package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	dirMode  os.FileMode = 0o700
	fileMode os.FileMode = 0o600
)

var (
	ErrNotFound      = errors.New("profile directory not found")
	ErrNotADirectory = errors.New("profile directory is not a directory")
	ErrInvalidName   = errors.New("invalid profile name")
	ErrRead          = errors.New("failed to read profile")
	ErrParse         = errors.New("failed to parse profile")
	ErrIO            = errors.New("failed to write profile")
)

// restrictPermissions is false on platforms without a POSIX permission model.
var restrictPermissions = runtime.GOOS != "windows"

// Store keeps one JSON file per profile directly under BaseDir. The file on
// disk is the only source of truth; nothing is cached between calls.
type Store struct {
	BaseDir string
}

// ListResult holds the profiles found by List together with the files that
// could not be parsed as a profile.
type ListResult struct {
	Records []*Record
	Skipped []string
}

func NewStore(baseDir string) *Store {
	return &Store{BaseDir: baseDir}
}

// Path returns the file that holds the named profile. It does not touch the
// filesystem.
func (s *Store) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.BaseDir, name), nil
}

// ValidateName rejects names that would escape the base directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, os.PathSeparator):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// List parses every regular file directly under the base directory. Files
// that are not valid profiles are skipped and reported in ListResult.Skipped.
func (s *Store) List() (*ListResult, error) {
	if err := s.checkBaseDir(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	result := &ListResult{}
	for _, entry := range entries {
		path := filepath.Join(s.BaseDir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		record, err := decode(entry.Name(), content)
		if err != nil {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// Load reads the named profile.
func (s *Store) Load(name string) (*Record, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	if err := s.checkBaseDir(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, name, err)
	}
	return decode(name, content)
}

// Save writes the record to the file named after it. The base directory is
// restricted to the owner before the file is created, and the file is
// restricted before any content is written to it.
func (s *Store) Save(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrIO)
	}
	path, err := s.Path(r.Name)
	if err != nil {
		return err
	}
	out := *r
	if out.Version == 0 {
		out.Version = CurrentVersion
	}
	content, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrIO, r.Name, err)
	}

	if err := os.MkdirAll(s.BaseDir, dirMode); err != nil {
		return fmt.Errorf("%w: failed to create profile dir: %w", ErrIO, err)
	}
	if restrictPermissions {
		if err := os.Chmod(s.BaseDir, dirMode); err != nil {
			return fmt.Errorf("%w: failed to restrict profile dir: %w", ErrIO, err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrIO, r.Name, err)
	}
	if restrictPermissions {
		if err := f.Chmod(fileMode); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w %s: failed to restrict file: %w", ErrIO, r.Name, err)
		}
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w %s: %w", ErrIO, r.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrIO, r.Name, err)
	}
	return nil
}

func (s *Store) checkBaseDir() error {
	info, err := os.Stat(s.BaseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, s.BaseDir)
		}
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, s.BaseDir)
	}
	return nil
}

// requiredFields must be present in a profile file. Their values may be
// zero.
var requiredFields = []string{"version", "name", "client_id", "client_secret", "scopes", "redirect_url"}

// decode parses a profile file. The file name is the identity of a profile,
// so it wins over the name stored inside the file.
func decode(name string, content []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(content, &r); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, name, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, name, err)
	}
	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w %s: missing field %q", ErrParse, name, key)
		}
	}
	r.Name = name
	return &r, nil
}
