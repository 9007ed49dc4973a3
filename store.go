package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// RawCookie is the provider-native record harvested from the browser session.
// Expires is epoch seconds; zero or negative means session-only.
type RawCookie struct {
	Domain   string
	Path     string
	Name     string
	Value    string
	Expires  float64
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// NormalizedCookie is the consumer-facing schema. Field names and types are a
// compatibility contract with the downstream scraping client and must not
// change.
type NormalizedCookie struct {
	Domain         string  `json:"domain"`
	ExpirationDate float64 `json:"expirationDate"`
	HostOnly       bool    `json:"hostOnly"`
	HTTPOnly       bool    `json:"httpOnly"`
	Name           string  `json:"name"`
	Path           string  `json:"path"`
	SameSite       string  `json:"sameSite"`
	Secure         bool    `json:"secure"`
	Session        bool    `json:"session"`
	StoreID        string  `json:"storeId"`
	Value          string  `json:"value"`
}

const (
	cookieStoreID = "0"

	// Session-only cookies get a synthetic expiry a year out so the consumer
	// never discards them as already expired.
	sessionCookieTTL = 365 * 24 * time.Hour

	maxBackups = 5

	backupTimeFormat = "20060102-150405"
)

// SessionStore persists the normalized cookie bundle. It is the single writer
// of the session file; a prior file is always backed up before being replaced,
// and the new file appears atomically via temp-then-rename.
type SessionStore struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

func NewSessionStore(fs afero.Fs, path string) *SessionStore {
	return &SessionStore{
		fs:   fs,
		path: path,
		now:  time.Now,
	}
}

// NormalizeCookie derives the consumer schema from one raw record. Pure and
// deterministic for a fixed reference time: nothing beyond defaulting is
// invented.
func NormalizeCookie(raw RawCookie, now time.Time) NormalizedCookie {
	sessionOnly := raw.Expires <= 0

	expiry := raw.Expires
	if sessionOnly {
		expiry = float64(now.Add(sessionCookieTTL).Unix())
	}

	sameSite := raw.SameSite
	if sameSite == "" {
		sameSite = "unspecified"
	}

	return NormalizedCookie{
		Domain:         raw.Domain,
		ExpirationDate: expiry,
		HostOnly:       !strings.HasPrefix(raw.Domain, "."),
		HTTPOnly:       raw.HTTPOnly,
		Name:           raw.Name,
		Path:           raw.Path,
		SameSite:       sameSite,
		Secure:         raw.Secure,
		Session:        sessionOnly,
		StoreID:        cookieStoreID,
		Value:          raw.Value,
	}
}

// Persist normalizes and writes the bundle, returning the number of records
// written. The previous file, if any, is copied to a timestamped backup before
// the new file is put in place; at most maxBackups backups are retained.
func (s *SessionStore) Persist(cookies []RawCookie) (int, error) {
	now := s.now()

	normalized := make([]NormalizedCookie, 0, len(cookies))
	for _, raw := range cookies {
		normalized = append(normalized, NormalizeCookie(raw, now))
	}

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode session bundle: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create session directory: %w", err)
	}

	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat session file: %w", err)
	}
	if exists {
		if err := s.backupCurrent(now); err != nil {
			return 0, err
		}
		if err := s.pruneBackups(); err != nil {
			return 0, err
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write session file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return 0, fmt.Errorf("failed to replace session file: %w", err)
	}

	return len(normalized), nil
}

// Load reads the persisted bundle back. Used by tests and by operators
// inspecting the current session.
func (s *SessionStore) Load() ([]NormalizedCookie, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var cookies []NormalizedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}

	return cookies, nil
}

// backupCurrent copies the live session file to a timestamped sibling. The
// copy must complete before the live file is touched, so a failed run never
// costs the consumer its last good session.
func (s *SessionStore) backupCurrent(now time.Time) error {
	name := fmt.Sprintf("%s.bak-%s", s.path, now.Format(backupTimeFormat))

	// Two persists inside one second get distinct suffixes, keeping the
	// lexicographic order of backup names chronological.
	candidate := name
	for n := 1; ; n++ {
		exists, err := afero.Exists(s.fs, candidate)
		if err != nil {
			return fmt.Errorf("failed to stat backup file: %w", err)
		}
		if !exists {
			break
		}
		candidate = fmt.Sprintf("%s-%d", name, n)
	}

	src, err := s.fs.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open session file for backup: %w", err)
	}
	defer src.Close()

	dst, err := s.fs.OpenFile(candidate, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy session backup: %w", err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finish session backup: %w", err)
	}

	return nil
}

// pruneBackups deletes all but the maxBackups most recent backup files,
// ordered by their timestamped names.
func (s *SessionStore) pruneBackups() error {
	backups, err := s.listBackups()
	if err != nil {
		return err
	}

	if len(backups) <= maxBackups {
		return nil
	}

	for _, name := range backups[:len(backups)-maxBackups] {
		if err := s.fs.Remove(name); err != nil {
			return fmt.Errorf("failed to evict old backup %s: %w", name, err)
		}
	}

	return nil
}

func (s *SessionStore) listBackups() ([]string, error) {
	dir := filepath.Dir(s.path)
	prefix := filepath.Base(s.path) + ".bak-"

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(backups)
	return backups, nil
}
