package main

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func testStore(t *testing.T) (*SessionStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := NewSessionStore(fs, "/data/cookies.json")
	store.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
	return store, fs
}

func TestNormalizeCookieDefaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	raw := RawCookie{
		Domain: ".youtube.com",
		Path:   "/",
		Name:   "SID",
		Value:  "abc",
	}

	got := NormalizeCookie(raw, now)

	if !got.Session {
		t.Error("Expected session-only cookie to keep session=true")
	}
	if got.ExpirationDate != float64(now.Add(sessionCookieTTL).Unix()) {
		t.Errorf("Expected defaulted expiry a year out, got %f", got.ExpirationDate)
	}
	if got.SameSite != "unspecified" {
		t.Errorf("Expected sameSite default 'unspecified', got %q", got.SameSite)
	}
	if got.StoreID != "0" {
		t.Errorf("Expected storeId '0', got %q", got.StoreID)
	}
	if got.HostOnly {
		t.Error("Expected hostOnly=false for dot-prefixed domain")
	}
}

func TestNormalizeCookieHostOnly(t *testing.T) {
	now := time.Now()

	tests := []struct {
		domain   string
		hostOnly bool
	}{
		{".youtube.com", false},
		{"www.youtube.com", true},
		{".google.com", false},
		{"accounts.google.com", true},
	}

	for _, tt := range tests {
		got := NormalizeCookie(RawCookie{Domain: tt.domain, Name: "x", Value: "y"}, now)
		if got.HostOnly != tt.hostOnly {
			t.Errorf("Domain %s: expected hostOnly=%v, got %v", tt.domain, tt.hostOnly, got.HostOnly)
		}
	}
}

func TestNormalizeCookieDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	raw := RawCookie{
		Domain:   ".google.com",
		Path:     "/",
		Name:     "HSID",
		Value:    "zzz",
		Expires:  1800000000,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "lax",
	}

	first := NormalizeCookie(raw, now)
	second := NormalizeCookie(raw, now)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalization not deterministic: %+v != %+v", first, second)
	}

	if first.ExpirationDate != 1800000000 {
		t.Errorf("Expected explicit expiry preserved, got %f", first.ExpirationDate)
	}
	if first.Session {
		t.Error("Expected session=false with explicit expiry")
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	raw := []RawCookie{
		{Domain: ".youtube.com", Path: "/", Name: "SID", Value: "abc", Expires: 1800000000, Secure: true},
		{Domain: "www.youtube.com", Path: "/feed", Name: "PREF", Value: "tz=UTC", HTTPOnly: true, SameSite: "lax"},
	}

	count, err := store.Persist(raw)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 persisted records, got %d", count)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []NormalizedCookie{
		NormalizeCookie(raw[0], store.now()),
		NormalizeCookie(raw[1], store.now()),
	}

	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", loaded, want)
	}
}

func TestPersistFieldNames(t *testing.T) {
	store, fs := testStore(t)

	if _, err := store.Persist([]RawCookie{{Domain: ".youtube.com", Name: "SID", Value: "abc"}}); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, err := afero.ReadFile(fs, "/data/cookies.json")
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	// The downstream client expects these exact field names.
	for _, field := range []string{
		`"domain"`, `"expirationDate"`, `"hostOnly"`, `"httpOnly"`, `"name"`,
		`"path"`, `"sameSite"`, `"secure"`, `"session"`, `"storeId"`, `"value"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Session file missing field %s", field)
		}
	}
}

func TestPersistBackupBeforeOverwrite(t *testing.T) {
	store, fs := testStore(t)

	if _, err := store.Persist([]RawCookie{{Domain: ".youtube.com", Name: "SID", Value: "first"}}); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}

	original, err := afero.ReadFile(fs, "/data/cookies.json")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Persist([]RawCookie{{Domain: ".youtube.com", Name: "SID", Value: "second"}}); err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	backups, err := store.listBackups()
	if err != nil {
		t.Fatalf("listBackups failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(backups))
	}

	backedUp, err := afero.ReadFile(fs, backups[0])
	if err != nil {
		t.Fatal(err)
	}

	if string(backedUp) != string(original) {
		t.Error("Backup does not match the prior session file")
	}

	current, err := afero.ReadFile(fs, "/data/cookies.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(current), "second") {
		t.Error("Current session file was not replaced")
	}
}

func TestPersistBackupRetention(t *testing.T) {
	store, _ := testStore(t)

	// Advance the clock per persist so backup names stay unique and ordered.
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	step := 0
	store.now = func() time.Time {
		return base.Add(time.Duration(step) * time.Minute)
	}

	for i := 0; i < 8; i++ {
		step = i
		cookies := []RawCookie{{Domain: ".youtube.com", Name: "SID", Value: fmt.Sprintf("v%d", i)}}
		if _, err := store.Persist(cookies); err != nil {
			t.Fatalf("Persist %d failed: %v", i, err)
		}
	}

	backups, err := store.listBackups()
	if err != nil {
		t.Fatalf("listBackups failed: %v", err)
	}

	if len(backups) != maxBackups {
		t.Fatalf("Expected %d backups after 8 persists, got %d", maxBackups, len(backups))
	}
}

func TestPersistBackupNameCollision(t *testing.T) {
	store, _ := testStore(t)

	// Fixed clock: every backup lands in the same second.
	for i := 0; i < 4; i++ {
		cookies := []RawCookie{{Domain: ".youtube.com", Name: "SID", Value: fmt.Sprintf("v%d", i)}}
		if _, err := store.Persist(cookies); err != nil {
			t.Fatalf("Persist %d failed: %v", i, err)
		}
	}

	backups, err := store.listBackups()
	if err != nil {
		t.Fatalf("listBackups failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("Expected 3 distinct backups, got %d: %v", len(backups), backups)
	}
}
