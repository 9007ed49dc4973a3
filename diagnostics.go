package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Diagnostics is the injected sink for operator-facing output: timestamped
// leveled log events plus best-effort page snapshots at failure points. The
// core never touches the filesystem for logging directly.
type Diagnostics interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)

	// Screenshot captures the page keyed by account and attempt number. It is
	// best-effort: a capture failure is logged and never propagated, so it can
	// not mask the outcome that triggered it.
	Screenshot(page *rod.Page, account string, attempt int)
}

// FileDiagnostics logs to the console and an append-only file, and writes
// screenshots into a dedicated directory. Every event carries the run ID so
// logs, screenshots, and the persisted bundle of one run can be correlated.
type FileDiagnostics struct {
	log   zerolog.Logger
	fs    afero.Fs
	dir   string
	runID string
}

func NewFileDiagnostics(fs afero.Fs, screenshotDir, logFile string, debug bool) (*FileDiagnostics, error) {
	runID := uuid.NewString()

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}

	if logFile != "" {
		if err := fs.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := fs.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}

	if screenshotDir != "" {
		if err := fs.MkdirAll(screenshotDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return &FileDiagnostics{
		log:   logger,
		fs:    fs,
		dir:   screenshotDir,
		runID: runID,
	}, nil
}

func (d *FileDiagnostics) RunID() string {
	return d.runID
}

func (d *FileDiagnostics) Debug(msg string, kv ...any) { d.emit(d.log.Debug(), msg, kv) }
func (d *FileDiagnostics) Info(msg string, kv ...any)  { d.emit(d.log.Info(), msg, kv) }
func (d *FileDiagnostics) Warn(msg string, kv ...any)  { d.emit(d.log.Warn(), msg, kv) }
func (d *FileDiagnostics) Error(msg string, kv ...any) { d.emit(d.log.Error(), msg, kv) }

func (d *FileDiagnostics) emit(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	e.Msg(msg)
}

func (d *FileDiagnostics) Screenshot(page *rod.Page, account string, attempt int) {
	if d.dir == "" || page == nil {
		return
	}

	data, err := page.Timeout(10 * time.Second).Screenshot(false, nil)
	if err != nil {
		d.log.Warn().Err(err).Str("account", account).Int("attempt", attempt).
			Msg("Screenshot capture failed")
		return
	}

	name := fmt.Sprintf("%s_attempt%d.png", sanitizeIdentifier(account), attempt)
	path := filepath.Join(d.dir, name)
	if err := afero.WriteFile(d.fs, path, data, 0644); err != nil {
		d.log.Warn().Err(err).Str("path", path).Msg("Screenshot write failed")
		return
	}

	d.log.Info().Str("path", path).Str("account", account).Int("attempt", attempt).
		Msg("Diagnostic screenshot captured")
}

// sanitizeIdentifier makes an account identifier safe to use as a file name.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// NopDiagnostics discards everything. Test double.
type NopDiagnostics struct{}

func (NopDiagnostics) Debug(string, ...any)              {}
func (NopDiagnostics) Info(string, ...any)               {}
func (NopDiagnostics) Warn(string, ...any)               {}
func (NopDiagnostics) Error(string, ...any)              {}
func (NopDiagnostics) Screenshot(*rod.Page, string, int) {}
