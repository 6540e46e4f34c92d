// Package eventlog implements the append-only alert event log.
//
// Every mutation of an alert is an append of a full record; the current
// state of an alert is the last record written for its ID, in positional
// log order. Timestamps are informational only and never consulted when
// folding; out-of-order clocks from concurrent writers must not change
// which record wins.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/msageha/wildloop/internal/model"
)

const (
	// DefaultMaxLogSize is the rotation threshold (100MB).
	DefaultMaxLogSize = 100 * 1024 * 1024
	// LogFileExtension is the event log file extension.
	LogFileExtension = ".jsonl"
	// ArchiveDir is where rotated logs are moved.
	ArchiveDir = "archive"
)

// ErrAlertNotFound is returned by UpdateStatus when no record exists for the
// given alert ID. This indicates a driver logic bug, not a runtime condition.
var ErrAlertNotFound = errors.New("alert not found")

// Log is an append-only JSONL store of alert records. Appends are safe for
// concurrent use; folds always re-scan, so no read-modify-write race exists
// on a single record.
type Log struct {
	mu              sync.Mutex
	file            *os.File
	currentSize     int64
	maxSize         int64
	path            string
	rotationCounter int
}

// Open opens or creates the event log at path. maxSize <= 0 selects the
// default rotation threshold.
func Open(path string, maxSize int64) (*Log, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &Log{
		path:    path,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openLogFile() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat event log: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Append writes one alert record. Duplicate IDs are always accepted: the
// new record supersedes earlier ones for that ID.
func (l *Log) Append(alert model.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert record: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate event log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("append alert record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync event log: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

// rotate archives the current log and opens a fresh one. The latest record
// of every unresolved alert is re-appended to the fresh log, so folds keep
// seeing active alerts across rotation; resolved history lives only in the
// archive.
func (l *Log) rotate() error {
	latest, order, err := l.fold()
	if err != nil {
		return fmt.Errorf("fold before rotation: %w", err)
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.path), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	l.rotationCounter++
	baseName := filepath.Base(l.path)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(LogFileExtension)],
		timestamp,
		l.rotationCounter,
		LogFileExtension)

	if err := os.Rename(l.path, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive log: %w", err)
	}

	if err := l.openLogFile(); err != nil {
		return err
	}

	for _, id := range order {
		a := latest[id]
		if a.Status == model.AlertStatusResolved {
			continue
		}
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal carried record: %w", err)
		}
		data = append(data, '\n')
		n, err := l.file.Write(data)
		if err != nil {
			return fmt.Errorf("carry alert across rotation: %w", err)
		}
		l.currentSize += int64(n)
	}
	return nil
}

// fold scans the whole log and returns the latest record per ID, keyed and
// additionally ordered by each ID's first appearance so callers get stable
// log order. Malformed lines are skipped, never fatal.
func (l *Log) fold() (map[string]model.Alert, []string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.Alert{}, nil, nil
		}
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	latest := make(map[string]model.Alert)
	var order []string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var alert model.Alert
		if err := json.Unmarshal(line, &alert); err != nil {
			// one corrupt line must not poison the whole view
			continue
		}
		if alert.ID == "" {
			continue
		}
		if _, seen := latest[alert.ID]; !seen {
			order = append(order, alert.ID)
		}
		latest[alert.ID] = alert
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan event log: %w", err)
	}

	return latest, order, nil
}

// LoadCurrent returns the latest record per ID, excluding alerts whose
// folded status is resolved. This is the active-alerts view the selector
// consumes.
func (l *Log) LoadCurrent() ([]model.Alert, error) {
	latest, order, err := l.fold()
	if err != nil {
		return nil, err
	}

	var out []model.Alert
	for _, id := range order {
		a := latest[id]
		if a.Status == model.AlertStatusResolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// LoadAll returns the latest record per ID including resolved alerts,
// for history and reporting. Resolved alerts older than the last rotation
// are only in the archive.
func (l *Log) LoadAll() ([]model.Alert, error) {
	latest, order, err := l.fold()
	if err != nil {
		return nil, err
	}

	out := make([]model.Alert, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

// ReadFrom returns raw records appended after the given byte offset plus the
// new offset, so pollers avoid re-scanning the whole log. Offset 0 reads
// from the start. Records are returned unfolded, in append order.
func (l *Log) ReadFrom(offset int64) ([]model.Alert, int64, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat event log: %w", err)
	}
	// Rotation or truncation shrank the file: restart from the beginning.
	if offset > stat.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek event log: %w", err)
	}

	var out []model.Alert
	newOffset := offset

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// partial trailing line: leave it for the next read
			break
		}
		if err != nil {
			return nil, newOffset, fmt.Errorf("read event log: %w", err)
		}
		newOffset += int64(len(line))

		var alert model.Alert
		if jsonErr := json.Unmarshal(line, &alert); jsonErr != nil || alert.ID == "" {
			continue
		}
		out = append(out, alert)
	}

	return out, newOffset, nil
}

// UpdateStatus appends a new record for id that is the latest record merged
// with patch, the new status, and a fresh timestamp. History is never
// rewritten. Returns ErrAlertNotFound when no record exists for the ID and
// an error for an invalid status transition (e.g. reopening a resolved
// alert). Keeping the status unchanged is always allowed, so callers can
// patch context without moving the alert.
func (l *Log) UpdateStatus(id string, status model.AlertStatus, patch map[string]string) (model.Alert, error) {
	latest, _, err := l.fold()
	if err != nil {
		return model.Alert{}, err
	}

	prior, ok := latest[id]
	if !ok {
		return model.Alert{}, fmt.Errorf("update status for %q: %w", id, ErrAlertNotFound)
	}
	if err := model.ValidateAlertTransition(prior.Status, status); err != nil {
		return model.Alert{}, fmt.Errorf("update status for %q: %w", id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	next := prior
	next.Status = status
	next.Timestamp = now
	if len(patch) > 0 {
		merged := make(map[string]string, len(prior.Context)+len(patch))
		for k, v := range prior.Context {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		next.Context = merged
	}
	switch status {
	case model.AlertStatusResolved:
		next.ResolvedAt = now
	case model.AlertStatusEscalated:
		next.EscalatedAt = now
	}

	if err := l.Append(next); err != nil {
		return model.Alert{}, err
	}
	return next, nil
}

// Path returns the current event log path.
func (l *Log) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Size returns the current log file size in bytes.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentSize
}

// Close syncs and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}
