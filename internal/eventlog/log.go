// Package eventlog implements the append-only lifecycle event log and the
// derived-state projection folded from it.
//
// The log file is line-delimited JSON: one event object per line, UTF-8,
// newline-terminated. Logical time is append order. The log is the single
// source of truth for work unit status; the projection in derived.go is a
// pure function of the log and is never mutated directly, only rebuilt.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wucoord/wu/internal/types"
)

// Log provides append and read access to one JSONL event log file.
// Appends are single atomic open-append-close writes; prior bytes are
// never rewritten. Cross-process mutual exclusion is delegated to the
// VCS push that eventually carries the file, not to an in-process lock.
type Log struct {
	path string
}

// New returns a Log over the given JSONL file path. The file need not
// exist yet; it is created on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the underlying log file path.
func (l *Log) Path() string {
	return l.path
}

// Append validates the event shape and appends it as one JSON line.
// The write is a single open-append-close so a crash can at worst lose
// the trailing line, never corrupt earlier ones.
func (l *Log) Append(ev types.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("refusing to append: %w", err)
	}
	return l.appendRaw([]types.Event{ev})
}

// AppendAll appends multiple events in order as one open-append-close
// write. Used by archival bucket writes and repair event synthesis, where
// a unit's events must land as one indivisible group.
func (l *Log) AppendAll(events []types.Event) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return fmt.Errorf("refusing to append event %d: %w", i, err)
		}
	}
	return l.appendRaw(events)
}

func (l *Log) appendRaw(events []types.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	var buf []byte
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}

// ReadAll reads every event in append order. Malformed lines are reported
// as warnings rather than aborting the read: a best-effort view of a
// partially corrupted log beats no view at all.
func (l *Log) ReadAll() ([]types.Event, []ReplayWarning, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []types.Event
	var warnings []ReplayWarning
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			warnings = append(warnings, ReplayWarning{
				Line:    lineNo,
				Message: fmt.Sprintf("malformed event line: %v", err),
			})
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, warnings, nil
}

// Tail returns the last n events in append order.
func (l *Log) Tail(n int) ([]types.Event, error) {
	events, _, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(events) {
		return events, nil
	}
	return events[len(events)-n:], nil
}

// Rewrite atomically replaces the log contents with the given events,
// writing to a temp file in the same directory and renaming over the
// original. Only archival and duplicate-id repair may call this; normal
// operation never rewrites prior bytes.
func (l *Log) Rewrite(events []types.Event) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".events-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp log: %w", err)
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode event: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to write temp log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp log: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace event log: %w", err)
	}
	return nil
}
