// Package decision maintains the append-only audit trail of every
// selection, relaxation, validation, padding, and budget decision.
package decision

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Stage identifies which pipeline step produced a record.
type Stage string

const (
	StageSelection  Stage = "selection"
	StageRelaxation Stage = "relaxation"
	StageValidation Stage = "validation"
	StagePadding    Stage = "padding"
	StageBudget     Stage = "budget"
)

// Record is one immutable decision log entry. Records are never
// updated or deleted.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Daypart   string         `json:"daypart"`
	Stage     Stage          `json:"stage"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Outcome   map[string]any `json:"outcome,omitempty"`
	CostDelta float64        `json:"cost_delta,omitempty"`
}

// Logger appends JSON records, one per line, to a durable file.
// Concurrent appenders each produce whole lines: every append is a
// single write under the mutex.
type Logger struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open creates or opens the decision log at path in append mode.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "decision: open log %s", path)
	}
	return &Logger{f: f, path: path}, nil
}

// Append writes one record. Missing id and timestamp are filled in.
func (l *Logger) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "decision: marshal record")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return eris.Wrap(err, "decision: append record")
	}
	return nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Read parses every record in the log at path, oldest first.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "decision: open log %s", path)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, eris.Wrap(err, "decision: parse record")
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "decision: scan log")
	}
	return records, nil
}

// Tail returns the newest n records, optionally filtered by daypart.
func Tail(path, daypart string, n int) ([]Record, error) {
	records, err := Read(path)
	if err != nil {
		return nil, err
	}
	if daypart != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Daypart == daypart {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}
