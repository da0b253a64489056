// Package report writes machine-readable run logs and human-readable
// summaries of indexing, planning and apply runs.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType represents the type of event
type EventType string

const (
	EventIndex  EventType = "index"
	EventEnrich EventType = "enrich"
	EventPlan   EventType = "plan"
	EventSearch EventType = "search"
	EventApply  EventType = "apply"
	EventLocate EventType = "locate"
	EventError  EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the JSONL run log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	SrcPath   string            `json:"src_path,omitempty"`
	DestPath  string            `json:"dest_path,omitempty"`
	Status    string            `json:"status,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid
// and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *jsoniter.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates events-<timestamp>-<run>.jsonl in outputDir.
// Events below minLevel are dropped.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	filename := fmt.Sprintf("events-%s-%s.jsonl", time.Now().Format("20060102-150405"), runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogIndex logs a file added to (or skipped by) the catalogue
func (l *EventLogger) LogIndex(srcPath string, sizeBytes int64, inserted bool) error {
	status := "inserted"
	level := LevelInfo
	if !inserted {
		status = "exists"
		level = LevelDebug
	}
	return l.Log(&Event{
		Level:   level,
		Event:   EventIndex,
		SrcPath: srcPath,
		Status:  status,
		Bytes:   sizeBytes,
	})
}

// LogEnrich logs the outcome of a fingerprint lookup
func (l *EventLogger) LogEnrich(srcPath, recordingID string, err error) error {
	event := &Event{
		Level:   LevelDebug,
		Event:   EventEnrich,
		SrcPath: srcPath,
		Status:  "matched",
	}
	switch {
	case err != nil:
		event.Level = LevelWarning
		event.Status = "failed"
		event.Error = err.Error()
	case recordingID == "":
		event.Status = "no_match"
	default:
		event.Extra = map[string]string{"recording_id": recordingID}
	}
	return l.Log(event)
}

// LogPlan logs one plan entry
func (l *EventLogger) LogPlan(srcPath, destPath, status, reason string) error {
	level := LevelInfo
	if status != "ok" {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventPlan,
		SrcPath:  srcPath,
		DestPath: destPath,
		Status:   status,
		Reason:   reason,
	})
}

// LogSearch logs a catalogue query
func (l *EventLogger) LogSearch(query, mode string, threshold float64, matches int) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventSearch,
		Extra: map[string]string{
			"query":     query,
			"mode":      mode,
			"threshold": strconv.FormatFloat(threshold, 'f', -1, 64),
			"matches":   strconv.Itoa(matches),
		},
	})
}

// LogApply logs a file move
func (l *EventLogger) LogApply(srcPath, destPath string, bytes int64, duration time.Duration, err error) error {
	event := &Event{
		Level:    LevelInfo,
		Event:    EventApply,
		SrcPath:  srcPath,
		DestPath: destPath,
		Status:   "moved",
		Bytes:    bytes,
		Duration: duration.Milliseconds(),
	}
	if err != nil {
		event.Level = LevelError
		event.Status = "failed"
		event.Error = err.Error()
	}
	return l.Log(event)
}

// LogLocate logs a manual location update
func (l *EventLogger) LogLocate(ref, newPath string, rows int64) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventLocate,
		DestPath: newPath,
		Extra: map[string]string{
			"ref":  ref,
			"rows": strconv.FormatInt(rows, 10),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		SrcPath: srcPath,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the identifier stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

// LevelFor maps the CLI verbosity flags to an event level
func LevelFor(verbose, quiet bool) EventLevel {
	switch {
	case quiet:
		return LevelWarning
	case verbose:
		return LevelDebug
	default:
		return LevelInfo
	}
}
