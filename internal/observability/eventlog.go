package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event types written by the ranking engine and the action commands.
const (
	EventRankingCompleted    = "ranking.completed"
	EventRankingSourceFailed = "ranking.source_failed"
	EventItemDropped         = "priority.item_dropped"
	EventActionResolved      = "action.resolved"
	EventActionSnoozed       = "action.snoozed"
)

// Event represents a single observable event in the system.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "ranking.completed", "action.snoozed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// LevelFor returns the log level recorded for an event type.
func LevelFor(eventType string) string {
	switch eventType {
	case EventRankingSourceFailed, EventItemDropped:
		return "WARN"
	default:
		return "INFO"
	}
}

// EventFilter specifies criteria for reading events. Last, when positive,
// keeps only the newest Last matching events.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
	Last  int
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (or creates) the JSONL event log at path, creating
// parent directories as needed.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
	}, nil
}

// Write appends a JSON-encoded event followed by a newline to the log file.
func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the log line by line and returns the events matching filter,
// oldest first. Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		if !matchesEventFilter(event, filter) {
			continue
		}
		events = append(events, event)
		if filter.Last > 0 && len(events) > 2*filter.Last {
			events = append(events[:0], events[len(events)-filter.Last:]...)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	if filter.Last > 0 && len(events) > filter.Last {
		events = events[len(events)-filter.Last:]
	}
	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// matchesEventFilter checks whether an event satisfies all filter criteria.
func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	return true
}

// EventLogger adapts an EventLog to the engine's LogEvent seam, stamping each
// event with the current time and its level.
type EventLogger struct {
	Log   EventLog
	Clock func() time.Time
}

// LogEvent writes one event of the given type.
func (l EventLogger) LogEvent(eventType string, data map[string]any) error {
	now := time.Now
	if l.Clock != nil {
		now = l.Clock
	}
	return l.Log.Write(Event{
		Time:    now().UTC(),
		Level:   LevelFor(eventType),
		Type:    eventType,
		Message: Summarize(eventType, data),
		Data:    data,
	})
}

// Summarize renders the one-line message stored with an event.
func Summarize(eventType string, data map[string]any) string {
	switch eventType {
	case EventRankingCompleted:
		return fmt.Sprintf("ranked %d of %d items", intField(data, "selected"), intField(data, "considered"))
	case EventRankingSourceFailed:
		return fmt.Sprintf("source %v failed: %v", data["source_type"], data["error"])
	case EventItemDropped:
		return fmt.Sprintf("dropped %v: %v", data["item_id"], data["reason"])
	case EventActionResolved:
		return fmt.Sprintf("resolved %v", data["item_id"])
	case EventActionSnoozed:
		return fmt.Sprintf("snoozed %v until %v", data["item_id"], data["until"])
	default:
		return eventType
	}
}
