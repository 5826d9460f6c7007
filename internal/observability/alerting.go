package observability

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	SourceFailureStreak int `yaml:"source_failure_streak" json:"source_failure_streak"`
	MaxDroppedPerRun    int `yaml:"max_dropped_per_run" json:"max_dropped_per_run"`
	EmptyRunStreak      int `yaml:"empty_run_streak" json:"empty_run_streak"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		SourceFailureStreak: 3,
		MaxDroppedPerRun:    0,
		EmptyRunStreak:      3,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading ranking events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
	}
}

// Evaluate reads completed ranking runs and checks all alert conditions,
// returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := time.Now().UTC()

	runs, err := ae.eventLog.Read(EventFilter{Type: EventRankingCompleted, Last: ae.window()})
	if err != nil {
		return nil, fmt.Errorf("reading ranking runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkFailingSources(runs, now)...)
	alerts = append(alerts, ae.checkMandatoryOverflow(runs, now)...)
	alerts = append(alerts, ae.checkDroppedItems(runs, now)...)
	alerts = append(alerts, ae.checkEmptyRuns(runs, now)...)
	return alerts, nil
}

// window is the number of trailing runs any check looks at.
func (ae *alertEngine) window() int {
	return max(ae.thresholds.SourceFailureStreak, ae.thresholds.EmptyRunStreak, 1)
}

// lastRuns returns the trailing n runs, or nil if fewer exist.
func lastRuns(runs []Event, n int) []Event {
	if n <= 0 || len(runs) < n {
		return nil
	}
	return runs[len(runs)-n:]
}

// failedSources parses the comma-joined failed_sources field of a run.
func failedSources(run Event) []string {
	raw, _ := run.Data["failed_sources"].(string)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// checkFailingSources looks for sources that failed in every one of the
// most recent runs.
func (ae *alertEngine) checkFailingSources(runs []Event, now time.Time) []Alert {
	window := lastRuns(runs, ae.thresholds.SourceFailureStreak)
	if window == nil {
		return nil
	}

	counts := make(map[string]int)
	for _, run := range window {
		for _, st := range failedSources(run) {
			counts[st]++
		}
	}

	var failing []string
	for st, n := range counts {
		if n == len(window) {
			failing = append(failing, st)
		}
	}
	sort.Strings(failing)

	var alerts []Alert
	for _, st := range failing {
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("source-failing-%s", st),
			Condition:   "source_failing",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("source %s failed in the last %d ranking runs", st, len(window)),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkMandatoryOverflow alerts when the latest run had more always-include
// items than its max_items setting.
func (ae *alertEngine) checkMandatoryOverflow(runs []Event, now time.Time) []Alert {
	last := runs[len(runs)-1]
	if !isOverflow(last) {
		return nil
	}
	return []Alert{{
		ID:        "mandatory-overflow",
		Condition: "mandatory_overflow",
		Severity:  SeverityMedium,
		Message: fmt.Sprintf("latest ranking had %d mandatory items, more than max_items %d",
			intField(last.Data, "always_included"), intField(last.Data, "max_items")),
		TriggeredAt: now,
	}}
}

// checkDroppedItems alerts when validation dropped more items than allowed
// in the latest run.
func (ae *alertEngine) checkDroppedItems(runs []Event, now time.Time) []Alert {
	last := runs[len(runs)-1]
	dropped := intField(last.Data, "dropped")
	if dropped <= ae.thresholds.MaxDroppedPerRun {
		return nil
	}
	return []Alert{{
		ID:          "items-dropped",
		Condition:   "items_dropped",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("latest ranking dropped %d invalid items", dropped),
		TriggeredAt: now,
	}}
}

// checkEmptyRuns alerts when the most recent runs all selected nothing.
func (ae *alertEngine) checkEmptyRuns(runs []Event, now time.Time) []Alert {
	window := lastRuns(runs, ae.thresholds.EmptyRunStreak)
	if window == nil {
		return nil
	}
	for _, run := range window {
		if intField(run.Data, "selected") > 0 {
			return nil
		}
	}
	return []Alert{{
		ID:          "empty-rankings",
		Condition:   "empty_rankings",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("the last %d ranking runs selected no items", len(window)),
		TriggeredAt: now,
	}}
}
