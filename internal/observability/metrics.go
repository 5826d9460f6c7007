package observability

import (
	"fmt"
	"time"
)

// Metrics holds ranking and action metrics derived from the event log.
type Metrics struct {
	Runs             int            `json:"runs"`
	ItemsSelected    int            `json:"items_selected"`
	AvgSelected      float64        `json:"avg_selected"`
	AvgScore         float64        `json:"avg_score"`
	AlwaysIncluded   int            `json:"always_included"`
	OverflowRuns     int            `json:"overflow_runs"`
	ItemsDropped     int            `json:"items_dropped"`
	SourceFailures   map[string]int `json:"source_failures"`
	SelectedBySource map[string]int `json:"selected_by_source"`
	Resolved         int            `json:"resolved"`
	Snoozed          int            `json:"snoozed"`
	ActionsBySource  map[string]int `json:"actions_by_source"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		SourceFailures:   make(map[string]int),
		SelectedBySource: make(map[string]int),
		ActionsBySource:  make(map[string]int),
	}
	m.EventCount = len(events)

	var scoreSum float64
	var scoredRuns int
	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventRankingCompleted:
			m.Runs++
			selected := intField(event.Data, "selected")
			m.ItemsSelected += selected
			m.AlwaysIncluded += intField(event.Data, "always_included")
			if isOverflow(event) {
				m.OverflowRuns++
			}
			if selected > 0 {
				scoreSum += floatField(event.Data, "avg_score")
				scoredRuns++
			}
			if dist, ok := event.Data["distribution"].(map[string]any); ok {
				for st, n := range dist {
					m.SelectedBySource[st] += toInt(n)
				}
			}
		case EventRankingSourceFailed:
			if st, ok := event.Data["source_type"].(string); ok {
				m.SourceFailures[st]++
			}
		case EventItemDropped:
			m.ItemsDropped++
		case EventActionResolved:
			m.Resolved++
			if st, ok := event.Data["source_type"].(string); ok {
				m.ActionsBySource[st]++
			}
		case EventActionSnoozed:
			m.Snoozed++
			if st, ok := event.Data["source_type"].(string); ok {
				m.ActionsBySource[st]++
			}
		}
	}

	if m.Runs > 0 {
		m.AvgSelected = float64(m.ItemsSelected) / float64(m.Runs)
	}
	if scoredRuns > 0 {
		m.AvgScore = scoreSum / float64(scoredRuns)
	}

	return m, nil
}

// isOverflow reports whether a completed run had more mandatory items than
// its configured max_items.
func isOverflow(event Event) bool {
	return intField(event.Data, "always_included") > intField(event.Data, "max_items")
}

// intField reads a numeric field that may have been decoded from JSON as float64.
func intField(data map[string]any, key string) int {
	return toInt(data[key])
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
