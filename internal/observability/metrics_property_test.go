package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var sourceTypes = []string{"task", "deal", "calendar_event", "commitment", "reading_item", "email_thread"}

// Selected counts summed across runs always match ItemsSelected, and the
// per-source distribution sums to the same total.
func TestProperty_MetricsSelectedMatchesDistribution(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		el, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
		if err != nil {
			t.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		runs := rapid.IntRange(1, 15).Draw(rt, "runs")
		want := 0
		for i := 0; i < runs; i++ {
			dist := map[string]any{}
			selected := 0
			for _, st := range sourceTypes {
				n := rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("n_%d_%s", i, st))
				if n > 0 {
					dist[st] = n
					selected += n
				}
			}
			want += selected
			if err := el.Write(rankingEvent(time.Duration(i)*time.Minute, map[string]any{
				"selected":     selected,
				"max_items":    10,
				"distribution": dist,
			})); err != nil {
				t.Fatalf("writing: %v", err)
			}
		}

		m, err := NewMetricsCalculator(el).Calculate(metricsBase.Add(-time.Hour))
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		if m.Runs != runs {
			rt.Errorf("Runs = %d, want %d", m.Runs, runs)
		}
		if m.ItemsSelected != want {
			rt.Errorf("ItemsSelected = %d, want %d", m.ItemsSelected, want)
		}
		total := 0
		for _, n := range m.SelectedBySource {
			total += n
		}
		if total != want {
			rt.Errorf("sum(SelectedBySource) = %d, want %d", total, want)
		}
	})
}

// EventCount equals the number of events written regardless of their type.
func TestProperty_MetricsEventCountIsTotal(t *testing.T) {
	types := []string{EventRankingCompleted, EventRankingSourceFailed, EventItemDropped, EventActionResolved, EventActionSnoozed, "unknown.event"}
	rapid.Check(t, func(rt *rapid.T) {
		el, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
		if err != nil {
			t.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		n := rapid.IntRange(0, 30).Draw(rt, "n")
		for i := 0; i < n; i++ {
			typ := rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("type_%d", i))
			st := rapid.SampledFrom(sourceTypes).Draw(rt, fmt.Sprintf("st_%d", i))
			if err := el.Write(Event{
				Time: metricsBase.Add(time.Duration(i) * time.Second),
				Type: typ,
				Data: map[string]any{"source_type": st},
			}); err != nil {
				t.Fatalf("writing: %v", err)
			}
		}

		m, err := NewMetricsCalculator(el).Calculate(metricsBase)
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		if m.EventCount != n {
			rt.Errorf("EventCount = %d, want %d", m.EventCount, n)
		}
		actions := 0
		for _, c := range m.ActionsBySource {
			actions += c
		}
		if actions != m.Resolved+m.Snoozed {
			rt.Errorf("ActionsBySource total %d != Resolved+Snoozed %d", actions, m.Resolved+m.Snoozed)
		}
	})
}
