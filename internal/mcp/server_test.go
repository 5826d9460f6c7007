package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/pkg/models"
)

// --- Fake implementations ---

type fakeEngine struct {
	result *core.RankResult
	err    error

	mu      sync.Mutex
	lastCfg models.PriorityConfig
	calls   int
}

func (f *fakeEngine) Rank(_ context.Context, cfg models.PriorityConfig) (*core.RankResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCfg = cfg
	f.calls++
	return f.result, f.err
}

type actionCall struct {
	kind       string
	sourceType models.SourceType
	sourceID   string
	until      time.Time
}

type fakeActions struct {
	err error

	mu    sync.Mutex
	calls []actionCall
}

func (f *fakeActions) Resolve(_ context.Context, st models.SourceType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, actionCall{kind: "resolve", sourceType: st, sourceID: id})
	return f.err
}

func (f *fakeActions) Snooze(_ context.Context, st models.SourceType, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, actionCall{kind: "snooze", sourceType: st, sourceID: id, until: until})
	return f.err
}

type fakeActionLog struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (f *fakeActionLog) LogEvent(eventType string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	f.data = append(f.data, data)
	return nil
}

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

func sampleResult() *core.RankResult {
	due := time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC)
	effort := 0.4
	return &core.RankResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Items: []models.WorkItem{
			{
				ID:              "task-42",
				SourceType:      models.SourceTask,
				SourceID:        "42",
				Title:           "Send term sheet",
				PriorityScore:   0.82,
				UrgencyScore:    1.0,
				ImportanceScore: 0.9,
				RecencyScore:    0.5,
				CommitmentScore: 0.7,
				EffortScore:     &effort,
				Reasoning:       "Overdue. High priority. Linked to Acme.",
				ContextLabels:   []string{"Task", "Acme"},
				Signals: []models.Signal{
					{Source: "due_date", Weight: 1.0, Description: "1 day overdue"},
				},
				DueAt:       &due,
				IsOverdue:   true,
				CompanyName: "Acme",
			},
			{
				ID:            "inbox-msg-7",
				SourceType:    models.SourceInbox,
				SourceID:      "msg-7",
				Title:         "Re: board deck",
				PriorityScore: 0.55,
				Reasoning:     "Unread.",
			},
		},
		Stats: core.RankStats{
			Total: 2,
			Distribution: map[models.SourceType]int{
				models.SourceTask:  1,
				models.SourceInbox: 1,
			},
		},
		Considered:   5,
		Excluded:     1,
		Dropped:      []core.DroppedItem{{ID: "task-9", Reason: "missing title"}},
		SourceErrors: map[models.SourceType]string{models.SourceCalendarEvent: "fetching calendar_event: timeout"},
	}
}

func newTestServer(deps Deps) *Server {
	s := NewServer(deps, "test")
	s.clock = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return s
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}

	return result
}

// callToolAllowError is like callTool but returns nil instead of failing when
// the tool call returns an error (e.g. schema validation failure).
func callToolAllowError(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		// Protocol-level error (e.g. schema validation) -- return nil.
		return nil
	}

	return result
}

// decodeOutput unmarshals a successful tool result, preferring the text
// content and falling back to the structured content.
func decodeOutput(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()

	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return
	}
	if result.StructuredContent == nil {
		t.Fatalf("unmarshalling output (text was: %s)", text)
	}
	data, _ := json.Marshal(result.StructuredContent)
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling structured output: %v", err)
	}
}

// --- Tests ---

func TestRankItems(t *testing.T) {
	eng := &fakeEngine{result: sampleResult()}
	srv := newTestServer(Deps{Engine: eng})

	result := callTool(t, srv, "rank_items", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out rankItemsOutput
	decodeOutput(t, result, &out)

	if out.Count != 2 {
		t.Errorf("count = %d, want 2", out.Count)
	}
	if out.RunID != "run-1" {
		t.Errorf("run_id = %q, want run-1", out.RunID)
	}
	if len(out.Items) > 0 {
		first := out.Items[0]
		if first.ID != "task-42" || first.SourceType != "task" {
			t.Errorf("first item = %s/%s, want task-42/task", first.ID, first.SourceType)
		}
		if first.DueAt != "2026-03-09T17:00:00Z" {
			t.Errorf("due_at = %q", first.DueAt)
		}
	}
	if out.Dropped != 1 || out.Excluded != 1 || out.Considered != 5 {
		t.Errorf("counts = %d/%d/%d, want dropped 1, excluded 1, considered 5", out.Dropped, out.Excluded, out.Considered)
	}
	if out.Distribution["inbox"] != 1 {
		t.Errorf("distribution[inbox] = %d, want 1", out.Distribution["inbox"])
	}
	if !strings.Contains(out.SourceErrors["calendar_event"], "timeout") {
		t.Errorf("source_errors = %v, want calendar_event timeout", out.SourceErrors)
	}
}

func TestRankItemsOverrides(t *testing.T) {
	eng := &fakeEngine{result: sampleResult()}
	base := models.DefaultPriorityConfig()
	base.MaxItems = 7
	srv := newTestServer(Deps{Engine: eng, Config: func() models.PriorityConfig { return base }})

	result := callTool(t, srv, "rank_items", map[string]any{"max_items": 3, "min_score": 0.5})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if eng.lastCfg.MaxItems != 3 {
		t.Errorf("max_items = %d, want 3", eng.lastCfg.MaxItems)
	}
	if eng.lastCfg.MinScore != 0.5 {
		t.Errorf("min_score = %v, want 0.5", eng.lastCfg.MinScore)
	}
	if eng.lastCfg.MaxItemsPerSource != base.MaxItemsPerSource {
		t.Errorf("max_items_per_source = %d, want %d", eng.lastCfg.MaxItemsPerSource, base.MaxItemsPerSource)
	}
}

func TestRankItemsInvalidOverride(t *testing.T) {
	eng := &fakeEngine{result: sampleResult()}
	srv := newTestServer(Deps{Engine: eng})

	result := callToolAllowError(t, srv, "rank_items", map[string]any{"min_score": 1.5})
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for min_score above 1")
	}
	if eng.calls != 0 {
		t.Errorf("engine called %d times, want 0", eng.calls)
	}
}

func TestRankItemsEngineError(t *testing.T) {
	srv := newTestServer(Deps{Engine: &fakeEngine{err: context.Canceled}})

	result := callTool(t, srv, "rank_items", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result when ranking fails")
	}
}

func TestRankItemsNoEngine(t *testing.T) {
	srv := newTestServer(Deps{})

	result := callTool(t, srv, "rank_items", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when engine is nil")
	}
}

func TestExplainItem(t *testing.T) {
	srv := newTestServer(Deps{Engine: &fakeEngine{result: sampleResult()}})

	result := callTool(t, srv, "explain_item", map[string]any{"item_id": "task-42"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out explainItemOutput
	decodeOutput(t, result, &out)

	if out.Item.Reasoning != "Overdue. High priority. Linked to Acme." {
		t.Errorf("reasoning = %q", out.Item.Reasoning)
	}
	if out.UrgencyScore != 1.0 {
		t.Errorf("urgency = %v, want 1.0", out.UrgencyScore)
	}
	if out.EffortScore == nil || *out.EffortScore != 0.4 {
		t.Errorf("effort = %v, want 0.4", out.EffortScore)
	}
	if len(out.Signals) != 1 || out.Signals[0].Source != "due_date" {
		t.Errorf("signals = %+v, want one due_date signal", out.Signals)
	}
}

func TestExplainItemNotRanked(t *testing.T) {
	srv := newTestServer(Deps{Engine: &fakeEngine{result: sampleResult()}})

	result := callTool(t, srv, "explain_item", map[string]any{"item_id": "task-999"})
	if !result.IsError {
		t.Fatal("expected error for item outside the ranked list")
	}
	if !strings.Contains(extractText(result), "not in ranked list") {
		t.Errorf("error text = %q", extractText(result))
	}
}

func TestExplainItemMissingID(t *testing.T) {
	srv := newTestServer(Deps{Engine: &fakeEngine{result: sampleResult()}})

	// The SDK validates required fields at the schema level, so calling
	// explain_item without item_id may fail before reaching the handler.
	result := callToolAllowError(t, srv, "explain_item", map[string]any{})
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing item_id")
	}
}

func TestResolveItem(t *testing.T) {
	actions := &fakeActions{}
	log := &fakeActionLog{}
	srv := newTestServer(Deps{Engine: &fakeEngine{}, Actions: actions, ActionLog: log})

	result := callTool(t, srv, "resolve_item", map[string]any{"item_id": "inbox-msg-7"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	if len(actions.calls) != 1 {
		t.Fatalf("action calls = %d, want 1", len(actions.calls))
	}
	call := actions.calls[0]
	if call.kind != "resolve" || call.sourceType != models.SourceInbox || call.sourceID != "msg-7" {
		t.Errorf("call = %+v, want resolve inbox msg-7", call)
	}
	if len(log.events) != 1 || log.events[0] != observability.EventActionResolved {
		t.Errorf("events = %v, want [%s]", log.events, observability.EventActionResolved)
	}
	if log.data[0]["item_id"] != "inbox-msg-7" {
		t.Errorf("logged item_id = %v", log.data[0]["item_id"])
	}
}

func TestResolveItemInvalidID(t *testing.T) {
	actions := &fakeActions{}
	srv := newTestServer(Deps{Engine: &fakeEngine{}, Actions: actions})

	result := callTool(t, srv, "resolve_item", map[string]any{"item_id": "newsletter-3"})
	if !result.IsError {
		t.Fatal("expected error for unknown source type")
	}
	if len(actions.calls) != 0 {
		t.Errorf("action calls = %d, want 0", len(actions.calls))
	}
}

func TestResolveItemStoreError(t *testing.T) {
	log := &fakeActionLog{}
	srv := newTestServer(Deps{
		Engine:    &fakeEngine{},
		Actions:   &fakeActions{err: errors.New("source entity not found")},
		ActionLog: log,
	})

	result := callTool(t, srv, "resolve_item", map[string]any{"item_id": "task-1"})
	if !result.IsError {
		t.Fatal("expected error when the store fails")
	}
	if len(log.events) != 0 {
		t.Errorf("events = %v, want none after a failed action", log.events)
	}
}

func TestSnoozeItemFor(t *testing.T) {
	actions := &fakeActions{}
	log := &fakeActionLog{}
	srv := newTestServer(Deps{Engine: &fakeEngine{}, Actions: actions, ActionLog: log})

	result := callTool(t, srv, "snooze_item", map[string]any{"item_id": "task-42", "for": "3d"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	want := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	if len(actions.calls) != 1 || !actions.calls[0].until.Equal(want) {
		t.Fatalf("calls = %+v, want snooze until %s", actions.calls, want)
	}
	if len(log.events) != 1 || log.events[0] != observability.EventActionSnoozed {
		t.Errorf("events = %v, want [%s]", log.events, observability.EventActionSnoozed)
	}
	if log.data[0]["until"] != "2026-03-13T09:00:00Z" {
		t.Errorf("logged until = %v", log.data[0]["until"])
	}
}

func TestSnoozeItemUntil(t *testing.T) {
	actions := &fakeActions{}
	srv := newTestServer(Deps{Engine: &fakeEngine{}, Actions: actions})

	result := callTool(t, srv, "snooze_item", map[string]any{"item_id": "task-42", "until": "2026-03-11T08:00:00+02:00"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if len(actions.calls) != 1 || !actions.calls[0].until.Equal(want) {
		t.Fatalf("calls = %+v, want snooze until %s", actions.calls, want)
	}
}

func TestSnoozeItemInvalid(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"no time", map[string]any{"item_id": "task-42"}},
		{"both", map[string]any{"item_id": "task-42", "for": "1d", "until": "2026-03-11T08:00:00Z"}},
		{"past", map[string]any{"item_id": "task-42", "until": "2026-03-01T08:00:00Z"}},
		{"bad for", map[string]any{"item_id": "task-42", "for": "soon"}},
		{"bad id", map[string]any{"item_id": "task", "for": "1d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &fakeActions{}
			srv := newTestServer(Deps{Engine: &fakeEngine{}, Actions: actions})

			result := callTool(t, srv, "snooze_item", tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if len(actions.calls) != 0 {
				t.Errorf("action calls = %d, want 0", len(actions.calls))
			}
		})
	}
}

func TestSnoozeItemNoActions(t *testing.T) {
	srv := newTestServer(Deps{Engine: &fakeEngine{}})

	result := callTool(t, srv, "snooze_item", map[string]any{"item_id": "task-42", "for": "1d"})
	if !result.IsError {
		t.Fatal("expected error when action applier is nil")
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			Runs:             4,
			ItemsSelected:    30,
			AvgSelected:      7.5,
			SourceFailures:   map[string]int{"calendar_event": 2},
			SelectedBySource: map[string]int{"task": 20, "inbox": 10},
			Resolved:         3,
			EventCount:       42,
			OldestEvent:      &now,
			NewestEvent:      &now,
		},
	}
	srv := newTestServer(Deps{MetricsCalc: mc})

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var m metricsOutput
	decodeOutput(t, result, &m)

	if m.Runs != 4 {
		t.Errorf("runs = %d, want 4", m.Runs)
	}
	if m.SourceFailures["calendar_event"] != 2 {
		t.Errorf("source_failures[calendar_event] = %d, want 2", m.SourceFailures["calendar_event"])
	}
	if m.EventCount != 42 {
		t.Errorf("event_count = %d, want 42", m.EventCount)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv := newTestServer(Deps{})

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result")
	}
}

func TestGetMetricsBadSince(t *testing.T) {
	srv := newTestServer(Deps{MetricsCalc: &fakeMetricsCalculator{metrics: &observability.Metrics{}}})

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "7w"})
	if !result.IsError {
		t.Fatal("expected error for unsupported since suffix")
	}
}

func TestGetAlerts(t *testing.T) {
	now := time.Now().UTC()
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "source-failing-calendar_event",
				Condition:   "source_failing",
				Severity:    observability.SeverityHigh,
				Message:     "source calendar_event failed in the last 3 ranking runs",
				TriggeredAt: now,
			},
		},
	}
	srv := newTestServer(Deps{AlertEngine: ae})

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out getAlertsOutput
	decodeOutput(t, result, &out)

	if out.Count != 1 {
		t.Errorf("count = %d, want 1", out.Count)
	}
	if len(out.Alerts) > 0 && out.Alerts[0].Severity != "high" {
		t.Errorf("severity = %s, want high", out.Alerts[0].Severity)
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv := newTestServer(Deps{})

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestGetAlertsEmpty(t *testing.T) {
	srv := newTestServer(Deps{AlertEngine: &fakeAlertEngine{alerts: []observability.Alert{}}})

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out getAlertsOutput
	decodeOutput(t, result, &out)
	if out.Count != 0 {
		t.Errorf("count = %d, want 0", out.Count)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSnoozeUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := snoozeUntil(now, "4h", "")
	if err != nil {
		t.Fatalf("snoozeUntil: %v", err)
	}
	if want := now.Add(4 * time.Hour); !got.Equal(want) {
		t.Errorf("snoozeUntil(4h) = %s, want %s", got, want)
	}

	if _, err := snoozeUntil(now, "", ""); !errors.Is(err, errNoSnoozeTime) {
		t.Errorf("err = %v, want errNoSnoozeTime", err)
	}
	if _, err := snoozeUntil(now, "0h", ""); err == nil {
		t.Error("expected error for zero-length snooze")
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
