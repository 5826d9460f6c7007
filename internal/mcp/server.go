// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the attention ranking as MCP tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/pkg/models"
)

// Server wraps attn services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	engine      core.PriorityEngine
	actions     core.ActionApplier
	actionLog   core.EventLogger
	config      func() models.PriorityConfig
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	clock       func() time.Time
}

// Deps groups the services the MCP server calls. Engine is required; the
// rest may be nil, in which case the matching tools report themselves
// unavailable.
type Deps struct {
	Engine      core.PriorityEngine
	Actions     core.ActionApplier
	ActionLog   core.EventLogger
	Config      func() models.PriorityConfig
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over the given services.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = models.DefaultPriorityConfig
	}

	s := &Server{
		engine:      deps.Engine,
		actions:     deps.Actions,
		actionLog:   deps.ActionLog,
		config:      cfg,
		metricsCalc: deps.MetricsCalc,
		alertEngine: deps.AlertEngine,
		clock:       time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "attn", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type rankItemsInput struct {
	MaxItems int     `json:"max_items,omitempty" jsonschema:"override the maximum number of items returned"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"override the minimum priority score (0 to 1)"`
}

type itemOutput struct {
	ID            string   `json:"id"`
	SourceType    string   `json:"source_type"`
	SourceID      string   `json:"source_id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	PriorityScore float64  `json:"priority_score"`
	Reasoning     string   `json:"reasoning"`
	ContextLabels []string `json:"context_labels,omitempty"`
	DueAt         string   `json:"due_at,omitempty"`
	EventStartAt  string   `json:"event_start_at,omitempty"`
	IsOverdue     bool     `json:"is_overdue,omitempty"`
	CompanyName   string   `json:"company_name,omitempty"`
}

type rankItemsOutput struct {
	RunID        string            `json:"run_id"`
	Items        []itemOutput      `json:"items"`
	Count        int               `json:"count"`
	Considered   int               `json:"considered"`
	Excluded     int               `json:"excluded"`
	Dropped      int               `json:"dropped"`
	Distribution map[string]int    `json:"distribution"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

type explainItemInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id (e.g. task-42 or inbox-msg-7)"`
}

type signalOutput struct {
	Source      string  `json:"source"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

type explainItemOutput struct {
	Item            itemOutput     `json:"item"`
	UrgencyScore    float64        `json:"urgency_score"`
	ImportanceScore float64        `json:"importance_score"`
	RecencyScore    float64        `json:"recency_score"`
	CommitmentScore float64        `json:"commitment_score"`
	EffortScore     *float64       `json:"effort_score,omitempty"`
	Signals         []signalOutput `json:"signals"`
}

type resolveItemInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id to resolve (e.g. task-42)"`
}

type snoozeItemInput struct {
	ItemID string `json:"item_id" jsonschema:"required,the work item id to snooze (e.g. inbox-msg-7)"`
	Until  string `json:"until,omitempty" jsonschema:"RFC3339 time to snooze until"`
	For    string `json:"for,omitempty" jsonschema:"relative snooze length (e.g. 4h, 3d)"`
}

type actionOutput struct {
	Message string `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
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
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "rank_items",
		Description: "Rank everything that needs attention across tasks, inbox, calendar, companies, reading and commitments. Returns the top items with scores and reasoning.",
	}, s.handleRankItems)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "explain_item",
		Description: "Explain why a ranked item scored the way it did: component scores and the signals behind them.",
	}, s.handleExplainItem)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_item",
		Description: "Mark an item as done in the store that owns it (complete a task, mark a message read, advance a commitment).",
	}, s.handleResolveItem)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "snooze_item",
		Description: "Hide an item from the ranking until a later time. Provide either until (RFC3339) or for (e.g. 4h, 3d).",
	}, s.handleSnoozeItem)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated ranking metrics from the event log: runs, selections per source, source failures and actions.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failing sources, mandatory overflow, dropped items, empty rankings).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleRankItems(ctx context.Context, _ *gomcp.CallToolRequest, input rankItemsInput) (*gomcp.CallToolResult, rankItemsOutput, error) {
	if s.engine == nil {
		return errorResult("priority engine not available"), rankItemsOutput{}, nil
	}

	cfg := s.config()
	if input.MaxItems > 0 {
		cfg.MaxItems = input.MaxItems
	}
	if input.MinScore > 0 {
		cfg.MinScore = input.MinScore
	}
	if err := core.ValidatePriorityConfig(cfg); err != nil {
		return errorResult(err.Error()), rankItemsOutput{}, nil
	}

	result, err := s.engine.Rank(ctx, cfg)
	if err != nil {
		return errorResult(fmt.Sprintf("ranking: %s", err)), rankItemsOutput{}, nil
	}

	out := rankItemsOutput{
		RunID:        result.RunID,
		Items:        make([]itemOutput, len(result.Items)),
		Count:        len(result.Items),
		Considered:   result.Considered,
		Excluded:     result.Excluded,
		Dropped:      len(result.Dropped),
		Distribution: make(map[string]int, len(result.Stats.Distribution)),
	}
	for i, item := range result.Items {
		out.Items[i] = itemToOutput(item)
	}
	for st, n := range result.Stats.Distribution {
		out.Distribution[string(st)] = n
	}
	if len(result.SourceErrors) > 0 {
		out.SourceErrors = make(map[string]string, len(result.SourceErrors))
		for st, msg := range result.SourceErrors {
			out.SourceErrors[string(st)] = msg
		}
	}

	return nil, out, nil
}

func (s *Server) handleExplainItem(ctx context.Context, _ *gomcp.CallToolRequest, input explainItemInput) (*gomcp.CallToolResult, explainItemOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), explainItemOutput{}, nil
	}
	if s.engine == nil {
		return errorResult("priority engine not available"), explainItemOutput{}, nil
	}

	result, err := s.engine.Rank(ctx, s.config())
	if err != nil {
		return errorResult(fmt.Sprintf("ranking: %s", err)), explainItemOutput{}, nil
	}
	item, err := core.Explain(result, input.ItemID)
	if err != nil {
		return errorResult(err.Error()), explainItemOutput{}, nil
	}

	out := explainItemOutput{
		Item:            itemToOutput(item),
		UrgencyScore:    item.UrgencyScore,
		ImportanceScore: item.ImportanceScore,
		RecencyScore:    item.RecencyScore,
		CommitmentScore: item.CommitmentScore,
		EffortScore:     item.EffortScore,
		Signals:         make([]signalOutput, len(item.Signals)),
	}
	for i, sig := range item.Signals {
		out.Signals[i] = signalOutput{Source: sig.Source, Weight: sig.Weight, Description: sig.Description}
	}
	return nil, out, nil
}

func (s *Server) handleResolveItem(ctx context.Context, _ *gomcp.CallToolRequest, input resolveItemInput) (*gomcp.CallToolResult, actionOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), actionOutput{}, nil
	}
	if s.actions == nil {
		return errorResult("source stores not available"), actionOutput{}, nil
	}

	st, id, err := models.ParseWorkItemID(input.ItemID)
	if err != nil {
		return errorResult(err.Error()), actionOutput{}, nil
	}
	if err := s.actions.Resolve(ctx, st, id); err != nil {
		return errorResult(fmt.Sprintf("resolving %s: %s", input.ItemID, err)), actionOutput{}, nil
	}
	s.logAction(observability.EventActionResolved, st, id, nil)

	return nil, actionOutput{Message: fmt.Sprintf("resolved %s", input.ItemID)}, nil
}

func (s *Server) handleSnoozeItem(ctx context.Context, _ *gomcp.CallToolRequest, input snoozeItemInput) (*gomcp.CallToolResult, actionOutput, error) {
	if input.ItemID == "" {
		return errorResult("item_id is required"), actionOutput{}, nil
	}
	if s.actions == nil {
		return errorResult("source stores not available"), actionOutput{}, nil
	}

	st, id, err := models.ParseWorkItemID(input.ItemID)
	if err != nil {
		return errorResult(err.Error()), actionOutput{}, nil
	}
	until, err := snoozeUntil(s.clock().UTC(), input.For, input.Until)
	if err != nil {
		return errorResult(err.Error()), actionOutput{}, nil
	}
	if err := s.actions.Snooze(ctx, st, id, until); err != nil {
		return errorResult(fmt.Sprintf("snoozing %s: %s", input.ItemID, err)), actionOutput{}, nil
	}
	s.logAction(observability.EventActionSnoozed, st, id, map[string]any{
		"until": until.Format(time.RFC3339),
	})

	return nil, actionOutput{Message: fmt.Sprintf("snoozed %s until %s", input.ItemID, until.Format(time.RFC3339))}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Runs:             metrics.Runs,
		ItemsSelected:    metrics.ItemsSelected,
		AvgSelected:      metrics.AvgSelected,
		AvgScore:         metrics.AvgScore,
		AlwaysIncluded:   metrics.AlwaysIncluded,
		OverflowRuns:     metrics.OverflowRuns,
		ItemsDropped:     metrics.ItemsDropped,
		SourceFailures:   metrics.SourceFailures,
		SelectedBySource: metrics.SelectedBySource,
		Resolved:         metrics.Resolved,
		Snoozed:          metrics.Snoozed,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func (s *Server) logAction(eventType string, st models.SourceType, id string, extra map[string]any) {
	if s.actionLog == nil {
		return
	}
	data := map[string]any{
		"source_type": string(st),
		"source_id":   id,
		"item_id":     models.WorkItemID(st, id),
	}
	for k, v := range extra {
		data[k] = v
	}
	_ = s.actionLog.LogEvent(eventType, data)
}

func itemToOutput(item models.WorkItem) itemOutput {
	out := itemOutput{
		ID:            item.ID,
		SourceType:    string(item.SourceType),
		SourceID:      item.SourceID,
		Title:         item.Title,
		Subtitle:      item.Subtitle,
		PriorityScore: item.PriorityScore,
		Reasoning:     item.Reasoning,
		ContextLabels: item.ContextLabels,
		IsOverdue:     item.IsOverdue,
		CompanyName:   item.CompanyName,
	}
	if item.DueAt != nil {
		out.DueAt = item.DueAt.Format(time.RFC3339)
	}
	if item.EventStartAt != nil {
		out.EventStartAt = item.EventStartAt.Format(time.RFC3339)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		SourceFailures:   make(map[string]int),
		SelectedBySource: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

var errNoSnoozeTime = errors.New("either until or for is required")

// snoozeUntil resolves the absolute or relative snooze time. Exactly one of
// forStr and untilStr must be set, and the result must lie after now.
func snoozeUntil(now time.Time, forStr, untilStr string) (time.Time, error) {
	var until time.Time
	switch {
	case forStr == "" && untilStr == "":
		return time.Time{}, errNoSnoozeTime
	case forStr != "" && untilStr != "":
		return time.Time{}, errors.New("use either until or for, not both")
	case forStr != "":
		d, err := parseDuration(forStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing for: %w", err)
		}
		until = now.Add(d)
	default:
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing until: %w", err)
		}
		until = t.UTC()
	}
	if !until.After(now) {
		return time.Time{}, fmt.Errorf("snooze time %s is not in the future", until.Format(time.RFC3339))
	}
	return until, nil
}

// parseDuration parses a human-friendly duration like "3d" or "24h".
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(num) * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}

// parseSince parses a duration string like "7d", "30d", or "24h" into the
// corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	d, err := parseDuration(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().UTC().Add(-d), nil
}
