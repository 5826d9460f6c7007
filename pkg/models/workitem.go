package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceType identifies which backing store a WorkItem was produced from.
type SourceType string

const (
	SourceTask                SourceType = "task"
	SourceInbox               SourceType = "inbox"
	SourceCalendarEvent       SourceType = "calendar_event"
	SourcePortfolioCompany    SourceType = "portfolio_company"
	SourcePipelineCompany     SourceType = "pipeline_company"
	SourceReadingItem         SourceType = "reading_item"
	SourceRecurringCommitment SourceType = "recurring_commitment"
)

// AllSourceTypes lists every source type in display order.
var AllSourceTypes = []SourceType{
	SourceTask,
	SourceInbox,
	SourceCalendarEvent,
	SourcePortfolioCompany,
	SourcePipelineCompany,
	SourceReadingItem,
	SourceRecurringCommitment,
}

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	for _, known := range AllSourceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the short human-readable label used in context tags.
func (s SourceType) Label() string {
	switch s {
	case SourceTask:
		return "Task"
	case SourceInbox:
		return "Inbox"
	case SourceCalendarEvent:
		return "Meeting"
	case SourcePortfolioCompany:
		return "Portfolio"
	case SourcePipelineCompany:
		return "Pipeline"
	case SourceReadingItem:
		return "Reading"
	case SourceRecurringCommitment:
		return "Commitment"
	default:
		return string(s)
	}
}

// ParseSourceType converts a user-supplied string into a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown source type %q", s)
	}
	return st, nil
}

// WorkItemID builds the globally unique identifier for a source entity.
func WorkItemID(sourceType SourceType, sourceID string) string {
	return string(sourceType) + "-" + sourceID
}

// ParseWorkItemID splits an id built by WorkItemID back into its source
// type and source id. Source types never contain "-", so the first one
// separates the two.
func ParseWorkItemID(id string) (SourceType, string, error) {
	rawType, sourceID, ok := strings.Cut(id, "-")
	if !ok || sourceID == "" {
		return "", "", fmt.Errorf("invalid item id %q (want <source-type>-<source-id>)", id)
	}
	st, err := ParseSourceType(rawType)
	if err != nil {
		return "", "", err
	}
	return st, sourceID, nil
}

// Signal explains how one input contributed to an item's priority.
type Signal struct {
	Source      string  `json:"source" yaml:"source"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Description string  `json:"description" yaml:"description"`
}

// WorkItem is the normalized, scored representation of one unit of
// outstanding attention from any source.
type WorkItem struct {
	ID            string     `json:"id" yaml:"id"`
	SourceType    SourceType `json:"source_type" yaml:"source_type"`
	SourceID      string     `json:"source_id" yaml:"source_id"`
	Title         string     `json:"title" yaml:"title"`
	Subtitle      string     `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	ContextLabels []string   `json:"context_labels,omitempty" yaml:"context_labels,omitempty"`

	UrgencyScore    float64  `json:"urgency_score" yaml:"urgency_score"`
	ImportanceScore float64  `json:"importance_score" yaml:"importance_score"`
	RecencyScore    float64  `json:"recency_score" yaml:"recency_score"`
	CommitmentScore float64  `json:"commitment_score" yaml:"commitment_score"`
	EffortScore     *float64 `json:"effort_score,omitempty" yaml:"effort_score,omitempty"`
	PriorityScore   float64  `json:"priority_score" yaml:"priority_score"`

	Reasoning string   `json:"reasoning" yaml:"reasoning"`
	Signals   []Signal `json:"signals,omitempty" yaml:"signals,omitempty"`

	DueAt         *time.Time `json:"due_at,omitempty" yaml:"due_at,omitempty"`
	EventStartAt  *time.Time `json:"event_start_at,omitempty" yaml:"event_start_at,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	LastTouchedAt *time.Time `json:"last_touched_at,omitempty" yaml:"last_touched_at,omitempty"`
	IsOverdue     bool       `json:"is_overdue,omitempty" yaml:"is_overdue,omitempty"`
	IsDueToday    bool       `json:"is_due_today,omitempty" yaml:"is_due_today,omitempty"`
	IsDueSoon     bool       `json:"is_due_soon,omitempty" yaml:"is_due_soon,omitempty"`

	CompanyID      string `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	CompanyName    string `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	CompanyLogoURL string `json:"company_logo_url,omitempty" yaml:"company_logo_url,omitempty"`
	ProjectID      string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	ProjectName    string `json:"project_name,omitempty" yaml:"project_name,omitempty"`
}

// HasCompany reports whether the item is linked to a company.
func (w WorkItem) HasCompany() bool {
	return w.CompanyID != "" || w.CompanyName != ""
}
