package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// ExclusionReason explains why a raw entity is not eligible for ranking.
type ExclusionReason string

const (
	ExcludeNone      ExclusionReason = ""
	ExcludeSnoozed   ExclusionReason = "snoozed"
	ExcludeCompleted ExclusionReason = "completed"
	ExcludeArchived  ExclusionReason = "archived"
	ExcludeInactive  ExclusionReason = "inactive"
	ExcludePast      ExclusionReason = "past"
)

// calendarGracePeriod is how long after its start a meeting stays eligible.
const calendarGracePeriod = time.Hour

// alwaysIncludeMeetingWindow is the forward window in which meetings bypass
// the score threshold.
const alwaysIncludeMeetingWindow = 2 * time.Hour

// ShouldExcludeFromPriority reports whether a raw entity must be removed
// before scoring. It inspects the source entity because snooze and
// completion flags live there.
func ShouldExcludeFromPriority(src models.Source, now time.Time) (bool, ExclusionReason) {
	switch s := src.(type) {
	case models.TaskRow:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if s.Status == models.TaskDone || s.Status == models.TaskCancelled || s.CompletedAt != nil {
			return true, ExcludeCompleted
		}
	case models.InboxMessage:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if s.IsResolved || s.IsRead {
			return true, ExcludeCompleted
		}
	case models.CalendarEvent:
		if s.Cancelled {
			return true, ExcludeCompleted
		}
		if s.StartTime != nil && !s.StartTime.IsZero() && now.Sub(*s.StartTime) > calendarGracePeriod {
			return true, ExcludePast
		}
	case models.PortfolioCompany:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if s.Status == models.CompanyArchived {
			return true, ExcludeArchived
		}
	case models.PipelineCompany:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if s.Status == models.CompanyPassed {
			return true, ExcludeArchived
		}
	case models.ReadingItem:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if s.IsRead {
			return true, ExcludeCompleted
		}
		if s.IsArchived {
			return true, ExcludeArchived
		}
	case models.RecurringCommitment:
		if snoozed(s.SnoozedUntil, now) {
			return true, ExcludeSnoozed
		}
		if !s.IsActive {
			return true, ExcludeInactive
		}
	}
	return false, ExcludeNone
}

func snoozed(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}

// IsAlwaysInclude reports whether an item must bypass the score threshold:
// overdue important tasks, meetings starting within the next two hours, and
// due recurring commitments. It never overrides exclusion.
func IsAlwaysInclude(item models.WorkItem, now time.Time) bool {
	switch item.SourceType {
	case models.SourceTask:
		return item.IsOverdue && item.ImportanceScore >= 0.8
	case models.SourceCalendarEvent:
		if item.EventStartAt == nil || item.EventStartAt.IsZero() {
			return false
		}
		until := item.EventStartAt.Sub(now)
		return until >= 0 && until <= alwaysIncludeMeetingWindow
	case models.SourceRecurringCommitment:
		return item.UrgencyScore >= 0.5
	}
	return false
}

// ApplyScoreThreshold drops items scoring below cfg.MinScore unless they are
// always-include. The input slice is not modified.
func ApplyScoreThreshold(items []models.WorkItem, cfg models.PriorityConfig, now time.Time) []models.WorkItem {
	out := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if item.PriorityScore >= cfg.MinScore || IsAlwaysInclude(item, now) {
			out = append(out, item)
		}
	}
	return out
}

// ValidatePriorityItem checks identity fields and score ranges. Items that
// fail are dropped from the output, not surfaced.
func ValidatePriorityItem(item models.WorkItem) error {
	var errs []string

	if item.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if item.SourceID == "" {
		errs = append(errs, "source_id must not be empty")
	}
	if !item.SourceType.Valid() {
		errs = append(errs, fmt.Sprintf("source_type %q is not a known source", item.SourceType))
	}
	if item.ID != "" && item.SourceID != "" && item.ID != models.WorkItemID(item.SourceType, item.SourceID) {
		errs = append(errs, fmt.Sprintf("id %q does not match %s-%s", item.ID, item.SourceType, item.SourceID))
	}
	if strings.TrimSpace(item.Title) == "" {
		errs = append(errs, "title must not be empty")
	}

	scores := []struct {
		name  string
		value float64
	}{
		{"urgency_score", item.UrgencyScore},
		{"importance_score", item.ImportanceScore},
		{"recency_score", item.RecencyScore},
		{"commitment_score", item.CommitmentScore},
		{"priority_score", item.PriorityScore},
	}
	if item.EffortScore != nil {
		scores = append(scores, struct {
			name  string
			value float64
		}{"effort_score", *item.EffortScore})
	}
	for _, s := range scores {
		if !inUnitRange(s.value) {
			errs = append(errs, fmt.Sprintf("%s %v is outside [0,1]", s.name, s.value))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid work item %q: %s", item.ID, strings.Join(errs, "; "))
	}
	return nil
}
