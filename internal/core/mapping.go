package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// ErrUnknownSource is returned when a Source has no adapter.
var ErrUnknownSource = errors.New("unknown source type")

// MapSource normalizes any raw source entity into a scored WorkItem.
func MapSource(src models.Source, cfg models.PriorityConfig, now time.Time) (models.WorkItem, error) {
	switch s := src.(type) {
	case models.TaskRow:
		return MapTask(s, cfg, now), nil
	case models.InboxMessage:
		return MapInboxMessage(s, cfg, now), nil
	case models.CalendarEvent:
		return MapCalendarEvent(s, cfg, now), nil
	case models.PortfolioCompany:
		return MapPortfolioCompany(s, cfg, now), nil
	case models.PipelineCompany:
		return MapPipelineCompany(s, cfg, now), nil
	case models.ReadingItem:
		return MapReadingItem(s, cfg, now), nil
	case models.RecurringCommitment:
		return MapRecurringCommitment(s, cfg, now), nil
	default:
		return models.WorkItem{}, fmt.Errorf("mapping %T: %w", src, ErrUnknownSource)
	}
}

// MapTask adapts a task row.
func MapTask(row models.TaskRow, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourceTask, row.ID, row.Title)
	item.Description = row.Description
	item.CompanyID, item.CompanyName, item.CompanyLogoURL = row.CompanyID, row.CompanyName, row.CompanyLogoURL
	item.ProjectID, item.ProjectName = row.ProjectID, row.ProjectName
	item.Subtitle = firstNonEmpty(row.ProjectName, row.CompanyName)
	item.DueAt = row.ScheduledFor
	item.CreatedAt = row.CreatedAt
	item.LastTouchedAt = firstTime(row.UpdatedAt, row.CreatedAt)

	sig := signalContext{priority: row.Priority}
	if row.ScheduledFor != nil && !row.ScheduledFor.IsZero() {
		days := calendarDaysBetween(now, *row.ScheduledFor, now.Location())
		item.IsOverdue = days < 0
		item.IsDueToday = days == 0
		item.IsDueSoon = days >= 1 && days <= 3
		if item.IsOverdue {
			sig.daysOverdue = -days
		}
	}
	item.ContextLabels = append(item.ContextLabels, row.Labels...)
	if item.IsOverdue {
		item.ContextLabels = append(item.ContextLabels, "Overdue")
	}

	commitment := 0.4
	if row.ProjectID != "" || row.ProjectName != "" {
		commitment = 0.7
	}
	scores := DimensionScores{
		Urgency:    ComputeTaskUrgencyScore(row.ScheduledFor, now),
		Importance: ComputeTaskImportanceScore(row.Priority, item.HasCompany()),
		Recency:    ComputeRecencyScore(item.LastTouchedAt, now),
		Commitment: commitment,
		Effort:     ComputeEffortScore(row.EstimateMinutes),
	}
	return finalize(item, scores, cfg, sig, now)
}

// MapInboxMessage adapts an unread inbox message.
func MapInboxMessage(msg models.InboxMessage, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourceInbox, msg.ID, firstNonEmpty(msg.Subject, "(no subject)"))
	item.Subtitle = msg.From
	item.Description = msg.Snippet
	item.CompanyID, item.CompanyName, item.CompanyLogoURL = msg.CompanyID, msg.CompanyName, msg.CompanyLogoURL
	item.CreatedAt = msg.ReceivedAt
	item.LastTouchedAt = msg.ReceivedAt
	if msg.IsStarred {
		item.ContextLabels = append(item.ContextLabels, "Starred")
	}

	importance := 0.4
	if msg.IsStarred {
		importance = capped(importance, 0.3)
	}
	if item.HasCompany() {
		importance = capped(importance, 0.2)
	}
	scores := DimensionScores{
		Urgency:    ComputeInboxUrgencyScore(msg.ReceivedAt, now),
		Importance: importance,
		Recency:    ComputeRecencyScore(msg.ReceivedAt, now),
		Commitment: 0.3,
	}
	return finalize(item, scores, cfg, signalContext{}, now)
}

// MapCalendarEvent adapts a meeting.
func MapCalendarEvent(ev models.CalendarEvent, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourceCalendarEvent, ev.ID, firstNonEmpty(ev.Title, "(untitled meeting)"))
	item.Subtitle = ev.Location
	item.CompanyID, item.CompanyName, item.CompanyLogoURL = ev.CompanyID, ev.CompanyName, ev.CompanyLogoURL
	item.EventStartAt = ev.StartTime
	item.LastTouchedAt = ev.UpdatedAt
	if ev.StartTime != nil && !ev.StartTime.IsZero() {
		until := ev.StartTime.Sub(now)
		item.IsDueToday = calendarDaysBetween(now, *ev.StartTime, now.Location()) == 0
		item.IsDueSoon = until > 0 && until <= 24*time.Hour
	}

	importance := 0.6
	if item.HasCompany() {
		importance = capped(importance, 0.2)
	}
	if ev.AttendeeCount >= 3 {
		importance = capped(importance, 0.1)
	}
	scores := DimensionScores{
		Urgency:    ComputeCalendarUrgencyScore(ev.StartTime, now),
		Importance: importance,
		Recency:    ComputeRecencyScore(ev.UpdatedAt, now),
		Commitment: 0.9,
	}
	return finalize(item, scores, cfg, signalContext{}, now)
}

// MapPortfolioCompany adapts a portfolio company whose relationship may be going stale.
func MapPortfolioCompany(c models.PortfolioCompany, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourcePortfolioCompany, c.ID, c.Name)
	item.Subtitle = lastContactSubtitle(c.LastContactedAt, now)
	item.CompanyID, item.CompanyName, item.CompanyLogoURL = c.ID, c.Name, c.LogoURL
	item.LastTouchedAt = c.LastContactedAt
	if c.Sector != "" {
		item.ContextLabels = append(item.ContextLabels, c.Sector)
	}

	scores := DimensionScores{
		Urgency:    ComputeCompanyStalenessScore(c.LastContactedAt, now, cfg.CompanyStaleThreshold),
		Importance: 0.8,
		Recency:    ComputeRecencyScore(c.LastContactedAt, now),
		Commitment: 0.7,
	}
	return finalize(item, scores, cfg, signalContext{}, now)
}

// MapPipelineCompany adapts a company in the deal pipeline.
func MapPipelineCompany(c models.PipelineCompany, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourcePipelineCompany, c.ID, c.Name)
	item.Subtitle = lastContactSubtitle(c.LastContactedAt, now)
	item.CompanyID, item.CompanyName, item.CompanyLogoURL = c.ID, c.Name, c.LogoURL
	item.LastTouchedAt = c.LastContactedAt
	if c.Stage != "" {
		item.ContextLabels = append(item.ContextLabels, c.Stage)
	}

	importance := 0.5
	if c.IsPriority {
		importance = capped(importance, 0.3)
	}
	scores := DimensionScores{
		Urgency:    ComputeCompanyStalenessScore(c.LastContactedAt, now, cfg.CompanyStaleThreshold),
		Importance: importance,
		Recency:    ComputeRecencyScore(c.LastContactedAt, now),
		Commitment: 0.4,
	}
	return finalize(item, scores, cfg, signalContext{}, now)
}

// MapReadingItem adapts an unread item from the reading list.
func MapReadingItem(r models.ReadingItem, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourceReadingItem, r.ID, r.Title)
	item.Subtitle = r.URL
	item.CompanyID, item.CompanyName = r.CompanyID, r.CompanyName
	item.CreatedAt = r.AddedAt
	item.LastTouchedAt = r.AddedAt

	urgency, importance := 0.2, 0.3
	if r.IsPriority {
		urgency = capped(urgency, 0.2)
		importance = capped(importance, 0.3)
	}
	scores := DimensionScores{
		Urgency:    urgency,
		Importance: importance,
		Recency:    ComputeRecencyScore(r.AddedAt, now),
		Commitment: 0.1,
		Effort:     ComputeEffortScore(r.EstimateMinutes),
	}
	return finalize(item, scores, cfg, signalContext{}, now)
}

// MapRecurringCommitment adapts a recurring commitment such as a weekly update.
func MapRecurringCommitment(rc models.RecurringCommitment, cfg models.PriorityConfig, now time.Time) models.WorkItem {
	item := newItem(models.SourceRecurringCommitment, rc.ID, rc.Title)
	item.Subtitle = rc.Cadence
	item.DueAt = rc.NextDueAt
	item.LastTouchedAt = rc.LastCompletedAt
	if rc.IsNonnegotiable {
		item.ContextLabels = append(item.ContextLabels, "Nonnegotiable")
	}

	var sig signalContext
	if rc.NextDueAt != nil && !rc.NextDueAt.IsZero() {
		days := calendarDaysBetween(now, *rc.NextDueAt, now.Location())
		item.IsOverdue = days < 0
		item.IsDueToday = days == 0
		item.IsDueSoon = days >= 1 && days <= 3
		if item.IsOverdue {
			sig.daysOverdue = -days
		}
	}

	importance := 0.6
	if rc.IsNonnegotiable {
		importance = 0.9
	}
	scores := DimensionScores{
		Urgency:    ComputeCommitmentDueScore(rc.NextDueAt, now),
		Importance: importance,
		Recency:    ComputeRecencyScore(rc.LastCompletedAt, now),
		Commitment: 1.0,
	}
	return finalize(item, scores, cfg, sig, now)
}

// --- helpers ---

func newItem(st models.SourceType, sourceID, title string) models.WorkItem {
	return models.WorkItem{
		ID:            models.WorkItemID(st, sourceID),
		SourceType:    st,
		SourceID:      sourceID,
		Title:         title,
		ContextLabels: []string{st.Label()},
	}
}

// finalize stores the dimension scores, composes the priority score and
// attaches the explanation.
func finalize(item models.WorkItem, scores DimensionScores, cfg models.PriorityConfig, sig signalContext, now time.Time) models.WorkItem {
	item.UrgencyScore = scores.Urgency
	item.ImportanceScore = scores.Importance
	item.RecencyScore = scores.Recency
	item.CommitmentScore = scores.Commitment
	item.EffortScore = scores.Effort
	item.PriorityScore = ComputePriorityScore(scores, cfg)

	if item.LastTouchedAt != nil && !item.LastTouchedAt.IsZero() {
		d := calendarDaysBetween(*item.LastTouchedAt, now, now.Location())
		sig.daysSinceUpdate = &d
	}
	item.Reasoning = GenerateReasoning(item, now)
	item.Signals = GenerateSignals(item, sig)
	return item
}

func lastContactSubtitle(last *time.Time, now time.Time) string {
	if last == nil || last.IsZero() {
		return "Never contacted"
	}
	days := int(now.Sub(*last).Hours() / 24)
	switch {
	case days <= 0:
		return "Contacted today"
	case days == 1:
		return "Last contact 1 day ago"
	default:
		return fmt.Sprintf("Last contact %d days ago", days)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v
		}
	}
	return nil
}
