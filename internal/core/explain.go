package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// signalContext carries source facts that only appear in signal descriptions.
type signalContext struct {
	daysOverdue     int
	priority        string
	daysSinceUpdate *int
}

// GenerateReasoning builds a short clause list such as
// "Overdue. High priority. Linked to Acme." from the item's derived flags.
// It never returns an empty string.
func GenerateReasoning(item models.WorkItem, now time.Time) string {
	var clauses []string

	switch {
	case item.IsOverdue:
		clauses = append(clauses, "Overdue.")
	case item.IsDueToday && item.SourceType != models.SourceCalendarEvent:
		clauses = append(clauses, "Due today.")
	case item.IsDueSoon && item.SourceType != models.SourceCalendarEvent:
		clauses = append(clauses, "Due soon.")
	}

	if item.EventStartAt != nil && !item.EventStartAt.IsZero() {
		until := item.EventStartAt.Sub(now)
		switch {
		case until <= 0:
			clauses = append(clauses, "In progress.")
		case until <= 2*time.Hour:
			clauses = append(clauses, "Starting soon.")
		case item.IsDueToday:
			clauses = append(clauses, "Today.")
		}
	}

	if item.ImportanceScore > 0.8 {
		clauses = append(clauses, "High priority.")
	}

	switch item.SourceType {
	case models.SourcePortfolioCompany, models.SourcePipelineCompany:
		if item.UrgencyScore >= 0.6 {
			clauses = append(clauses, "Relationship going stale.")
		}
	default:
		if item.CompanyName != "" {
			clauses = append(clauses, fmt.Sprintf("Linked to %s.", item.CompanyName))
		}
	}

	if len(clauses) == 0 {
		return "Needs attention"
	}
	return strings.Join(clauses, " ")
}

// GenerateSignals emits one signal per scoring dimension, plus effort when
// present. Signals describe the scores and are never read back by scoring.
func GenerateSignals(item models.WorkItem, sig signalContext) []models.Signal {
	label := strings.ToLower(item.SourceType.Label())

	signals := []models.Signal{
		{Source: "urgency", Weight: item.UrgencyScore, Description: urgencyDescription(item, label, sig)},
		{Source: "importance", Weight: item.ImportanceScore, Description: importanceDescription(item, label, sig)},
		{Source: "recency", Weight: item.RecencyScore, Description: recencyDescription(sig)},
		{Source: "commitment", Weight: item.CommitmentScore, Description: commitmentDescription(item, label)},
	}
	if item.EffortScore != nil {
		signals = append(signals, models.Signal{
			Source:      "effort",
			Weight:      *item.EffortScore,
			Description: fmt.Sprintf("Estimated effort %.0f%% of a half day", *item.EffortScore*100),
		})
	}
	return signals
}

func urgencyDescription(item models.WorkItem, label string, sig signalContext) string {
	switch {
	case sig.daysOverdue == 1:
		return fmt.Sprintf("%s overdue by 1 day", capitalize(label))
	case sig.daysOverdue > 1:
		return fmt.Sprintf("%s overdue by %d days", capitalize(label), sig.daysOverdue)
	case item.IsDueToday:
		return fmt.Sprintf("%s due today", capitalize(label))
	case item.IsDueSoon:
		return fmt.Sprintf("%s due soon", capitalize(label))
	case item.SourceType == models.SourcePortfolioCompany || item.SourceType == models.SourcePipelineCompany:
		return "Time since last contact"
	case item.SourceType == models.SourceInbox:
		return "Age of unread message"
	}
	return fmt.Sprintf("Deadline proximity for %s", label)
}

func importanceDescription(item models.WorkItem, label string, sig signalContext) string {
	if sig.priority != "" {
		return fmt.Sprintf("Explicit %s priority", sig.priority)
	}
	if item.CompanyName != "" && item.SourceType != models.SourcePortfolioCompany && item.SourceType != models.SourcePipelineCompany {
		return fmt.Sprintf("Linked to %s", item.CompanyName)
	}
	return fmt.Sprintf("Baseline importance for %s", label)
}

func recencyDescription(sig signalContext) string {
	if sig.daysSinceUpdate == nil {
		return "No recent activity recorded"
	}
	switch d := *sig.daysSinceUpdate; {
	case d <= 0:
		return "Updated today"
	case d == 1:
		return "Updated 1 day ago"
	default:
		return fmt.Sprintf("Updated %d days ago", d)
	}
}

func commitmentDescription(item models.WorkItem, label string) string {
	if item.ProjectName != "" {
		return fmt.Sprintf("Part of project %s", item.ProjectName)
	}
	return fmt.Sprintf("Commitment level for %s", label)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
