package core

import (
	"math"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// DimensionScores holds the independent sub-scores of one item, each in [0,1].
// Effort is nil when the source carries no effort estimate.
type DimensionScores struct {
	Urgency    float64
	Importance float64
	Recency    float64
	Commitment float64
	Effort     *float64
}

// startOfDay truncates t to local midnight in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// calendarDaysBetween returns the number of calendar days from "from" to
// "to" in now's location. It is negative when "to" falls on an earlier date.
func calendarDaysBetween(from, to time.Time, loc *time.Location) int {
	a := startOfDay(from, loc)
	b := startOfDay(to, loc)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// ComputeTaskUrgencyScore scores a task by deadline proximity. Buckets are
// inclusive on the nearer side: a task due in exactly 3 days scores 0.5.
func ComputeTaskUrgencyScore(due *time.Time, now time.Time) float64 {
	if due == nil || due.IsZero() {
		return 0.2
	}
	days := calendarDaysBetween(now, *due, now.Location())
	switch {
	case days < 0:
		return math.Min(1.0, 0.9+0.02*float64(-days))
	case days == 0:
		return 0.9
	case days == 1:
		return 0.7
	case days <= 3:
		return 0.5
	case days <= 7:
		return 0.3
	default:
		return 0.1
	}
}

// ComputeTaskImportanceScore scores a task by its explicit priority and
// whether it is linked to a company.
func ComputeTaskImportanceScore(priority string, hasCompany bool) float64 {
	var score float64
	switch priority {
	case "high":
		score = 0.9
	case "medium":
		score = 0.6
	default:
		score = 0.3
	}
	if hasCompany {
		score += 0.2
	}
	return math.Min(1.0, score)
}

// ComputeRecencyScore scores how recently something was updated.
func ComputeRecencyScore(updated *time.Time, now time.Time) float64 {
	if updated == nil || updated.IsZero() {
		return 0.1
	}
	days := calendarDaysBetween(*updated, now, now.Location())
	switch {
	case days < 0:
		// Timestamps in the future are clock skew, not freshness.
		return 0.1
	case days == 0:
		return 1.0
	case days == 1:
		return 0.8
	case days <= 3:
		return 0.5
	case days <= 7:
		return 0.3
	default:
		return 0.1
	}
}

// ComputeInboxUrgencyScore decays with the age of a message.
func ComputeInboxUrgencyScore(received *time.Time, now time.Time) float64 {
	if received == nil || received.IsZero() {
		return 0.2
	}
	age := now.Sub(*received)
	switch {
	case age < 0:
		return 0.2
	case age < 4*time.Hour:
		return 1.0
	case age < 24*time.Hour:
		return 0.8
	case age < 48*time.Hour:
		return 0.6
	case age < 72*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// ComputeCompanyStalenessScore grows as a relationship goes without contact.
// staleThresholdDays is the configurable point at which a company starts to
// count as stale.
func ComputeCompanyStalenessScore(lastContacted *time.Time, now time.Time, staleThresholdDays int) float64 {
	if lastContacted == nil || lastContacted.IsZero() {
		return 0.9
	}
	days := int(now.Sub(*lastContacted).Hours() / 24)
	switch {
	case days > 60:
		return 0.8
	case days > 30:
		return 0.6
	case days > staleThresholdDays:
		return 0.4
	default:
		return 0.2
	}
}

// ComputeCalendarUrgencyScore scores a meeting by how soon it starts. An
// event that already started keeps a mid weight for follow-up.
func ComputeCalendarUrgencyScore(start *time.Time, now time.Time) float64 {
	if start == nil || start.IsZero() {
		return 0.3
	}
	until := start.Sub(now)
	switch {
	case until <= 0:
		return 0.5
	case until < time.Hour:
		return 1.0
	case until < 4*time.Hour:
		return 0.9
	case until < 24*time.Hour:
		return 0.7
	case until < 48*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// ComputeCommitmentDueScore scores a recurring commitment by its next due date.
func ComputeCommitmentDueScore(nextDue *time.Time, now time.Time) float64 {
	if nextDue == nil || nextDue.IsZero() {
		return 0.2
	}
	days := calendarDaysBetween(now, *nextDue, now.Location())
	switch {
	case days <= 0:
		return 0.9
	case days == 1:
		return 0.7
	case days <= 3:
		return 0.5
	default:
		return 0.2
	}
}

// ComputeEffortScore maps an estimate in minutes onto [0,1], saturating at
// four hours. A missing estimate yields nil.
func ComputeEffortScore(minutes int) *float64 {
	if minutes <= 0 {
		return nil
	}
	score := math.Min(1.0, float64(minutes)/240.0)
	return &score
}

// ComputePriorityScore combines dimension scores into one scalar using the
// configured linear weights. Effort is inverted so quick wins are not
// penalised. The result is always clamped to [0,1].
func ComputePriorityScore(scores DimensionScores, cfg models.PriorityConfig) float64 {
	w := cfg.Weights
	total := w.Urgency*scores.Urgency +
		w.Importance*scores.Importance +
		w.Recency*scores.Recency +
		w.Commitment*scores.Commitment
	if scores.Effort != nil && w.Effort != 0 {
		total += w.Effort * (1 - *scores.Effort)
	}
	return clamp01(total)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// inUnitRange reports whether v is a valid dimension score.
func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// capped returns v+bonus limited to 1.0.
func capped(v, bonus float64) float64 {
	return math.Min(1.0, v+bonus)
}
