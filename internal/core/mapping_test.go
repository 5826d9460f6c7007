package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

type unknownSource struct{ models.TaskRow }

func TestMapSource_UnknownType(t *testing.T) {
	_, err := MapSource(unknownSource{}, models.DefaultPriorityConfig(), refNow)
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("MapSource(unknown) error = %v, want ErrUnknownSource", err)
	}
}

func TestMapTask_OverdueWithProjectAndCompany(t *testing.T) {
	cfg := models.DefaultPriorityConfig()
	row := models.TaskRow{
		ID:              "t1",
		Title:           "Send term sheet",
		Priority:        "high",
		ScheduledFor:    at(-days(2)),
		UpdatedAt:       at(-time.Hour),
		CompanyID:       "c1",
		CompanyName:     "Acme",
		ProjectName:     "Series A",
		EstimateMinutes: 30,
		Labels:          []string{"legal"},
	}

	item := MapTask(row, cfg, refNow)

	if item.ID != "task-t1" {
		t.Errorf("ID = %q, want %q", item.ID, "task-t1")
	}
	if item.SourceType != models.SourceTask || item.SourceID != "t1" {
		t.Errorf("SourceType/SourceID = %s/%s", item.SourceType, item.SourceID)
	}
	if !item.IsOverdue || item.IsDueToday || item.IsDueSoon {
		t.Errorf("flags overdue=%v today=%v soon=%v, want only overdue", item.IsOverdue, item.IsDueToday, item.IsDueSoon)
	}
	if !approxEqual(item.UrgencyScore, 0.94) {
		t.Errorf("UrgencyScore = %v, want 0.94", item.UrgencyScore)
	}
	if item.ImportanceScore != 1.0 {
		t.Errorf("ImportanceScore = %v, want 1.0", item.ImportanceScore)
	}
	if item.CommitmentScore != 0.7 {
		t.Errorf("CommitmentScore = %v, want 0.7", item.CommitmentScore)
	}
	if item.RecencyScore != 1.0 {
		t.Errorf("RecencyScore = %v, want 1.0", item.RecencyScore)
	}
	if item.EffortScore == nil || !approxEqual(*item.EffortScore, 0.125) {
		t.Errorf("EffortScore = %v, want 0.125", item.EffortScore)
	}
	if item.Subtitle != "Series A" {
		t.Errorf("Subtitle = %q, want project name", item.Subtitle)
	}
	wantLabels := []string{"Task", "legal", "Overdue"}
	if strings.Join(item.ContextLabels, ",") != strings.Join(wantLabels, ",") {
		t.Errorf("ContextLabels = %v, want %v", item.ContextLabels, wantLabels)
	}
	for _, clause := range []string{"Overdue.", "High priority.", "Linked to Acme."} {
		if !strings.Contains(item.Reasoning, clause) {
			t.Errorf("Reasoning %q missing %q", item.Reasoning, clause)
		}
	}
	if len(item.Signals) != 5 {
		t.Fatalf("len(Signals) = %d, want 5", len(item.Signals))
	}
	if item.Signals[0].Description != "Task overdue by 2 days" {
		t.Errorf("urgency signal = %q", item.Signals[0].Description)
	}
	if item.Signals[1].Description != "Explicit high priority" {
		t.Errorf("importance signal = %q", item.Signals[1].Description)
	}
}

func TestMapTask_DueSoonWindow(t *testing.T) {
	cfg := models.DefaultPriorityConfig()
	tests := []struct {
		offset              time.Duration
		today, soon, overdue bool
	}{
		{time.Hour, true, false, false},
		{days(1), false, true, false},
		{days(3), false, true, false},
		{days(4), false, false, false},
	}
	for _, tt := range tests {
		item := MapTask(models.TaskRow{ID: "t", Title: "x", ScheduledFor: at(tt.offset)}, cfg, refNow)
		if item.IsDueToday != tt.today || item.IsDueSoon != tt.soon || item.IsOverdue != tt.overdue {
			t.Errorf("offset %s: today=%v soon=%v overdue=%v", tt.offset, item.IsDueToday, item.IsDueSoon, item.IsOverdue)
		}
	}
}

func TestMapTask_NoProjectCommitment(t *testing.T) {
	item := MapTask(models.TaskRow{ID: "t", Title: "x"}, models.DefaultPriorityConfig(), refNow)
	if item.CommitmentScore != 0.4 {
		t.Errorf("CommitmentScore = %v, want 0.4", item.CommitmentScore)
	}
	if item.EffortScore != nil {
		t.Errorf("EffortScore = %v, want nil without estimate", *item.EffortScore)
	}
	if len(item.Signals) != 4 {
		t.Errorf("len(Signals) = %d, want 4 without effort", len(item.Signals))
	}
}

func TestMapInboxMessage(t *testing.T) {
	msg := models.InboxMessage{
		ID:          "m1",
		From:        "ceo@acme.com",
		ReceivedAt:  at(-2 * time.Hour),
		IsStarred:   true,
		CompanyName: "Acme",
	}
	item := MapInboxMessage(msg, models.DefaultPriorityConfig(), refNow)

	if item.Title != "(no subject)" {
		t.Errorf("Title = %q, want placeholder", item.Title)
	}
	if item.Subtitle != "ceo@acme.com" {
		t.Errorf("Subtitle = %q", item.Subtitle)
	}
	if item.UrgencyScore != 1.0 {
		t.Errorf("UrgencyScore = %v, want 1.0", item.UrgencyScore)
	}
	if !approxEqual(item.ImportanceScore, 0.9) {
		t.Errorf("ImportanceScore = %v, want 0.9", item.ImportanceScore)
	}
	if item.CommitmentScore != 0.3 {
		t.Errorf("CommitmentScore = %v, want 0.3", item.CommitmentScore)
	}
}

func TestMapCalendarEvent(t *testing.T) {
	ev := models.CalendarEvent{
		ID:            "e1",
		Title:         "Board meeting",
		StartTime:     at(30 * time.Minute),
		AttendeeCount: 5,
		CompanyName:   "Acme",
	}
	item := MapCalendarEvent(ev, models.DefaultPriorityConfig(), refNow)

	if item.UrgencyScore != 1.0 {
		t.Errorf("UrgencyScore = %v, want 1.0", item.UrgencyScore)
	}
	if !approxEqual(item.ImportanceScore, 0.9) {
		t.Errorf("ImportanceScore = %v, want 0.9", item.ImportanceScore)
	}
	if item.CommitmentScore != 0.9 {
		t.Errorf("CommitmentScore = %v, want 0.9", item.CommitmentScore)
	}
	if !item.IsDueToday || !item.IsDueSoon || item.IsOverdue {
		t.Errorf("flags today=%v soon=%v overdue=%v", item.IsDueToday, item.IsDueSoon, item.IsOverdue)
	}
	if !strings.Contains(item.Reasoning, "Starting soon.") {
		t.Errorf("Reasoning = %q, want Starting soon", item.Reasoning)
	}
	if strings.Contains(item.Reasoning, "Due today.") {
		t.Errorf("Reasoning = %q, meetings should not say Due today", item.Reasoning)
	}
	if item.Title != "Board meeting" || item.ContextLabels[0] != "Meeting" {
		t.Errorf("Title/labels = %q %v", item.Title, item.ContextLabels)
	}
}

func TestMapPortfolioCompany_Stale(t *testing.T) {
	c := models.PortfolioCompany{ID: "p1", Name: "Acme", LastContactedAt: at(-days(45)), Sector: "Fintech"}
	item := MapPortfolioCompany(c, models.DefaultPriorityConfig(), refNow)

	if item.UrgencyScore != 0.6 {
		t.Errorf("UrgencyScore = %v, want 0.6", item.UrgencyScore)
	}
	if item.ImportanceScore != 0.8 || item.CommitmentScore != 0.7 {
		t.Errorf("Importance/Commitment = %v/%v", item.ImportanceScore, item.CommitmentScore)
	}
	if item.Subtitle != "Last contact 45 days ago" {
		t.Errorf("Subtitle = %q", item.Subtitle)
	}
	if item.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q", item.CompanyName)
	}
	if !strings.Contains(item.Reasoning, "Relationship going stale.") {
		t.Errorf("Reasoning = %q", item.Reasoning)
	}
	if strings.Contains(item.Reasoning, "Linked to") {
		t.Errorf("company items should not link to themselves: %q", item.Reasoning)
	}
}

func TestMapPipelineCompany_NeverContacted(t *testing.T) {
	c := models.PipelineCompany{ID: "d1", Name: "Beta", IsPriority: true, Stage: "Diligence"}
	item := MapPipelineCompany(c, models.DefaultPriorityConfig(), refNow)

	if item.UrgencyScore != 0.9 {
		t.Errorf("UrgencyScore = %v, want 0.9", item.UrgencyScore)
	}
	if !approxEqual(item.ImportanceScore, 0.8) {
		t.Errorf("ImportanceScore = %v, want 0.8", item.ImportanceScore)
	}
	if item.Subtitle != "Never contacted" {
		t.Errorf("Subtitle = %q", item.Subtitle)
	}
}

func TestMapReadingItem(t *testing.T) {
	r := models.ReadingItem{ID: "r1", Title: "Market map", IsPriority: true, AddedAt: at(-days(2)), EstimateMinutes: 15}
	item := MapReadingItem(r, models.DefaultPriorityConfig(), refNow)

	if !approxEqual(item.UrgencyScore, 0.4) || !approxEqual(item.ImportanceScore, 0.6) {
		t.Errorf("Urgency/Importance = %v/%v, want 0.4/0.6", item.UrgencyScore, item.ImportanceScore)
	}
	if item.CommitmentScore != 0.1 {
		t.Errorf("CommitmentScore = %v, want 0.1", item.CommitmentScore)
	}
	if item.EffortScore == nil {
		t.Error("EffortScore = nil, want estimate")
	}
}

func TestMapRecurringCommitment(t *testing.T) {
	rc := models.RecurringCommitment{
		ID:              "rc1",
		Title:           "Weekly LP update",
		Cadence:         "weekly",
		NextDueAt:       at(-days(1)),
		IsActive:        true,
		IsNonnegotiable: true,
	}
	item := MapRecurringCommitment(rc, models.DefaultPriorityConfig(), refNow)

	if item.UrgencyScore != 0.9 || item.ImportanceScore != 0.9 || item.CommitmentScore != 1.0 {
		t.Errorf("scores = %v/%v/%v", item.UrgencyScore, item.ImportanceScore, item.CommitmentScore)
	}
	if !item.IsOverdue {
		t.Error("IsOverdue = false, want true")
	}
	if item.Subtitle != "weekly" {
		t.Errorf("Subtitle = %q", item.Subtitle)
	}
}

func TestMapSource_ReasoningNeverEmpty(t *testing.T) {
	sources := []models.Source{
		models.TaskRow{ID: "a", Title: "a"},
		models.InboxMessage{ID: "b"},
		models.CalendarEvent{ID: "c"},
		models.PortfolioCompany{ID: "d", Name: "d", LastContactedAt: at(-time.Hour)},
		models.PipelineCompany{ID: "e", Name: "e", LastContactedAt: at(-time.Hour)},
		models.ReadingItem{ID: "f", Title: "f"},
		models.RecurringCommitment{ID: "g", Title: "g", IsActive: true},
	}
	for _, src := range sources {
		item, err := MapSource(src, models.DefaultPriorityConfig(), refNow)
		if err != nil {
			t.Fatalf("MapSource(%T) error: %v", src, err)
		}
		if item.Reasoning == "" {
			t.Errorf("%s: empty reasoning", item.ID)
		}
		if err := ValidatePriorityItem(item); err != nil {
			t.Errorf("%s: %v", item.ID, err)
		}
	}
}
