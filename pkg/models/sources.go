package models

import "time"

// Source is a read-only snapshot of one raw entity from a backing store.
// The set of implementations is closed: adapters switch on the concrete type.
type Source interface {
	SourceType() SourceType
	SourceKey() string
	isSource()
}

// TaskStatus values for TaskRow.Status.
const (
	TaskOpen      = "open"
	TaskDone      = "done"
	TaskCancelled = "cancelled"
)

// TaskRow is a row from the tasks table.
type TaskRow struct {
	ID              string     `yaml:"id" json:"id"`
	Title           string     `yaml:"title" json:"title"`
	Description     string     `yaml:"description,omitempty" json:"description,omitempty"`
	Priority        string     `yaml:"priority,omitempty" json:"priority,omitempty"`
	Status          string     `yaml:"status,omitempty" json:"status,omitempty"`
	ScheduledFor    *time.Time `yaml:"scheduled_for,omitempty" json:"scheduled_for,omitempty"`
	CreatedAt       *time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	CompletedAt     *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	SnoozedUntil    *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
	CompanyID       string     `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	CompanyName     string     `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	CompanyLogoURL  string     `yaml:"company_logo_url,omitempty" json:"company_logo_url,omitempty"`
	ProjectID       string     `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	ProjectName     string     `yaml:"project_name,omitempty" json:"project_name,omitempty"`
	EstimateMinutes int        `yaml:"estimate_minutes,omitempty" json:"estimate_minutes,omitempty"`
	Labels          []string   `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// InboxMessage is a row from the inbox table.
type InboxMessage struct {
	ID             string     `yaml:"id" json:"id"`
	Subject        string     `yaml:"subject" json:"subject"`
	From           string     `yaml:"from,omitempty" json:"from,omitempty"`
	Snippet        string     `yaml:"snippet,omitempty" json:"snippet,omitempty"`
	ReceivedAt     *time.Time `yaml:"received_at,omitempty" json:"received_at,omitempty"`
	IsRead         bool       `yaml:"is_read,omitempty" json:"is_read,omitempty"`
	IsResolved     bool       `yaml:"is_resolved,omitempty" json:"is_resolved,omitempty"`
	IsStarred      bool       `yaml:"is_starred,omitempty" json:"is_starred,omitempty"`
	SnoozedUntil   *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
	CompanyID      string     `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	CompanyName    string     `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	CompanyLogoURL string     `yaml:"company_logo_url,omitempty" json:"company_logo_url,omitempty"`
}

// CalendarEvent is a row from the calendar events table or a calendar API.
type CalendarEvent struct {
	ID             string     `yaml:"id" json:"id"`
	Title          string     `yaml:"title" json:"title"`
	Location       string     `yaml:"location,omitempty" json:"location,omitempty"`
	StartTime      *time.Time `yaml:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime        *time.Time `yaml:"end_time,omitempty" json:"end_time,omitempty"`
	UpdatedAt      *time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	AttendeeCount  int        `yaml:"attendee_count,omitempty" json:"attendee_count,omitempty"`
	Cancelled      bool       `yaml:"cancelled,omitempty" json:"cancelled,omitempty"`
	CompanyID      string     `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	CompanyName    string     `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	CompanyLogoURL string     `yaml:"company_logo_url,omitempty" json:"company_logo_url,omitempty"`
}

// Company status values.
const (
	CompanyActive   = "active"
	CompanyArchived = "archived"
	CompanyPassed   = "passed"
)

// PortfolioCompany is a row from the portfolio companies table.
type PortfolioCompany struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	LogoURL         string     `yaml:"logo_url,omitempty" json:"logo_url,omitempty"`
	Sector          string     `yaml:"sector,omitempty" json:"sector,omitempty"`
	Status          string     `yaml:"status,omitempty" json:"status,omitempty"`
	LastContactedAt *time.Time `yaml:"last_contacted_at,omitempty" json:"last_contacted_at,omitempty"`
	SnoozedUntil    *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
}

// PipelineCompany is a row from the deal pipeline table.
type PipelineCompany struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	LogoURL         string     `yaml:"logo_url,omitempty" json:"logo_url,omitempty"`
	Stage           string     `yaml:"stage,omitempty" json:"stage,omitempty"`
	Status          string     `yaml:"status,omitempty" json:"status,omitempty"`
	IsPriority      bool       `yaml:"is_priority,omitempty" json:"is_priority,omitempty"`
	LastContactedAt *time.Time `yaml:"last_contacted_at,omitempty" json:"last_contacted_at,omitempty"`
	SnoozedUntil    *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
}

// ReadingItem is a row from the reading list.
type ReadingItem struct {
	ID              string     `yaml:"id" json:"id"`
	Title           string     `yaml:"title" json:"title"`
	URL             string     `yaml:"url,omitempty" json:"url,omitempty"`
	AddedAt         *time.Time `yaml:"added_at,omitempty" json:"added_at,omitempty"`
	IsRead          bool       `yaml:"is_read,omitempty" json:"is_read,omitempty"`
	IsArchived      bool       `yaml:"is_archived,omitempty" json:"is_archived,omitempty"`
	IsPriority      bool       `yaml:"is_priority,omitempty" json:"is_priority,omitempty"`
	SnoozedUntil    *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
	EstimateMinutes int        `yaml:"estimate_minutes,omitempty" json:"estimate_minutes,omitempty"`
	CompanyID       string     `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	CompanyName     string     `yaml:"company_name,omitempty" json:"company_name,omitempty"`
}

// RecurringCommitment is a row from the recurring commitments table.
type RecurringCommitment struct {
	ID              string     `yaml:"id" json:"id"`
	Title           string     `yaml:"title" json:"title"`
	Cadence         string     `yaml:"cadence,omitempty" json:"cadence,omitempty"`
	NextDueAt       *time.Time `yaml:"next_due_at,omitempty" json:"next_due_at,omitempty"`
	LastCompletedAt *time.Time `yaml:"last_completed_at,omitempty" json:"last_completed_at,omitempty"`
	IsActive        bool       `yaml:"is_active" json:"is_active"`
	IsNonnegotiable bool       `yaml:"is_nonnegotiable,omitempty" json:"is_nonnegotiable,omitempty"`
	SnoozedUntil    *time.Time `yaml:"snoozed_until,omitempty" json:"snoozed_until,omitempty"`
}

func (TaskRow) SourceType() SourceType             { return SourceTask }
func (InboxMessage) SourceType() SourceType        { return SourceInbox }
func (CalendarEvent) SourceType() SourceType       { return SourceCalendarEvent }
func (PortfolioCompany) SourceType() SourceType    { return SourcePortfolioCompany }
func (PipelineCompany) SourceType() SourceType     { return SourcePipelineCompany }
func (ReadingItem) SourceType() SourceType         { return SourceReadingItem }
func (RecurringCommitment) SourceType() SourceType { return SourceRecurringCommitment }

func (r TaskRow) SourceKey() string             { return r.ID }
func (r InboxMessage) SourceKey() string        { return r.ID }
func (r CalendarEvent) SourceKey() string       { return r.ID }
func (r PortfolioCompany) SourceKey() string    { return r.ID }
func (r PipelineCompany) SourceKey() string     { return r.ID }
func (r ReadingItem) SourceKey() string         { return r.ID }
func (r RecurringCommitment) SourceKey() string { return r.ID }

func (TaskRow) isSource()             {}
func (InboxMessage) isSource()        {}
func (CalendarEvent) isSource()       {}
func (PortfolioCompany) isSource()    {}
func (PipelineCompany) isSource()     {}
func (ReadingItem) isSource()         {}
func (RecurringCommitment) isSource() {}

// WithResolved returns a copy of src marked as done, read, archived or
// inactive, whichever closes it out for its source type.
func WithResolved(src Source, at time.Time) Source {
	switch s := src.(type) {
	case TaskRow:
		s.Status = TaskDone
		s.CompletedAt = &at
		return s
	case InboxMessage:
		s.IsResolved = true
		s.IsRead = true
		return s
	case CalendarEvent:
		s.Cancelled = true
		return s
	case PortfolioCompany:
		s.LastContactedAt = &at
		return s
	case PipelineCompany:
		s.LastContactedAt = &at
		return s
	case ReadingItem:
		s.IsRead = true
		return s
	case RecurringCommitment:
		s.LastCompletedAt = &at
		if s.NextDueAt != nil {
			s.NextDueAt = NextOccurrence(s.Cadence, *s.NextDueAt, at)
		}
		return s
	}
	return src
}

// NextOccurrence advances due by the cadence until it lies after the given
// time. Unknown cadences return due unchanged.
func NextOccurrence(cadence string, due, after time.Time) *time.Time {
	step := func(t time.Time) time.Time {
		switch cadence {
		case "daily":
			return t.AddDate(0, 0, 1)
		case "weekly":
			return t.AddDate(0, 0, 7)
		case "biweekly":
			return t.AddDate(0, 0, 14)
		case "monthly":
			return t.AddDate(0, 1, 0)
		case "quarterly":
			return t.AddDate(0, 3, 0)
		default:
			return t
		}
	}

	next := step(due)
	if next.Equal(due) {
		return &due
	}
	for !next.After(after) {
		next = step(next)
	}
	return &next
}

// WithSnooze returns a copy of src hidden until the given time.
func WithSnooze(src Source, until time.Time) Source {
	switch s := src.(type) {
	case TaskRow:
		s.SnoozedUntil = &until
		return s
	case InboxMessage:
		s.SnoozedUntil = &until
		return s
	case CalendarEvent:
		// Meetings cannot be snoozed; they happen at a fixed time.
		return s
	case PortfolioCompany:
		s.SnoozedUntil = &until
		return s
	case PipelineCompany:
		s.SnoozedUntil = &until
		return s
	case ReadingItem:
		s.SnoozedUntil = &until
		return s
	case RecurringCommitment:
		s.SnoozedUntil = &until
		return s
	}
	return src
}
