package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// calendarLookbehind matches the grace period in which a started meeting is
// still eligible for ranking.
const calendarLookbehind = time.Hour

// GoogleCalendarFetcher pulls upcoming meetings from a Google calendar and
// presents them as calendar_event sources.
type GoogleCalendarFetcher struct {
	srv        *calendar.Service
	calendarID string
	lookahead  time.Duration
	clock      func() time.Time
}

// NewGoogleCalendarFetcher creates a fetcher over an authenticated service.
// clock defaults to time.Now.
func NewGoogleCalendarFetcher(srv *calendar.Service, calendarID string, lookahead time.Duration, clock func() time.Time) *GoogleCalendarFetcher {
	if clock == nil {
		clock = time.Now
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarFetcher{srv: srv, calendarID: calendarID, lookahead: lookahead, clock: clock}
}

// NewGoogleCalendarService builds a read-only Calendar client from an OAuth
// client secrets file and a previously saved token. It never starts an
// interactive consent flow.
func NewGoogleCalendarService(ctx context.Context, credentialsFile, tokenFile string, opts ...option.ClientOption) (*calendar.Service, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file %s: %w", credentialsFile, err)
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, err
	}

	client := config.Client(ctx, tok)
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return srv, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading OAuth token %s: %w", path, err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding OAuth token %s: %w", path, err)
	}
	return tok, nil
}

// SourceType reports calendar_event.
func (f *GoogleCalendarFetcher) SourceType() models.SourceType {
	return models.SourceCalendarEvent
}

// Fetch lists single (expanded) events from one hour ago to the lookahead
// horizon, ordered by start time.
func (f *GoogleCalendarFetcher) Fetch(ctx context.Context) ([]models.Source, error) {
	now := f.clock()
	call := f.srv.Events.List(f.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(now.Add(-calendarLookbehind).Format(time.RFC3339)).
		TimeMax(now.Add(f.lookahead).Format(time.RFC3339))

	var out []models.Source
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, e := range page.Items {
			ev, ok := convertEvent(e, now.Location())
			if ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing events from calendar %s: %w", f.calendarID, err)
	}
	return out, nil
}

// convertEvent maps an API event onto a CalendarEvent. Company linkage is
// read from the private extended properties company_id and company_name.
func convertEvent(e *calendar.Event, loc *time.Location) (models.CalendarEvent, bool) {
	if e == nil || e.Id == "" {
		return models.CalendarEvent{}, false
	}
	ev := models.CalendarEvent{
		ID:            e.Id,
		Title:         e.Summary,
		Location:      e.Location,
		StartTime:     eventTime(e.Start, loc),
		EndTime:       eventTime(e.End, loc),
		AttendeeCount: len(e.Attendees),
		Cancelled:     e.Status == "cancelled",
	}
	if e.Updated != "" {
		if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
			ev.UpdatedAt = &t
		}
	}
	if e.ExtendedProperties != nil {
		ev.CompanyID = e.ExtendedProperties.Private["company_id"]
		ev.CompanyName = e.ExtendedProperties.Private["company_name"]
	}
	return ev, true
}

// eventTime parses a timed or all-day boundary. All-day events start at
// local midnight.
func eventTime(dt *calendar.EventDateTime, loc *time.Location) *time.Time {
	if dt == nil {
		return nil
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return nil
		}
		return &t
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}
