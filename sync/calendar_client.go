// ABOUTME: Google Calendar binding for the mirror engine
// ABOUTME: Lists writable calendars, pages events in a time window and inserts into primary
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	primaryCalendar       = "primary"
	calendarItemCap       = 2000
	calendarTotalCap      = 4000
	defaultWindowDays     = 365
	calendarListPageLimit = 250
)

// CalendarLimits bounds calendar enumeration.
func CalendarLimits() Limits[Event] {
	return Limits[Event]{TotalCap: calendarTotalCap}
}

// CalendarOptions tunes the calendar binding.
type CalendarOptions struct {
	// WindowDays bounds events to now +/- WindowDays.
	WindowDays int
	Now        func() time.Time
	// Endpoint overrides the API base URL.
	Endpoint string
}

// CalendarCollection implements RemoteCollection[Event] over Calendar v3.
type CalendarCollection struct {
	service *calendar.Service
	timeMin string
	timeMax string
}

// NewCalendarCollection creates a calendar binding that calls through client.
func NewCalendarCollection(ctx context.Context, client *http.Client, opts CalendarOptions) (*CalendarCollection, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	days := opts.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}
	window := time.Duration(days) * 24 * time.Hour
	current := now().UTC()

	return &CalendarCollection{
		service: service,
		timeMin: current.Add(-window).Format(time.RFC3339),
		timeMax: current.Add(window).Format(time.RFC3339),
	}, nil
}

// ListPartitions returns calendars the identity can write to, or primary.
func (c *CalendarCollection) ListPartitions(ctx context.Context) ([]Partition, error) {
	list, err := c.service.CalendarList.List().
		MaxResults(calendarListPageLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, describeAPIError("calendar_list", "", err)
	}

	var partitions []Partition
	for _, entry := range list.Items {
		if entry == nil || entry.Id == "" {
			continue
		}
		if entry.AccessRole == "owner" || entry.AccessRole == "writer" {
			partitions = append(partitions, Partition{
				ID:      entry.Id,
				Label:   entry.Summary,
				ItemCap: calendarItemCap,
			})
		}
	}

	if len(partitions) == 0 {
		partitions = append(partitions, Partition{ID: primaryCalendar, Label: primaryCalendar, ItemCap: calendarItemCap})
	}

	return partitions, nil
}

// ListPage fetches one page of expanded single events.
func (c *CalendarCollection) ListPage(ctx context.Context, partition Partition, cursor string) (Page[Event], error) {
	call := c.service.Events.List(partition.ID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(c.timeMin).
		TimeMax(c.timeMax).
		MaxResults(PageSize)

	if cursor != "" {
		call = call.PageToken(cursor)
	}

	events, err := call.Context(ctx).Do()
	if err != nil {
		return Page[Event]{}, describeAPIError("calendar_events", partition.ID, err)
	}

	page := Page[Event]{
		Records:    make([]Event, 0, len(events.Items)),
		NextCursor: events.NextPageToken,
	}
	for _, item := range events.Items {
		if item == nil {
			continue
		}
		page.Records = append(page.Records, convertEvent(item))
	}

	return page, nil
}

// Create inserts the event into the primary calendar, copying only
// descriptive fields.
func (c *CalendarCollection) Create(ctx context.Context, e Event) error {
	body := &calendar.Event{
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       toEventDateTime(e.Start),
		End:         toEventDateTime(e.End),
	}

	if _, err := c.service.Events.Insert(primaryCalendar, body).Context(ctx).Do(); err != nil {
		return describeAPIError("calendar_insert", primaryCalendar, err)
	}
	return nil
}

// convertEvent converts a Calendar API event to an Event.
func convertEvent(item *calendar.Event) Event {
	return Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       fromEventDateTime(item.Start),
		End:         fromEventDateTime(item.End),
	}
}

func fromEventDateTime(dt *calendar.EventDateTime) EventTime {
	if dt == nil {
		return EventTime{}
	}
	return EventTime{Date: dt.Date, DateTime: dt.DateTime, TimeZone: dt.TimeZone}
}

func toEventDateTime(t EventTime) *calendar.EventDateTime {
	if t == (EventTime{}) {
		return nil
	}
	return &calendar.EventDateTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}

// describeAPIError keeps the upstream status and message for diagnostics.
func describeAPIError(op, scope string, err error) error {
	prefix := op
	if scope != "" {
		prefix = op + " " + scope
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s %d %s: %w", prefix, apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
