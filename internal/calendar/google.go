package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleStore implements Store on top of the Google Calendar v3 API.
// All timestamps cross the wire as RFC 3339 with an explicit offset;
// parsed times are returned in loc so business-hour math stays in the
// clinic's civil timezone.
type GoogleStore struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

func NewGoogleStore(ctx context.Context, calendarID string, credentialsFile string, loc *time.Location) (*GoogleStore, error) {
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	return &GoogleStore{svc: svc, calendarID: calendarID, loc: loc}, nil
}

func (g *GoogleStore) ListEvents(ctx context.Context, timeMin, timeMax time.Time, query string) ([]Event, error) {
	call := g.svc.Events.List(g.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if query != "" {
		call = call.Q(query)
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := g.fromAPI(item)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

func (g *GoogleStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	item, err := g.svc.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		if isGoneOrMissing(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return g.fromAPI(item)
}

func (g *GoogleStore) InsertEvent(ctx context.Context, draft EventDraft) (*Event, error) {
	item := &gcal.Event{
		Summary:     draft.Summary,
		Description: draft.Description,
		Start: &gcal.EventDateTime{
			DateTime: draft.Start.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: draft.End.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, item).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return g.fromAPI(created)
}

func (g *GoogleStore) DeleteEvent(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		if isGoneOrMissing(err) {
			return ErrEventNotFound
		}
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func (g *GoogleStore) fromAPI(item *gcal.Event) (*Event, error) {
	start, err := g.parseEventTime(item.Start)
	if err != nil {
		return nil, fmt.Errorf("event %s: bad start: %w", item.Id, err)
	}
	end, err := g.parseEventTime(item.End)
	if err != nil {
		return nil, fmt.Errorf("event %s: bad end: %w", item.Id, err)
	}

	return &Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Start:       start,
		End:         end,
		Status:      item.Status,
	}, nil
}

// parseEventTime handles both timed events (dateTime) and all-day
// events (date only), same as the upstream API contract.
func (g *GoogleStore) parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(g.loc), nil
	}
	return time.ParseInLocation("2006-01-02", edt.Date, g.loc)
}

// isGoneOrMissing reports whether the API said the event does not
// exist anymore: 404 for unknown ids, 410 for deleted events.
func isGoneOrMissing(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
