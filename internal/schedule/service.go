package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendabot/clinic-scheduling/internal/calendar"
	"github.com/agendabot/clinic-scheduling/internal/config"
	redisclient "github.com/agendabot/clinic-scheduling/internal/redis"
)

// Clock lets tests pin "now"; the planner's whole output depends on it.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service implements availability, booking, lookup and cancellation
// against the calendar store. It holds no state between calls beyond
// read-only configuration; every operation re-fetches what it needs.
type Service struct {
	store  calendar.Store
	locker redisclient.Locker
	hours  Hours
	cfg    config.Config
	loc    *time.Location
	clock  Clock
	log    zerolog.Logger
}

// NewService wires the engines. locker may be nil: the booking
// re-check below is the mandatory race guard either way, the lock only
// serializes the re-check+insert window when Redis is available.
func NewService(store calendar.Store, locker redisclient.Locker, cfg config.Config, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		locker: locker,
		hours:  Hours{Open: cfg.OpenHour, Close: cfg.CloseHour, SlotMinutes: cfg.SlotMinutes},
		cfg:    cfg,
		loc:    loc,
		clock:  realClock{},
		log:    logger,
	}
}

// ListAvailableSlots returns the formatted labels of every free slot
// between now plus the minimum lead time and the end of the horizon,
// chronological within and across days. One store read, no side
// effects.
func (s *Service) ListAvailableSlots(ctx context.Context) ([]string, error) {
	now := s.clock.Now().In(s.loc)
	earliest := now.Add(time.Duration(s.cfg.MinLeadHours) * time.Hour)
	horizonEnd := now.AddDate(0, 0, s.cfg.HorizonDays)

	events, err := s.store.ListEvents(ctx, now, horizonEnd, "")
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	busy := busyIntervals(events)

	var labels []string
	for i := 0; i <= s.cfg.HorizonDays; i++ {
		day := startOfDay(now.AddDate(0, 0, i))
		for _, slot := range s.hours.DaySlots(day, earliest) {
			if slot.Free(busy) {
				labels = append(labels, slot.Label())
			}
		}
	}

	s.log.Debug().Int("busy", len(busy)).Int("free", len(labels)).Msg("computed availability")
	return labels, nil
}

// Book creates an appointment for the patient at start. The caller is
// responsible for CPF normalization; this engine only rejects empty
// identity arguments. The day's events are re-fetched and the full
// overlap test applied right before the insert: the availability list
// the patient picked from may be stale by the time they answer.
func (s *Service) Book(ctx context.Context, fullName, cpf string, start time.Time) (string, error) {
	if fullName == "" || cpf == "" || start.IsZero() {
		return "", ErrIncompleteData
	}
	start = start.In(s.loc)

	if s.locker == nil {
		return s.bookChecked(ctx, fullName, cpf, start)
	}

	var eventID string
	err := s.locker.WithSlotLock(ctx, start, func(lockCtx context.Context) error {
		id, err := s.bookChecked(lockCtx, fullName, cpf, start)
		eventID = id
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return "", ErrSlotBeingBooked
	}
	if err != nil {
		return "", err
	}
	return eventID, nil
}

func (s *Service) bookChecked(ctx context.Context, fullName, cpf string, start time.Time) (string, error) {
	slot := Slot{Start: start, End: start.Add(s.hours.slotStep())}

	// Superset window: the whole day around the requested slot.
	day := startOfDay(start)
	events, err := s.store.ListEvents(ctx, day, day.AddDate(0, 0, 1), "")
	if err != nil {
		return "", fmt.Errorf("re-check slot: %w", err)
	}
	if !slot.Free(busyIntervals(events)) {
		return "", ErrSlotTaken
	}

	summary, description := EncodeIdentity(fullName, cpf)
	created, err := s.store.InsertEvent(ctx, calendar.EventDraft{
		Summary:     summary,
		Description: description,
		Start:       slot.Start,
		End:         slot.End,
	})
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	s.log.Info().Str("event_id", created.ID).Time("start", slot.Start).Msg("appointment booked")
	return created.ID, nil
}

// FindByIdentity returns the patient's upcoming non-cancelled
// appointments, start-ascending. The store-side text search narrows by
// name; the client-side filter then requires both name and CPF in the
// event text.
func (s *Service) FindByIdentity(ctx context.Context, fullName, cpf string) ([]calendar.Event, error) {
	if fullName == "" || cpf == "" {
		return nil, ErrIncompleteData
	}

	now := s.clock.Now().In(s.loc)
	windowEnd := now.AddDate(0, 0, s.cfg.LookupWindowDays)

	events, err := s.store.ListEvents(ctx, now, windowEnd, fullName)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var matched []calendar.Event
	for _, ev := range events {
		if ev.Status == calendar.StatusCancelled {
			continue
		}
		if mentionsIdentity(&ev, fullName, cpf) {
			matched = append(matched, ev)
		}
	}

	s.log.Debug().Int("matched", len(matched)).Msg("identity lookup")
	return matched, nil
}

// FindByID resolves a single appointment. Cancelled events are
// invisible here even though the store retains them: both an unknown
// id and a cancelled event yield ErrNotFound.
func (s *Service) FindByID(ctx context.Context, eventID string) (*calendar.Event, error) {
	if eventID == "" {
		return nil, ErrIncompleteData
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev.Status == calendar.StatusCancelled {
		return nil, ErrNotFound
	}
	return ev, nil
}

// Cancel deletes the patient's appointment after checking that the
// event's encoded identity matches the caller. known skips the
// resolution fetch when the caller already holds the event from a
// previous lookup.
func (s *Service) Cancel(ctx context.Context, fullName, cpf, eventID string, known *calendar.Event) error {
	if fullName == "" || cpf == "" || eventID == "" {
		return ErrIncompleteData
	}

	ev := known
	if ev == nil {
		var err error
		ev, err = s.FindByID(ctx, eventID)
		if err != nil {
			return err
		}
	} else if ev.Status == calendar.StatusCancelled {
		return ErrNotFound
	}

	if !MatchesIdentity(ev, fullName, cpf) {
		return ErrIdentityMismatch
	}

	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}

	s.log.Info().Str("event_id", eventID).Time("start", ev.Start).Msg("appointment cancelled")
	return nil
}

// Reschedule books the new slot first and only then cancels the old
// appointment, so losing the slot race leaves the old booking intact.
// If the cancel fails after the booking succeeded the patient holds
// two appointments; that inconsistency is surfaced as *RescheduleError
// rather than rolled back. known works as in Cancel.
func (s *Service) Reschedule(ctx context.Context, fullName, cpf, eventID string, newStart time.Time, known *calendar.Event) (string, error) {
	if fullName == "" || cpf == "" || eventID == "" || newStart.IsZero() {
		return "", ErrIncompleteData
	}
	newStart = newStart.In(s.loc)

	ev := known
	if ev == nil {
		var err error
		ev, err = s.FindByID(ctx, eventID)
		if err != nil {
			return "", err
		}
	}
	if newStart.Equal(ev.Start) {
		return "", ErrSameSlot
	}

	newID, err := s.Book(ctx, fullName, cpf, newStart)
	if err != nil {
		return "", err
	}

	if err := s.Cancel(ctx, fullName, cpf, eventID, ev); err != nil {
		s.log.Error().Err(err).Str("new_event_id", newID).Str("old_event_id", eventID).
			Msg("rescheduled but old appointment not cancelled")
		return newID, &RescheduleError{NewEventID: newID, CancelErr: err}
	}

	s.log.Info().Str("new_event_id", newID).Str("old_event_id", eventID).Msg("appointment rescheduled")
	return newID, nil
}

func busyIntervals(events []calendar.Event) []Slot {
	busy := make([]Slot, 0, len(events))
	for _, ev := range events {
		if ev.Status == calendar.StatusCancelled {
			continue
		}
		busy = append(busy, Slot{Start: ev.Start, End: ev.End})
	}
	return busy
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
