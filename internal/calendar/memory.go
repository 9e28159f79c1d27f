package calendar

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and the race
// simulator. Deletes mark the event cancelled instead of removing it,
// mirroring how the remote store keeps tombstones around.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*Event)}
}

func (m *MemoryStore) ListEvents(_ context.Context, timeMin, timeMax time.Time, query string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.events {
		if ev.Status == StatusCancelled {
			continue
		}
		if !ev.Start.Before(timeMax) || ev.Start.Before(timeMin) {
			continue
		}
		if query != "" && !strings.Contains(ev.Summary+ev.Description, query) {
			continue
		}
		out = append(out, *ev)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, draft EventDraft) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := &Event{
		ID:          uuid.NewString(),
		Summary:     draft.Summary,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		Status:      StatusConfirmed,
	}
	m.events[ev.ID] = ev

	cp := *ev
	return &cp, nil
}

func (m *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok || ev.Status == StatusCancelled {
		return ErrEventNotFound
	}
	ev.Status = StatusCancelled
	return nil
}
