package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/agendabot/clinic-scheduling/internal/calendar"
	"github.com/agendabot/clinic-scheduling/internal/config"
	redisclient "github.com/agendabot/clinic-scheduling/internal/redis"
	"github.com/agendabot/clinic-scheduling/internal/schedule"
)

// simulate hammers the booking engine with concurrent fake patients
// against the in-memory store and verifies that the re-check guard
// never lets two confirmed events share a slot.

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, err error) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&m.success, 1)
	case errors.Is(err, schedule.ErrSlotTaken):
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}
	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// mutexLocker is an in-process stand-in for the Redis slot lock. With
// it the run must end with zero double bookings; with -nolock the run
// shows how far the bare re-check narrows the race without closing it.
type mutexLocker struct {
	locks sync.Map // slot start -> *sync.Mutex
}

func (l *mutexLocker) WithSlotLock(ctx context.Context, slotStart time.Time, fn func(ctx context.Context) error) error {
	v, _ := l.locks.LoadOrStore(slotStart.UTC().Format(time.RFC3339), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

func main() {
	workers := flag.Int("workers", 16, "concurrent booking workers")
	attempts := flag.Int("attempts", 50, "booking attempts per worker")
	nolock := flag.Bool("nolock", false, "disable the per-slot lock to observe the raw race")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().Int("workers", *workers).Int("attempts", *attempts).Msg("simulate starting")

	cfg := config.Config{
		OpenHour:         7,
		CloseHour:        21,
		SlotMinutes:      60,
		MinLeadHours:     3,
		HorizonDays:      5,
		LookupWindowDays: 30,
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		logger.Fatal().Err(err).Msg("load timezone")
	}

	store := calendar.NewMemoryStore()
	var locker redisclient.Locker
	if !*nolock {
		locker = &mutexLocker{}
	}
	svc := schedule.NewService(store, locker, cfg, loc, zerolog.Nop())

	// Candidate starts: every slot of every day in the horizon.
	hours := schedule.Hours{Open: cfg.OpenHour, Close: cfg.CloseHour, SlotMinutes: cfg.SlotMinutes}
	now := time.Now().In(loc)
	earliest := now.Add(time.Duration(cfg.MinLeadHours) * time.Hour)
	var starts []time.Time
	for i := 0; i <= cfg.HorizonDays; i++ {
		day := now.AddDate(0, 0, i)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		for _, slot := range hours.DaySlots(day, earliest) {
			starts = append(starts, slot.Start)
		}
	}
	logger.Info().Int("candidate_slots", len(starts)).Msg("generated slot pool")

	gofakeit.Seed(time.Now().UnixNano())

	var m metrics
	var wg sync.WaitGroup
	begin := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < *attempts; i++ {
				name := gofakeit.Name()
				cpf := gofakeit.DigitN(11)
				start := starts[rand.Intn(len(starts))]

				t0 := time.Now()
				_, err := svc.Book(context.Background(), name, cpf, start)
				m.record(time.Since(t0), err)
			}
		}()
	}
	wg.Wait()

	logger.Info().
		Int64("total", m.total).
		Int64("success", m.success).
		Int64("conflict", m.conflict).
		Int64("error", m.errored).
		Dur("elapsed", time.Since(begin)).
		Dur("p50", m.percentile(0.50)).
		Dur("p95", m.percentile(0.95)).
		Msg("simulation finished")

	doubles := countDoubleBookings(store, now, now.AddDate(0, 0, cfg.HorizonDays+1))
	if doubles > 0 {
		if *nolock {
			logger.Warn().Int("double_booked_slots", doubles).Msg("race window hit without the lock")
			return
		}
		logger.Error().Int("double_booked_slots", doubles).Msg("race guard failed")
		os.Exit(1)
	}
	logger.Info().Msg("no double bookings")
}

func countDoubleBookings(store *calendar.MemoryStore, from, to time.Time) int {
	events, err := store.ListEvents(context.Background(), from, to, "")
	if err != nil {
		return 0
	}
	seen := make(map[string]int)
	doubles := 0
	for _, ev := range events {
		key := ev.Start.Format(time.RFC3339)
		seen[key]++
		if seen[key] == 2 {
			doubles++
		}
	}
	return doubles
}
