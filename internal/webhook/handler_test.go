package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendabot/clinic-scheduling/internal/calendar"
	"github.com/agendabot/clinic-scheduling/internal/config"
	"github.com/agendabot/clinic-scheduling/internal/schedule"
)

const testSession = "projects/clinic/agent/sessions/abc123"

var testLoc = time.FixedZone("-03", -3*60*60)

func newTestHandler() (*Handler, *schedule.Service) {
	cfg := config.Config{
		OpenHour:         7,
		CloseHour:        21,
		SlotMinutes:      60,
		MinLeadHours:     3,
		HorizonDays:      5,
		LookupWindowDays: 30,
	}
	store := calendar.NewMemoryStore()
	svc := schedule.NewService(store, nil, cfg, testLoc, zerolog.Nop())
	return NewHandler(svc, testLoc, zerolog.Nop()), svc
}

func post(t *testing.T, h *Handler, intent string, params map[string]any, contexts ...Context) WebhookResponse {
	t.Helper()

	req := WebhookRequest{
		ResponseID: "trace-abc-123",
		Session:    testSession,
		QueryResult: QueryResult{
			Intent:         Intent{DisplayName: intent},
			Parameters:     params,
			OutputContexts: contexts,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp WebhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func inputContext(short string, params map[string]any) Context {
	return Context{
		Name:          testSession + "/contexts/" + short,
		LifespanCount: 1,
		Parameters:    params,
	}
}

func findContext(resp WebhookResponse, short string) *Context {
	for i := range resp.OutputContexts {
		if strings.HasSuffix(resp.OutputContexts[i].Name, "/contexts/"+short) {
			return &resp.OutputContexts[i]
		}
	}
	return nil
}

// tomorrowAt keeps test times inside the planner horizon and the
// lookup window regardless of when the tests run.
func tomorrowAt(hour int) time.Time {
	d := time.Now().In(testLoc).AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, testLoc)
}

func TestWelcomeIntent(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "Default Welcome Intent", nil)
	if !strings.Contains(resp.FulfillmentText, "nome completo e CPF") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestUnknownIntent(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "IntentInexistente", nil)
	if !strings.Contains(resp.FulfillmentText, "não entendi") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestCollectDataRejectsInvalidCPF(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "ColetarDados", map[string]any{
		"paciente": map[string]any{"name": "Maria Silva"},
		"cpf":      "123",
	})
	if !strings.Contains(resp.FulfillmentText, "CPF válido") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
	if len(resp.OutputContexts) != 0 {
		t.Error("no context should be set on validation failure")
	}
}

func TestCollectDataNoAppointments(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "ColetarDados", map[string]any{
		"paciente": map[string]any{"name": "Maria Silva"},
		"cpf":      "529.982.247-25",
	})

	if !strings.Contains(resp.FulfillmentText, "Não encontrei nenhuma consulta") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	c := findContext(resp, ctxNoAppointment)
	if c == nil {
		t.Fatal("flow_sem_consulta_context not set")
	}
	if c.Parameters["cpf"] != "52998224725" {
		t.Errorf("context cpf = %v, want normalized", c.Parameters["cpf"])
	}
}

func TestCollectDataFindsAppointment(t *testing.T) {
	h, svc := newTestHandler()

	id, err := svc.Book(context.Background(), "Maria Silva", "52998224725", tomorrowAt(10))
	if err != nil {
		t.Fatal(err)
	}

	resp := post(t, h, "ColetarDados", map[string]any{
		"paciente": map[string]any{"name": "Maria Silva"},
		"cpf":      "52998224725",
	})

	if !strings.Contains(resp.FulfillmentText, "Encontrei a(s) seguinte(s) consulta(s)") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	c := findContext(resp, ctxAppointmentFound)
	if c == nil {
		t.Fatal("flow_consulta_encontrada_context not set")
	}
	if c.Parameters["idConsulta"] != id {
		t.Errorf("context idConsulta = %v, want %s", c.Parameters["idConsulta"], id)
	}
}

func TestOfferSlotsListsSuggestions(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "AgendarConsulta", nil,
		inputContext(ctxNoAppointment, map[string]any{"paciente": "Maria Silva", "cpf": "52998224725"}))

	if !strings.Contains(resp.FulfillmentText, "escolha um horário") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	var chips []string
	for _, msg := range resp.FulfillmentMessages {
		if msg.QuickReplies != nil {
			chips = msg.QuickReplies.QuickReplies
		}
	}
	if len(chips) == 0 {
		t.Fatal("no slot suggestions offered")
	}
	if findContext(resp, ctxSlotsOffered) == nil {
		t.Error("flow_nova_consulta_horarios_context not set")
	}
}

func TestConfirmBookingAndSlotConflict(t *testing.T) {
	h, _ := newTestHandler()
	start := tomorrowAt(10)

	resp := post(t, h, "InformarHorario",
		map[string]any{"dataHora": start.Format(time.RFC3339)},
		inputContext(ctxSlotsOffered, map[string]any{"paciente": "Maria Silva", "cpf": "52998224725"}))
	if !strings.Contains(resp.FulfillmentText, "Consulta agendada com sucesso") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	// Another patient picked the same chip from a stale list.
	resp = post(t, h, "InformarHorario",
		map[string]any{"dataHora": map[string]any{"date_time": start.Format(time.RFC3339)}},
		inputContext(ctxSlotsOffered, map[string]any{"paciente": "João Souza", "cpf": "11144477735"}))
	if !strings.Contains(resp.FulfillmentText, "acabou de ser preenchido") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestConfirmBookingRefusesDuplicate(t *testing.T) {
	h, svc := newTestHandler()

	if _, err := svc.Book(context.Background(), "Maria Silva", "52998224725", tomorrowAt(10)); err != nil {
		t.Fatal(err)
	}

	resp := post(t, h, "InformarHorario",
		map[string]any{"dataHora": tomorrowAt(14).Format(time.RFC3339)},
		inputContext(ctxSlotsOffered, map[string]any{"paciente": "Maria Silva", "cpf": "52998224725"}))
	if !strings.Contains(resp.FulfillmentText, "Já existe uma consulta agendada") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestConfirmBookingWithoutContext(t *testing.T) {
	h, _ := newTestHandler()

	resp := post(t, h, "InformarHorario", map[string]any{
		"dataHora": tomorrowAt(10).Format(time.RFC3339),
	})
	if !strings.Contains(resp.FulfillmentText, "não consegui entender") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestCancelFlow(t *testing.T) {
	h, svc := newTestHandler()

	id, err := svc.Book(context.Background(), "Maria Silva", "52998224725", tomorrowAt(10))
	if err != nil {
		t.Fatal(err)
	}
	found := inputContext(ctxAppointmentFound, map[string]any{
		"paciente":   "Maria Silva",
		"cpf":        "52998224725",
		"idConsulta": id,
	})

	resp := post(t, h, "CancelarConsulta", map[string]any{"resposta": "não"}, found)
	if !strings.Contains(resp.FulfillmentText, "não será cancelada") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	resp = post(t, h, "CancelarConsulta", map[string]any{"resposta": "sim"}, found)
	if !strings.Contains(resp.FulfillmentText, "cancelada com sucesso") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	if _, err := svc.FindByID(context.Background(), id); !errors.Is(err, schedule.ErrNotFound) {
		t.Errorf("event still visible after cancel: %v", err)
	}

	resp = post(t, h, "CancelarConsulta", map[string]any{"resposta": "sim"}, found)
	if !strings.Contains(resp.FulfillmentText, "talvez já tenha sido cancelado") {
		t.Errorf("unexpected reply: %q", resp.FulfillmentText)
	}
}

func TestRescheduleFlow(t *testing.T) {
	h, svc := newTestHandler()

	id, err := svc.Book(context.Background(), "Maria Silva", "52998224725", tomorrowAt(10))
	if err != nil {
		t.Fatal(err)
	}
	found := inputContext(ctxAppointmentFound, map[string]any{
		"paciente":   "Maria Silva",
		"cpf":        "52998224725",
		"idConsulta": id,
	})

	// Without a chosen time the handler offers the free slots again.
	resp := post(t, h, "RemarcarConsulta", nil, found)
	if !strings.Contains(resp.FulfillmentText, "Para qual horário") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	// Moving to the current time is refused before any store call.
	resp = post(t, h, "RemarcarConsulta",
		map[string]any{"dataHora": tomorrowAt(10).Format(time.RFC3339)}, found)
	if !strings.Contains(resp.FulfillmentText, "horário diferente") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	resp = post(t, h, "RemarcarConsulta",
		map[string]any{"dataHora": tomorrowAt(14).Format(time.RFC3339)}, found)
	if !strings.Contains(resp.FulfillmentText, "remarcada com sucesso") {
		t.Fatalf("unexpected reply: %q", resp.FulfillmentText)
	}

	if _, err := svc.FindByID(context.Background(), id); !errors.Is(err, schedule.ErrNotFound) {
		t.Errorf("old event still visible after reschedule: %v", err)
	}
}

func TestServeRejectsBadJSON(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
