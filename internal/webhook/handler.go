package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendabot/clinic-scheduling/internal/schedule"
)

const (
	ctxAppointmentFound = "flow_consulta_encontrada_context"
	ctxNoAppointment    = "flow_sem_consulta_context"
	ctxSlotsOffered     = "flow_nova_consulta_horarios_context"
)

const (
	msgAskIdentity   = "Olá! Por favor informe seu nome completo e CPF para que eu possa verificar suas consultas."
	msgBadIdentity   = "Desculpe, não consegui entender seu nome completo ou CPF. Por favor, tente novamente."
	msgBadCPF        = "Por favor, informe um CPF válido com 11 dígitos."
	msgStoreTrouble  = "Desculpe, tive um problema ao acessar a agenda. Por favor, tente novamente mais tarde."
	msgSlotTaken     = "Esse horário acabou de ser preenchido. Por favor, escolha outro horário."
	msgUnknownIntent = "Desculpe, não entendi. Pode repetir?"
)

// Handler routes Dialogflow intents to the scheduling engines. All
// identity and slot data arrives explicitly in parameters or contexts;
// nothing is remembered between calls.
type Handler struct {
	svc *schedule.Service
	loc *time.Location
	log zerolog.Logger
}

func NewHandler(svc *schedule.Service, loc *time.Location, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, loc: loc, log: logger}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if req.OriginalDetectIntentRequest != nil && req.OriginalDetectIntentRequest.Source != "" {
		// Dialogflow Console test calls carry a source that confuses the
		// context round-trip; treat them like regular calls.
		h.log.Warn().Str("source", req.OriginalDetectIntentRequest.Source).Msg("ignoring originalDetectIntentRequest source")
	}

	agent := newAgent(&req)
	h.dispatch(r.Context(), agent)
	writeJSON(w, http.StatusOK, agent.response())
}

func (h *Handler) dispatch(ctx context.Context, agent *Agent) {
	intent := agent.Intent()
	h.log.Info().Str("intent", intent).Msg("webhook call")

	switch intent {
	case "Default Welcome Intent":
		agent.Add(msgAskIdentity)
	case "ColetarDados":
		h.collectPatientData(ctx, agent)
	case "AgendarConsulta":
		h.offerSlots(ctx, agent)
	case "InformarHorario":
		h.confirmBooking(ctx, agent)
	case "CancelarConsulta":
		h.cancelAppointment(ctx, agent)
	case "RemarcarConsulta":
		h.rescheduleAppointment(ctx, agent)
	default:
		agent.Add(msgUnknownIntent)
	}
}

// collectPatientData validates name+CPF and branches the conversation
// on whether the patient already has an upcoming appointment.
func (h *Handler) collectPatientData(ctx context.Context, agent *Agent) {
	fullName := personName(agent.Param("paciente"))
	cpf, ok := h.checkIdentity(agent, fullName, agent.StringParam("cpf"))
	if !ok {
		return
	}

	found, err := h.svc.FindByIdentity(ctx, fullName, cpf)
	if err != nil {
		h.log.Error().Err(err).Msg("lookup failed")
		agent.Add("Desculpe, tive um problema ao verificar suas consultas. Por favor, tente novamente mais tarde.")
		return
	}

	if len(found) == 0 {
		agent.Add(fmt.Sprintf("Não encontrei nenhuma consulta marcada para %s com o CPF %s.", fullName, cpf))
		agent.Add("Você gostaria de marcar uma nova consulta?")
		agent.AddSuggestions("Marcar nova consulta")
		agent.SetContext(ctxNoAppointment, 1, map[string]any{"paciente": fullName, "cpf": cpf})
		return
	}

	msg := "Encontrei a(s) seguinte(s) consulta(s) para você:\n"
	for _, ev := range found {
		msg += fmt.Sprintf("- %s\n", schedule.FormatDateTime(ev.Start))
	}
	msg += "\nVocê deseja remarcar ou cancelar essa consulta?"
	agent.Add(msg)
	agent.AddSuggestions("Remarcar consulta", "Cancelar consulta", "Reiniciar agendamento", "Sair")
	agent.SetContext(ctxAppointmentFound, 2, map[string]any{
		"paciente":   fullName,
		"cpf":        cpf,
		"idConsulta": found[0].ID,
	})
}

// offerSlots lists the free slots as suggestion chips for a patient
// with no existing appointment.
func (h *Handler) offerSlots(ctx context.Context, agent *Agent) {
	fullName, cpf, ok := h.identityFromContext(agent, ctxNoAppointment)
	if !ok {
		return
	}

	existing, err := h.svc.FindByIdentity(ctx, fullName, cpf)
	if err != nil {
		h.log.Error().Err(err).Msg("lookup failed")
		agent.Add(msgStoreTrouble)
		return
	}
	if len(existing) > 0 {
		agent.Add(fmt.Sprintf("Você já possui uma consulta agendada para %s com o CPF %s.", fullName, cpf))
		return
	}

	slots, err := h.svc.ListAvailableSlots(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("availability failed")
		agent.Add(msgStoreTrouble)
		return
	}
	if len(slots) == 0 {
		agent.Add("No momento não há horários disponíveis. Por favor, tente novamente em alguns dias.")
		return
	}

	agent.Add(fmt.Sprintf("Olá %s, por favor, escolha um horário disponível abaixo:", fullName))
	agent.AddSuggestions(slots...)
	agent.SetContext(ctxSlotsOffered, 1, map[string]any{"paciente": fullName, "cpf": cpf})
}

// confirmBooking books the slot the patient picked.
func (h *Handler) confirmBooking(ctx context.Context, agent *Agent) {
	fullName, cpf, ok := h.identityFromContext(agent, ctxSlotsOffered)
	if !ok {
		return
	}

	start, ok := parseDateTime(agent.Param("dataHora"), h.loc)
	if !ok {
		agent.Add("Desculpe, não consegui entender o horário selecionado. Por favor, tente novamente.")
		return
	}

	existing, err := h.svc.FindByIdentity(ctx, fullName, cpf)
	if err != nil {
		h.log.Error().Err(err).Msg("lookup failed")
		agent.Add(msgStoreTrouble)
		return
	}
	if len(existing) > 0 {
		agent.Add(fmt.Sprintf("Já existe uma consulta agendada para %s com o CPF %s em %s.",
			fullName, cpf, schedule.FormatDateTime(existing[0].Start)))
		return
	}

	if _, err := h.svc.Book(ctx, fullName, cpf, start); err != nil {
		switch {
		case errors.Is(err, schedule.ErrSlotTaken), errors.Is(err, schedule.ErrSlotBeingBooked):
			agent.Add(msgSlotTaken)
		default:
			h.log.Error().Err(err).Msg("booking failed")
			agent.Add("Desculpe, tive um problema ao tentar agendar sua consulta. Por favor, tente novamente mais tarde.")
		}
		return
	}

	agent.Add(fmt.Sprintf("Consulta agendada com sucesso para %s!", schedule.FormatDateTime(start)))
}

// cancelAppointment asks for a sim/não confirmation and then cancels
// the appointment found earlier in the conversation.
func (h *Handler) cancelAppointment(ctx context.Context, agent *Agent) {
	switch normalizeAnswer(agent.StringParam("resposta")) {
	case "nao":
		agent.Add("Ok, sua consulta não será cancelada.")
		return
	case "sim":
	default:
		agent.Add("Você deseja cancelar a consulta? Responda sim ou não.")
		return
	}

	fullName, cpf, eventID, ok := h.appointmentFromContext(agent)
	if !ok {
		agent.Add("Desculpe, não consegui identificar a consulta a ser cancelada. Por favor, tente novamente.")
		return
	}

	if err := h.svc.Cancel(ctx, fullName, cpf, eventID, nil); err != nil {
		switch {
		case errors.Is(err, schedule.ErrNotFound):
			agent.Add("Não encontrei esse agendamento, talvez já tenha sido cancelado.")
		case errors.Is(err, schedule.ErrIdentityMismatch):
			agent.Add("Os dados informados não correspondem a essa consulta.")
		default:
			h.log.Error().Err(err).Msg("cancel failed")
			agent.Add("Desculpe, tive um problema ao tentar cancelar sua consulta. Por favor, tente novamente mais tarde.")
		}
		return
	}

	agent.Add("Sua consulta foi cancelada com sucesso.")
}

// rescheduleAppointment moves the found appointment to a new slot; the
// new booking happens before the old one is cancelled, so a lost slot
// race leaves the original appointment untouched.
func (h *Handler) rescheduleAppointment(ctx context.Context, agent *Agent) {
	fullName, cpf, eventID, ok := h.appointmentFromContext(agent)
	if !ok {
		agent.Add("Desculpe, não consegui identificar a consulta a ser remarcada. Por favor, tente novamente.")
		return
	}

	newStart, hasTime := parseDateTime(agent.Param("dataHora"), h.loc)
	if !hasTime {
		slots, err := h.svc.ListAvailableSlots(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("availability failed")
			agent.Add(msgStoreTrouble)
			return
		}
		agent.Add("Para qual horário você gostaria de remarcar?")
		agent.AddSuggestions(slots...)
		agent.SetContext(ctxAppointmentFound, 2, map[string]any{
			"paciente":   fullName,
			"cpf":        cpf,
			"idConsulta": eventID,
		})
		return
	}

	if _, err := h.svc.Reschedule(ctx, fullName, cpf, eventID, newStart, nil); err != nil {
		var partial *schedule.RescheduleError
		switch {
		case errors.Is(err, schedule.ErrSameSlot):
			agent.Add("Esse é o horário atual da sua consulta. Por favor, escolha um horário diferente.")
		case errors.Is(err, schedule.ErrSlotTaken), errors.Is(err, schedule.ErrSlotBeingBooked):
			agent.Add(msgSlotTaken + " Sua consulta original foi mantida.")
		case errors.Is(err, schedule.ErrNotFound):
			agent.Add("Não encontrei esse agendamento, talvez já tenha sido cancelado.")
		case errors.As(err, &partial):
			agent.Add(fmt.Sprintf("Sua nova consulta foi marcada para %s, mas não consegui cancelar a anterior. Por favor, entre em contato com a clínica.",
				schedule.FormatDateTime(newStart)))
		default:
			h.log.Error().Err(err).Msg("reschedule failed")
			agent.Add("Desculpe, tive um problema ao tentar remarcar sua consulta. Por favor, tente novamente mais tarde.")
		}
		return
	}

	agent.Add(fmt.Sprintf("Consulta remarcada com sucesso para %s!", schedule.FormatDateTime(newStart)))
}

// checkIdentity normalizes and validates the raw name/CPF pair,
// replying with the proper prompt when something is off.
func (h *Handler) checkIdentity(agent *Agent, fullName, rawCPF string) (string, bool) {
	if fullName == "" || rawCPF == "" {
		agent.Add(msgBadIdentity)
		return "", false
	}
	cpf := NormalizeCPF(rawCPF)
	if !ValidCPF(cpf) {
		agent.Add(msgBadCPF)
		return "", false
	}
	return cpf, true
}

func (h *Handler) identityFromContext(agent *Agent, contextName string) (fullName, cpf string, ok bool) {
	c := agent.GetContext(contextName)
	if c == nil {
		agent.Add(msgBadIdentity)
		return "", "", false
	}
	fullName = personName(c.Parameters["paciente"])
	cpf, ok = h.checkIdentity(agent, fullName, stringValue(c.Parameters["cpf"]))
	return fullName, cpf, ok
}

func (h *Handler) appointmentFromContext(agent *Agent) (fullName, cpf, eventID string, ok bool) {
	c := agent.GetContext(ctxAppointmentFound)
	if c == nil {
		return "", "", "", false
	}
	fullName = personName(c.Parameters["paciente"])
	eventID, _ = c.Parameters["idConsulta"].(string)
	rawCPF := stringValue(c.Parameters["cpf"])
	if fullName == "" || rawCPF == "" || eventID == "" {
		return "", "", "", false
	}
	cpf = NormalizeCPF(rawCPF)
	if !ValidCPF(cpf) {
		return "", "", "", false
	}
	return fullName, cpf, eventID, true
}

func normalizeAnswer(s string) string {
	switch s {
	case "não", "Não", "NÃO", "nao", "Nao":
		return "nao"
	case "sim", "Sim", "SIM":
		return "sim"
	}
	return s
}
