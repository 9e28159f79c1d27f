package schedule

import (
	"fmt"
	"strings"

	"github.com/agendabot/clinic-scheduling/internal/calendar"
)

// The calendar store has no structured owner field, so the patient's
// identity is serialized into the event's free-text fields:
//
//	summary:     "Consulta com {nome} - CPF: {cpf}"
//	description: "CPF: {cpf}"
//
// Lookup and cancellation recover ownership by substring match against
// these fields. Changing the format breaks matching for events already
// in the calendar, so it lives in this one place.

const cpfPrefix = "CPF: "

// EncodeIdentity builds the summary and description for a new
// appointment event.
func EncodeIdentity(fullName, cpf string) (summary, description string) {
	summary = fmt.Sprintf("Consulta com %s - %s%s", fullName, cpfPrefix, cpf)
	description = cpfPrefix + cpf
	return summary, description
}

// DecodeCPF extracts the CPF from an event description written by
// EncodeIdentity. Returns "" when the description does not carry one.
func DecodeCPF(description string) string {
	i := strings.Index(description, cpfPrefix)
	if i < 0 {
		return ""
	}
	rest := description[i+len(cpfPrefix):]
	if j := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// MatchesIdentity reports whether the event was encoded for the given
// name and CPF: the summary must contain the full name and the
// description the CPF. This substring check is the only ownership
// credential the system has.
func MatchesIdentity(ev *calendar.Event, fullName, cpf string) bool {
	return strings.Contains(ev.Summary, fullName) && strings.Contains(ev.Description, cpf)
}

// mentionsIdentity is the looser lookup-side match: both name and CPF
// must appear somewhere in summary+description combined, mirroring how
// the store-side text search is narrowed client-side.
func mentionsIdentity(ev *calendar.Event, fullName, cpf string) bool {
	text := ev.Summary + ev.Description
	return strings.Contains(text, fullName) && strings.Contains(text, cpf)
}
