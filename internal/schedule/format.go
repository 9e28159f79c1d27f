package schedule

import (
	"fmt"
	"time"
)

// Slot labels are shown to patients as "segunda-feira 02/06 15:00".
// Go's time formatting has no locale support, so the pt-BR weekday
// names are spelled out here.
var weekdaysPT = [...]string{
	"domingo",
	"segunda-feira",
	"terça-feira",
	"quarta-feira",
	"quinta-feira",
	"sexta-feira",
	"sábado",
}

// Label renders a slot start as the conversational label offered to
// the patient. The same string later comes back verbatim as a
// suggestion chip, so it only carries day/month, not the year.
func (s Slot) Label() string {
	return fmt.Sprintf("%s %s", weekdaysPT[s.Start.Weekday()], s.Start.Format("02/01 15:04"))
}

// FormatDateTime is the long form used when confirming an existing
// appointment back to the patient.
func FormatDateTime(t time.Time) string {
	return fmt.Sprintf("%s %s", weekdaysPT[t.Weekday()], t.Format("02/01/2006 15:04"))
}
