package checklist

import (
	"time"

	"github.com/trezcool/begi/core"
)

// Phase names an interval of the day controlling whether checklist edits
// are permitted. The three phases partition the day exhaustively:
//
//	[15,24) prep_afternoon  edits for tomorrow
//	[0,7)   prep_early      last-minute edits for today
//	[7,15)  locked          read-only (the child is at school)
type Phase string

const (
	PhasePrepAfternoon Phase = "prep_afternoon"
	PhasePrepEarly     Phase = "prep_early"
	PhaseLocked        Phase = "locked"
)

// PhaseInfo is the classification of a moment in time: the phase, whether
// edits are allowed, and the calendar date checklist work applies to.
type PhaseInfo struct {
	Phase      Phase     `json:"phase"`
	Editable   bool      `json:"editable"`
	Now        time.Time `json:"now"`
	TargetDate core.Date `json:"targetDate"`
}

// Classify maps now to its phase and target date using only the wall-clock
// hour in timezone. Afternoon prep targets tomorrow; early prep and the
// locked window target today. An unknown timezone identifier is a
// deployment problem and surfaces as a ConfigurationError.
func Classify(now time.Time, timezone string) (PhaseInfo, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return PhaseInfo{}, core.NewConfigurationError("invalid timezone "+timezone, err)
	}
	local := now.In(loc)
	today := core.DateOf(local)

	var info PhaseInfo
	switch h := local.Hour(); {
	case h >= 15:
		info = PhaseInfo{Phase: PhasePrepAfternoon, Editable: true, TargetDate: today.AddDays(1)}
	case h < 7:
		info = PhaseInfo{Phase: PhasePrepEarly, Editable: true, TargetDate: today}
	default:
		info = PhaseInfo{Phase: PhaseLocked, Editable: false, TargetDate: today}
	}
	info.Now = local
	return info, nil
}
