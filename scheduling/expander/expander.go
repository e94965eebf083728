// Package expander turns a recurrence rule into concrete occurrence
// timestamps. Expansion is pure: it never touches persisted state, and the
// running emission count an after_count end condition is checked against is
// supplied by the caller (the ledger carries it between windows).
package expander

import (
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
)

// Window bounds one expansion request. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Expansion is a lazy, finite, restartable iterator over the occurrence
// timestamps of one rule. Candidates are generated in strictly increasing
// order; iteration stops at the window end or the rule's end condition,
// whichever comes first.
type Expansion struct {
	rule    *common.RecurrenceRule
	first   time.Time
	win     Window
	emitted int
	done    bool

	// daily cursor
	dayOffset int

	// weekly cursors
	weekStart time.Time
	week      int
	weekIdx   int
	weekDays  []time.Weekday

	// monthly cursors
	monthYear  int
	monthMonth time.Month
	monthIdx   int
	monthDays  []int

	// one-off posts expand to exactly their first occurrence
	oneOffEmitted bool
}

// New prepares an expansion for the given rule and window. A nil rule is a
// one-off post: it expands to firstOccurrence alone. emittedSoFar is the
// number of occurrences already materialized in earlier windows.
func New(rule *common.RecurrenceRule, firstOccurrence time.Time, win Window, emittedSoFar int) *Expansion {
	e := &Expansion{
		rule:    rule,
		first:   firstOccurrence,
		win:     win,
		emitted: emittedSoFar,
	}

	if rule == nil {
		return e
	}

	switch rule.Frequency {
	case common.FrequencyWeekly:
		e.weekDays = rule.SortedDaysOfWeek()
		if len(e.weekDays) == 0 {
			e.done = true
			return e
		}
		// Anchor at the start (Sunday) of the week containing the first
		// occurrence, preserving its time of day.
		y, m, d := firstOccurrence.Date()
		hh, mm, ss := firstOccurrence.Clock()
		e.weekStart = time.Date(y, m, d-int(firstOccurrence.Weekday()), hh, mm, ss, firstOccurrence.Nanosecond(), firstOccurrence.Location())
	case common.FrequencyMonthly:
		e.monthDays = rule.SortedDaysOfMonth()
		if len(e.monthDays) == 0 {
			e.done = true
			return e
		}
		e.monthYear = firstOccurrence.Year()
		e.monthMonth = firstOccurrence.Month()
	}
	return e
}

// Next returns the next occurrence timestamp within the window, or false
// when the expansion is exhausted.
func (e *Expansion) Next() (time.Time, bool) {
	for {
		if e.done {
			return time.Time{}, false
		}
		if e.rule != nil && e.rule.End.Kind == common.EndAfterCount && e.emitted >= e.rule.End.Count {
			e.done = true
			return time.Time{}, false
		}

		candidate, ok := e.nextCandidate()
		if !ok {
			e.done = true
			return time.Time{}, false
		}

		// Candidates increase strictly, so passing the window end or the
		// on_date boundary ends the expansion rather than skipping.
		if candidate.After(e.win.End) {
			e.done = true
			return time.Time{}, false
		}
		if e.rule != nil && e.rule.End.Kind == common.EndOnDate && e.rule.End.Date != nil && candidate.After(*e.rule.End.Date) {
			e.done = true
			return time.Time{}, false
		}

		if candidate.Before(e.first) || candidate.Before(e.win.Start) {
			continue
		}

		e.emitted++
		return candidate, true
	}
}

// nextCandidate advances the frequency cursor and returns the raw candidate
// before window and end-condition filtering.
func (e *Expansion) nextCandidate() (time.Time, bool) {
	if e.rule == nil {
		if e.oneOffEmitted {
			return time.Time{}, false
		}
		e.oneOffEmitted = true
		return e.first, true
	}

	switch e.rule.Frequency {
	case common.FrequencyDaily:
		c := e.first.AddDate(0, 0, e.dayOffset)
		e.dayOffset++
		return c, true

	case common.FrequencyWeekly:
		c := e.weekStart.AddDate(0, 0, 7*e.week+int(e.weekDays[e.weekIdx]))
		e.weekIdx++
		if e.weekIdx == len(e.weekDays) {
			e.weekIdx = 0
			e.week++
		}
		return c, true

	case common.FrequencyMonthly:
		// Day selectors that do not exist in the current month are skipped
		// for that month only, never clamped or rolled over.
		for {
			if e.monthIdx == len(e.monthDays) {
				e.monthIdx = 0
				e.monthMonth++
				if e.monthMonth > time.December {
					e.monthMonth = time.January
					e.monthYear++
				}
			}
			day := e.monthDays[e.monthIdx]
			e.monthIdx++
			if day > daysInMonth(e.monthYear, e.monthMonth) {
				continue
			}
			hh, mm, ss := e.first.Clock()
			return time.Date(e.monthYear, e.monthMonth, day, hh, mm, ss, e.first.Nanosecond(), e.first.Location()), true
		}
	}

	return time.Time{}, false
}

// Expand drains the iterator into a slice. Convenience for callers that want
// the whole window at once.
func Expand(rule *common.RecurrenceRule, firstOccurrence time.Time, win Window, emittedSoFar int) []time.Time {
	exp := New(rule, firstOccurrence, win, emittedSoFar)
	var out []time.Time
	for {
		t, ok := exp.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
