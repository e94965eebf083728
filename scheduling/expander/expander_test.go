package expander

import (
	"testing"
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExpand_WeeklySpecScenario(t *testing.T) {
	// Monday 2024-01-01 09:00, repeating Mon/Wed/Fri for two weeks.
	rule := &common.RecurrenceRule{
		Frequency:  common.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		End:        common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-01-01T09:00:00Z")
	win := Window{Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-14T23:59:59Z")}

	got := Expand(rule, first, win, 0)

	want := []time.Time{
		ts("2024-01-01T09:00:00Z"),
		ts("2024-01-03T09:00:00Z"),
		ts("2024-01-05T09:00:00Z"),
		ts("2024-01-08T09:00:00Z"),
		ts("2024-01-10T09:00:00Z"),
		ts("2024-01-12T09:00:00Z"),
	}
	require.Equal(t, want, got)
}

func TestExpand_WeeklyEmitsOnlySelectedWeekdays(t *testing.T) {
	rule := &common.RecurrenceRule{
		Frequency:  common.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Tuesday, time.Saturday},
		End:        common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-03-05T18:30:00Z") // a Tuesday
	win := Window{Start: first, End: ts("2024-04-05T00:00:00Z")}

	got := Expand(rule, first, win, 0)
	require.NotEmpty(t, got)

	prev := time.Time{}
	for _, occ := range got {
		assert.Contains(t, []time.Weekday{time.Tuesday, time.Saturday}, occ.Weekday())
		assert.False(t, occ.Before(win.Start))
		assert.False(t, occ.After(win.End))
		assert.True(t, occ.After(prev), "occurrences must be strictly increasing")
		assert.Equal(t, 18, occ.Hour())
		assert.Equal(t, 30, occ.Minute())
		prev = occ
	}
}

func TestExpand_MonthlySkipsNonexistentDays(t *testing.T) {
	// Day 31 does not exist in February: nothing may be emitted for it.
	rule := &common.RecurrenceRule{
		Frequency:   common.FrequencyMonthly,
		DaysOfMonth: []int{31},
		End:         common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-01-31T12:00:00Z")
	win := Window{Start: first, End: ts("2024-04-30T00:00:00Z")}

	got := Expand(rule, first, win, 0)

	want := []time.Time{
		ts("2024-01-31T12:00:00Z"),
		ts("2024-03-31T12:00:00Z"),
	}
	require.Equal(t, want, got)
}

func TestExpand_MonthlyMultipleDays(t *testing.T) {
	rule := &common.RecurrenceRule{
		Frequency:   common.FrequencyMonthly,
		DaysOfMonth: []int{1, 15},
		End:         common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-01-15T08:00:00Z")
	win := Window{Start: first, End: ts("2024-03-31T00:00:00Z")}

	got := Expand(rule, first, win, 0)

	// The January 1st selector is before the first occurrence and must not
	// be emitted.
	want := []time.Time{
		ts("2024-01-15T08:00:00Z"),
		ts("2024-02-01T08:00:00Z"),
		ts("2024-02-15T08:00:00Z"),
		ts("2024-03-01T08:00:00Z"),
		ts("2024-03-15T08:00:00Z"),
	}
	require.Equal(t, want, got)
}

func TestExpand_DailyBoundedByWindow(t *testing.T) {
	rule := &common.RecurrenceRule{
		Frequency: common.FrequencyDaily,
		End:       common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-06-01T07:45:00Z")
	win := Window{Start: first, End: ts("2024-06-04T23:00:00Z")}

	got := Expand(rule, first, win, 0)
	require.Len(t, got, 4)
	assert.Equal(t, ts("2024-06-01T07:45:00Z"), got[0])
	assert.Equal(t, ts("2024-06-04T07:45:00Z"), got[3])
}

func TestExpand_AfterCountAcrossDisjointWindows(t *testing.T) {
	rule := &common.RecurrenceRule{
		Frequency: common.FrequencyDaily,
		End:       common.EndCondition{Kind: common.EndAfterCount, Count: 3},
	}
	first := ts("2024-06-01T10:00:00Z")

	// First window covers two occurrences, the second window the rest.
	// The running count is carried externally, like the ledger does.
	win1 := Window{Start: first, End: ts("2024-06-02T23:00:00Z")}
	got1 := Expand(rule, first, win1, 0)
	require.Len(t, got1, 2)

	win2 := Window{Start: ts("2024-06-03T00:00:00Z"), End: ts("2024-06-30T00:00:00Z")}
	got2 := Expand(rule, first, win2, len(got1))
	require.Len(t, got2, 1)
	assert.Equal(t, ts("2024-06-03T10:00:00Z"), got2[0])

	win3 := Window{Start: ts("2024-07-01T00:00:00Z"), End: ts("2024-07-31T00:00:00Z")}
	got3 := Expand(rule, first, win3, len(got1)+len(got2))
	assert.Empty(t, got3)
}

func TestExpand_OnDateStopsStrictlyAfter(t *testing.T) {
	end := ts("2024-06-03T10:00:00Z")
	rule := &common.RecurrenceRule{
		Frequency: common.FrequencyDaily,
		End:       common.EndCondition{Kind: common.EndOnDate, Date: &end},
	}
	first := ts("2024-06-01T10:00:00Z")
	win := Window{Start: first, End: ts("2024-06-30T00:00:00Z")}

	got := Expand(rule, first, win, 0)

	// An occurrence exactly on the end date is still emitted.
	require.Len(t, got, 3)
	assert.Equal(t, end, got[2])
}

func TestExpand_OneOffPost(t *testing.T) {
	first := ts("2024-06-01T10:00:00Z")
	win := Window{Start: ts("2024-05-01T00:00:00Z"), End: ts("2024-06-30T00:00:00Z")}

	got := Expand(nil, first, win, 0)
	require.Equal(t, []time.Time{first}, got)

	// Outside the window nothing is emitted.
	late := Window{Start: ts("2024-06-02T00:00:00Z"), End: ts("2024-06-30T00:00:00Z")}
	assert.Empty(t, Expand(nil, first, late, 0))
}

func TestExpand_RestartableIterator(t *testing.T) {
	rule := &common.RecurrenceRule{
		Frequency: common.FrequencyDaily,
		End:       common.EndCondition{Kind: common.EndNever},
	}
	first := ts("2024-06-01T10:00:00Z")
	win := Window{Start: first, End: ts("2024-06-05T23:00:00Z")}

	exp := New(rule, first, win, 0)
	var collected []time.Time
	for {
		occ, ok := exp.Next()
		if !ok {
			break
		}
		collected = append(collected, occ)
	}
	require.Equal(t, Expand(rule, first, win, 0), collected)

	// A fresh expansion over the same inputs produces the same sequence.
	require.Equal(t, collected, Expand(rule, first, win, 0))
}
