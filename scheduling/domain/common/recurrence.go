package common

import (
	"sort"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type EndConditionKind string

const (
	EndNever      EndConditionKind = "never"
	EndOnDate     EndConditionKind = "on_date"
	EndAfterCount EndConditionKind = "after_count"
)

// EndCondition bounds a recurrence. Date is set iff Kind is on_date, Count
// iff Kind is after_count.
type EndCondition struct {
	Kind  EndConditionKind `json:"kind"`
	Date  *time.Time       `json:"date,omitempty"`
	Count int              `json:"count,omitempty"`
}

// RecurrenceRule is an immutable description of how a post repeats. Exactly
// one of DaysOfWeek / DaysOfMonth is populated, matching Frequency; daily
// rules use neither.
type RecurrenceRule struct {
	Frequency   Frequency      `json:"frequency"`
	DaysOfWeek  []time.Weekday `json:"days_of_week,omitempty"`
	DaysOfMonth []int          `json:"days_of_month,omitempty"`
	End         EndCondition   `json:"end"`
}

// SortedDaysOfWeek returns the weekday selectors in ascending order without
// mutating the rule.
func (r RecurrenceRule) SortedDaysOfWeek() []time.Weekday {
	days := make([]time.Weekday, len(r.DaysOfWeek))
	copy(days, r.DaysOfWeek)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// SortedDaysOfMonth returns the day-of-month selectors in ascending order
// without mutating the rule.
func (r RecurrenceRule) SortedDaysOfMonth() []int {
	days := make([]int, len(r.DaysOfMonth))
	copy(days, r.DaysOfMonth)
	sort.Ints(days)
	return days
}
