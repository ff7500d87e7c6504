package domain

// Frequency is the calendar rule that defines rebalance cadence.
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekEnd    Frequency = "week_end"
	FrequencyMonthEnd   Frequency = "month_end"
	FrequencyQuarterEnd Frequency = "quarter_end"
	FrequencyYearEnd    Frequency = "year_end"
)

// String returns the string representation of Frequency.
func (f Frequency) String() string {
	return string(f)
}

// IsValid checks if the frequency is a supported value.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekEnd, FrequencyMonthEnd, FrequencyQuarterEnd, FrequencyYearEnd:
		return true
	default:
		return false
	}
}
