package usage

import "time"

// DateLayout is the calendar-day format of Key.Day.
const DateLayout = "2006-01-02"

// Hit is one resolved call to be counted.
type Hit struct {
	Endpoint  string
	EventType string
	// Method is the identification method of the returned event; empty when
	// nothing matched and recorded as "n/a".
	Method  string
	At      time.Time
	Matched bool
}

// Key identifies one daily counter row.
type Key struct {
	Endpoint  string
	EventType string
	Method    string
	Day       time.Time
}

// DayString formats the key's day.
func (k Key) DayString() string {
	return k.Day.Format(DateLayout)
}

// Counts is the value of a daily counter row.
type Counts struct {
	Calls     int64
	Positives int64
}
