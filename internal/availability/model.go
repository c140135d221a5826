package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval is a [Start, End) range of bookable time within a day.
type Interval struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

func (i Interval) Valid() bool {
	return i.Start >= 0 && i.Start < i.End && i.End <= Midnight
}

// DayAvailability is one weekday of a doctor's recurring schedule. When
// Available is false every interval is ignored.
type DayAvailability struct {
	Weekday   time.Weekday `json:"-"`
	Available bool         `json:"is_available"`
	Intervals []Interval   `json:"slots"`
}

// WeeklyAvailability maps each weekday to its schedule. A normalized value
// holds exactly seven entries; lookups for a missing weekday fall back to
// DefaultDay.
type WeeklyAvailability map[time.Weekday]DayAvailability

// weekOrder is the display order used for serialization.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var (
	weekdayInterval = Interval{Start: NewClock(8, 0), End: NewClock(17, 0)}
	weekendInterval = Interval{Start: NewClock(8, 0), End: NewClock(13, 0)}
)

// DefaultDay is the schedule synthesized for a weekday with no stored
// entry: business hours on weekdays, a morning on weekends.
func DefaultDay(wd time.Weekday) DayAvailability {
	iv := weekdayInterval
	if wd == time.Saturday || wd == time.Sunday {
		iv = weekendInterval
	}
	return DayAvailability{Weekday: wd, Available: true, Intervals: []Interval{iv}}
}

// DefaultWeek returns a full week of DefaultDay entries.
func DefaultWeek() WeeklyAvailability {
	w := make(WeeklyAvailability, 7)
	for _, wd := range weekOrder {
		w[wd] = DefaultDay(wd)
	}
	return w
}

// Day returns the schedule for wd, synthesizing the default when absent.
func (w WeeklyAvailability) Day(wd time.Weekday) DayAvailability {
	if d, ok := w[wd]; ok {
		d.Weekday = wd
		return d
	}
	return DefaultDay(wd)
}

// Days lists the week Monday first.
func (w WeeklyAvailability) Days() []DayAvailability {
	out := make([]DayAvailability, 0, len(weekOrder))
	for _, wd := range weekOrder {
		out = append(out, w.Day(wd))
	}
	return out
}

// Validate rejects intervals that could never produce a slot.
func (w WeeklyAvailability) Validate() error {
	for wd, d := range w {
		for _, iv := range d.Intervals {
			if !iv.Valid() {
				return fmt.Errorf("%s: interval %s-%s: start must be before end", wd, iv.Start, iv.End)
			}
		}
	}
	return nil
}

type dayJSON struct {
	Day       string     `json:"day"`
	Available *bool      `json:"is_available"`
	Intervals []Interval `json:"slots"`
}

func (w WeeklyAvailability) MarshalJSON() ([]byte, error) {
	out := make([]dayJSON, 0, 7)
	for _, d := range w.Days() {
		ivs := d.Intervals
		if ivs == nil {
			ivs = []Interval{}
		}
		available := d.Available
		out = append(out, dayJSON{Day: d.Weekday.String(), Available: &available, Intervals: ivs})
	}
	return json.Marshal(out)
}

func (w *WeeklyAvailability) UnmarshalJSON(data []byte) error {
	var in []dayJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	week := make(WeeklyAvailability, len(in))
	for _, d := range in {
		wd, ok := ResolveWeekday(d.Day)
		if !ok {
			return fmt.Errorf("unknown weekday %q", d.Day)
		}
		if _, dup := week[wd]; dup {
			return fmt.Errorf("duplicate weekday %q", d.Day)
		}
		ivs := append([]Interval(nil), d.Intervals...)
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })
		// An omitted flag means open, as in stored records.
		available := d.Available == nil || *d.Available
		week[wd] = DayAvailability{Weekday: wd, Available: available, Intervals: ivs}
	}
	*w = week
	return nil
}

// ResolveWeekday matches a weekday name case-insensitively, falling back to a
// three-letter prefix for abbreviated records ("Mon", "tues").
func ResolveWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	for _, wd := range weekOrder {
		if strings.ToLower(wd.String()) == name {
			return wd, true
		}
	}
	if len(name) < 3 {
		return 0, false
	}
	prefix := name[:3]
	for _, wd := range weekOrder {
		if strings.ToLower(wd.String()[:3]) == prefix {
			return wd, true
		}
	}
	return 0, false
}
