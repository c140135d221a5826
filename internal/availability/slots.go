package availability

import (
	"sort"
	"time"
)

// SlotStep is the fixed length of a bookable slot.
const SlotStep = 30 * time.Minute

// Generate returns the bookable slot start times for date, ascending and
// without duplicates. A closed day yields nil; so does an open day with no
// intervals. Booked slots are not subtracted.
func Generate(week WeeklyAvailability, date time.Time) []Clock {
	day := week.Day(date.Weekday())
	if !day.Available {
		return nil
	}

	seen := make(map[Clock]struct{})
	var slots []Clock
	for _, iv := range day.Intervals {
		if !iv.Valid() {
			continue
		}
		for t := iv.Start; t.Add(SlotStep) <= iv.End; t = t.Add(SlotStep) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Format renders slots as "HH:MM" strings.
func Format(slots []Clock) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

// Contains reports whether the slot list for date includes t.
func Contains(week WeeklyAvailability, date time.Time, t Clock) bool {
	for _, s := range Generate(week, date) {
		if s == t {
			return true
		}
	}
	return false
}
