package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StoredDay is the persisted shape of one weekday. Older records may use
// abbreviated day names, omit dayAvailable, or carry per-slot flags that
// disagree with the day.
type StoredDay struct {
	Day          string       `json:"day"`
	DayAvailable *bool        `json:"dayAvailable,omitempty"`
	Slots        []StoredSlot `json:"slots"`
}

type StoredSlot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable *bool  `json:"isAvailable,omitempty"`
}

// NormalizeReport describes what Normalize had to repair.
type NormalizeReport struct {
	DroppedSlots    int
	UnknownDays     []string
	DuplicateDays   []string
	SynthesizedDays []time.Weekday
}

// Normalize converts stored days into a complete WeeklyAvailability. It is
// meant to run once, when a schedule is loaded from storage.
//
// Exact names win over abbreviations, so "Tue" never shadows a "Tuesday"
// entry. Slots with malformed times are dropped, and weekdays with no usable
// entry get DefaultDay.
func Normalize(stored []StoredDay) (WeeklyAvailability, NormalizeReport) {
	var report NormalizeReport
	week := make(WeeklyAvailability, 7)
	exact := make(map[time.Weekday]bool, 7)

	for _, sd := range stored {
		wd, isExact, ok := resolveStored(sd.Day)
		if !ok {
			report.UnknownDays = append(report.UnknownDays, sd.Day)
			continue
		}
		if _, seen := week[wd]; seen {
			if !isExact || exact[wd] {
				report.DuplicateDays = append(report.DuplicateDays, sd.Day)
				continue
			}
		}

		available := true
		if sd.DayAvailable != nil {
			available = *sd.DayAvailable
		}

		intervals := make([]Interval, 0, len(sd.Slots))
		for _, s := range sd.Slots {
			iv, err := parseStoredSlot(s)
			if err != nil {
				report.DroppedSlots++
				continue
			}
			intervals = append(intervals, iv)
		}
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })

		week[wd] = DayAvailability{Weekday: wd, Available: available, Intervals: intervals}
		exact[wd] = isExact
	}

	for _, wd := range weekOrder {
		if _, ok := week[wd]; !ok {
			week[wd] = DefaultDay(wd)
			report.SynthesizedDays = append(report.SynthesizedDays, wd)
		}
	}
	return week, report
}

// Denormalize produces the stored shape, setting every slot flag to the
// day-level flag.
func Denormalize(week WeeklyAvailability) []StoredDay {
	out := make([]StoredDay, 0, 7)
	for _, d := range week.Days() {
		available := d.Available
		slots := make([]StoredSlot, 0, len(d.Intervals))
		for _, iv := range d.Intervals {
			flag := available
			slots = append(slots, StoredSlot{
				StartTime:   iv.Start.String(),
				EndTime:     iv.End.String(),
				IsAvailable: &flag,
			})
		}
		out = append(out, StoredDay{
			Day:          d.Weekday.String(),
			DayAvailable: &available,
			Slots:        slots,
		})
	}
	return out
}

func resolveStored(name string) (wd time.Weekday, exact bool, ok bool) {
	wd, ok = ResolveWeekday(name)
	if !ok {
		return 0, false, false
	}
	return wd, strings.EqualFold(strings.TrimSpace(name), wd.String()), true
}

func parseStoredSlot(s StoredSlot) (Interval, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("interval %s-%s is empty", s.StartTime, s.EndTime)
	}
	return iv, nil
}
