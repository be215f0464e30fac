package config

import (
	"fmt"
	"time"
)

// Slot is one classification instant in the day's schedule. Key is the
// canonical tHHMM form used as the property name in the output artifact,
// e.g. "t0930". Time is the instant in the configured timezone.
type Slot struct {
	Key  string
	Time time.Time
}

// SlotKey formats an instant as a tHHMM slot key.
func SlotKey(t time.Time) string {
	return t.Format("t1504")
}

// Slots expands the configured start/end/interval into the ordered slot
// grid for the target date. The set is fixed and known before any terrace
// is processed.
func (e Engine) Slots() ([]Slot, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", e.Timezone, err)
	}
	day, err := time.ParseInLocation("2006-01-02", e.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", e.Date, err)
	}
	start, err := time.Parse("15:04", e.SlotStart)
	if err != nil {
		return nil, fmt.Errorf("parsing slotStart %q: %w", e.SlotStart, err)
	}
	end, err := time.Parse("15:04", e.SlotEnd)
	if err != nil {
		return nil, fmt.Errorf("parsing slotEnd %q: %w", e.SlotEnd, err)
	}

	first := day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)
	last := day.Add(time.Duration(end.Hour())*time.Hour + time.Duration(end.Minute())*time.Minute)
	if last.Before(first) {
		return nil, fmt.Errorf("slotEnd %s is before slotStart %s", e.SlotEnd, e.SlotStart)
	}

	var slots []Slot
	for t := first; !t.After(last); t = t.Add(e.SlotInterval) {
		slots = append(slots, Slot{Key: SlotKey(t), Time: t})
	}
	return slots, nil
}
