package allocation

import (
	"hash/fnv"
	"time"

	"lowkey_bot/internal/domain/contact"
)

const (
	DefaultHorizon  = 48 * time.Hour
	DefaultHour     = 10
	DefaultCapacity = 64

	fewPerDayStep      = 8 * time.Hour
	fewPerDayMaxSlots  = 6
	alternateDaysReach = 24 * time.Hour

	newContactMinOffset = 2 * time.Hour
	newContactMaxOffset = 4 * time.Hour
)

// Options tunes candidate placement. The zero value is usable: every unset
// field falls back to its default.
type Options struct {
	Horizon  time.Duration  // Forward window candidates must fall in
	Hour     int            // Wall-clock hour reminders are anchored to
	Location *time.Location // Zone the fixed hour is interpreted in
	// Jitter returns the offset from now used for a brand-new contact whose
	// placement rules produced nothing. It must stay within [2h, 4h].
	Jitter func(contactID string) time.Duration
}

// DefaultOptions returns the reference configuration: a two day horizon,
// reminders at 10:00 UTC and a stable per-contact jitter.
func DefaultOptions() Options {
	return Options{
		Horizon:  DefaultHorizon,
		Hour:     DefaultHour,
		Location: time.UTC,
		Jitter:   StableJitter,
	}
}

func (o Options) withDefaults() Options {
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	if o.Hour < 0 || o.Hour > 23 {
		o.Hour = DefaultHour
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Jitter == nil {
		o.Jitter = StableJitter
	}
	return o
}

// StableJitter maps a contact ID onto a whole number of minutes in [2h, 4h].
// The same ID always yields the same offset, which keeps passes reproducible.
func StableJitter(contactID string) time.Duration {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contactID))
	span := uint32((newContactMaxOffset-newContactMinOffset)/time.Minute) + 1
	return newContactMinOffset + time.Duration(h.Sum32()%span)*time.Minute
}

var fewPerWeekDays = map[time.Weekday]bool{
	time.Monday:    true,
	time.Wednesday: true,
	time.Friday:    true,
}

// Generate returns the instants at which c could be reminded during this pass,
// in chronological order. Every instant lies in (now, now+Horizon], except the
// single fallback slot handed to a never-reminded contact the rules could not place.
func Generate(c *contact.Contact, now time.Time, opts Options) []time.Time {
	opts = opts.withDefaults()
	end := now.Add(opts.Horizon)

	due := NextDue(c.Cadence, c.LastReminded, now)
	if due.After(end) {
		return nil
	}
	start := due
	if start.Before(now) {
		start = now
	}

	var placed []time.Time
	anchor := nextFixedHour(start, opts.Hour, opts.Location)
	switch c.Cadence {
	case contact.CadenceFewPerDay:
		first := nextLatticePoint(start, opts.Hour, opts.Location)
		for i := 0; i < fewPerDayMaxSlots; i++ {
			placed = append(placed, first.Add(time.Duration(i)*fewPerDayStep))
		}
	case contact.CadenceDaily:
		placed = append(placed, anchor, addDays(anchor, 1, opts.Location))
	case contact.CadenceAlternateDays:
		if start.Sub(now) <= alternateDaysReach {
			placed = append(placed, anchor)
		}
	case contact.CadenceFewPerWeek:
		if fewPerWeekDays[anchor.In(opts.Location).Weekday()] {
			placed = append(placed, anchor)
		}
	default: // weekly, monthly, quarterly
		placed = append(placed, anchor)
	}

	out := make([]time.Time, 0, len(placed))
	for _, t := range placed {
		if t.After(now) && !t.After(end) {
			out = append(out, t)
		}
	}

	if len(out) == 0 && c.NeverReminded() {
		out = append(out, now.Add(opts.Jitter(c.ID)))
	}
	return out
}

// nextFixedHour is the first hour:00 in loc strictly after t.
func nextFixedHour(t time.Time, hour int, loc *time.Location) time.Time {
	lt := t.In(loc)
	a := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, 0, 0, 0, loc)
	if !a.After(t) {
		a = time.Date(lt.Year(), lt.Month(), lt.Day()+1, hour, 0, 0, 0, loc)
	}
	return a
}

// nextLatticePoint is the first point strictly after t on the 8 hour lattice
// that passes through hour:00 on t's day.
func nextLatticePoint(t time.Time, hour int, loc *time.Location) time.Time {
	lt := t.In(loc)
	base := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, 0, 0, 0, loc)
	diff := t.Sub(base)
	k := diff / fewPerDayStep
	if diff < 0 && diff%fewPerDayStep != 0 {
		k-- // floor, not truncation
	}
	return base.Add((k + 1) * fewPerDayStep)
}

func addDays(t time.Time, days int, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+days, lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), loc)
}
