package grammar

import "time"

var unitSeconds = map[string]int64{
	"s": 1, "seconds": 1,
	"m": 60, "minute": 60, "minutes": 60,
	"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
}

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// wall-clock hour for each time-of-day correction
var corrections = map[string]int{
	"morning": 9,
	"lunch":   12,
	"noon":    13,
	"evening": 16,
}

// Resolve computes the absolute instant for r relative to now.
//
// A stamped reminder resolves to its literal epoch no matter what now is or
// what the wrapped instruction says.
func Resolve(r *Reminder, now time.Time) time.Time {
	if r == nil {
		return now
	}
	if r.Stamp != nil {
		return time.Unix(r.Stamp.Epoch, 0).In(now.Location())
	}
	return resolveInstruction(r.Instruction, now)
}

func resolveInstruction(in *Instruction, now time.Time) time.Time {
	switch {
	case in == nil:
		return now
	case in.Relative:
		// time.Duration tops out near 292 years; add whole seconds instead
		secs, _ := SpanSeconds(in.Spans)
		return time.Unix(now.Unix()+secs, int64(now.Nanosecond())).In(now.Location())
	case in.Tomorrow:
		return applyCorrection(now.AddDate(0, 0, 1), in.Correction)
	case in.Weekday != "":
		return applyCorrection(NextWeekday(now, weekdays[in.Weekday]), in.Correction)
	default:
		return now
	}
}

// MaxSpanSeconds bounds a relative duration at 999999999 days.
const MaxSpanSeconds int64 = 999_999_999 * 86400

// SpanSeconds sums count*unit over a duration list. ok is false when the sum
// exceeds MaxSpanSeconds; the returned total is then clamped to it.
func SpanSeconds(spans []*Span) (total int64, ok bool) {
	for _, s := range spans {
		if s == nil {
			continue
		}
		unit := unitSeconds[s.Unit]
		if unit == 0 || s.Count == 0 {
			continue
		}
		if s.Count < 0 || s.Count > (MaxSpanSeconds-total)/unit {
			return MaxSpanSeconds, false
		}
		total += s.Count * unit
	}
	return total, true
}

// NextWeekday returns the next occurrence of wd strictly after today, keeping
// the time of day. If today is wd, it returns the same day next week.
func NextWeekday(now time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

func applyCorrection(t time.Time, correction string) time.Time {
	hour, ok := corrections[correction]
	if !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, t.Second(), 0, t.Location())
}
