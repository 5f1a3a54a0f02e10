package grammar

// Reminder is a parsed annotation body.
//
// Either Stamp or Instruction is set:
//
//	remind me <instruction>
//	^<epoch>:<reminder>
type Reminder struct {
	Stamp       *Stamped     `  "^" @@`
	Instruction *Instruction `| "remind" "me" @@`
}

// Stamped wraps a reminder that already carries its resolved instant.
type Stamped struct {
	Epoch int64     `@Int ":"`
	Inner *Reminder `@@`
}

// Instruction is the part after "remind me".
//
//	in <count> <unit> ...
//	on <Weekday> [correction]
//	tomorrow [correction]
type Instruction struct {
	Relative   bool    `(  @"in"`
	Spans      []*Span `   @@*`
	Tomorrow   bool    `| ( @"tomorrow"`
	Weekday    string  `  | "on" @("Monday" | "Tuesday" | "Wednesday" | "Thursday" | "Friday" | "Saturday" | "Sunday") )`
	Correction string  `  @("morning" | "lunch" | "noon" | "evening")? )`
}

// Span is one "<count> <unit>" element of a relative duration.
type Span struct {
	Count int64  `@Int`
	Unit  string `@("seconds" | "s" | "minutes" | "minute" | "m" | "hours" | "hour" | "hrs" | "hr" | "h" | "days" | "day" | "d")`
}

// IsStamped reports whether the reminder already carries a literal epoch.
func (r *Reminder) IsStamped() bool { return r != nil && r.Stamp != nil }

// Instr returns the innermost instruction, skipping any stamp wrappers.
func (r *Reminder) Instr() *Instruction {
	for r != nil {
		if r.Stamp == nil {
			return r.Instruction
		}
		r = r.Stamp.Inner
	}
	return nil
}
