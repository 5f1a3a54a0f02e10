package taskfile

import (
	"strconv"
	"strings"
	"time"

	"todoreminder/internal/grammar"
)

// Separator ends the reminder section: a line starting with this many dashes.
var Separator = strings.Repeat("-", 50)

const (
	markResolved = '^'
	markFired    = '!'
)

// IsSeparator reports whether the raw line switches the rest of the file to pass-through.
func IsSeparator(line string) bool { return strings.HasPrefix(line, Separator) }

// IsBullet reports whether the trimmed line starts with '*'.
func IsBullet(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "*")
}

// annotation locates the first bracketed span of a line.
//
// start is the index just after '[', end the index of the matching ']' (or
// the end of the line content when the bracket is never closed).
func annotation(line string) (start, end int, ok bool) {
	open := strings.IndexByte(line, '[')
	if open < 0 {
		return 0, 0, false
	}
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return open + 1, i, true
			}
		}
	}
	return open + 1, len(strings.TrimRight(line, "\r\n")), true
}

// Annotation returns the bracketed text of a bullet line, if any.
func Annotation(line string) (string, bool) {
	start, end, ok := annotation(line)
	if !ok {
		return "", false
	}
	if end < start {
		end = start
	}
	return line[start:end], true
}

// bodyStart returns the index of the first non-blank byte inside the annotation.
func bodyStart(line string) (int, bool) {
	start, end, ok := annotation(line)
	if !ok {
		return 0, false
	}
	i := start
	for i < end && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i, true
}

// Stamp inserts "^<epoch>:" in front of the annotation's instruction so the
// resolved instant survives re-parsing. Text outside the brackets is left alone.
func Stamp(line string, at time.Time) string {
	i, ok := bodyStart(line)
	if !ok {
		return line
	}
	prefix := string(markResolved) + strconv.FormatInt(at.Unix(), 10) + ":"
	return line[:i] + prefix + line[i:]
}

// MarkFired turns a resolved annotation ("[^...") into a fired one ("[!...").
func MarkFired(line string) (string, bool) {
	i, ok := bodyStart(line)
	if !ok || i >= len(line) || line[i] != markResolved {
		return line, false
	}
	return line[:i] + string(markFired) + line[i+1:], true
}

// Kind classifies a line of the task file.
type Kind int

const (
	Plain Kind = iota
	Unresolved
	Resolved
	Fired
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Fired:
		return "fired"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Entry is one classified line.
type Entry struct {
	Text      string // raw line including its terminator
	LineNo    int    // 1-based
	InSection bool
	Kind      Kind
	At        time.Time // resolved instant (Unresolved, Resolved)
	IsNew     bool      // resolved on this pass; the line needs a stamp
	Err       *grammar.ParseError
}

// Schedulable reports whether the entry resolved to an instant.
func (e Entry) Schedulable() bool { return e.Kind == Unresolved || e.Kind == Resolved }
