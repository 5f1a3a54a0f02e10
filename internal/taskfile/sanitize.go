package taskfile

import "strings"

// StripNestedBrackets drops every bracketed span, nested or not. A stray ']'
// never drives the depth below zero.
func StripNestedBrackets(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	depth := 0
	for _, c := range text {
		switch {
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// NotificationBody renders a reminder line for display: no terminator, no
// bullet marker, no annotations.
func NotificationBody(line string) string {
	s := strings.TrimRight(line, "\r\n")
	s = strings.TrimLeft(s, " \t")
	s = strings.TrimPrefix(s, "*")
	s = strings.TrimLeft(s, " \t")
	return StripNestedBrackets(s)
}
