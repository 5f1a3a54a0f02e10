package taskfile

import (
	"fmt"
	"strings"
	"time"

	"todoreminder/internal/grammar"
)

// Verify scans path once and returns the entries whose annotation failed to
// parse. The file is never modified.
func Verify(path string, p *grammar.Parser, now time.Time) ([]Entry, error) {
	entries, err := ScanFile(path, p, now)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var bad []Entry
	for _, e := range entries {
		if e.Kind == Invalid {
			bad = append(bad, e)
		}
	}
	return bad, nil
}

// FormatError renders an invalid entry the way editors expect: path:line.
func FormatError(path string, e Entry) string {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s:%d in line %s ERROR %s", path, e.LineNo, strings.TrimRight(e.Text, "\r\n"), msg)
}
