// Package taskfile reads and rewrites the plain-text task list.
package taskfile

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"todoreminder/internal/grammar"
)

// Scanner classifies the lines of one pass over a task file.
//
// Usage mirrors bufio.Scanner:
//
//	sc := taskfile.NewScanner(r, p, time.Now())
//	for sc.Next() {
//		e := sc.Entry()
//	}
//	if err := sc.Err(); err != nil { ... }
//
// A Scanner is single-use; rescanning the file means creating a new one.
type Scanner struct {
	r      *bufio.Reader
	parser *grammar.Parser
	now    time.Time

	lineNo    int
	inSection bool
	entry     Entry
	err       error
	done      bool
}

func NewScanner(r io.Reader, p *grammar.Parser, now time.Time) *Scanner {
	return &Scanner{
		r:         bufio.NewReader(r),
		parser:    p,
		now:       now,
		inSection: true,
	}
}

// Next advances to the next line. It returns false at EOF or on a read error.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	line, err := s.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		s.done = true
		return false
	}
	if line == "" {
		s.done = true
		return false
	}
	if err != nil {
		// last line without a terminator; hand it out, stop on the next call
		s.done = true
	}
	s.lineNo++
	s.entry = s.classify(line)
	return true
}

// Entry returns the line produced by the last call to Next.
func (s *Scanner) Entry() Entry { return s.entry }

// Err returns the first read error, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) classify(line string) Entry {
	if IsSeparator(line) {
		s.inSection = false
	}
	e := Entry{Text: line, LineNo: s.lineNo, InSection: s.inSection, Kind: Plain}
	if !s.inSection || !IsBullet(line) {
		return e
	}
	body, ok := Annotation(line)
	if !ok {
		return e
	}
	trimmed := strings.TrimLeft(body, " \t")
	if strings.HasPrefix(trimmed, string(markFired)) {
		e.Kind = Fired
		return e
	}

	r, err := s.parser.Parse(body)
	if err != nil {
		e.Kind = Invalid
		var pe *grammar.ParseError
		if !errors.As(err, &pe) {
			pe = &grammar.ParseError{Text: body, Msg: err.Error()}
		}
		e.Err = pe.AtLine(s.lineNo)
		return e
	}
	e.At = grammar.Resolve(r, s.now)
	if r.IsStamped() {
		e.Kind = Resolved
	} else {
		e.Kind = Unresolved
		e.IsNew = true
	}
	return e
}

// ScanAll runs one full pass and returns every entry.
func ScanAll(r io.Reader, p *grammar.Parser, now time.Time) ([]Entry, error) {
	sc := NewScanner(r, p, now)
	var out []Entry
	for sc.Next() {
		out = append(out, sc.Entry())
	}
	return out, sc.Err()
}

// ScanFile is ScanAll over the file at path.
func ScanFile(path string, p *grammar.Parser, now time.Time) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanAll(f, p, now)
}
