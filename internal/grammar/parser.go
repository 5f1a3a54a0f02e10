// Package grammar parses reminder annotations ("remind me in 2 hours",
// "^1700000000:remind me tomorrow morning") and resolves them to instants.
package grammar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Keyword starts every unresolved annotation.
const Keyword = "remind me"

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `[\^:]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// Parser turns annotation text into a Reminder tree.
//
// Build it once at startup and share it; it is safe for concurrent use.
type Parser struct {
	p *participle.Parser[Reminder]
}

// New builds the annotation parser.
func New() (*Parser, error) {
	p, err := participle.Build[Reminder](
		participle.Lexer(annotationLexer),
		participle.Elide("Whitespace"),
	)
	if err != nil {
		return nil, fmt.Errorf("build annotation grammar: %w", err)
	}
	return &Parser{p: p}, nil
}

// MustNew is New for package-level and test setup.
func MustNew() *Parser {
	p, err := New()
	if err != nil {
		panic(err)
	}
	return p
}

// Parse parses one annotation (the text between the brackets).
//
// Errors are *ParseError with positions relative to text; use AtLine to
// report them against the task file.
func (p *Parser) Parse(text string) (*Reminder, error) {
	r, err := p.p.ParseString("", text)
	if err != nil {
		return nil, newParseError(text, err)
	}
	if in := r.Instruction; in != nil && in.Relative {
		if _, ok := SpanSeconds(in.Spans); !ok {
			return nil, &ParseError{Line: 1, Text: text, Msg: "duration out of range (max 999999999 days)"}
		}
	}
	return r, nil
}

// ParseError is a recoverable annotation failure.
type ParseError struct {
	Line   int
	Column int
	Text   string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d col %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// AtLine returns a copy of e that points at the given task file line.
func (e *ParseError) AtLine(line int) *ParseError {
	cp := *e
	cp.Line = line
	return &cp
}

func newParseError(text string, err error) *ParseError {
	pe := &ParseError{Line: 1, Text: text, Msg: err.Error()}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		if pos.Line > 0 {
			pe.Line = pos.Line
		}
		pe.Column = pos.Column
		pe.Msg = perr.Message()
	}
	if strings.TrimSpace(pe.Msg) == "" {
		pe.Msg = "invalid reminder"
	}
	return pe
}
