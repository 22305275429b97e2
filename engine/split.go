package engine

import (
	"strings"
	"unicode"
)

// SplitStatements splits SQL |text| into its individual statements, each
// retaining its terminating semicolon. Semicolons within string literals,
// quoted identifiers, comments, and the BEGIN ... END body of a CREATE TRIGGER
// do not terminate a statement. Fragments holding only whitespace and
// comments are dropped.
func SplitStatements(text string) []string {
	var (
		out   []string
		start int
		sc    = splitScanner{text: text}
	)
	for {
		var tok, pos = sc.next()

		switch tok {
		case tokEOF:
			if sc.hasTokens {
				out = append(out, strings.TrimSpace(text[start:]))
			}
			return out
		case tokSemicolon:
			if sc.inTrigger && !sc.lastWasEnd {
				continue // Part of a trigger body.
			}
			if sc.hasTokens {
				out = append(out, strings.TrimSpace(text[start:pos+1]))
			}
			start = pos + 1
			sc.resetStatement()
		}
	}
}

type splitToken int

const (
	tokEOF splitToken = iota
	tokSemicolon
	tokOther
)

// splitScanner is a minimal SQL lexer which tracks only what's required
// to find statement boundaries.
type splitScanner struct {
	text string
	pos  int

	hasTokens  bool     // Statement has a non-comment token.
	leading    []string // Leading keywords of the statement, upper-cased.
	inTrigger  bool     // Statement is a CREATE [TEMP] TRIGGER.
	caseDepth  int      // Depth of open CASE expressions within a trigger.
	lastWasEnd bool     // Last token was an END closing the trigger body.
}

func (s *splitScanner) resetStatement() {
	s.hasTokens = false
	s.leading = s.leading[:0]
	s.inTrigger = false
	s.caseDepth = 0
	s.lastWasEnd = false
}

// next returns the next boundary-relevant token and its offset.
func (s *splitScanner) next() (splitToken, int) {
	for s.pos < len(s.text) {
		var c = s.text[s.pos]

		switch {
		case c == ';':
			s.pos++
			return tokSemicolon, s.pos - 1

		case c == '-' && strings.HasPrefix(s.text[s.pos:], "--"):
			if ind := strings.IndexByte(s.text[s.pos:], '\n'); ind == -1 {
				s.pos = len(s.text)
			} else {
				s.pos += ind + 1
			}

		case c == '/' && strings.HasPrefix(s.text[s.pos:], "/*"):
			if ind := strings.Index(s.text[s.pos+2:], "*/"); ind == -1 {
				s.pos = len(s.text)
			} else {
				s.pos += ind + 4
			}

		case c == '\'' || c == '"' || c == '`':
			s.skipQuoted(c, c)
			s.token("")

		case c == '[':
			s.skipQuoted('[', ']')
			s.token("")

		case isWordByte(c):
			var begin = s.pos
			for s.pos < len(s.text) && isWordByte(s.text[s.pos]) {
				s.pos++
			}
			s.token(s.text[begin:s.pos])

		case c < 0x80 && unicode.IsSpace(rune(c)):
			s.pos++

		default:
			s.pos++
			s.token("")
		}
	}
	return tokEOF, len(s.text)
}

// skipQuoted advances past a quoted region. A doubled closing quote is an
// escaped quote, and an unterminated region extends to the end of text.
func (s *splitScanner) skipQuoted(open, close byte) {
	s.pos++ // Skip |open|.
	for s.pos < len(s.text) {
		if s.text[s.pos] != close {
			s.pos++
		} else if open != '[' && s.pos+1 < len(s.text) && s.text[s.pos+1] == close {
			s.pos += 2
		} else {
			s.pos++
			return
		}
	}
}

// token updates statement state with a non-comment token. |word| is empty
// for tokens which are not keywords or identifiers.
func (s *splitScanner) token(word string) {
	s.hasTokens = true
	s.lastWasEnd = false

	if word == "" {
		if len(s.leading) < 3 {
			s.leading = append(s.leading, "")
		}
		return
	}
	var upper = strings.ToUpper(word)

	if len(s.leading) < 3 {
		s.leading = append(s.leading, upper)

		if s.leading[0] == "CREATE" && upper == "TRIGGER" {
			s.inTrigger = len(s.leading) == 2 ||
				(len(s.leading) == 3 && (s.leading[1] == "TEMP" || s.leading[1] == "TEMPORARY"))
		}
	}
	if !s.inTrigger {
		return
	}
	switch upper {
	case "CASE":
		s.caseDepth++
	case "END":
		if s.caseDepth > 0 {
			s.caseDepth--
		} else {
			s.lastWasEnd = true
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
