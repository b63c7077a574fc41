package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token-level recognizers for the MSBuild lexical vocabulary: punctuation,
// the two-character tokens "$(", "@(", "%(", "->", "==" and "!=", the
// keyword operators And/Or, %XX hex escapes and identifiers.
//
// Every recognizer either consumes exactly the token it matched, or consumes
// nothing and records what it expected at the current position. That failure
// contract is what lets the grammar backtrack through alternations, and the
// recorded expectations at the furthest position reached become the parse
// error.

type scanner struct {
	input    string
	pos      int
	furthest int
	expected []string
}

func (s *scanner) eof() bool { return s.pos >= len(s.input) }

func (s *scanner) peek() rune {
	if s.eof() {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

// fail records an expectation at the current position and always returns
// false. Only expectations at the furthest position reached survive.
func (s *scanner) fail(expected string) bool {
	if s.pos > s.furthest {
		s.furthest = s.pos
		s.expected = s.expected[:0]
	}
	if s.pos == s.furthest {
		for _, e := range s.expected {
			if e == expected {
				return false
			}
		}
		s.expected = append(s.expected, expected)
	}
	return false
}

func (s *scanner) char(c rune) bool {
	if s.peek() == c {
		s.pos += utf8.RuneLen(c)
		return true
	}
	return s.fail("'" + string(c) + "'")
}

// lit matches a fixed multi-character token such as "$(" or "->".
func (s *scanner) lit(tok string) bool {
	if strings.HasPrefix(s.input[s.pos:], tok) {
		s.pos += len(tok)
		return true
	}
	return s.fail("'" + tok + "'")
}

// keyword matches a whole identifier case-insensitively, so "Or" matches
// "or" and "OR" but never the prefix of "Orchestrate".
func (s *scanner) keyword(kw string) bool {
	start := s.pos
	word, ok := s.identifier()
	if !ok {
		return s.fail("'" + kw + "'")
	}
	if !strings.EqualFold(word, kw) {
		s.pos = start
		return s.fail("'" + kw + "'")
	}
	return true
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// identifier matches (letter|_)(letter|digit|_)*. MSBuild property and item
// names use leading and embedded underscores pervasively, so the grammar
// admits them even though digits still cannot lead.
func (s *scanner) identifier() (string, bool) {
	if !isIdentStart(s.peek()) {
		return "", s.fail("identifier")
	}
	start := s.pos
	for !s.eof() {
		r, w := utf8.DecodeRuneInString(s.input[s.pos:])
		if !isIdentPart(r) {
			break
		}
		s.pos += w
	}
	return s.input[start:s.pos], true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// hexEscape matches a %XX sequence and returns the decoded byte. The '%' of
// an item-metadata reference "%(" is not an escape; callers try "%(" first.
func (s *scanner) hexEscape() (byte, bool) {
	if s.pos+3 > len(s.input) || s.input[s.pos] != '%' {
		return 0, s.fail("hex escape")
	}
	hi, ok1 := hexDigit(s.input[s.pos+1])
	lo, ok2 := hexDigit(s.input[s.pos+2])
	if !ok1 || !ok2 {
		return 0, s.fail("hex escape")
	}
	s.pos += 3
	return hi<<4 | lo, true
}

// skipSpace consumes horizontal and vertical whitespace. XML attribute
// values can span lines, so newlines are plain whitespace here.
func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.input[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

// lookingAt reports whether the input at the cursor starts with tok, without
// consuming or recording an expectation.
func (s *scanner) lookingAt(tok string) bool {
	return strings.HasPrefix(s.input[s.pos:], tok)
}
