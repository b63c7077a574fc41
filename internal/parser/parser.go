package parser

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError reports the furthest position the grammar reached and the
// tokens that would have allowed it to continue. It is a value, not a
// panic: callers treat a failed parse as "no expression here".
type ParseError struct {
	Offset   int
	Expected []string
}

func (e *ParseError) Error() string {
	exp := append([]string(nil), e.Expected...)
	sort.Strings(exp)
	return fmt.Sprintf("offset %d: expected %s", e.Offset, strings.Join(exp, " or "))
}

// Parse parses a complete MSBuild expression: a property value, a
// semicolon-delimited list or a condition. The whole input must be
// consumed; anything left over fails with the furthest-progress error.
//
// Grammar, lowest to highest binding:
//
//	list     := element (';' element)*      elements may be empty
//	element  := or
//	or       := and ('Or' and)*
//	and      := eq ('And' eq)*
//	eq       := unary (('==' | '!=') unary)?
//	unary    := '!' unary | primary
//	primary  := '$(' expr ')' | '@(' ... ')' | '%(' ... ')'
//	          | quoted string | symbol
func Parse(input string) (*Root, error) {
	s := &scanner{input: input}
	root := &Root{}
	root.span = Span{Start: 0, Length: len(input)}

	s.skipSpace()
	if s.eof() {
		return root, nil
	}

	child, ok := parseList(s)
	if ok {
		s.skipSpace()
		if !s.eof() {
			s.fail("end of expression")
			ok = false
		}
	}
	if !ok {
		return nil, &ParseError{Offset: s.furthest, Expected: append([]string(nil), s.expected...)}
	}
	root.Child = child
	return root, nil
}

// parseList parses one or more ';'-separated elements. A single element
// with no separator is returned bare; the List node only appears for
// actual lists. Adjacent separators yield virtual EmptyItem elements:
// "A;;B" is a three-element list whose middle element is empty.
func parseList(s *scanner) (Node, bool) {
	first, ok := parseListElement(s)
	if !ok {
		return nil, false
	}

	save := s.pos
	s.skipSpace()
	if !s.lookingAt(";") {
		s.pos = save
		return first, true
	}
	s.pos = save

	items := []Node{first}
	var seps []*ListSeparator
	for {
		prevEnd := items[len(items)-1].Span().End()
		save := s.pos
		s.skipSpace()
		if !s.char(';') {
			s.pos = save
			break
		}
		semi := s.pos - 1
		s.skipSpace()

		item, ok := parseListElement(s)
		if !ok {
			return nil, false
		}

		sep := &ListSeparator{SeparatorOffset: semi - prevEnd}
		sep.span = Span{Start: prevEnd, Length: item.Span().Start - prevEnd}
		seps = append(seps, sep)
		items = append(items, item)
	}

	list := &List{Items: items, Separators: seps}
	start := items[0].Span().Start
	list.span = Span{Start: start, Length: items[len(items)-1].Span().End() - start}
	return list, true
}

// parseListElement parses one list element, which may be empty.
func parseListElement(s *scanner) (Node, bool) {
	if node, ok := parseOr(s); ok {
		return node, true
	}
	// An empty element is legal wherever a separator or the end of the
	// list follows immediately.
	save := s.pos
	s.skipSpace()
	if s.eof() || s.lookingAt(";") {
		empty := &EmptyItem{}
		empty.span = Span{Start: save, Length: 0}
		empty.virtual = true
		s.pos = save
		return empty, true
	}
	s.pos = save
	return nil, false
}

func parseOr(s *scanner) (Node, bool) {
	left, ok := parseAnd(s)
	if !ok {
		return nil, false
	}
	for {
		save := s.pos
		s.skipSpace()
		if !s.keyword("Or") {
			s.pos = save
			return left, true
		}
		s.skipSpace()
		right, ok := parseAnd(s)
		if !ok {
			return nil, false
		}
		node := &Logical{Op: OpOr, Left: left, Right: right}
		node.span = spanBetween(left, right)
		left = node
	}
}

func parseAnd(s *scanner) (Node, bool) {
	left, ok := parseEquality(s)
	if !ok {
		return nil, false
	}
	for {
		save := s.pos
		s.skipSpace()
		if !s.keyword("And") {
			s.pos = save
			return left, true
		}
		s.skipSpace()
		right, ok := parseEquality(s)
		if !ok {
			return nil, false
		}
		node := &Logical{Op: OpAnd, Left: left, Right: right}
		node.span = spanBetween(left, right)
		left = node
	}
}

func parseEquality(s *scanner) (Node, bool) {
	left, ok := parseUnary(s)
	if !ok {
		return nil, false
	}

	save := s.pos
	s.skipSpace()
	var op CompareOp
	switch {
	case s.lit("=="):
		op = OpEqual
	case s.lit("!="):
		op = OpNotEqual
	default:
		s.pos = save
		return left, true
	}
	s.skipSpace()
	right, ok := parseUnary(s)
	if !ok {
		return nil, false
	}
	node := &Compare{Op: op, Left: left, Right: right}
	node.span = spanBetween(left, right)
	return node, true
}

func parseUnary(s *scanner) (Node, bool) {
	start := s.pos
	// "!=" is a comparison operator, never a negation of "=...".
	if s.lookingAt("!") && !s.lookingAt("!=") && s.char('!') {
		s.skipSpace()
		operand, ok := parseUnary(s)
		if !ok {
			s.pos = start
			return nil, false
		}
		node := &Not{Operand: operand}
		node.span = Span{Start: start, Length: operand.Span().End() - start}
		return node, true
	}
	return parsePrimary(s)
}

func parsePrimary(s *scanner) (Node, bool) {
	switch {
	case s.lookingAt("$("):
		return parseEvaluate(s)
	case s.lookingAt("@("):
		return parseItemGroupReference(s)
	case s.lookingAt("%("):
		return parseItemMetadataReference(s)
	case s.lookingAt("'"):
		return parseQuotedString(s)
	default:
		return parseSymbol(s)
	}
}

// parseEvaluate parses $(Name), $(Namespace.Name) or a nested expression
// such as $($(Indirect)).
func parseEvaluate(s *scanner) (Node, bool) {
	start := s.pos
	if !s.lit("$(") {
		return nil, false
	}
	s.skipSpace()
	child, ok := parseOr(s)
	if !ok {
		s.pos = start
		return nil, false
	}
	s.skipSpace()
	if !s.char(')') {
		s.pos = start
		return nil, false
	}
	node := &Evaluate{Child: child}
	node.span = Span{Start: start, Length: s.pos - start}
	return node, true
}

// parseItemGroupReference parses @(Name), @(Name -> 'transform'),
// @(Name, 'sep') and @(Name -> 'transform', 'sep').
func parseItemGroupReference(s *scanner) (Node, bool) {
	start := s.pos
	if !s.lit("@(") {
		return nil, false
	}
	s.skipSpace()
	name, ok := parseSymbol(s)
	if !ok {
		s.pos = start
		return nil, false
	}
	node := &ItemGroupReference{Name: name.(*Symbol)}

	save := s.pos
	s.skipSpace()
	if s.lit("->") {
		s.skipSpace()
		transform, ok := parseQuotedString(s)
		if !ok {
			s.pos = start
			return nil, false
		}
		node.Transform = transform
	} else {
		s.pos = save
	}

	save = s.pos
	s.skipSpace()
	if s.char(',') {
		s.skipSpace()
		sep, ok := parseQuotedString(s)
		if !ok {
			s.pos = start
			return nil, false
		}
		node.Separator = sep.(*QuotedString)
	} else {
		s.pos = save
	}

	s.skipSpace()
	if !s.char(')') {
		s.pos = start
		return nil, false
	}
	node.span = Span{Start: start, Length: s.pos - start}
	return node, true
}

// parseItemMetadataReference parses %(Name) or %(ItemType.Name).
func parseItemMetadataReference(s *scanner) (Node, bool) {
	start := s.pos
	if !s.lit("%(") {
		return nil, false
	}
	s.skipSpace()

	firstStart := s.pos
	first, ok := s.identifier()
	if !ok {
		s.pos = start
		return nil, false
	}
	node := &ItemMetadataReference{}
	firstSym := &Symbol{Name: first}
	firstSym.span = Span{Start: firstStart, Length: s.pos - firstStart}

	if s.peek() == '.' {
		s.pos++
		secondStart := s.pos
		second, ok := s.identifier()
		if !ok {
			s.pos = start
			return nil, false
		}
		node.ItemType = firstSym
		node.Name = &Symbol{Name: second}
		node.Name.span = Span{Start: secondStart, Length: s.pos - secondStart}
	} else {
		node.Name = firstSym
	}

	s.skipSpace()
	if !s.char(')') {
		s.pos = start
		return nil, false
	}
	node.span = Span{Start: start, Length: s.pos - start}
	return node, true
}

// parseQuotedString parses a '...' literal, interleaving literal content
// runs with embedded $(...) and @(...) references. A content run ends
// exactly where an embedded reference begins or at the closing quote.
// %XX escapes decode into the run's text while the run's span keeps
// covering the raw source.
func parseQuotedString(s *scanner) (Node, bool) {
	start := s.pos
	if !s.char('\'') {
		return nil, false
	}

	node := &QuotedString{}
	contentStart := s.pos
	var text strings.Builder

	flush := func(end int) {
		if end == contentStart && text.Len() == 0 {
			return
		}
		run := &StringContent{Text: text.String()}
		run.span = Span{Start: contentStart, Length: end - contentStart}
		node.Kids = append(node.Kids, run)
		text.Reset()
	}

	for {
		if s.eof() {
			s.fail("'")
			s.pos = start
			return nil, false
		}
		switch {
		case s.lookingAt("'"):
			flush(s.pos)
			s.pos++
			node.span = Span{Start: start, Length: s.pos - start}
			return node, true
		case s.lookingAt("$("):
			flush(s.pos)
			embed, ok := parseEvaluate(s)
			if !ok {
				s.pos = start
				return nil, false
			}
			node.Kids = append(node.Kids, embed)
			contentStart = s.pos
		case s.lookingAt("@("):
			flush(s.pos)
			embed, ok := parseItemGroupReference(s)
			if !ok {
				s.pos = start
				return nil, false
			}
			node.Kids = append(node.Kids, embed)
			contentStart = s.pos
		case s.lookingAt("%"):
			if b, ok := s.hexEscape(); ok {
				text.WriteByte(b)
			} else {
				text.WriteByte('%')
				s.pos++
			}
		default:
			r := s.peek()
			text.WriteRune(r)
			s.pos += len(string(r))
		}
	}
}

// parseSymbol parses an identifier, optionally dotted. For multi-dot names
// everything before the last dot is the namespace.
func parseSymbol(s *scanner) (Node, bool) {
	start := s.pos
	parts := []string{}
	first, ok := s.identifier()
	if !ok {
		return nil, false
	}
	parts = append(parts, first)
	for s.peek() == '.' {
		save := s.pos
		s.pos++
		next, ok := s.identifier()
		if !ok {
			s.pos = save
			break
		}
		parts = append(parts, next)
	}
	sym := &Symbol{Name: parts[len(parts)-1]}
	if len(parts) > 1 {
		sym.Namespace = strings.Join(parts[:len(parts)-1], ".")
	}
	sym.span = Span{Start: start, Length: s.pos - start}
	return sym, true
}

func spanBetween(left, right Node) Span {
	start := left.Span().Start
	return Span{Start: start, Length: right.Span().End() - start}
}
