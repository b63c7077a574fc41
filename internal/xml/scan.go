package xml

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse scans the text into a positioned document. It never fails: syntax
// problems are recorded in Errors and the best-effort tree is returned.
func Parse(text string) *Document {
	d := &Document{Text: text, lineOffsets: lineOffsets(text)}
	s := &docScanner{text: text, doc: d}
	s.run()
	return d
}

func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

type docScanner struct {
	text  string
	pos   int
	doc   *Document
	stack []*Element
}

func (s *docScanner) errf(offset int, format string, args ...any) {
	s.doc.Errors = append(s.doc.Errors, ScanError{Offset: offset, Message: fmt.Sprintf(format, args...)})
}

func (s *docScanner) run() {
	for s.pos < len(s.text) {
		if s.text[s.pos] == '<' {
			s.scanMarkup()
		} else {
			s.scanText()
		}
	}
	for i := len(s.stack) - 1; i >= 0; i-- {
		el := s.stack[i]
		el.Rng.End = len(s.text)
		s.errf(el.OpenTagRng.Start, "unclosed element <%s>", el.Name)
	}
	s.stack = nil
}

func (s *docScanner) top() *Element {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *docScanner) attach(n Node) {
	parent := s.top()
	if parent == nil {
		if el, ok := n.(*Element); ok {
			if s.doc.Root == nil {
				s.doc.Root = el
			} else {
				s.errf(el.Rng.Start, "multiple root elements")
			}
		}
		return
	}
	switch n := n.(type) {
	case *Element:
		n.parent = parent
	case *Text:
		n.parent = parent
	}
	parent.Children = append(parent.Children, n)
}

func (s *docScanner) scanText() {
	start := s.pos
	for s.pos < len(s.text) && s.text[s.pos] != '<' {
		s.pos++
	}
	raw := s.text[start:s.pos]
	if s.top() == nil {
		if strings.TrimSpace(raw) != "" {
			s.errf(start, "text outside of root element")
		}
		return
	}
	s.attach(&Text{Value: decodeEntities(raw), Rng: Range{Start: start, End: s.pos}})
}

// skipPast advances past the next occurrence of marker, or to EOF.
func (s *docScanner) skipPast(marker string) bool {
	idx := strings.Index(s.text[s.pos:], marker)
	if idx < 0 {
		s.pos = len(s.text)
		return false
	}
	s.pos += idx + len(marker)
	return true
}

func (s *docScanner) scanMarkup() {
	start := s.pos
	rest := s.text[s.pos:]
	switch {
	case strings.HasPrefix(rest, "<!--"):
		if !s.skipPast("-->") {
			s.errf(start, "unterminated comment")
		}
	case strings.HasPrefix(rest, "<![CDATA["):
		s.pos += len("<![CDATA[")
		cstart := s.pos
		if !s.skipPast("]]>") {
			s.errf(start, "unterminated CDATA section")
			return
		}
		if s.top() != nil {
			s.attach(&Text{
				Value: s.text[cstart : s.pos-len("]]>")],
				Rng:   Range{Start: start, End: s.pos},
			})
		}
	case strings.HasPrefix(rest, "<!"):
		if !s.skipPast(">") {
			s.errf(start, "unterminated declaration")
		}
	case strings.HasPrefix(rest, "<?"):
		if !s.skipPast("?>") {
			s.errf(start, "unterminated processing instruction")
		}
	case strings.HasPrefix(rest, "</"):
		s.scanCloseTag()
	default:
		s.scanOpenTag()
	}
}

func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (s *docScanner) scanName() (string, Range) {
	start := s.pos
	if s.pos < len(s.text) && isNameStart(s.text[s.pos]) {
		s.pos++
		for s.pos < len(s.text) && isNameChar(s.text[s.pos]) {
			s.pos++
		}
	}
	return s.text[start:s.pos], Range{Start: start, End: s.pos}
}

func (s *docScanner) skipSpace() {
	for s.pos < len(s.text) {
		switch s.text[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

func (s *docScanner) scanOpenTag() {
	start := s.pos
	s.pos++ // '<'
	name, nameRng := s.scanName()
	if name == "" {
		s.errf(start, "expected element name")
		s.pos++
		return
	}

	el := &Element{Name: name, NameRng: nameRng}
	el.Rng.Start = start
	el.OpenTagRng.Start = start

	for {
		s.skipSpace()
		if s.pos >= len(s.text) {
			s.errf(start, "unterminated open tag <%s>", name)
			el.OpenTagRng.End = s.pos
			el.Rng.End = s.pos
			s.attach(el)
			return
		}
		switch s.text[s.pos] {
		case '>':
			s.pos++
			el.OpenTagRng.End = s.pos
			s.attach(el)
			s.stack = append(s.stack, el)
			return
		case '/':
			if s.pos+1 < len(s.text) && s.text[s.pos+1] == '>' {
				s.pos += 2
				el.OpenTagRng.End = s.pos
				el.Rng.End = s.pos
				el.SelfClosing = true
				s.attach(el)
				return
			}
			s.errf(s.pos, "stray '/' in open tag")
			s.pos++
		default:
			if !s.scanAttribute(el) {
				// Resync on the tag terminator.
				for s.pos < len(s.text) && s.text[s.pos] != '>' && s.text[s.pos] != '<' {
					s.pos++
				}
			}
		}
	}
}

func (s *docScanner) scanAttribute(el *Element) bool {
	name, nameRng := s.scanName()
	if name == "" {
		s.errf(s.pos, "expected attribute name")
		return false
	}
	attr := &Attribute{Name: name, NameRng: nameRng, parent: el}
	attr.Rng.Start = nameRng.Start

	s.skipSpace()
	if s.pos >= len(s.text) || s.text[s.pos] != '=' {
		s.errf(s.pos, "expected '=' after attribute %q", name)
		attr.Rng.End = nameRng.End
		el.Attributes = append(el.Attributes, attr)
		return false
	}
	s.pos++
	s.skipSpace()
	if s.pos >= len(s.text) || (s.text[s.pos] != '"' && s.text[s.pos] != '\'') {
		s.errf(s.pos, "expected quoted value for attribute %q", name)
		attr.Rng.End = s.pos
		el.Attributes = append(el.Attributes, attr)
		return false
	}
	quote := s.text[s.pos]
	s.pos++
	valStart := s.pos
	for s.pos < len(s.text) && s.text[s.pos] != quote && s.text[s.pos] != '<' {
		s.pos++
	}
	if s.pos >= len(s.text) || s.text[s.pos] != quote {
		s.errf(valStart, "unterminated value for attribute %q", name)
		attr.ValueRng = Range{Start: valStart, End: s.pos}
		attr.Value = decodeEntities(s.text[valStart:s.pos])
		attr.Rng.End = s.pos
		el.Attributes = append(el.Attributes, attr)
		return false
	}
	attr.ValueRng = Range{Start: valStart, End: s.pos}
	attr.Value = decodeEntities(s.text[valStart:s.pos])
	s.pos++ // closing quote
	attr.Rng.End = s.pos
	el.Attributes = append(el.Attributes, attr)
	return true
}

func (s *docScanner) scanCloseTag() {
	start := s.pos
	s.pos += 2 // "</"
	name, _ := s.scanName()
	s.skipSpace()
	if s.pos < len(s.text) && s.text[s.pos] == '>' {
		s.pos++
	} else {
		s.errf(start, "unterminated close tag </%s>", name)
	}
	end := s.pos

	// Find the matching open element; unwind anything above it.
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].Name != name {
			continue
		}
		for j := len(s.stack) - 1; j > i; j-- {
			s.stack[j].Rng.End = start
			s.errf(s.stack[j].OpenTagRng.Start, "unclosed element <%s>", s.stack[j].Name)
		}
		el := s.stack[i]
		el.CloseTagRng = Range{Start: start, End: end}
		el.Rng.End = end
		s.stack = s.stack[:i]
		return
	}
	s.errf(start, "close tag </%s> has no open element", name)
}

func decodeEntities(raw string) string {
	if !strings.Contains(raw, "&") {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '&' {
			b.WriteByte(raw[i])
			continue
		}
		semi := strings.IndexByte(raw[i:], ';')
		if semi < 0 || semi > 8 {
			b.WriteByte(raw[i])
			continue
		}
		entity := raw[i+1 : i+semi]
		switch {
		case entity == "amp":
			b.WriteByte('&')
		case entity == "lt":
			b.WriteByte('<')
		case entity == "gt":
			b.WriteByte('>')
		case entity == "quot":
			b.WriteByte('"')
		case entity == "apos":
			b.WriteByte('\'')
		case strings.HasPrefix(entity, "#"):
			n, err := strconv.ParseInt(strings.TrimLeft(entity[1:], "xX"), numericBase(entity), 32)
			if err != nil {
				b.WriteByte(raw[i])
				continue
			}
			b.WriteRune(rune(n))
		default:
			b.WriteByte(raw[i])
			continue
		}
		i += semi
	}
	return b.String()
}

func numericBase(entity string) int {
	if strings.HasPrefix(entity, "#x") || strings.HasPrefix(entity, "#X") {
		return 16
	}
	return 10
}
