// Package xml provides a positioned, read-only XML syntax tree for project
// files. Every element, attribute and text run carries an absolute half-open
// byte range over the source text, which is what the semantic model and the
// position locator key on. The stock encoding/xml decoder does not expose
// byte-exact token ranges, so the tree comes from a small hand-written
// scanner that tolerates malformed input: scan problems become diagnostics
// and the partial tree is still served.
package xml

import "sort"

// Range is an absolute half-open byte range [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether the offset falls inside the range. Zero-length
// ranges never contain anything.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// ContainsRange reports whether other lies entirely within r.
func (r Range) ContainsRange(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Node is a syntax node of the document: *Element, *Attribute or *Text.
type Node interface {
	Range() Range
	Parent() *Element
	isNode()
}

// Element is an XML element, including both tags and all content.
type Element struct {
	Name        string
	Rng         Range // whole element, open tag through close tag
	NameRng     Range // the tag name inside the open tag
	OpenTagRng  Range // "<name ...>" or "<name .../>"
	CloseTagRng Range // "</name>"; zero for self-closing or unclosed
	SelfClosing bool
	Attributes  []*Attribute
	Children    []Node // child elements and text runs in document order
	parent      *Element
}

func (e *Element) Range() Range     { return e.Rng }
func (e *Element) Parent() *Element { return e.parent }
func (e *Element) isNode()          {}

// Attr returns the named attribute, or nil.
func (e *Element) Attr(name string) *Attribute {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// ChildElements returns only the element children, skipping text runs.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// InnerText concatenates the direct text children.
func (e *Element) InnerText() string {
	s := ""
	for _, c := range e.Children {
		if t, ok := c.(*Text); ok {
			s += t.Value
		}
	}
	return s
}

// Attribute is a name="value" pair in an open tag.
type Attribute struct {
	Name     string
	Value    string
	Rng      Range // name through closing quote
	NameRng  Range
	ValueRng Range // inside the quotes
	parent   *Element
}

func (a *Attribute) Range() Range     { return a.Rng }
func (a *Attribute) Parent() *Element { return a.parent }
func (a *Attribute) isNode()          {}

// Text is a run of character data between tags.
type Text struct {
	Value  string
	Rng    Range
	parent *Element
}

func (t *Text) Range() Range     { return t.Rng }
func (t *Text) Parent() *Element { return t.parent }
func (t *Text) isNode()          {}

// ScanError is a tolerated syntax problem found while scanning.
type ScanError struct {
	Offset  int
	Message string
}

// Document is one scanned project file.
type Document struct {
	Text   string
	Root   *Element // nil when no element could be scanned
	Errors []ScanError

	lineOffsets []int // start offset of each line
}

// Position is a zero-based (line, character) pair, matching editor protocol
// coordinates.
type Position struct {
	Line      int
	Character int
}

// PositionAt converts an absolute offset to line/character.
func (d *Document) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	line := sort.Search(len(d.lineOffsets), func(i int) bool {
		return d.lineOffsets[i] > offset
	}) - 1
	return Position{Line: line, Character: offset - d.lineOffsets[line]}
}

// OffsetAt converts a line/character position to an absolute offset.
// Out-of-range positions clamp to the nearest valid offset.
func (d *Document) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(d.lineOffsets) {
		return len(d.Text)
	}
	off := d.lineOffsets[pos.Line] + pos.Character
	lineEnd := len(d.Text)
	if pos.Line+1 < len(d.lineOffsets) {
		lineEnd = d.lineOffsets[pos.Line+1]
	}
	if off > lineEnd {
		off = lineEnd
	}
	return off
}

// Locate returns the innermost node at the offset: an attribute when the
// offset is inside the attribute's name or value, otherwise the deepest
// element or text run containing it. Returns nil outside the root.
func Locate(doc *Document, offset int) Node {
	if doc == nil || doc.Root == nil || !doc.Root.Rng.Contains(offset) {
		return nil
	}
	return locateIn(doc.Root, offset)
}

func locateIn(el *Element, offset int) Node {
	for _, a := range el.Attributes {
		if a.Rng.Contains(offset) {
			return a
		}
	}
	for _, c := range el.Children {
		if !c.Range().Contains(offset) {
			continue
		}
		if child, ok := c.(*Element); ok {
			return locateIn(child, offset)
		}
		return c
	}
	return el
}
