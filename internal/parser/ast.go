package parser

// Span is an absolute half-open range over the parsed input. The source text
// of a node is always recoverable as input[span.Start : span.Start+span.Length].
type Span struct {
	Start  int
	Length int
}

func (s Span) End() int { return s.Start + s.Length }

// Contains reports whether offset falls inside the span. Zero-length spans
// are insertion points and never contain anything.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End()
}

func (s Span) Text(input string) string {
	if s.Start < 0 || s.End() > len(input) {
		return ""
	}
	return input[s.Start:s.End()]
}

// Node is an expression AST node. The node set is closed: every
// implementation lives in this package, so consumers can type-switch
// exhaustively. Nodes are immutable after Parse returns.
type Node interface {
	Span() Span
	IsValid() bool
	// IsVirtual is true for synthesized placeholder nodes that were not
	// authored literally, such as empty list items.
	IsVirtual() bool
	Children() []Node
	isExpr()
}

type baseNode struct {
	span    Span
	virtual bool
}

func (b *baseNode) Span() Span      { return b.span }
func (b *baseNode) IsVirtual() bool { return b.virtual }
func (b *baseNode) isExpr()         {}

// Root is the top-level container for one parsed expression string.
type Root struct {
	baseNode
	Child Node
}

// IsValid holds for an empty root: an empty attribute value is an empty
// expression, not a malformed one.
func (r *Root) IsValid() bool { return r.Child == nil || r.Child.IsValid() }
func (r *Root) Children() []Node {
	if r.Child == nil {
		return nil
	}
	return []Node{r.Child}
}

// List is a semicolon-delimited sequence. Items and Separators interleave:
// len(Separators) == len(Items)-1. Adjacent separators produce an EmptyItem,
// never a shorter list.
type List struct {
	baseNode
	Items      []Node
	Separators []*ListSeparator
}

func (l *List) IsValid() bool {
	for _, it := range l.Items {
		if !it.IsValid() {
			return false
		}
	}
	return true
}

// Children returns items and separators interleaved in source order, so
// concatenating child spans reproduces the list's source text.
func (l *List) Children() []Node {
	out := make([]Node, 0, len(l.Items)+len(l.Separators))
	for i, it := range l.Items {
		out = append(out, it)
		if i < len(l.Separators) {
			out = append(out, l.Separators[i])
		}
	}
	return out
}

// ListSeparator covers the text between two list items, including the
// whitespace around the ';'. SeparatorOffset pinpoints the ';' itself,
// relative to the node start, so diagnostics can anchor on the character
// while the surrounding whitespace stays inside the node for formatting.
type ListSeparator struct {
	baseNode
	SeparatorOffset int
}

func (s *ListSeparator) IsValid() bool    { return true }
func (s *ListSeparator) Children() []Node { return nil }

// EmptyItem is a virtual zero-length list element produced by adjacent
// separators ("A;;B"). MSBuild list semantics distinguish empty elements
// from absent ones, so it is a real item, not an error.
type EmptyItem struct {
	baseNode
}

func (e *EmptyItem) IsValid() bool    { return true }
func (e *EmptyItem) Children() []Node { return nil }

// Evaluate is a $(...) property reference.
type Evaluate struct {
	baseNode
	Child Node // *Symbol, or a nested expression
}

func (e *Evaluate) IsValid() bool { return e.Child != nil && e.Child.IsValid() }
func (e *Evaluate) Children() []Node {
	if e.Child == nil {
		return nil
	}
	return []Node{e.Child}
}

// ItemGroupReference is an @(...) item-group reference, optionally with a
// transform ("@(Compile -> '%(FullPath)')") and a custom separator
// ("@(Compile, ';')").
type ItemGroupReference struct {
	baseNode
	Name      *Symbol
	Transform Node          // optional, usually a *QuotedString
	Separator *QuotedString // optional
}

func (i *ItemGroupReference) IsValid() bool { return i.Name != nil && i.Name.IsValid() }
func (i *ItemGroupReference) Children() []Node {
	var out []Node
	if i.Name != nil {
		out = append(out, i.Name)
	}
	if i.Transform != nil {
		out = append(out, i.Transform)
	}
	if i.Separator != nil {
		out = append(out, i.Separator)
	}
	return out
}

// ItemMetadataReference is a %(...) metadata reference, optionally qualified
// by item type: %(Filename) or %(Compile.Filename).
type ItemMetadataReference struct {
	baseNode
	ItemType *Symbol // optional
	Name     *Symbol
}

func (m *ItemMetadataReference) IsValid() bool { return m.Name != nil && m.Name.IsValid() }
func (m *ItemMetadataReference) Children() []Node {
	var out []Node
	if m.ItemType != nil {
		out = append(out, m.ItemType)
	}
	if m.Name != nil {
		out = append(out, m.Name)
	}
	return out
}

// QuotedString is a '...' literal whose children are StringContent runs
// interleaved with embedded Evaluate and ItemGroupReference nodes
// ("'Foo $(Bar)'").
type QuotedString struct {
	baseNode
	Kids []Node
}

func (q *QuotedString) IsValid() bool {
	for _, k := range q.Kids {
		if !k.IsValid() {
			return false
		}
	}
	return true
}
func (q *QuotedString) Children() []Node { return q.Kids }

// StringContent is a literal run inside a quoted string. Text holds the
// decoded value (%XX escapes resolved); the span still covers the raw
// source, so a decoded character can map back to its escape sequence.
type StringContent struct {
	baseNode
	Text string
}

func (s *StringContent) IsValid() bool    { return true }
func (s *StringContent) Children() []Node { return nil }

// Symbol is an identifier, optionally namespace-qualified (Namespace.Name).
type Symbol struct {
	baseNode
	Namespace string // empty when unqualified
	Name      string
}

func (s *Symbol) IsValid() bool {
	if s.Name == "" {
		return false
	}
	for _, r := range s.Name {
		if r != ' ' && r != '\t' {
			return true
		}
	}
	return false
}
func (s *Symbol) Children() []Node { return nil }

// FullName returns "Namespace.Name", or just the name when unqualified.
func (s *Symbol) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
)

func (op CompareOp) String() string {
	if op == OpNotEqual {
		return "!="
	}
	return "=="
}

// Compare is an equality or inequality between two operands.
type Compare struct {
	baseNode
	Op    CompareOp
	Left  Node
	Right Node
}

func (c *Compare) IsValid() bool {
	return c.Left != nil && c.Right != nil && c.Left.IsValid() && c.Right.IsValid()
}
func (c *Compare) Children() []Node {
	var out []Node
	if c.Left != nil {
		out = append(out, c.Left)
	}
	if c.Right != nil {
		out = append(out, c.Right)
	}
	return out
}

type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpOr {
		return "Or"
	}
	return "And"
}

// Logical is an And/Or combination of two conditions.
type Logical struct {
	baseNode
	Op    LogicalOp
	Left  Node
	Right Node
}

func (l *Logical) IsValid() bool {
	return l.Left != nil && l.Right != nil && l.Left.IsValid() && l.Right.IsValid()
}
func (l *Logical) Children() []Node {
	var out []Node
	if l.Left != nil {
		out = append(out, l.Left)
	}
	if l.Right != nil {
		out = append(out, l.Right)
	}
	return out
}

// Not is a unary '!' over a condition.
type Not struct {
	baseNode
	Operand Node
}

func (n *Not) IsValid() bool { return n.Operand != nil && n.Operand.IsValid() }
func (n *Not) Children() []Node {
	if n.Operand == nil {
		return nil
	}
	return []Node{n.Operand}
}

// Walk visits node and all descendants in depth-first source order. The
// visitor returns false to prune the subtree.
func Walk(node Node, visit func(Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for _, c := range node.Children() {
		Walk(c, visit)
	}
}

// NodeAt returns the innermost node whose span contains the offset, or nil.
func NodeAt(root Node, offset int) Node {
	if root == nil || !root.Span().Contains(offset) {
		return nil
	}
	best := root
	for {
		var next Node
		for _, c := range best.Children() {
			if c.Span().Contains(offset) {
				next = c
			}
		}
		if next == nil {
			return best
		}
		best = next
	}
}
