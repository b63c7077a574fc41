package parser

import (
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, input string) *Root {
	t.Helper()
	root, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return root
}

func TestParseSymbol(t *testing.T) {
	root := mustParse(t, "Configuration")
	sym, ok := root.Child.(*Symbol)
	if !ok {
		t.Fatalf("expected *Symbol, got %T", root.Child)
	}
	if sym.Name != "Configuration" || sym.Namespace != "" {
		t.Errorf("got %q ns %q", sym.Name, sym.Namespace)
	}
	if sym.Span() != (Span{Start: 0, Length: 13}) {
		t.Errorf("bad span %+v", sym.Span())
	}
}

func TestParseQualifiedSymbol(t *testing.T) {
	root := mustParse(t, "MSBuild.ToolsVersion")
	sym := root.Child.(*Symbol)
	if sym.Namespace != "MSBuild" || sym.Name != "ToolsVersion" {
		t.Errorf("got ns %q name %q", sym.Namespace, sym.Name)
	}
	if sym.FullName() != "MSBuild.ToolsVersion" {
		t.Errorf("FullName = %q", sym.FullName())
	}
}

func TestParseUnderscoreIdentifiers(t *testing.T) {
	for _, input := range []string{"_Foo", "My_Property", "_"} {
		root := mustParse(t, input)
		if _, ok := root.Child.(*Symbol); !ok {
			t.Errorf("%q: expected symbol, got %T", input, root.Child)
		}
	}
	if _, err := Parse("1Foo"); err == nil {
		t.Error("leading digit should not parse as an identifier")
	}
}

func TestParseEvaluate(t *testing.T) {
	root := mustParse(t, "$(Configuration)")
	ev, ok := root.Child.(*Evaluate)
	if !ok {
		t.Fatalf("expected *Evaluate, got %T", root.Child)
	}
	if ev.Span() != (Span{Start: 0, Length: 16}) {
		t.Errorf("bad span %+v", ev.Span())
	}
	sym := ev.Child.(*Symbol)
	if sym.Name != "Configuration" {
		t.Errorf("got %q", sym.Name)
	}
	if !ev.IsValid() {
		t.Error("should be valid")
	}
}

func TestParseNestedEvaluate(t *testing.T) {
	root := mustParse(t, "$($(Indirect))")
	outer := root.Child.(*Evaluate)
	inner, ok := outer.Child.(*Evaluate)
	if !ok {
		t.Fatalf("expected nested *Evaluate, got %T", outer.Child)
	}
	if inner.Child.(*Symbol).Name != "Indirect" {
		t.Errorf("got %q", inner.Child.(*Symbol).Name)
	}
}

func TestParseUnterminatedEvaluate(t *testing.T) {
	_, err := Parse("$(Foo")
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	// Furthest progress is past "Foo", at the missing ')'.
	if perr.Offset != 5 {
		t.Errorf("error offset = %d, want 5", perr.Offset)
	}
}

func TestParseItemGroupReference(t *testing.T) {
	root := mustParse(t, "@(Compile)")
	ig := root.Child.(*ItemGroupReference)
	if ig.Name.Name != "Compile" || ig.Transform != nil || ig.Separator != nil {
		t.Errorf("unexpected %+v", ig)
	}
}

func TestParseItemGroupTransform(t *testing.T) {
	input := "@(Compile -> '%(FullPath)', ';')"
	root := mustParse(t, input)
	ig := root.Child.(*ItemGroupReference)
	if ig.Transform == nil {
		t.Fatal("missing transform")
	}
	if ig.Separator == nil {
		t.Fatal("missing separator")
	}
	if got := ig.Span().Text(input); got != input {
		t.Errorf("span text = %q", got)
	}
	// %(...) inside a quoted transform stays literal content.
	qs := ig.Transform.(*QuotedString)
	if len(qs.Kids) != 1 {
		t.Fatalf("transform kids = %d", len(qs.Kids))
	}
	if sc := qs.Kids[0].(*StringContent); sc.Text != "%(FullPath)" {
		t.Errorf("transform content = %q", sc.Text)
	}
}

func TestParseItemMetadataReference(t *testing.T) {
	root := mustParse(t, "%(Compile.Filename)")
	md := root.Child.(*ItemMetadataReference)
	if md.ItemType == nil || md.ItemType.Name != "Compile" {
		t.Errorf("item type = %+v", md.ItemType)
	}
	if md.Name.Name != "Filename" {
		t.Errorf("name = %q", md.Name.Name)
	}

	root = mustParse(t, "%(Filename)")
	md = root.Child.(*ItemMetadataReference)
	if md.ItemType != nil {
		t.Errorf("unqualified reference should have no item type")
	}
}

func TestParseQuotedString(t *testing.T) {
	input := "'Foo $(Bar) baz'"
	root := mustParse(t, input)
	qs := root.Child.(*QuotedString)
	if len(qs.Kids) != 3 {
		t.Fatalf("kids = %d, want 3", len(qs.Kids))
	}
	if sc := qs.Kids[0].(*StringContent); sc.Text != "Foo " {
		t.Errorf("first run = %q", sc.Text)
	}
	if ev := qs.Kids[1].(*Evaluate); ev.Child.(*Symbol).Name != "Bar" {
		t.Errorf("embedded evaluate wrong")
	}
	if sc := qs.Kids[2].(*StringContent); sc.Text != " baz" {
		t.Errorf("last run = %q", sc.Text)
	}
}

func TestHexEscapeDecoding(t *testing.T) {
	input := "'a%20b'"
	root := mustParse(t, input)
	qs := root.Child.(*QuotedString)
	if len(qs.Kids) != 1 {
		t.Fatalf("kids = %d", len(qs.Kids))
	}
	sc := qs.Kids[0].(*StringContent)
	if sc.Text != "a b" {
		t.Errorf("decoded = %q, want \"a b\"", sc.Text)
	}
	// The decoded run still covers the raw 5-character source span.
	if got := sc.Span().Text(input); got != "a%20b" {
		t.Errorf("raw span = %q", got)
	}
}

func TestPercentWithoutHexDigitsIsLiteral(t *testing.T) {
	root := mustParse(t, "'100%'")
	sc := root.Child.(*QuotedString).Kids[0].(*StringContent)
	if sc.Text != "100%" {
		t.Errorf("got %q", sc.Text)
	}
}

func TestListEmptyElements(t *testing.T) {
	root := mustParse(t, "A;;B")
	list, ok := root.Child.(*List)
	if !ok {
		t.Fatalf("expected *List, got %T", root.Child)
	}
	if len(list.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(list.Items))
	}
	mid, ok := list.Items[1].(*EmptyItem)
	if !ok {
		t.Fatalf("middle item is %T, want *EmptyItem", list.Items[1])
	}
	if !mid.IsVirtual() {
		t.Error("empty item should be virtual")
	}
	if mid.Span().Length != 0 {
		t.Error("empty item should be zero length")
	}
}

func TestListSeparatorOffsets(t *testing.T) {
	input := "A ; B"
	root := mustParse(t, input)
	list := root.Child.(*List)
	if len(list.Separators) != 1 {
		t.Fatalf("separators = %d", len(list.Separators))
	}
	sep := list.Separators[0]
	// The separator node owns the whitespace around ';'.
	if sep.Span() != (Span{Start: 1, Length: 3}) {
		t.Errorf("separator span = %+v", sep.Span())
	}
	// The offset pinpoints the ';' relative to the node start.
	if sep.SeparatorOffset != 1 {
		t.Errorf("separator offset = %d, want 1", sep.SeparatorOffset)
	}
	if input[sep.Span().Start+sep.SeparatorOffset] != ';' {
		t.Error("offset does not land on the separator character")
	}
}

func TestSingleElementIsNotAList(t *testing.T) {
	root := mustParse(t, "$(A)")
	if _, ok := root.Child.(*List); ok {
		t.Error("single element should not be wrapped in a list")
	}
}

func TestParseCondition(t *testing.T) {
	input := "'$(Configuration)' == 'Debug' And !$(SkipTests)"
	root := mustParse(t, input)
	and, ok := root.Child.(*Logical)
	if !ok || and.Op != OpAnd {
		t.Fatalf("expected And, got %T", root.Child)
	}
	cmp, ok := and.Left.(*Compare)
	if !ok || cmp.Op != OpEqual {
		t.Fatalf("expected ==, got %T", and.Left)
	}
	if _, ok := and.Right.(*Not); !ok {
		t.Fatalf("expected Not, got %T", and.Right)
	}
}

func TestConditionPrecedence(t *testing.T) {
	// Or binds looser than And: a == b Or c == d And e == f
	// parses as (a==b) Or ((c==d) And (e==f)).
	root := mustParse(t, "'a'=='b' Or 'c'=='d' And 'e'=='f'")
	or, ok := root.Child.(*Logical)
	if !ok || or.Op != OpOr {
		t.Fatalf("top is %T", root.Child)
	}
	if and, ok := or.Right.(*Logical); !ok || and.Op != OpAnd {
		t.Fatalf("right of Or is %T", or.Right)
	}
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	root := mustParse(t, "'a'=='b' or 'c'!='d'")
	if lg, ok := root.Child.(*Logical); !ok || lg.Op != OpOr {
		t.Fatalf("got %T", root.Child)
	}
	// But an identifier merely starting with a keyword is not an operator.
	if _, err := Parse("'a'=='b' Orchid"); err == nil {
		t.Error("expected error for trailing identifier")
	}
}

func TestNotEqualVersusNegation(t *testing.T) {
	root := mustParse(t, "$(A) != 'x'")
	if cmp, ok := root.Child.(*Compare); !ok || cmp.Op != OpNotEqual {
		t.Fatalf("got %T", root.Child)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"A;B;C",
		"A;;B",
		"$(Configuration)",
		"@(Compile -> '%(FullPath)')",
		"'Foo $(Bar)';$(Baz);@(Qux)",
		"'$(A)'=='$(B)' And 'x'!='y'",
	}
	for _, input := range inputs {
		root := mustParse(t, input)
		var b strings.Builder
		for _, child := range root.Children() {
			for _, piece := range tile(child) {
				b.WriteString(piece.Span().Text(input))
			}
		}
		if b.String() != input {
			t.Errorf("round trip of %q = %q", input, b.String())
		}
	}
}

// tile flattens a node into span-tiling pieces: list children tile their
// parent exactly, everything else is covered by its own span.
func tile(n Node) []Node {
	if list, ok := n.(*List); ok {
		return list.Children()
	}
	return []Node{n}
}

func TestParseIdempotent(t *testing.T) {
	inputs := []string{
		"A;;B",
		"'Foo $(Bar)' == '' Or !'%41'",
		"@(Compile, ';')",
	}
	for _, input := range inputs {
		a := mustParse(t, input)
		b := mustParse(t, input)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("parses of %q differ", input)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	root := mustParse(t, "")
	if root.Child != nil {
		t.Errorf("empty input should have no child, got %T", root.Child)
	}
	if !root.IsValid() {
		t.Error("empty root is a valid empty expression")
	}
}

func TestParseErrorIsValueNotPanic(t *testing.T) {
	for _, input := range []string{"$(", "@()", "'unterminated", "==", "A;$(", "%()"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestNodeAtBoundaries(t *testing.T) {
	input := "X;$(Prop);Y"
	root := mustParse(t, input)
	ev := root.Child.(*List).Items[1].(*Evaluate)
	start, end := ev.Span().Start, ev.Span().End()

	if got := NodeAt(root, start); got == nil {
		t.Fatal("start offset should hit the node")
	}
	if got := NodeAt(root, end-1); got == nil {
		t.Fatal("last offset should hit the node")
	}
	// Half-open: the end offset belongs to the next node.
	if got := NodeAt(root, end); got != nil {
		if got.Span().Contains(end) && got.Span() == ev.Span() {
			t.Error("end offset must not match the evaluate node")
		}
	}
}

func TestFragmentsInRawText(t *testing.T) {
	input := `bin\$(Configuration)\$(Platform)\`
	frags := Fragments(input)
	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want 2", len(frags))
	}
	first := frags[0].(*Evaluate)
	if first.Child.(*Symbol).Name != "Configuration" {
		t.Errorf("got %q", first.Child.(*Symbol).Name)
	}
	if got := first.Span().Text(input); got != "$(Configuration)" {
		t.Errorf("span text = %q", got)
	}

	inner, frag := FragmentAt(input, first.Span().Start+3)
	if frag == nil || inner == nil {
		t.Fatal("FragmentAt missed the reference")
	}
	if _, ok := inner.(*Symbol); !ok {
		t.Errorf("innermost = %T, want *Symbol", inner)
	}
}

func TestFragmentsIgnoreMalformed(t *testing.T) {
	frags := Fragments(`$(Broken;$(Fine)`)
	if len(frags) != 1 {
		t.Fatalf("fragments = %d, want 1", len(frags))
	}
	if frags[0].(*Evaluate).Child.(*Symbol).Name != "Fine" {
		t.Error("wrong fragment survived")
	}
}
