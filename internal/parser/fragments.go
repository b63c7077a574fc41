package parser

// Fragments scans arbitrary attribute or element text for embedded
// $(...), @(...) and %(...) references without requiring the whole text to
// parse as an expression. Raw values such as "bin\$(Configuration)\" are
// not grammatical expressions, but the references inside them still need
// hover and go-to-definition.
func Fragments(input string) []Node {
	var out []Node
	for i := 0; i < len(input); i++ {
		if input[i] != '$' && input[i] != '@' && input[i] != '%' {
			continue
		}
		if i+1 >= len(input) || input[i+1] != '(' {
			continue
		}
		s := &scanner{input: input, pos: i}
		var node Node
		var ok bool
		switch input[i] {
		case '$':
			node, ok = parseEvaluate(s)
		case '@':
			node, ok = parseItemGroupReference(s)
		case '%':
			node, ok = parseItemMetadataReference(s)
		}
		if ok {
			out = append(out, node)
			i = s.pos - 1
		}
	}
	return out
}

// FragmentAt returns the innermost node of the fragment containing the
// offset, together with the fragment root, or nil when the offset is in
// plain text.
func FragmentAt(input string, offset int) (innermost, fragment Node) {
	for _, f := range Fragments(input) {
		if f.Span().Contains(offset) {
			return NodeAt(f, offset), f
		}
	}
	return nil, nil
}
