package lsp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/msbuild-community/msbuild-dev-tools/internal/lsp/cache"
	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/parser"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

func toXMLPosition(p Position) xml.Position {
	return xml.Position{Line: p.Line, Character: p.Character}
}

func fromXMLPosition(p xml.Position) Position {
	return Position{Line: p.Line, Character: p.Character}
}

func toRange(doc *cache.Document, start, end int) Range {
	return Range{
		Start: fromXMLPosition(doc.XML.PositionAt(start)),
		End:   fromXMLPosition(doc.XML.PositionAt(end)),
	}
}

// reference is an expression reference under the cursor, located back in
// absolute document coordinates.
type reference struct {
	innermost parser.Node
	fragment  parser.Node
	base      int // document offset the fragment spans are relative to
}

func (r *reference) absolute(s parser.Span) (int, int) {
	return r.base + s.Start, r.base + s.End()
}

// referenceAt finds the expression reference containing the offset, looking
// inside attribute values and text runs. Values whose decoded form differs
// in length from the source (entity escapes) are skipped; offsets inside
// them cannot be mapped exactly.
func referenceAt(doc *cache.Document, offset int) *reference {
	node := xml.Locate(doc.XML, offset)
	var text string
	var rng xml.Range
	switch n := node.(type) {
	case *xml.Attribute:
		if !n.ValueRng.Contains(offset) {
			return nil
		}
		text, rng = n.Value, n.ValueRng
	case *xml.Text:
		text, rng = n.Value, n.Rng
	default:
		return nil
	}
	if len(text) != rng.End-rng.Start {
		return nil
	}
	inner, frag := parser.FragmentAt(text, offset-rng.Start)
	if frag == nil {
		return nil
	}
	return &reference{innermost: inner, fragment: frag, base: rng.Start}
}

func (s *Server) handleHover(params TextDocumentPositionParams) *Hover {
	doc, offset := s.document(params)
	if doc == nil {
		return nil
	}
	snap := s.snapshotOf(params.TextDocument.URI)

	if ref := referenceAt(doc, offset); ref != nil {
		if content, span := s.hoverReference(doc, snap, ref); content != "" {
			start, end := ref.absolute(span)
			rng := toRange(doc, start, end)
			return &Hover{
				Contents: MarkupContent{Kind: "markdown", Value: content},
				Range:    &rng,
			}
		}
	}

	obj := doc.Model.Locate(offset)
	if obj == nil {
		return nil
	}
	content := formatObject(obj)
	if content == "" {
		return nil
	}
	rng := toRange(doc, obj.XMLRange().Start, obj.XMLRange().End)
	return &Hover{
		Contents: MarkupContent{Kind: "markdown", Value: content},
		Range:    &rng,
	}
}

func (s *Server) hoverReference(doc *cache.Document, snap *cache.Snapshot, ref *reference) (string, parser.Span) {
	switch frag := ref.fragment.(type) {
	case *parser.Evaluate:
		sym, ok := frag.Child.(*parser.Symbol)
		if !ok {
			return "", parser.Span{}
		}
		name := sym.FullName()
		var b strings.Builder
		fmt.Fprintf(&b, "**Property**: `$(%s)`", name)
		if p := doc.Model.Property(name); p != nil {
			fmt.Fprintf(&b, "\n\n**Value**: `%s`", p.Value)
		} else if snap != nil {
			if def, ok := snap.Schema().Properties[name]; ok {
				if def.Default != "" {
					fmt.Fprintf(&b, "\n\n**Default**: `%s`", def.Default)
				}
				fmt.Fprintf(&b, "\n\n%s", def.Description)
			}
		}
		return b.String(), frag.Span()
	case *parser.ItemGroupReference:
		if frag.Name == nil {
			return "", parser.Span{}
		}
		name := frag.Name.FullName()
		var b strings.Builder
		fmt.Fprintf(&b, "**Item**: `@(%s)`", name)
		groups := doc.Model.ItemGroups(name)
		total := 0
		for _, g := range groups {
			total += len(g.Includes)
		}
		if len(groups) > 0 {
			fmt.Fprintf(&b, "\n\n%d include(s) in this file", total)
		} else if snap != nil {
			if def, ok := snap.Schema().Items[name]; ok {
				fmt.Fprintf(&b, "\n\n%s", def.Description)
			}
		}
		return b.String(), frag.Span()
	case *parser.ItemMetadataReference:
		if frag.Name == nil {
			return "", parser.Span{}
		}
		return fmt.Sprintf("**Metadata**: `%%(%s)`", frag.Name.FullName()), frag.Span()
	}
	return "", parser.Span{}
}

func formatObject(obj model.Object) string {
	switch o := obj.(type) {
	case *model.Property:
		var b strings.Builder
		fmt.Fprintf(&b, "**Property**: `%s`\n\n**Value**: `%s`", o.Name(), o.Value)
		if o.IsOverridden {
			b.WriteString("\n\n*Overridden by a later declaration.*")
		}
		for p := o.Predecessor; p != nil; p = p.Predecessor {
			fmt.Fprintf(&b, "\n\nOverrides: `%s`", p.Value)
		}
		return b.String()
	case *model.UnusedProperty:
		return fmt.Sprintf("**Property**: `%s` *(condition is false)*\n\n**Would be**: `%s`",
			o.Name(), o.Value)
	case *model.ItemGroup:
		return fmt.Sprintf("**Item**: `%s`\n\n%d include(s)", o.Name(), len(o.Includes))
	case *model.UnusedItemGroup:
		return fmt.Sprintf("**Item**: `%s` *(condition is false)*", o.Name())
	case *model.Target:
		return fmt.Sprintf("**Target**: `%s`", o.Name())
	case *model.Import:
		return fmt.Sprintf("**Import**: `%s`\n\nResolved to `%s`", o.Project, strings.Join(o.Resolved, "`, `"))
	case *model.UnresolvedImport:
		return fmt.Sprintf("**Import**: `%s` *(unresolved)*", o.Project)
	case *model.SdkImport:
		return fmt.Sprintf("**SDK**: `%s`\n\nResolved to `%s`", o.Sdk, strings.Join(o.Resolved, "`, `"))
	case *model.UnresolvedSdkImport:
		return fmt.Sprintf("**SDK**: `%s` *(unresolved)*", o.Sdk)
	}
	return ""
}

func (s *Server) handleDefinition(params TextDocumentPositionParams) []Location {
	doc, offset := s.document(params)
	if doc == nil {
		return nil
	}
	ref := referenceAt(doc, offset)
	if ref == nil {
		return nil
	}
	eval, ok := ref.fragment.(*parser.Evaluate)
	if !ok {
		return nil
	}
	sym, ok := eval.Child.(*parser.Symbol)
	if !ok {
		return nil
	}
	name := sym.FullName()

	var out []Location
	// Declarations in the open document first, then the rest of the
	// workspace from the index.
	for _, obj := range doc.Model.PropertyDeclarations(name) {
		out = append(out, Location{
			URI:   pathToURI(doc.Path),
			Range: toRange(doc, obj.XMLRange().Start, obj.XMLRange().End),
		})
	}
	if snap := s.snapshotOf(params.TextDocument.URI); snap != nil {
		for _, loc := range snap.Workspace().PropertyDefinitions(name) {
			if loc.File == doc.Path {
				continue
			}
			out = append(out, s.workspaceLocation(snap, loc.File, loc.Range))
		}
	}
	return out
}

// workspaceLocation converts an index location to protocol coordinates.
// Open documents already carry parsed text; closed files are read from disk
// to map the byte range to line and column. Only an unreadable file degrades
// to a collapsed range at the top.
func (s *Server) workspaceLocation(snap *cache.Snapshot, file string, rng xml.Range) Location {
	if doc := snap.Document(file); doc != nil {
		return Location{URI: pathToURI(file), Range: toRange(doc, rng.Start, rng.End)}
	}
	if content, err := os.ReadFile(file); err == nil {
		target := xml.Parse(string(content))
		return Location{URI: pathToURI(file), Range: Range{
			Start: fromXMLPosition(target.PositionAt(rng.Start)),
			End:   fromXMLPosition(target.PositionAt(rng.End)),
		}}
	}
	return Location{URI: pathToURI(file), Range: Range{}}
}

func (s *Server) handleCompletion(params TextDocumentPositionParams) []CompletionItem {
	doc, offset := s.document(params)
	if doc == nil {
		return nil
	}
	snap := s.snapshotOf(params.TextDocument.URI)

	opener := openerBefore(doc.Text, offset)
	switch opener {
	case "$(":
		return s.propertyCompletions(doc, snap)
	case "@(":
		return s.itemCompletions(doc, snap)
	}
	return nil
}

// openerBefore reports the reference opener the cursor is typing inside, by
// scanning left on the current line for an unclosed $( or @(.
func openerBefore(text string, offset int) string {
	for i := offset - 1; i >= 0; i-- {
		switch text[i] {
		case ')', '\n', '<', '>':
			return ""
		case '(':
			if i > 0 && (text[i-1] == '$' || text[i-1] == '@') {
				return string(text[i-1]) + "("
			}
			return ""
		}
	}
	return ""
}

func (s *Server) propertyCompletions(doc *cache.Document, snap *cache.Snapshot) []CompletionItem {
	seen := map[string]bool{}
	var items []CompletionItem

	add := func(name, detail, doc string, kind int) {
		if seen[name] {
			return
		}
		seen[name] = true
		items = append(items, CompletionItem{Label: name, Kind: kind, Detail: detail, Documentation: doc})
	}

	for _, obj := range doc.Model.Objects {
		if p, ok := obj.(*model.Property); ok && !p.IsOverridden {
			add(p.Name(), fmt.Sprintf("= %s", p.Value), "", completionKindProperty)
		}
	}
	if snap != nil {
		for _, name := range snap.Workspace().PropertyNames() {
			add(name, "workspace", "", completionKindProperty)
		}
		for name, def := range snap.Schema().Properties {
			add(name, "well-known", def.Description, completionKindConstant)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func (s *Server) itemCompletions(doc *cache.Document, snap *cache.Snapshot) []CompletionItem {
	seen := map[string]bool{}
	var items []CompletionItem

	add := func(name, detail, doc string) {
		if seen[name] {
			return
		}
		seen[name] = true
		items = append(items, CompletionItem{Label: name, Kind: completionKindValue, Detail: detail, Documentation: doc})
	}

	for _, obj := range doc.Model.Objects {
		if g, ok := obj.(*model.ItemGroup); ok {
			add(g.Name(), fmt.Sprintf("%d include(s)", len(g.Includes)), "")
		}
	}
	if snap != nil {
		for _, name := range snap.Workspace().ItemTypes() {
			add(name, "workspace", "")
		}
		for name, def := range snap.Schema().Items {
			add(name, "well-known", def.Description)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func (s *Server) handleDocumentSymbol(uri string) []DocumentSymbol {
	snap := s.snapshotOf(uri)
	if snap == nil {
		return nil
	}
	doc := snap.Document(uriToPath(uri))
	if doc == nil {
		return nil
	}

	var props, itemSyms, targets []DocumentSymbol
	for _, obj := range doc.Model.Objects {
		sym := DocumentSymbol{
			Name:           obj.Name(),
			Range:          toRange(doc, obj.XMLRange().Start, obj.XMLRange().End),
			SelectionRange: toRange(doc, obj.XMLRange().Start, obj.XMLRange().End),
		}
		switch o := obj.(type) {
		case *model.Property:
			sym.Kind = symbolKindProperty
			sym.Detail = o.Value
			props = append(props, sym)
		case *model.ItemGroup:
			sym.Kind = symbolKindVariable
			sym.Detail = fmt.Sprintf("%d include(s)", len(o.Includes))
			itemSyms = append(itemSyms, sym)
		case *model.Target:
			sym.Kind = symbolKindFunction
			targets = append(targets, sym)
		}
	}

	var out []DocumentSymbol
	out = append(out, props...)
	out = append(out, itemSyms...)
	out = append(out, targets...)
	return out
}
