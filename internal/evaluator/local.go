package evaluator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/msbuild-community/msbuild-dev-tools/internal/parser"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// Local is a deliberately degraded evaluator for single documents. It walks
// the XML tree in document order, records declarations, expands $(...) from
// properties already seen in the same file and decides literal conditions.
// It does not follow imports, glob item includes or order targets; the
// external engine owns those. It exists so the CLI, the LSP fallback and
// tests have a real collaborator.
type Local struct {
	// BaseDir anchors relative import paths; empty disables import
	// resolution entirely.
	BaseDir string
	// ResolveSdk maps an SDK id to its resolved root paths. Nil means no
	// SDK resolution, so every SDK import stays unresolved.
	ResolveSdk func(sdk string) []string
}

func (l *Local) Evaluate(_ context.Context, doc *xml.Document) (*Evaluation, error) {
	if doc == nil || doc.Root == nil {
		return nil, ErrEvaluationFailed
	}
	ev := &evalState{
		doc:  doc,
		env:  map[string]string{},
		last: map[string]*PropertyRecord{},
		loc:  l,
		out:  &Evaluation{},
	}
	for _, e := range doc.Errors {
		ev.out.Errors = append(ev.out.Errors, e.Message)
	}

	if sdk := doc.Root.Attr("Sdk"); sdk != nil && sdk.Value != "" {
		ev.recordSdk(sdk.Value, doc.Root, true)
	}
	ev.walk(doc.Root, true)
	return ev.out, nil
}

type evalState struct {
	doc  *xml.Document
	env  map[string]string          // properties seen so far, active only
	last map[string]*PropertyRecord // last active declaration per name
	loc  *Local
	out  *Evaluation
}

func (ev *evalState) walk(el *xml.Element, parentCond bool) {
	for _, child := range el.ChildElements() {
		cond := parentCond && ev.condition(child)
		switch child.Name {
		case "PropertyGroup":
			ev.walkProperties(child, cond)
		case "ItemGroup":
			ev.walkItems(child, cond)
		case "Target":
			// Target bodies are execution-time; evaluation only sees the
			// declaration itself.
			if name := child.Attr("Name"); name != nil && name.Value != "" {
				ev.out.Targets = append(ev.out.Targets, &TargetRecord{Name: name.Value, Node: child})
			}
		case "Import":
			ev.recordImport(child, cond)
		case "Choose", "When", "Otherwise", "ImportGroup":
			ev.walk(child, cond)
		}
	}
}

func (ev *evalState) walkProperties(group *xml.Element, groupCond bool) {
	for _, prop := range group.ChildElements() {
		cond := groupCond && ev.condition(prop)
		value := ev.expand(prop.InnerText())
		rec := &PropertyRecord{
			Name:            prop.Name,
			Value:           value,
			Node:            prop,
			ConditionResult: cond,
		}
		if cond {
			// Only declarations that took effect shadow anything or are
			// shadowed later.
			rec.Predecessor = ev.last[prop.Name]
			ev.last[prop.Name] = rec
			ev.env[prop.Name] = value
		}
		ev.out.Properties = append(ev.out.Properties, rec)
	}
}

func (ev *evalState) walkItems(group *xml.Element, groupCond bool) {
	for _, item := range group.ChildElements() {
		cond := groupCond && ev.condition(item)
		inc := ""
		if a := item.Attr("Include"); a != nil {
			inc = ev.expand(a.Value)
		}
		rec := &ItemRecord{Name: item.Name, Node: item, ConditionResult: cond}
		meta := map[string]string{}
		for _, m := range item.ChildElements() {
			meta[m.Name] = ev.expand(m.InnerText())
		}
		for _, piece := range strings.Split(inc, ";") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			rec.Includes = append(rec.Includes, piece)
			rec.Items = append(rec.Items, Item{Include: piece, Metadata: meta})
		}
		ev.out.Items = append(ev.out.Items, rec)
	}
}

func (ev *evalState) recordImport(el *xml.Element, cond bool) {
	if sdk := el.Attr("Sdk"); sdk != nil && sdk.Value != "" {
		ev.recordSdk(sdk.Value, el, cond)
		return
	}
	proj := el.Attr("Project")
	if proj == nil {
		return
	}
	rec := &ImportRecord{
		Project:          proj.Value,
		EvaluatedProject: ev.expand(proj.Value),
		ConditionResult:  cond,
	}
	if c := el.Attr("Condition"); c != nil {
		rec.Condition = c.Value
	}
	rec.Node = el
	if cond && ev.loc.BaseDir != "" && rec.EvaluatedProject != "" {
		path := rec.EvaluatedProject
		if !filepath.IsAbs(path) {
			path = filepath.Join(ev.loc.BaseDir, path)
		}
		if _, err := os.Stat(path); err == nil {
			rec.Resolved = []string{path}
		}
	}
	ev.out.Imports = append(ev.out.Imports, rec)
}

func (ev *evalState) recordSdk(sdk string, el *xml.Element, cond bool) {
	rec := &SdkImportRecord{Sdk: sdk, Node: el, ConditionResult: cond}
	if cond && ev.loc.ResolveSdk != nil {
		rec.Resolved = ev.loc.ResolveSdk(sdk)
	}
	ev.out.SdkImports = append(ev.out.SdkImports, rec)
}

// expand replaces $(Name) references with already-known property values.
// Unknown properties expand to the empty string, as in MSBuild.
func (ev *evalState) expand(text string) string {
	frags := parser.Fragments(text)
	if len(frags) == 0 {
		return text
	}
	var b strings.Builder
	pos := 0
	for _, f := range frags {
		eval, ok := f.(*parser.Evaluate)
		if !ok {
			continue
		}
		sym, ok := eval.Child.(*parser.Symbol)
		if !ok {
			continue
		}
		b.WriteString(text[pos:f.Span().Start])
		b.WriteString(ev.env[sym.FullName()])
		pos = f.Span().End()
	}
	b.WriteString(text[pos:])
	return b.String()
}

// condition decides the element's Condition attribute. Anything the local
// evaluator cannot decide (item references, metadata, functions) defaults
// to true so the declaration stays visible in the model.
func (ev *evalState) condition(el *xml.Element) bool {
	attr := el.Attr("Condition")
	if attr == nil || strings.TrimSpace(attr.Value) == "" {
		return true
	}
	root, err := parser.Parse(attr.Value)
	if err != nil || root.Child == nil {
		return true
	}
	result, known := ev.evalCond(root.Child)
	if !known {
		return true
	}
	return result
}

func (ev *evalState) evalCond(n parser.Node) (bool, bool) {
	switch n := n.(type) {
	case *parser.Compare:
		l, lok := ev.evalString(n.Left)
		r, rok := ev.evalString(n.Right)
		if !lok || !rok {
			return false, false
		}
		eq := strings.EqualFold(l, r)
		if n.Op == parser.OpNotEqual {
			return !eq, true
		}
		return eq, true
	case *parser.Logical:
		l, lok := ev.evalCond(n.Left)
		r, rok := ev.evalCond(n.Right)
		if !lok || !rok {
			return false, false
		}
		if n.Op == parser.OpAnd {
			return l && r, true
		}
		return l || r, true
	case *parser.Not:
		v, ok := ev.evalCond(n.Operand)
		return !v, ok
	default:
		s, ok := ev.evalString(n)
		if !ok {
			return false, false
		}
		if strings.EqualFold(s, "true") {
			return true, true
		}
		if strings.EqualFold(s, "false") {
			return false, true
		}
		return false, false
	}
}

func (ev *evalState) evalString(n parser.Node) (string, bool) {
	switch n := n.(type) {
	case *parser.QuotedString:
		var b strings.Builder
		for _, k := range n.Kids {
			s, ok := ev.evalString(k)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	case *parser.StringContent:
		return n.Text, true
	case *parser.Evaluate:
		if sym, ok := n.Child.(*parser.Symbol); ok {
			return ev.env[sym.FullName()], true
		}
		return "", false
	case *parser.Symbol:
		return n.FullName(), true
	case *parser.EmptyItem:
		return "", true
	default:
		// Item and metadata references need the real engine.
		return "", false
	}
}
