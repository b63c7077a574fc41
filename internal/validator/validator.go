// Package validator produces diagnostics for one project document: expression
// syntax errors, references to unknown properties, shadowed and inactive
// declarations, unresolvable imports and violations of project-level CUE
// constraints.
package validator

import (
	"context"
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/parser"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

type DiagnosticLevel int

const (
	LevelError DiagnosticLevel = iota
	LevelWarning
	LevelInfo
)

type Diagnostic struct {
	Level   DiagnosticLevel
	Code    string
	Message string
	Range   xml.Range
}

type Validator struct {
	Diagnostics []Diagnostic
	Snap        *model.Snapshot
	Schema      *schema.Schema

	allowed map[string]bool
}

func NewValidator(snap *model.Snapshot, sch *schema.Schema) *Validator {
	v := &Validator{Snap: snap, Schema: sch, allowed: map[string]bool{}}
	v.collectPragmas()
	return v
}

// Disable suppresses the given diagnostic codes, on top of any in-file
// pragmas.
func (v *Validator) Disable(codes []string) *Validator {
	for _, c := range codes {
		v.allowed[c] = true
	}
	return v
}

// collectPragmas scans the raw text for suppression pragmas of the form
// msbt:allow(code), usually placed in an XML comment near the top.
func (v *Validator) collectPragmas() {
	if v.Snap == nil || v.Snap.Doc == nil {
		return
	}
	text := v.Snap.Doc.Text
	for i := 0; ; {
		j := strings.Index(text[i:], "msbt:allow(")
		if j < 0 {
			break
		}
		i += j + len("msbt:allow(")
		end := strings.IndexByte(text[i:], ')')
		if end < 0 {
			break
		}
		for _, code := range strings.Split(text[i:i+end], ",") {
			v.allowed[strings.TrimSpace(code)] = true
		}
		i += end
	}
}

func (v *Validator) ValidateDocument(ctx context.Context) []Diagnostic {
	if v.Snap == nil || v.Snap.Doc == nil {
		return nil
	}
	doc := v.Snap.Doc

	for _, e := range doc.Errors {
		v.report(LevelError, "xml_syntax", e.Message, xml.Range{Start: e.Offset, End: e.Offset})
	}

	if doc.Root != nil {
		v.validateElement(ctx, doc.Root)
	}
	v.validateObjects(ctx)
	return v.Diagnostics
}

func (v *Validator) validateElement(ctx context.Context, el *xml.Element) {
	if ctx.Err() != nil {
		return
	}
	for _, attr := range el.Attributes {
		switch attr.Name {
		case "Condition":
			v.checkCondition(attr)
		case "Include", "Exclude", "Remove", "Update", "Project":
			v.checkRawValue(attr.Value, attr.ValueRng)
		}
	}
	if isPropertyDeclaration(el) || isItemMetadata(el) {
		for _, child := range el.Children {
			if t, ok := child.(*xml.Text); ok {
				v.checkRawValue(t.Value, t.Rng)
			}
		}
	}
	for _, child := range el.ChildElements() {
		v.validateElement(ctx, child)
	}
}

// checkCondition parses the attribute as a full condition expression and
// checks every property reference inside it.
func (v *Validator) checkCondition(attr *xml.Attribute) {
	root, err := parser.Parse(attr.Value)
	if err != nil {
		pe, ok := err.(*parser.ParseError)
		if !ok {
			v.report(LevelError, "expression_syntax", err.Error(), attr.ValueRng)
			return
		}
		at := v.valueOffset(attr.Value, attr.ValueRng, pe.Offset)
		v.report(LevelError, "expression_syntax", pe.Error(), xml.Range{Start: at, End: attr.ValueRng.End})
		return
	}
	if root.Child != nil {
		parser.Walk(root.Child, func(n parser.Node) bool {
			if eval, ok := n.(*parser.Evaluate); ok {
				v.checkPropertyReference(eval, attr.Value, attr.ValueRng)
			}
			return true
		})
	}
}

// checkRawValue treats the text as a raw value with embedded references:
// only the fragments have structure, the rest is literal.
func (v *Validator) checkRawValue(text string, rng xml.Range) {
	frags := parser.Fragments(text)
	for _, f := range frags {
		if eval, ok := f.(*parser.Evaluate); ok {
			v.checkPropertyReference(eval, text, rng)
		}
	}
	// A $( opener that no fragment claimed never closed.
	for i := 0; i+1 < len(text); i++ {
		if text[i] != '$' || text[i+1] != '(' {
			continue
		}
		claimed := false
		for _, f := range frags {
			if f.Span().Contains(i) {
				claimed = true
				break
			}
		}
		if !claimed {
			at := v.valueOffset(text, rng, i)
			v.report(LevelError, "unclosed_reference",
				"property reference is never closed", xml.Range{Start: at, End: rng.End})
		}
	}
}

func (v *Validator) checkPropertyReference(eval *parser.Evaluate, text string, rng xml.Range) {
	sym, ok := eval.Child.(*parser.Symbol)
	if !ok {
		return
	}
	name := sym.FullName()
	if strings.HasPrefix(name, "MSBuild") {
		return // reserved, engine-provided
	}
	if len(v.Snap.PropertyDeclarations(name)) > 0 {
		return
	}
	if v.Schema != nil {
		if _, ok := v.Schema.Properties[name]; ok {
			return
		}
	}
	at := v.valueOffset(text, rng, eval.Span().Start)
	end := v.valueOffset(text, rng, eval.Span().End())
	v.report(LevelWarning, "unknown_property",
		fmt.Sprintf("Unknown property '%s': not declared in this file and not a well-known property", name),
		xml.Range{Start: at, End: end})
}

func (v *Validator) validateObjects(ctx context.Context) {
	for _, obj := range v.Snap.Objects {
		if ctx.Err() != nil {
			return
		}
		switch o := obj.(type) {
		case *model.Property:
			if o.IsOverridden {
				v.report(LevelInfo, "overridden_property",
					fmt.Sprintf("Property '%s' is overridden by a later declaration", o.Name()),
					o.XMLRange())
			} else {
				v.checkConstraint(o)
			}
		case *model.UnusedProperty:
			v.report(LevelInfo, "unused_declaration",
				fmt.Sprintf("Property '%s' is never set: its condition evaluates to false", o.Name()),
				o.XMLRange())
		case *model.UnusedItemGroup:
			v.report(LevelInfo, "unused_declaration",
				fmt.Sprintf("Item '%s' is never added: its condition evaluates to false", o.Name()),
				o.XMLRange())
		case *model.UnresolvedImport:
			v.report(LevelWarning, "unresolved_import",
				fmt.Sprintf("Import '%s' could not be resolved", o.Project),
				o.XMLRange())
		case *model.UnresolvedSdkImport:
			v.report(LevelWarning, "unresolved_sdk",
				fmt.Sprintf("SDK '%s' could not be resolved", o.Sdk),
				o.XMLRange())
		}
	}
}

// checkConstraint unifies the property value with the project sidecar's CUE
// constraint for that property, when one exists.
func (v *Validator) checkConstraint(p *model.Property) {
	if v.Schema == nil || v.Schema.Context == nil {
		return
	}
	constraint, ok := v.Schema.PropertyConstraint(p.Name())
	if !ok {
		return
	}
	val := v.Schema.Context.Encode(p.Value)
	if err := constraint.Unify(val).Validate(cue.Concrete(true)); err != nil {
		v.report(LevelError, "property_constraint",
			fmt.Sprintf("Property '%s' value %q violates the project schema: %v", p.Name(), p.Value, err),
			p.XMLRange())
	}
}

// valueOffset maps an offset inside the decoded value back to the document.
// Exact only when decoding did not change lengths; otherwise it degrades to
// the start of the value.
func (v *Validator) valueOffset(decoded string, rng xml.Range, off int) int {
	if len(decoded) == rng.End-rng.Start {
		return rng.Start + off
	}
	return rng.Start
}

func (v *Validator) report(level DiagnosticLevel, code, msg string, rng xml.Range) {
	if v.allowed[code] {
		return
	}
	v.Diagnostics = append(v.Diagnostics, Diagnostic{Level: level, Code: code, Message: msg, Range: rng})
}

func isPropertyDeclaration(el *xml.Element) bool {
	p := el.Parent()
	return p != nil && p.Name == "PropertyGroup"
}

func isItemMetadata(el *xml.Element) bool {
	p := el.Parent()
	return p != nil && p.Parent() != nil && p.Parent().Name == "ItemGroup"
}
