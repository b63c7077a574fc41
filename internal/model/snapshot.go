package model

import (
	"strings"

	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// Snapshot is one immutable reconciliation of evaluated build state against
// a document's source text. Editing never mutates a snapshot; the owner
// builds a fresh one and swaps the reference.
type Snapshot struct {
	Doc     *xml.Document
	Objects []Object

	loc *locator
}

// Build reconciles an evaluation against the positioned document. A nil
// evaluation is the degraded mode: the snapshot still serves XML structure
// queries, just with no semantic objects behind them.
func Build(eval *evaluator.Evaluation, doc *xml.Document) *Snapshot {
	objs := Classify(eval)
	return &Snapshot{Doc: doc, Objects: objs, loc: newLocator(objs)}
}

// Locate maps an absolute text offset to the innermost semantic object
// declared there, or nil when the offset falls outside every declaration.
func (s *Snapshot) Locate(offset int) Object {
	return s.loc.Locate(offset)
}

// LocateXML maps an offset to the innermost XML node, independently of
// whether a semantic object owns it.
func (s *Snapshot) LocateXML(offset int) xml.Node {
	if s.Doc == nil {
		return nil
	}
	return xml.Locate(s.Doc, offset)
}

// Property returns the winning active declaration for the name, nil if the
// name was never actively declared. Name comparison is case-insensitive,
// matching property semantics.
func (s *Snapshot) Property(name string) *Property {
	var last *Property
	for _, obj := range s.Objects {
		if p, ok := obj.(*Property); ok && !p.IsOverridden && strings.EqualFold(p.Name(), name) {
			last = p
		}
	}
	return last
}

// PropertyDeclarations returns every declaration of the name in document
// order, active and unused alike.
func (s *Snapshot) PropertyDeclarations(name string) []Object {
	var out []Object
	for _, obj := range s.Objects {
		switch obj.(type) {
		case *Property, *UnusedProperty:
			if strings.EqualFold(obj.Name(), name) {
				out = append(out, obj)
			}
		}
	}
	return out
}

// ItemGroups returns the active item declarations for the item type.
func (s *Snapshot) ItemGroups(itemType string) []*ItemGroup {
	var out []*ItemGroup
	for _, obj := range s.Objects {
		if g, ok := obj.(*ItemGroup); ok && strings.EqualFold(g.Name(), itemType) {
			out = append(out, g)
		}
	}
	return out
}

// Target returns the target declaration with the given name, nil if absent.
func (s *Snapshot) Target(name string) *Target {
	for _, obj := range s.Objects {
		if t, ok := obj.(*Target); ok && strings.EqualFold(t.Name(), name) {
			return t
		}
	}
	return nil
}
