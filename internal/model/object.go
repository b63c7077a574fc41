// Package model is the semantic object model: the typed, position-indexed
// view of one evaluated project document. It reconciles the evaluator's flat
// record set against the positioned XML tree so that editor queries can map
// an absolute text position to the build construct declared there.
package model

import (
	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

type Kind int

const (
	KindProperty Kind = iota
	KindUnusedProperty
	KindItemGroup
	KindUnusedItemGroup
	KindTarget
	KindImport
	KindUnresolvedImport
	KindSdkImport
	KindUnresolvedSdkImport
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindUnusedProperty:
		return "unused property"
	case KindItemGroup:
		return "item group"
	case KindUnusedItemGroup:
		return "unused item group"
	case KindTarget:
		return "target"
	case KindImport:
		return "import"
	case KindUnresolvedImport:
		return "unresolved import"
	case KindSdkImport:
		return "SDK import"
	case KindUnresolvedSdkImport:
		return "unresolved SDK import"
	}
	return "unknown"
}

// Object is one semantic build construct. The variant set is closed; each
// object is an immutable snapshot of one evaluation pass, referencing (but
// not owning) its declaring XML node and evaluator record. Identity is the
// declaring XML range, never the name: two same-named properties are two
// objects.
type Object interface {
	Name() string
	Kind() Kind
	XMLRange() xml.Range
	XMLNode() *xml.Element
	isObject()
}

type objectBase struct {
	name string
	node *xml.Element
	// rng is the primary declaration range. Usually the whole declaring
	// element; for an SDK reference declared as an attribute it narrows to
	// the attribute so the rest of the element stays free for other owners.
	rng xml.Range
}

func (o *objectBase) Name() string          { return o.name }
func (o *objectBase) XMLNode() *xml.Element { return o.node }
func (o *objectBase) XMLRange() xml.Range   { return o.rng }
func (o *objectBase) isObject()             {}

// Property is an active property declaration. Shadowed declarations remain
// Property objects with IsOverridden set, linked through Predecessor; the
// chain points strictly backward in evaluation order.
type Property struct {
	objectBase
	Value        string
	IsOverridden bool
	Predecessor  *Property
	Record       *evaluator.PropertyRecord
}

func (p *Property) Kind() Kind { return KindProperty }

// UnusedProperty is a declaration whose condition evaluated false. Value is
// what it would have held.
type UnusedProperty struct {
	objectBase
	Value  string
	Record *evaluator.PropertyRecord
}

func (p *UnusedProperty) Kind() Kind { return KindUnusedProperty }

type ItemGroup struct {
	objectBase
	Includes []string
	Items    []evaluator.Item
	Record   *evaluator.ItemRecord
}

func (g *ItemGroup) Kind() Kind { return KindItemGroup }

// Metadata returns the metadata values of the named key across all items.
func (g *ItemGroup) Metadata(key string) []string {
	var out []string
	for _, it := range g.Items {
		if v, ok := it.Metadata[key]; ok {
			out = append(out, v)
		}
	}
	return out
}

type UnusedItemGroup struct {
	objectBase
	Includes []string
	Items    []evaluator.Item
	Record   *evaluator.ItemRecord
}

func (g *UnusedItemGroup) Kind() Kind { return KindUnusedItemGroup }

type Target struct {
	objectBase
	Record *evaluator.TargetRecord
}

func (t *Target) Kind() Kind { return KindTarget }

type Import struct {
	objectBase
	Project          string
	EvaluatedProject string
	Condition        string
	Resolved         []string
	Record           *evaluator.ImportRecord
}

func (i *Import) Kind() Kind { return KindImport }

type UnresolvedImport struct {
	objectBase
	Project          string
	EvaluatedProject string
	Condition        string
	Record           *evaluator.ImportRecord
}

func (i *UnresolvedImport) Kind() Kind { return KindUnresolvedImport }

type SdkImport struct {
	objectBase
	Sdk      string
	Resolved []string
	Record   *evaluator.SdkImportRecord
}

func (i *SdkImport) Kind() Kind { return KindSdkImport }

type UnresolvedSdkImport struct {
	objectBase
	Sdk    string
	Record *evaluator.SdkImportRecord
}

func (i *UnresolvedSdkImport) Kind() Kind { return KindUnresolvedSdkImport }
