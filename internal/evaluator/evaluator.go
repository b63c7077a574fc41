// Package evaluator defines the contract between the semantic model and the
// build-evaluation engine. The engine itself is an external collaborator:
// given a project document it returns the flat evaluated state (properties,
// items, targets, imports) with back-references to the declaring XML nodes.
// The model never re-evaluates anything; it only consumes these records.
package evaluator

import (
	"context"
	"errors"

	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// ErrEvaluationFailed is returned when a project cannot be evaluated at all
// (invalid XML, unloadable imports). Callers degrade to XML-only queries.
var ErrEvaluationFailed = errors.New("project evaluation failed")

type Evaluator interface {
	Evaluate(ctx context.Context, doc *xml.Document) (*Evaluation, error)
}

// Evaluation is the flat output of one evaluation pass over one document
// snapshot. Records appear in evaluation order, which for a single file is
// document order.
type Evaluation struct {
	Properties []*PropertyRecord
	Items      []*ItemRecord
	Targets    []*TargetRecord
	Imports    []*ImportRecord
	SdkImports []*SdkImportRecord
	Errors     []string
}

// PropertyRecord is one property declaration. A redefinition records the
// declaration it shadowed in Predecessor; the chain always points strictly
// backward in evaluation order.
type PropertyRecord struct {
	Name            string
	Value           string // evaluated value, or the would-be value when the condition failed
	Node            *xml.Element
	ConditionResult bool
	Predecessor     *PropertyRecord
}

// Item is one materialized item of an item group.
type Item struct {
	Include  string
	Metadata map[string]string
}

// ItemRecord is one item-group declaration (one item element such as
// <Compile Include="...">).
type ItemRecord struct {
	Name            string // the item type
	Includes        []string
	Items           []Item
	Node            *xml.Element
	ConditionResult bool
}

type TargetRecord struct {
	Name string
	Node *xml.Element
}

// ImportRecord is a path-based <Import Project="...">. Resolved lists the
// files the import brought in; empty means the import did not resolve.
type ImportRecord struct {
	Project          string // raw attribute text
	EvaluatedProject string
	Condition        string // raw attribute text, empty when unconditioned
	ConditionResult  bool
	Resolved         []string
	Node             *xml.Element
}

// SdkImportRecord is an SDK reference, either the Project element's Sdk
// attribute or an <Import Sdk="...">.
type SdkImportRecord struct {
	Sdk             string
	ConditionResult bool
	Resolved        []string // resolved SDK root paths
	Node            *xml.Element
}
