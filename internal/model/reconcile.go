package model

import (
	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
)

// Classify turns the evaluator's flat record set into semantic objects.
// It is a pure function: the same records always produce the same objects
// in the same order. A record whose effective condition failed becomes the
// unused/unresolved variant; for properties the last still-active
// declaration per name wins and every earlier active one is marked
// overridden, linked through the predecessor chain.
func Classify(eval *evaluator.Evaluation) []Object {
	if eval == nil {
		return nil
	}
	var out []Object

	// Last active declaration per property name decides IsOverridden.
	lastActive := map[string]*evaluator.PropertyRecord{}
	for _, rec := range eval.Properties {
		if rec.ConditionResult {
			lastActive[rec.Name] = rec
		}
	}

	byRecord := map[*evaluator.PropertyRecord]*Property{}
	for _, rec := range eval.Properties {
		if !rec.ConditionResult {
			up := &UnusedProperty{Value: rec.Value, Record: rec}
			up.name, up.node, up.rng = rec.Name, rec.Node, rec.Node.Rng
			out = append(out, up)
			continue
		}
		p := &Property{
			Value:        rec.Value,
			IsOverridden: lastActive[rec.Name] != rec,
			Record:       rec,
		}
		p.name, p.node, p.rng = rec.Name, rec.Node, rec.Node.Rng
		byRecord[rec] = p
		out = append(out, p)
	}
	// Link predecessors once every object exists; records point strictly
	// backward, so every target is already materialized.
	for rec, p := range byRecord {
		if rec.Predecessor != nil {
			p.Predecessor = byRecord[rec.Predecessor]
		}
	}

	for _, rec := range eval.Items {
		if rec.ConditionResult {
			g := &ItemGroup{Includes: rec.Includes, Items: rec.Items, Record: rec}
			g.name, g.node, g.rng = rec.Name, rec.Node, rec.Node.Rng
			out = append(out, g)
		} else {
			g := &UnusedItemGroup{Includes: rec.Includes, Items: rec.Items, Record: rec}
			g.name, g.node, g.rng = rec.Name, rec.Node, rec.Node.Rng
			out = append(out, g)
		}
	}

	for _, rec := range eval.Targets {
		t := &Target{Record: rec}
		t.name, t.node, t.rng = rec.Name, rec.Node, rec.Node.Rng
		out = append(out, t)
	}

	for _, rec := range eval.Imports {
		if rec.ConditionResult && len(rec.Resolved) > 0 {
			im := &Import{
				Project:          rec.Project,
				EvaluatedProject: rec.EvaluatedProject,
				Condition:        rec.Condition,
				Resolved:         rec.Resolved,
				Record:           rec,
			}
			im.name, im.node, im.rng = rec.Project, rec.Node, rec.Node.Rng
			out = append(out, im)
		} else {
			im := &UnresolvedImport{
				Project:          rec.Project,
				EvaluatedProject: rec.EvaluatedProject,
				Condition:        rec.Condition,
				Record:           rec,
			}
			im.name, im.node, im.rng = rec.Project, rec.Node, rec.Node.Rng
			out = append(out, im)
		}
	}

	for _, rec := range eval.SdkImports {
		rng := rec.Node.Rng
		if attr := rec.Node.Attr("Sdk"); attr != nil {
			rng = attr.Rng
		}
		if rec.ConditionResult && len(rec.Resolved) > 0 {
			si := &SdkImport{Sdk: rec.Sdk, Resolved: rec.Resolved, Record: rec}
			si.name, si.node, si.rng = rec.Sdk, rec.Node, rng
			out = append(out, si)
		} else {
			si := &UnresolvedSdkImport{Sdk: rec.Sdk, Record: rec}
			si.name, si.node, si.rng = rec.Sdk, rec.Node, rng
			out = append(out, si)
		}
	}

	return out
}
