package validator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

func validate(t *testing.T, text string, sch *schema.Schema) []Diagnostic {
	t.Helper()
	doc := xml.Parse(text)
	eval, err := (&evaluator.Local{}).Evaluate(context.Background(), doc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	snap := model.Build(eval, doc)
	if sch == nil {
		sch = schema.DefaultSchema()
	}
	return NewValidator(snap, sch).ValidateDocument(context.Background())
}

func find(diags []Diagnostic, code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func TestConditionSyntaxError(t *testing.T) {
	text := `<Project>
  <PropertyGroup>
    <A Condition="'x' == ">1</A>
  </PropertyGroup>
</Project>`
	diags := find(validate(t, text, nil), "expression_syntax")
	if len(diags) != 1 {
		t.Fatalf("syntax diagnostics = %d", len(diags))
	}
	d := diags[0]
	if d.Level != LevelError {
		t.Error("syntax problems must be errors")
	}
	valueStart := strings.Index(text, "'x' == ")
	if d.Range.Start < valueStart {
		t.Errorf("diagnostic at %d, value starts at %d", d.Range.Start, valueStart)
	}
}

func TestValidConditionProducesNoSyntaxError(t *testing.T) {
	diags := validate(t, `<Project>
  <PropertyGroup>
    <A Condition="'$(Configuration)' == 'Debug'">1</A>
  </PropertyGroup>
</Project>`, nil)
	if got := find(diags, "expression_syntax"); len(got) != 0 {
		t.Errorf("unexpected syntax diagnostics: %v", got)
	}
}

func TestUnknownPropertyReference(t *testing.T) {
	diags := validate(t, `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
    <Out>bin\$(Configuraton)\</Out>
  </PropertyGroup>
</Project>`, nil)
	got := find(diags, "unknown_property")
	if len(got) != 1 {
		t.Fatalf("unknown property diagnostics = %d: %v", len(got), got)
	}
	if !strings.Contains(got[0].Message, "Configuraton") {
		t.Errorf("message = %q", got[0].Message)
	}
}

func TestKnownReferencesAccepted(t *testing.T) {
	diags := validate(t, `<Project>
  <PropertyGroup>
    <Out>$(MSBuildProjectDirectory)\$(TargetFramework)\</Out>
  </PropertyGroup>
</Project>`, nil)
	if got := find(diags, "unknown_property"); len(got) != 0 {
		t.Errorf("reserved and well-known names flagged: %v", got)
	}
}

func TestUnclosedReference(t *testing.T) {
	diags := validate(t, `<Project>
  <PropertyGroup>
    <Out>bin\$(Configuration\x</Out>
  </PropertyGroup>
</Project>`, nil)
	if got := find(diags, "unclosed_reference"); len(got) != 1 {
		t.Errorf("unclosed reference diagnostics = %d", len(got))
	}
}

func TestOverriddenAndUnusedDeclarations(t *testing.T) {
	diags := validate(t, `<Project>
  <PropertyGroup>
    <P>1</P>
    <P>2</P>
    <Q Condition="false">x</Q>
  </PropertyGroup>
</Project>`, nil)
	if got := find(diags, "overridden_property"); len(got) != 1 {
		t.Errorf("overridden diagnostics = %d", len(got))
	}
	if got := find(diags, "unused_declaration"); len(got) != 1 {
		t.Errorf("unused diagnostics = %d", len(got))
	}
}

func TestUnresolvedImportAndSdk(t *testing.T) {
	diags := validate(t, `<Project Sdk="Microsoft.NET.Sdk">
  <Import Project="nope.props" />
</Project>`, nil)
	if got := find(diags, "unresolved_import"); len(got) != 1 {
		t.Errorf("unresolved import diagnostics = %d", len(got))
	}
	if got := find(diags, "unresolved_sdk"); len(got) != 1 {
		t.Errorf("unresolved sdk diagnostics = %d", len(got))
	}
}

func TestSuppressionPragma(t *testing.T) {
	diags := validate(t, `<!-- msbt:allow(unresolved_import, unresolved_sdk) -->
<Project Sdk="Microsoft.NET.Sdk">
  <Import Project="nope.props" />
</Project>`, nil)
	if got := find(diags, "unresolved_import"); len(got) != 0 {
		t.Errorf("suppressed code still reported: %v", got)
	}
	if got := find(diags, "unresolved_sdk"); len(got) != 0 {
		t.Errorf("suppressed code still reported: %v", got)
	}
}

func TestCueConstraint(t *testing.T) {
	root := t.TempDir()
	sidecar := `#Properties: {
	Configuration: "Debug" | "Release"
}`
	if err := os.WriteFile(filepath.Join(root, schema.CueSidecarName), []byte(sidecar), 0o644); err != nil {
		t.Fatal(err)
	}
	sch := schema.LoadFullSchema(root)
	if sch.Context == nil {
		t.Fatal("CUE sidecar not compiled")
	}

	diags := validate(t, `<Project>
  <PropertyGroup>
    <Configuration>Prod</Configuration>
  </PropertyGroup>
</Project>`, sch)
	if got := find(diags, "property_constraint"); len(got) != 1 {
		t.Fatalf("constraint diagnostics = %d: %v", len(got), diags)
	}

	diags = validate(t, `<Project>
  <PropertyGroup>
    <Configuration>Release</Configuration>
  </PropertyGroup>
</Project>`, sch)
	if got := find(diags, "property_constraint"); len(got) != 0 {
		t.Errorf("valid value flagged: %v", got)
	}
}
