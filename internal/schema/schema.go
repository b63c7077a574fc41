// Package schema carries the reference knowledge about well-known build
// constructs: property, item and target documentation shipped with the tool,
// merged with per-project sidecar files. A project can additionally constrain
// property values with a CUE sidecar; those constraints are checked by the
// validator.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed msbuild.json
var defaultSchemaJSON []byte

// CueSidecarName is the per-project constraints file looked up next to the
// project root.
const CueSidecarName = ".msbuild_schema.cue"

// JSONSidecarName is the per-project documentation overlay.
const JSONSidecarName = ".msbuild_schema.json"

type Schema struct {
	Properties map[string]PropertyDef `json:"properties"`
	Items      map[string]ItemDef     `json:"items"`
	Targets    map[string]TargetDef   `json:"targets"`

	// Context and Constraints are set when a CUE sidecar was compiled.
	// Constraints is the whole sidecar value; property constraints live
	// under #Properties.<Name>.
	Context     *cue.Context `json:"-"`
	Constraints cue.Value    `json:"-"`
}

type PropertyDef struct {
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	// DefaultFrom names the property whose value seeds this one when it is
	// not declared, e.g. PackageId from AssemblyName.
	DefaultFrom string `json:"defaultFrom,omitempty"`
}

type ItemDef struct {
	Description string   `json:"description"`
	Metadata    []string `json:"metadata,omitempty"`
}

type TargetDef struct {
	Description string `json:"description"`
}

func NewSchema() *Schema {
	return &Schema{
		Properties: make(map[string]PropertyDef),
		Items:      make(map[string]ItemDef),
		Targets:    make(map[string]TargetDef),
	}
}

func LoadSchema(path string) (*Schema, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Schema
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %v", err)
	}
	return &s, nil
}

// DefaultSchema returns the built-in embedded schema.
func DefaultSchema() *Schema {
	var s Schema
	if err := json.Unmarshal(defaultSchemaJSON, &s); err != nil {
		panic(fmt.Sprintf("failed to parse default embedded schema: %v", err))
	}
	if s.Properties == nil {
		s.Properties = make(map[string]PropertyDef)
	}
	if s.Items == nil {
		s.Items = make(map[string]ItemDef)
	}
	if s.Targets == nil {
		s.Targets = make(map[string]TargetDef)
	}
	return &s
}

// Merge adds definitions from other; entries for the same name are replaced.
func (s *Schema) Merge(other *Schema) {
	if other == nil {
		return
	}
	for name, def := range other.Properties {
		s.Properties[name] = def
	}
	for name, def := range other.Items {
		s.Items[name] = def
	}
	for name, def := range other.Targets {
		s.Targets[name] = def
	}
}

// PropertyConstraint returns the CUE constraint for the property, if the
// project sidecar declares one under #Properties.
func (s *Schema) PropertyConstraint(name string) (cue.Value, bool) {
	if s.Context == nil {
		return cue.Value{}, false
	}
	v := s.Constraints.LookupPath(cue.ParsePath(fmt.Sprintf("#Properties.%s", name)))
	if v.Err() != nil {
		return cue.Value{}, false
	}
	return v, true
}

// LoadFullSchema layers the embedded defaults, the system overlays and the
// project sidecars. Missing files are simply skipped.
func LoadFullSchema(projectRoot string) *Schema {
	s := DefaultSchema()

	sysPaths := []string{
		"/usr/share/msbt/msbuild_schema.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		sysPaths = append(sysPaths, filepath.Join(home, ".local/share/msbt/msbuild_schema.json"))
	}
	for _, path := range sysPaths {
		if sysSchema, err := LoadSchema(path); err == nil {
			s.Merge(sysSchema)
		}
	}

	if projectRoot != "" {
		if projSchema, err := LoadSchema(filepath.Join(projectRoot, JSONSidecarName)); err == nil {
			s.Merge(projSchema)
		}
		if src, err := os.ReadFile(filepath.Join(projectRoot, CueSidecarName)); err == nil {
			ctx := cuecontext.New()
			val := ctx.CompileBytes(src, cue.Filename(CueSidecarName))
			if val.Err() == nil {
				s.Context = ctx
				s.Constraints = val
			}
		}
	}

	return s
}
