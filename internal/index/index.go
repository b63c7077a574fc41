// Package index maintains the workspace-wide view: a summary of every
// project, props and targets file under the root, so that definition and
// symbol queries can answer across files without re-evaluating them all.
package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/logger"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// projectExtensions are the file types the workspace scan picks up.
var projectExtensions = map[string]bool{
	".csproj":  true,
	".vbproj":  true,
	".fsproj":  true,
	".proj":    true,
	".props":   true,
	".targets": true,
}

// Workspace is the index of all build files under one root.
type Workspace struct {
	Root  string
	Files map[string]*FileSummary
	// Exclude lists extra directory names skipped during scans.
	Exclude []string

	store *Store // optional on-disk cache
	mu    sync.RWMutex
}

// FileSummary is the indexed shape of one file: every declaration with its
// range, but no evaluated state beyond what the declarations themselves say.
type FileSummary struct {
	Path    string         `json:"path"`
	ModTime int64          `json:"mtime"`
	Props   []Declaration  `json:"props,omitempty"`
	Items   []ItemSummary  `json:"items,omitempty"`
	Targets []Declaration  `json:"targets,omitempty"`
	Imports []ImportRecord `json:"imports,omitempty"`
	Sdks    []string       `json:"sdks,omitempty"`
}

type Declaration struct {
	Name  string    `json:"name"`
	Value string    `json:"value,omitempty"`
	Range xml.Range `json:"range"`
}

type ItemSummary struct {
	Type     string    `json:"type"`
	Includes []string  `json:"includes,omitempty"`
	Range    xml.Range `json:"range"`
}

type ImportRecord struct {
	Project  string    `json:"project"`
	Resolved []string  `json:"resolved,omitempty"`
	Range    xml.Range `json:"range"`
}

// Location is one declaration site in the workspace.
type Location struct {
	File  string
	Range xml.Range
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{Root: root, Files: make(map[string]*FileSummary)}
}

// WithStore attaches an on-disk summary cache. Scans will skip files whose
// modification time matches the cached entry.
func (w *Workspace) WithStore(s *Store) *Workspace {
	w.store = s
	return w
}

// Scan walks the root and (re-)indexes every build file. Unchanged files are
// served from the store when one is attached.
func (w *Workspace) Scan(ctx context.Context) error {
	var files []string
	err := filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Dependency and output trees are large and never interesting.
			switch info.Name() {
			case "bin", "obj", "node_modules", ".git":
				return filepath.SkipDir
			}
			for _, ex := range w.Exclude {
				if info.Name() == ex {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if projectExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, f := range files {
		path := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := w.summarize(path)
			if err != nil {
				logger.Warnf("index: skipping %s: %v", path, err)
				return nil
			}
			w.put(sum)
			return nil
		})
	}
	return g.Wait()
}

// summarize indexes one file, preferring the cached summary when fresh.
func (w *Workspace) summarize(path string) (*FileSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime().UnixNano()

	if w.store != nil {
		if cached, ok := w.store.Get(path, mtime); ok {
			return cached, nil
		}
	}

	logger.Debugf("indexing: %s", filepath.Base(path))
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := Summarize(path, string(content))
	sum.ModTime = mtime

	if w.store != nil {
		if err := w.store.Put(sum); err != nil {
			logger.Warnf("index: cache write for %s: %v", path, err)
		}
	}
	return sum, nil
}

// Summarize builds the summary of one file from its text.
func Summarize(path, text string) *FileSummary {
	doc := xml.Parse(text)
	sum := &FileSummary{Path: path}

	local := &evaluator.Local{BaseDir: filepath.Dir(path)}
	eval, err := local.Evaluate(context.Background(), doc)
	if err != nil {
		return sum
	}
	for _, rec := range eval.Properties {
		sum.Props = append(sum.Props, Declaration{
			Name: rec.Name, Value: rec.Value, Range: rec.Node.Rng,
		})
	}
	for _, rec := range eval.Items {
		sum.Items = append(sum.Items, ItemSummary{
			Type: rec.Name, Includes: rec.Includes, Range: rec.Node.Rng,
		})
	}
	for _, rec := range eval.Targets {
		sum.Targets = append(sum.Targets, Declaration{Name: rec.Name, Range: rec.Node.Rng})
	}
	for _, rec := range eval.Imports {
		sum.Imports = append(sum.Imports, ImportRecord{
			Project: rec.EvaluatedProject, Resolved: rec.Resolved, Range: rec.Node.Rng,
		})
	}
	for _, rec := range eval.SdkImports {
		sum.Sdks = append(sum.Sdks, rec.Sdk)
	}
	return sum
}

// UpdateFile re-indexes one file from in-memory text, as the LSP does on
// every change without touching disk.
func (w *Workspace) UpdateFile(path, text string) {
	w.put(Summarize(path, text))
}

// RemoveFile drops a file from the index.
func (w *Workspace) RemoveFile(path string) {
	w.mu.Lock()
	delete(w.Files, path)
	w.mu.Unlock()
	if w.store != nil {
		if err := w.store.Delete(path); err != nil {
			logger.Warnf("index: cache delete for %s: %v", path, err)
		}
	}
}

func (w *Workspace) put(sum *FileSummary) {
	w.mu.Lock()
	w.Files[sum.Path] = sum
	w.mu.Unlock()
}

// File returns the summary for one path, nil when not indexed.
func (w *Workspace) File(path string) *FileSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Files[path]
}

// PropertyDefinitions returns every declaration site of the property across
// the workspace. Name comparison is case-insensitive.
func (w *Workspace) PropertyDefinitions(name string) []Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Location
	for _, sum := range w.Files {
		for _, d := range sum.Props {
			if strings.EqualFold(d.Name, name) {
				out = append(out, Location{File: sum.Path, Range: d.Range})
			}
		}
	}
	return out
}

// TargetDefinitions returns every declaration site of the target.
func (w *Workspace) TargetDefinitions(name string) []Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Location
	for _, sum := range w.Files {
		for _, d := range sum.Targets {
			if strings.EqualFold(d.Name, name) {
				out = append(out, Location{File: sum.Path, Range: d.Range})
			}
		}
	}
	return out
}

// PropertyNames returns the distinct property names declared anywhere in the
// workspace, for completion.
func (w *Workspace) PropertyNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, sum := range w.Files {
		for _, d := range sum.Props {
			if !seen[d.Name] {
				seen[d.Name] = true
				out = append(out, d.Name)
			}
		}
	}
	return out
}

// ItemTypes returns the distinct item types declared in the workspace.
func (w *Workspace) ItemTypes() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, sum := range w.Files {
		for _, it := range sum.Items {
			if !seen[it.Type] {
				seen[it.Type] = true
				out = append(out, it.Type)
			}
		}
	}
	return out
}
