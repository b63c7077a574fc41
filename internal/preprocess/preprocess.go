// Package preprocess flattens a project into the single document the build
// engine effectively evaluates: every resolvable import is replaced inline
// with the imported file's content, recursively, with banners marking the
// splice points.
package preprocess

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// maxDepth caps import recursion; deeper chains are almost certainly cycles
// the seen-set missed through symlinks.
const maxDepth = 32

type Preprocessor struct {
	seen map[string]bool
}

func New() *Preprocessor {
	return &Preprocessor{seen: make(map[string]bool)}
}

// Run writes the flattened form of the project at path.
func (p *Preprocessor) Run(path string, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return p.flatten(abs, w, 0, true)
}

func (p *Preprocessor) flatten(path string, w io.Writer, depth int, outermost bool) error {
	if depth > maxDepth {
		return fmt.Errorf("import depth exceeds %d at %s", maxDepth, path)
	}
	if p.seen[path] {
		fmt.Fprintf(w, "<!-- import cycle: %s already inlined -->\n", path)
		return nil
	}
	p.seen[path] = true
	defer delete(p.seen, path)

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(content)
	doc := xml.Parse(text)

	local := &evaluator.Local{BaseDir: filepath.Dir(path)}
	eval, err := local.Evaluate(context.Background(), doc)
	if err != nil {
		// Not evaluable: emit verbatim, nothing to inline.
		_, werr := io.WriteString(w, text)
		return werr
	}

	// Splice regions, one per resolvable import, in document order.
	type splice struct {
		rng     xml.Range
		project string
		target  string
	}
	var splices []splice
	for _, imp := range eval.Imports {
		if len(imp.Resolved) > 0 {
			splices = append(splices, splice{
				rng:     imp.Node.Rng,
				project: imp.Project,
				target:  imp.Resolved[0],
			})
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].rng.Start < splices[j].rng.Start })

	emit := text
	bounds := xml.Range{Start: 0, End: len(text)}
	if !outermost && doc.Root != nil {
		// Nested files contribute only the content between their root
		// element's tags; the outer document already has a root.
		bounds.Start = doc.Root.OpenTagRng.End
		if doc.Root.CloseTagRng.End > 0 {
			bounds.End = doc.Root.CloseTagRng.Start
		}
	}

	pos := bounds.Start
	for _, sp := range splices {
		if sp.rng.Start < pos || sp.rng.End > bounds.End {
			continue
		}
		if _, err := io.WriteString(w, emit[pos:sp.rng.Start]); err != nil {
			return err
		}
		fmt.Fprintf(w, "<!-- import %q begin (%s) -->", sp.project, sp.target)
		if err := p.flatten(sp.target, w, depth+1, false); err != nil {
			return err
		}
		fmt.Fprintf(w, "<!-- import %q end -->", sp.project)
		pos = sp.rng.End
	}
	_, err = io.WriteString(w, emit[pos:bounds.End])
	return err
}
