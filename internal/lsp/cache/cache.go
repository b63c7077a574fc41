// Package cache holds the server's view of the workspace: one immutable
// snapshot per view, replaced wholesale on every change. Readers load the
// current snapshot without locking; writers rebuild under the view's mutex
// and swap, so a request always sees one consistent state.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/msbuild-community/msbuild-dev-tools/internal/config"
	"github.com/msbuild-community/msbuild-dev-tools/internal/index"
	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
	"github.com/msbuild-community/msbuild-dev-tools/internal/validator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

type Session struct {
	id    string
	views []*View
	mu    sync.Mutex
}

func NewSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) Views() []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views
}

// ViewOf returns the view whose root contains the given path, preferring the
// longest match, falling back to the first view.
func (s *Session) ViewOf(path string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *View
	longest := -1
	for _, v := range s.views {
		if strings.HasPrefix(path, v.root) && len(v.root) > longest {
			longest = len(v.root)
			best = v
		}
	}
	if best != nil {
		return best
	}
	if len(s.views) > 0 {
		return s.views[0]
	}
	return nil
}

func (s *Session) CreateView(id, root string, cfg *config.Config, sch *schema.Schema) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &View{id: id, root: root, session: s}
	v.snapshot.Store(&Snapshot{
		view:      v,
		config:    cfg,
		schema:    sch,
		workspace: index.NewWorkspace(root),
		documents: map[string]*Document{},
	})
	s.views = append(s.views, v)
	return v
}

type View struct {
	id      string
	root    string
	session *Session

	// writers serialize through wmu; readers go straight to the atomic.
	wmu      sync.Mutex
	snapshot atomic.Value // *Snapshot
}

func (v *View) Root() string { return v.root }

func (v *View) Snapshot() *Snapshot {
	return v.snapshot.Load().(*Snapshot)
}

// SetWorkspace publishes a freshly scanned workspace index.
func (v *View) SetWorkspace(w *index.Workspace) {
	v.wmu.Lock()
	defer v.wmu.Unlock()
	snap := v.Snapshot().clone()
	snap.workspace = w
	v.snapshot.Store(snap)
}

// UpdateDocument rebuilds the named document from text and publishes the new
// snapshot. A rebuild for a version older than the one already published is
// discarded, so out-of-order edits never roll the state back. Returns the
// document as published, or nil when discarded.
func (v *View) UpdateDocument(path string, version int, text string) *Document {
	doc := buildDocument(v.Snapshot(), path, version, text)

	v.wmu.Lock()
	defer v.wmu.Unlock()
	snap := v.Snapshot()
	if cur, ok := snap.documents[path]; ok && cur.Version > version {
		return nil
	}
	next := snap.clone()
	next.documents[path] = doc
	v.snapshot.Store(next)

	next.workspace.UpdateFile(path, text)
	return doc
}

// CloseDocument drops the overlay for the path; the on-disk state, if any,
// stays in the workspace index.
func (v *View) CloseDocument(path string) {
	v.wmu.Lock()
	defer v.wmu.Unlock()
	snap := v.Snapshot()
	if _, ok := snap.documents[path]; !ok {
		return
	}
	next := snap.clone()
	delete(next.documents, path)
	v.snapshot.Store(next)
}

// Snapshot is one immutable state of a view. All fields are fixed after
// publication; a change produces a new snapshot.
type Snapshot struct {
	view      *View
	config    *config.Config
	schema    *schema.Schema
	workspace *index.Workspace
	documents map[string]*Document
}

func (s *Snapshot) View() *View                 { return s.view }
func (s *Snapshot) Config() *config.Config      { return s.config }
func (s *Snapshot) Schema() *schema.Schema      { return s.schema }
func (s *Snapshot) Workspace() *index.Workspace { return s.workspace }

func (s *Snapshot) Document(path string) *Document {
	return s.documents[path]
}

// clone copies the snapshot with a fresh document map; the documents
// themselves are immutable and shared.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		view:      s.view,
		config:    s.config,
		schema:    s.schema,
		workspace: s.workspace,
		documents: make(map[string]*Document, len(s.documents)),
	}
	for k, d := range s.documents {
		next.documents[k] = d
	}
	return next
}

// Document is one open file with everything derived from its text.
type Document struct {
	Path        string
	Version     int
	Text        string
	XML         *xml.Document
	Model       *model.Snapshot
	Diagnostics []validator.Diagnostic
}
