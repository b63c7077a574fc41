package cache

import (
	"testing"

	"github.com/msbuild-community/msbuild-dev-tools/internal/config"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
)

func newView(t *testing.T) *View {
	t.Helper()
	s := NewSession("test")
	return s.CreateView("v", t.TempDir(), config.Default(), schema.DefaultSchema())
}

func TestUpdateDocumentPublishesNewSnapshot(t *testing.T) {
	v := newView(t)
	before := v.Snapshot()

	doc := v.UpdateDocument("/p/a.csproj", 1,
		`<Project><PropertyGroup><A>1</A></PropertyGroup></Project>`)
	if doc == nil {
		t.Fatal("update discarded")
	}
	after := v.Snapshot()
	if before == after {
		t.Fatal("snapshot not replaced")
	}
	if before.Document("/p/a.csproj") != nil {
		t.Error("old snapshot mutated")
	}
	if after.Document("/p/a.csproj") != doc {
		t.Error("new snapshot missing the document")
	}
	if p := doc.Model.Property("A"); p == nil || p.Value != "1" {
		t.Errorf("document model not built: %v", p)
	}
}

func TestStaleVersionDiscarded(t *testing.T) {
	v := newView(t)
	v.UpdateDocument("/p/a.csproj", 5,
		`<Project><PropertyGroup><A>new</A></PropertyGroup></Project>`)
	doc := v.UpdateDocument("/p/a.csproj", 4,
		`<Project><PropertyGroup><A>old</A></PropertyGroup></Project>`)
	if doc != nil {
		t.Error("stale rebuild published")
	}
	got := v.Snapshot().Document("/p/a.csproj")
	if got.Version != 5 {
		t.Errorf("published version = %d", got.Version)
	}
}

func TestCloseDocument(t *testing.T) {
	v := newView(t)
	v.UpdateDocument("/p/a.csproj", 1, `<Project/>`)
	v.CloseDocument("/p/a.csproj")
	if v.Snapshot().Document("/p/a.csproj") != nil {
		t.Error("closed document still in snapshot")
	}
}

func TestEvaluationFailureDegradesToXMLOnly(t *testing.T) {
	v := newView(t)
	doc := v.UpdateDocument("/p/a.csproj", 1, "no markup at all")
	if doc == nil {
		t.Fatal("update discarded")
	}
	if doc.Model == nil {
		t.Fatal("no model at all")
	}
	if len(doc.Model.Objects) != 0 {
		t.Error("objects without evaluation")
	}
}

func TestViewOfPrefersLongestRoot(t *testing.T) {
	s := NewSession("test")
	outer := s.CreateView("outer", "/ws", config.Default(), schema.DefaultSchema())
	inner := s.CreateView("inner", "/ws/sub", config.Default(), schema.DefaultSchema())

	if got := s.ViewOf("/ws/sub/a.csproj"); got != inner {
		t.Error("nested root not preferred")
	}
	if got := s.ViewOf("/ws/a.csproj"); got != outer {
		t.Error("outer root not matched")
	}
	if got := s.ViewOf("/elsewhere/a.csproj"); got != outer {
		t.Error("fallback view not served")
	}
}

func TestUpdateFeedsWorkspaceIndex(t *testing.T) {
	v := newView(t)
	v.UpdateDocument("/p/a.csproj", 1,
		`<Project><PropertyGroup><Company>X</Company></PropertyGroup></Project>`)
	defs := v.Snapshot().Workspace().PropertyDefinitions("Company")
	if len(defs) != 1 {
		t.Errorf("workspace definitions = %d", len(defs))
	}
}
