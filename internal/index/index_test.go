package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const appProj = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" />
  </ItemGroup>
  <Target Name="Hello" />
</Project>`

const commonProps = `<Project>
  <PropertyGroup>
    <Company>Example</Company>
  </PropertyGroup>
</Project>`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"app/app.csproj":           appProj,
		"build/common.props":       commonProps,
		"bin/generated.csproj":     appProj, // must be skipped
		"docs/readme.txt":          "not a project",
		"other/custom.targets":     `<Project><Target Name="Deploy" /></Project>`,
		"broken/broken.csproj":     `<Project><PropertyGroup><A>1</A>`,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestScanFindsBuildFiles(t *testing.T) {
	root := writeWorkspace(t)
	w := NewWorkspace(root)
	if err := w.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(w.Files) != 4 {
		for p := range w.Files {
			t.Logf("indexed: %s", p)
		}
		t.Fatalf("indexed files = %d, want 4", len(w.Files))
	}
	if w.File(filepath.Join(root, "bin", "generated.csproj")) != nil {
		t.Error("output tree was not skipped")
	}
}

func TestWorkspaceQueries(t *testing.T) {
	root := writeWorkspace(t)
	w := NewWorkspace(root)
	if err := w.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	defs := w.PropertyDefinitions("company")
	if len(defs) != 1 {
		t.Fatalf("Company definitions = %d", len(defs))
	}
	if filepath.Base(defs[0].File) != "common.props" {
		t.Errorf("Company defined in %s", defs[0].File)
	}

	if len(w.TargetDefinitions("Deploy")) != 1 {
		t.Error("Deploy target not found")
	}
	if len(w.TargetDefinitions("Hello")) != 1 {
		t.Error("Hello target not found")
	}

	names := w.PropertyNames()
	if len(names) < 3 {
		t.Errorf("property names = %v", names)
	}
	types := w.ItemTypes()
	if len(types) != 1 || types[0] != "PackageReference" {
		t.Errorf("item types = %v", types)
	}
}

func TestTolerantIndexingOfBrokenFiles(t *testing.T) {
	root := writeWorkspace(t)
	w := NewWorkspace(root)
	if err := w.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	sum := w.File(filepath.Join(root, "broken", "broken.csproj"))
	if sum == nil {
		t.Fatal("broken file not indexed at all")
	}
	if len(sum.Props) != 1 || sum.Props[0].Name != "A" {
		t.Errorf("props of broken file = %v", sum.Props)
	}
}

func TestUpdateAndRemoveFile(t *testing.T) {
	w := NewWorkspace("")
	w.UpdateFile("/virtual/x.csproj",
		`<Project><PropertyGroup><P>1</P></PropertyGroup></Project>`)
	if len(w.PropertyDefinitions("P")) != 1 {
		t.Fatal("in-memory update not indexed")
	}
	w.UpdateFile("/virtual/x.csproj",
		`<Project><PropertyGroup><Q>1</Q></PropertyGroup></Project>`)
	if len(w.PropertyDefinitions("P")) != 0 {
		t.Error("stale declaration survived update")
	}
	w.RemoveFile("/virtual/x.csproj")
	if len(w.PropertyDefinitions("Q")) != 0 {
		t.Error("removed file still indexed")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	sum := Summarize("/p/a.csproj", appProj)
	sum.ModTime = 42
	if err := store.Put(sum); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := store.Get("/p/a.csproj", 42)
	if !ok {
		t.Fatal("fresh entry not served")
	}
	if len(got.Props) != len(sum.Props) || len(got.Targets) != 1 {
		t.Errorf("cached summary differs: %+v", got)
	}

	if _, ok := store.Get("/p/a.csproj", 43); ok {
		t.Error("stale mtime served from cache")
	}

	sum.ModTime = 43
	if err := store.Put(sum); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, ok := store.Get("/p/a.csproj", 43); !ok {
		t.Error("upserted entry not served")
	}

	if err := store.Delete("/p/a.csproj"); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get("/p/a.csproj", 43); ok {
		t.Error("deleted entry served")
	}
}

func TestScanUsesStoreCache(t *testing.T) {
	root := writeWorkspace(t)
	store, err := OpenStore(filepath.Join(root, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	w := NewWorkspace(root).WithStore(store)
	if err := w.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	appPath := filepath.Join(root, "app", "app.csproj")
	info, err := os.Stat(appPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(appPath, info.ModTime().UnixNano()); !ok {
		t.Error("scan did not populate the cache")
	}

	// A second scan over an unchanged tree must serve from the cache and
	// produce the same index.
	w2 := NewWorkspace(root).WithStore(store)
	if err := w2.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w2.Files) != len(w.Files) {
		t.Errorf("cached rescan indexed %d files, first scan %d", len(w2.Files), len(w.Files))
	}
}
