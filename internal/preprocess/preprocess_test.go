package preprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInlinesResolvedImport(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "common.props", `<Project>
  <PropertyGroup>
    <Company>Example</Company>
  </PropertyGroup>
</Project>`)
	main := write(t, dir, "app.csproj", `<Project>
  <Import Project="common.props" />
  <PropertyGroup>
    <A>1</A>
  </PropertyGroup>
</Project>`)

	var b strings.Builder
	if err := New().Run(main, &b); err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	out := b.String()

	if strings.Contains(out, `<Import Project="common.props"`) {
		t.Error("resolved import not spliced out")
	}
	if !strings.Contains(out, "<Company>Example</Company>") {
		t.Error("imported content not inlined")
	}
	if !strings.Contains(out, `import "common.props" begin`) {
		t.Error("splice banner missing")
	}
	if !strings.Contains(out, "<A>1</A>") {
		t.Error("surrounding content lost")
	}
	// The imported file's own Project tags must not leak into the output.
	if strings.Count(out, "<Project>") != 1 {
		t.Errorf("root tags leaked:\n%s", out)
	}
}

func TestUnresolvedImportKeptVerbatim(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "app.csproj", `<Project>
  <Import Project="absent.props" />
</Project>`)

	var b strings.Builder
	if err := New().Run(main, &b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), `<Import Project="absent.props" />`) {
		t.Error("unresolvable import must stay in place")
	}
}

func TestNestedImports(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "inner.props", `<Project>
  <PropertyGroup><Deep>yes</Deep></PropertyGroup>
</Project>`)
	write(t, dir, "outer.props", `<Project>
  <Import Project="inner.props" />
</Project>`)
	main := write(t, dir, "app.csproj", `<Project>
  <Import Project="outer.props" />
</Project>`)

	var b strings.Builder
	if err := New().Run(main, &b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "<Deep>yes</Deep>") {
		t.Error("transitive import not inlined")
	}
}

func TestImportCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.props", `<Project>
  <Import Project="b.props" />
</Project>`)
	write(t, dir, "b.props", `<Project>
  <Import Project="a.props" />
</Project>`)
	main := write(t, dir, "app.csproj", `<Project>
  <Import Project="a.props" />
</Project>`)

	var b strings.Builder
	if err := New().Run(main, &b); err != nil {
		t.Fatalf("cycle must terminate cleanly: %v", err)
	}
	if !strings.Contains(b.String(), "import cycle") {
		t.Error("cycle marker missing")
	}
}
