package formatter

import (
	"strings"
	"testing"
)

func TestReindentsNestedElements(t *testing.T) {
	in := `<Project>
<PropertyGroup>
<Configuration>Debug</Configuration>
</PropertyGroup>
</Project>`
	want := `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`
	if got := Format(in); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestSelfClosingDoesNotIndent(t *testing.T) {
	in := `<Project>
<Target Name="Build" />
<Import Project="x.props" />
</Project>`
	want := `<Project>
  <Target Name="Build" />
  <Import Project="x.props" />
</Project>`
	if got := Format(in); got != want {
		t.Errorf("got:\n%s", got)
	}
}

func TestContentPreserved(t *testing.T) {
	in := `<Project>
      <PropertyGroup Condition="'$(Configuration)' == 'Debug'">
          <Out>bin\$(Configuration)\</Out>
  </PropertyGroup>
</Project>`
	got := Format(in)
	if !strings.Contains(got, `Condition="'$(Configuration)' == 'Debug'"`) {
		t.Error("attribute text changed")
	}
	if !strings.Contains(got, `<Out>bin\$(Configuration)\</Out>`) {
		t.Error("value text changed")
	}
}

func TestCommentsPassThrough(t *testing.T) {
	in := `<Project>
<!-- single line -->
<!--
  multi line keeps
    its own layout
-->
<PropertyGroup>
<A>1</A>
</PropertyGroup>
</Project>`
	got := Format(in)
	if !strings.Contains(got, "  <!-- single line -->") {
		t.Error("single-line comment not indented")
	}
	if !strings.Contains(got, "    its own layout") {
		t.Error("multi-line comment body reflowed")
	}
	if !strings.Contains(got, "    <A>1</A>") {
		t.Error("element after comment misindented")
	}
}

func TestPrologAndBlankLines(t *testing.T) {
	in := `<?xml version="1.0"?>

<Project>
<A>1</A>
</Project>`
	got := Format(in)
	lines := strings.Split(got, "\n")
	if lines[0] != `<?xml version="1.0"?>` {
		t.Errorf("prolog line = %q", lines[0])
	}
	if lines[1] != "" {
		t.Error("blank line dropped")
	}
	if lines[3] != "  <A>1</A>" {
		t.Errorf("element line = %q", lines[3])
	}
}

func TestIdempotent(t *testing.T) {
	in := `<Project>
<PropertyGroup>
<A>1</A>
</PropertyGroup>
<Target Name="Build" />
</Project>`
	once := Format(in)
	if twice := Format(once); twice != once {
		t.Errorf("not idempotent:\n%s\nvs:\n%s", once, twice)
	}
}
