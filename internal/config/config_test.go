package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.Index.CachePath == "" {
		t.Error("default cache path empty")
	}
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	content := `log_level = "debug"

[index]
cache_path = "/tmp/msbt-cache.db"
exclude = ["artifacts"]

[evaluator]
sdk_roots = ["/usr/lib/dotnet/sdk"]

[validator]
disable = ["unused_declaration"]
`
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.CachePath(root) != "/tmp/msbt-cache.db" {
		t.Errorf("cache path = %q", cfg.CachePath(root))
	}
	if len(cfg.Evaluator.SdkRoots) != 1 {
		t.Errorf("sdk roots = %v", cfg.Evaluator.SdkRoots)
	}
	if len(cfg.Validator.Disable) != 1 || cfg.Validator.Disable[0] != "unused_declaration" {
		t.Errorf("disabled codes = %v", cfg.Validator.Disable)
	}
}

func TestRelativeCachePath(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	got := cfg.CachePath(root)
	if !filepath.IsAbs(got) {
		t.Errorf("cache path not anchored: %q", got)
	}
	if filepath.Dir(filepath.Dir(got)) != root {
		t.Errorf("cache path outside root: %q", got)
	}
}

func TestMalformedFileFails(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("log_level = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Error("malformed settings accepted")
	}
}
