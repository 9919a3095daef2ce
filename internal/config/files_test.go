package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveFilesFindsVerilogSources(t *testing.T) {
	root := t.TempDir()
	core := filepath.Join(root, "rtl", "core.v")
	pkg := filepath.Join(root, "rtl", "pkg.SV")
	notes := filepath.Join(root, "rtl", "notes.txt")
	writeFile(t, core, "module core; endmodule")
	writeFile(t, pkg, "module pkg; endmodule")
	writeFile(t, notes, "not verilog")

	files, err := DefaultConfig().ResolveFiles(root)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if !containsPath(files, core) || !containsPath(files, pkg) {
		t.Fatalf("expected %s and %s, got %v", core, pkg, files)
	}
}

func TestResolveFilesHonorsExcludes(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "rtl", "keep.v")
	writeFile(t, keep, "")
	writeFile(t, filepath.Join(root, "sim", "tb_top.sv"), "")
	writeFile(t, filepath.Join(root, "rtl", "old_alu.v"), "")
	writeFile(t, filepath.Join(root, ".git", "hooks.v"), "")

	cfg := DefaultConfig()
	cfg.Files.Exclude = append(cfg.Files.Exclude, "sim", "old_*.v")

	files, err := cfg.ResolveFiles(root)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(files) != 1 || files[0] != keep {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func TestResolveFilesEmptyDirectory(t *testing.T) {
	files, err := DefaultConfig().ResolveFiles(t.TempDir())
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestResolveFilesMissingRoot(t *testing.T) {
	if _, err := DefaultConfig().ResolveFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestInvalidExcludePattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Files.Exclude = []string{"[unterminated"}
	if _, err := cfg.FileMatcher(); err == nil {
		t.Fatalf("expected compile error")
	}
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}
