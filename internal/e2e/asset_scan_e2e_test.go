package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const csvHeader = "Filename,Asset,width,Signal_type,Appeared in,CIA"

func TestAssetScanE2E_Testdata(t *testing.T) {
	repoRoot := findRepoRoot(t)
	scanBin := buildScanBinary(t, repoRoot)

	work := t.TempDir()
	copyTree(t, filepath.Join(repoRoot, "testdata", "rtl"), work)

	home := t.TempDir()
	env := append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
	)

	runScan(t, scanBin, work, env)
	runScan(t, scanBin, work, env)

	raw, err := os.ReadFile(filepath.Join(work, "asset_list.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	out := string(raw)
	if n := strings.Count(out, csvHeader); n != 1 {
		t.Fatalf("expected one header after two runs, found %d:\n%s", n, out)
	}
	for _, row := range []string{
		"uart_ctrl.v,tx_start,1,Control,if_else,A",
		"uart_ctrl.v,tx_busy,1,Status,assignment(lhs),I",
		"dma_regs.sv,go,1,Control,if_else,A",
		"dma_regs.sv,burst,2,Config,if_else,IA",
	} {
		if n := strings.Count(out, row+"\n"); n != 2 {
			t.Fatalf("expected %q once per run, found %d:\n%s", row, n, out)
		}
	}
	if strings.Contains(out, ",rst_n,") || strings.Contains(out, ",rst_ni,") {
		t.Fatalf("reset signals must never be reported:\n%s", out)
	}
}

func runScan(t *testing.T, scanBin, path string, env []string) {
	t.Helper()

	cmd := exec.Command(scanBin, path)
	cmd.Env = env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("asset-scan failed for %s: %v\nstderr:\n%s", path, err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "records written") {
		t.Fatalf("missing summary in output:\n%s", stdout.String())
	}
}

func buildScanBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binDir := t.TempDir()
	binPath := filepath.Join(binDir, "asset-scan")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/asset-scan")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build asset-scan failed: %v\n%s", err, string(out))
	}
	return binPath
}

func copyTree(t *testing.T, src, dst string) {
	t.Helper()
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", e.Name(), err)
		}
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, "testdata", "rtl", "uart_ctrl.v")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
