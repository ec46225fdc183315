package git

import (
	"os/exec"
	"testing"
)

func gitAvailable() bool {
	return exec.Command("git", "--version").Run() == nil
}

func initRepo(t *testing.T, branch string) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", branch)
	return dir
}

func TestIsRepository(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not installed")
	}
	inspector := NewInspector()

	dir := initRepo(t, "main")
	isRepo, err := inspector.IsRepository(dir)
	if err != nil {
		t.Fatalf("IsRepository: %v", err)
	}
	if !isRepo {
		t.Error("expected repository to be detected")
	}

	plain := t.TempDir()
	isRepo, err = inspector.IsRepository(plain)
	if err != nil {
		t.Fatalf("IsRepository: %v", err)
	}
	if isRepo {
		t.Error("expected plain directory to not be a repository")
	}
}

func TestDetectBranch(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not installed")
	}
	inspector := NewInspector()

	dir := initRepo(t, "feature/sync")
	if got := inspector.DetectBranch(dir); got != "feature/sync" {
		t.Errorf("DetectBranch = %q, want %q", got, "feature/sync")
	}

	if got := inspector.DetectBranch(t.TempDir()); got != "" {
		t.Errorf("DetectBranch on plain directory = %q, want empty", got)
	}
}
