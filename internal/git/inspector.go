package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Inspector reads repository facts for a tracked workspace path.
type Inspector struct{}

// NewInspector creates a new Git inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// IsRepository checks if the given path is within a Git repository
func (i *Inspector) IsRepository(path string) (bool, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--git-dir")
	err := cmd.Run()
	if err != nil {
		// Check if error is because git command not found
		if _, ok := err.(*exec.Error); ok {
			return false, fmt.Errorf("git not found in PATH")
		}
		// Not in a Git repository
		return false, nil
	}
	return true, nil
}

// CurrentBranch returns the branch currently checked out at path. Returns an
// empty string for a detached HEAD.
func (i *Inspector) CurrentBranch(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "branch", "--show-current")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to read current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// DetectBranch returns the branch checked out at path, or an empty string
// when the path is not a Git repository or Git is unavailable. Used to
// prefill the branch of a newly tracked window; failure here is never fatal.
func (i *Inspector) DetectBranch(path string) string {
	isRepo, err := i.IsRepository(path)
	if err != nil || !isRepo {
		return ""
	}
	branch, err := i.CurrentBranch(path)
	if err != nil {
		return ""
	}
	return branch
}
