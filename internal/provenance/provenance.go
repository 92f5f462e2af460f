// Package provenance sources the optional commit/run_url fields reports
// carry, preferring CI environment variables with a best-effort local git
// fallback for the commit hash.
package provenance

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Commit returns GITHUB_SHA when set, else the local `git rev-parse HEAD`
// output, else "" if neither is available. repoRoot is the directory to run
// git in; pass "" to use the current working directory.
func Commit(repoRoot string) string {
	if sha := os.Getenv("GITHUB_SHA"); sha != "" {
		return sha
	}
	return localGitCommit(repoRoot)
}

func localGitCommit(repoRoot string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	if repoRoot != "" {
		cmd.Dir = repoRoot
	}
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// RunURL returns the GitHub Actions run URL built from GITHUB_SERVER_URL /
// GITHUB_REPOSITORY / GITHUB_RUN_ID when all three are set, else "".
func RunURL() string {
	server := os.Getenv("GITHUB_SERVER_URL")
	repo := os.Getenv("GITHUB_REPOSITORY")
	runID := os.Getenv("GITHUB_RUN_ID")
	if server == "" || repo == "" || runID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, runID)
}
