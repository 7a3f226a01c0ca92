// Package gitutil is thin plumbing over the git binary. The attempt ledger
// is the only consumer; it needs init, branch, switch, commit, merge and log.
package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func runGit(dir string, args ...string) (string, string, error) {
	// Disable git's background auto-maintenance so frequent attempt commits
	// stay deterministic and don't spawn long-running helper processes.
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

func IsRepo(dir string) bool {
	out, _, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// Init creates a repository with an initial branch named branch.
func Init(dir, branch string) error {
	_, _, err := runGit(dir, "init", "-b", branch)
	return err
}

func HeadSHA(dir string) (string, error) {
	out, _, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func CurrentBranch(dir string) (string, error) {
	out, _, err := runGit(dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func BranchExists(dir, branch string) bool {
	_, _, err := runGit(dir, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// CreateAndSwitch creates branch at the current HEAD and switches to it.
func CreateAndSwitch(dir, branch string) error {
	_, _, err := runGit(dir, "switch", "-c", branch)
	return err
}

func Switch(dir, branch string) error {
	_, _, err := runGit(dir, "switch", branch)
	return err
}

func AddAll(dir string) error {
	_, _, err := runGit(dir, "add", "-A")
	return err
}

// CommitAllowEmpty stages everything and commits, tolerating an empty tree so
// a decision trail exists even for attempts that changed no files.
func CommitAllowEmpty(dir, message string) (string, error) {
	if err := AddAll(dir); err != nil {
		return "", err
	}
	_, _, err := runGit(dir, "commit", "--allow-empty", "-m", message)
	if err != nil {
		// If identity is missing, retry once with an explicit fallback committer
		// identity (without mutating repo config).
		if strings.Contains(err.Error(), "Author identity unknown") ||
			strings.Contains(err.Error(), "Please tell me who you are") ||
			strings.Contains(err.Error(), "unable to auto-detect email address") {
			_, _, err = runGit(
				dir,
				"-c", "user.name=autolab-runner",
				"-c", "user.email=autolab-runner@local",
				"commit", "--allow-empty", "-m", message,
			)
		}
		if err != nil {
			return "", err
		}
	}
	return HeadSHA(dir)
}

// MergeNoFF merges otherRef into the currently checked out branch with an
// explicit merge commit. Used for promote-on-success so the main line records
// which attempt branch landed.
func MergeNoFF(dir, otherRef, message string) error {
	_, _, err := runGit(dir, "merge", "--no-ff", "-m", message, otherRef)
	if err != nil && (strings.Contains(err.Error(), "Author identity unknown") ||
		strings.Contains(err.Error(), "Please tell me who you are") ||
		strings.Contains(err.Error(), "unable to auto-detect email address")) {
		_, _, err = runGit(
			dir,
			"-c", "user.name=autolab-runner",
			"-c", "user.email=autolab-runner@local",
			"merge", "--no-ff", "-m", message, otherRef,
		)
	}
	return err
}

// StatusPorcelain reports uncommitted changes; empty output means clean.
func StatusPorcelain(dir string) (string, error) {
	out, _, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return out, nil
}

// ChangedFiles returns paths that differ between baseRef and the working tree
// including untracked files.
func ChangedFiles(dir, baseRef string) ([]string, error) {
	out, _, err := runGit(dir, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, err
	}
	untracked, _, err := runGit(dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out+"\n"+untracked, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return files, nil
}

type LogEntry struct {
	SHA     string
	Author  string
	Time    string
	Message string
}

// Log returns up to limit commits reachable from ref, most recent first.
// The full commit message body is preserved so embedded metadata blocks
// survive round-trips.
func Log(dir, ref string, limit int) ([]LogEntry, error) {
	const sep = "\x1e"
	const fieldSep = "\x1f"
	args := []string{
		"log",
		fmt.Sprintf("--max-count=%d", limit),
		"--format=" + strings.Join([]string{"%H", "%an", "%aI", "%B"}, fieldSep) + sep,
		ref,
	}
	out, _, err := runGit(dir, args...)
	if err != nil {
		return nil, err
	}
	var entries []LogEntry
	for _, record := range strings.Split(out, sep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 4)
		if len(fields) != 4 {
			continue
		}
		entries = append(entries, LogEntry{
			SHA:     fields[0],
			Author:  fields[1],
			Time:    fields[2],
			Message: strings.TrimSpace(fields[3]),
		})
	}
	return entries, nil
}
