// Package ledger is the version-controlled attempt history rooted at the
// workspace. Every execution attempt runs on its own branch; only attempts
// judged successful are merged, so the main line never contains code that
// did not run and pass. Failed branches stay behind, unmerged, for audit.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"

	"github.com/autoresearchlab/autolab/internal/runner/gitutil"
)

const (
	MainBranch = "main"

	metadataStart = "METADATA_START"
	metadataEnd   = "METADATA_END"

	// Bound on the captured-output excerpt embedded in commit messages.
	maxOutputExcerpt = 500
)

// Paths that change on every run without carrying experiment content. They
// are kept out of both commits (via .gitignore) and the changed-file lists
// recorded in attempt metadata (via doublestar matching).
var defaultExcludeGlobs = []string{
	"**/__pycache__/**",
	"*.pyc",
	"execution.log",
	".DS_Store",
	"Dockerfile.exp",
	"status.json",
	"user_feedback.json",
}

// Metadata is the structured block embedded in every attempt commit,
// parseable by any external visualizer.
type Metadata struct {
	Step         string   `json:"step"`
	Attempt      int      `json:"attempt"`
	Plan         string   `json:"plan"`
	Scheme       string   `json:"scheme"`
	Result       string   `json:"result"`
	Decision     string   `json:"decision"`
	ArtifactHash string   `json:"artifact_hash,omitempty"`
	ChangedFiles []string `json:"changed_files,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

const (
	ResultSuccess = "Success"
	ResultFailed  = "Failed"

	DecisionMerge = "merge"
	DecisionRetry = "retry"
	DecisionAbort = "abort"
)

type Entry struct {
	SHA      string
	Message  string
	Time     string
	Author   string
	Metadata *Metadata
}

type Ledger struct {
	dir          string
	excludeGlobs []string

	currentBranch string
	baseSHA       string
}

// Open initializes (or reopens) the ledger repository at the workspace root.
// A fresh workspace gets a .gitignore and an initial commit on main.
func Open(workspace string) (*Ledger, error) {
	l := &Ledger{dir: workspace, excludeGlobs: defaultExcludeGlobs}
	if gitutil.IsRepo(workspace) {
		if err := gitutil.Switch(workspace, MainBranch); err != nil {
			return nil, fmt.Errorf("ledger: switch to %s: %w", MainBranch, err)
		}
		return l, nil
	}
	if err := gitutil.Init(workspace, MainBranch); err != nil {
		return nil, fmt.Errorf("ledger: init: %w", err)
	}
	gitignore := strings.Join([]string{
		"__pycache__/", "*.pyc", "execution.log", ".DS_Store",
		"Dockerfile.exp", "status.json", "user_feedback.json",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(workspace, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return nil, err
	}
	if _, err := gitutil.CommitAllowEmpty(workspace, "Initial commit"); err != nil {
		return nil, fmt.Errorf("ledger: initial commit: %w", err)
	}
	return l, nil
}

// BeginAttempt returns to the stable main line and opens a fresh isolated
// branch for one attempt. Labels embed the step identity and try ordinal so
// they are collision-free within a run; a leftover branch from an earlier
// interrupted run is reused only after being discarded.
func (l *Ledger) BeginAttempt(label string) error {
	if err := gitutil.Switch(l.dir, MainBranch); err != nil {
		return fmt.Errorf("ledger: switch to %s: %w", MainBranch, err)
	}
	sha, err := gitutil.HeadSHA(l.dir)
	if err != nil {
		return err
	}
	if gitutil.BranchExists(l.dir, label) {
		label = fmt.Sprintf("%s-%d", label, time.Now().Unix())
	}
	if err := gitutil.CreateAndSwitch(l.dir, label); err != nil {
		return fmt.Errorf("ledger: create branch %s: %w", label, err)
	}
	l.currentBranch = label
	l.baseSHA = sha
	return nil
}

// CurrentBranch names the attempt branch opened by the last BeginAttempt.
func (l *Ledger) CurrentBranch() string { return l.currentBranch }

// Record stages all workspace changes and commits them on the current
// attempt branch with the metadata block and a bounded output excerpt.
// Commits happen even with no file changes so the decision trail is
// complete. name is the human step name for the summary line.
func (l *Ledger) Record(name string, md Metadata, outputExcerpt string) error {
	if l.currentBranch == "" {
		return fmt.Errorf("ledger: Record called before BeginAttempt")
	}
	if md.Timestamp == "" {
		md.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if changed, err := gitutil.ChangedFiles(l.dir, l.baseSHA); err == nil {
		md.ChangedFiles = l.filterExcluded(changed)
	}
	msg, err := FormatMessage(name, md, outputExcerpt)
	if err != nil {
		return err
	}
	if _, err := gitutil.CommitAllowEmpty(l.dir, msg); err != nil {
		return fmt.Errorf("ledger: commit attempt: %w", err)
	}
	return nil
}

// PromoteToMain merges the current attempt branch into main. Called only
// after a Success record; failed branches are simply left behind.
func (l *Ledger) PromoteToMain() error {
	if l.currentBranch == "" {
		return fmt.Errorf("ledger: PromoteToMain called before BeginAttempt")
	}
	if err := gitutil.Switch(l.dir, MainBranch); err != nil {
		return err
	}
	msg := fmt.Sprintf("Promote %s", l.currentBranch)
	if err := gitutil.MergeNoFF(l.dir, l.currentBranch, msg); err != nil {
		return fmt.Errorf("ledger: promote %s: %w", l.currentBranch, err)
	}
	return nil
}

// History lists up to limit commits on the main line, most recent first,
// with any embedded metadata blocks decoded.
func (l *Ledger) History(limit int) ([]Entry, error) {
	raw, err := gitutil.Log(l.dir, MainBranch, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		e := Entry{SHA: r.SHA, Message: r.Message, Time: r.Time, Author: r.Author}
		if md, ok := ParseMetadata(r.Message); ok {
			e.Metadata = &md
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Ledger) filterExcluded(files []string) []string {
	var out []string
	for _, f := range files {
		excluded := false
		for _, glob := range l.excludeGlobs {
			if ok, err := doublestar.Match(glob, f); err == nil && ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, f)
		}
	}
	return out
}

// FormatMessage renders the commit message: a summary line, the delimited
// metadata block, and the bounded output excerpt.
func FormatMessage(name string, md Metadata, outputExcerpt string) (string, error) {
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if name == "" {
		name = md.Step
	}
	fmt.Fprintf(&sb, "attempt(%s): %s try %d (%s)\n\n", md.Step, name, md.Attempt, md.Result)
	sb.WriteString(metadataStart + "\n")
	sb.Write(b)
	sb.WriteString("\n" + metadataEnd + "\n")
	if excerpt := strings.TrimSpace(outputExcerpt); excerpt != "" {
		if len(excerpt) > maxOutputExcerpt {
			excerpt = excerpt[:maxOutputExcerpt] + "..."
		}
		sb.WriteString("\nOUTPUT:\n" + excerpt + "\n")
	}
	return sb.String(), nil
}

var metadataBlockRE = regexp.MustCompile(`(?s)METADATA_START\n(.*?)\nMETADATA_END`)

// ParseMetadata extracts the metadata block from a commit message.
func ParseMetadata(message string) (Metadata, bool) {
	m := metadataBlockRE.FindStringSubmatch(message)
	if len(m) != 2 {
		return Metadata{}, false
	}
	var md Metadata
	if err := json.Unmarshal([]byte(m[1]), &md); err != nil {
		return Metadata{}, false
	}
	return md, true
}

// HashArtifact returns the blake3 hex digest of an artifact's content, as
// recorded in attempt metadata.
func HashArtifact(content string) string {
	sum := blake3.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

var slugRE = regexp.MustCompile(`[^a-z0-9]+`)

// StepBranchLabel builds the per-attempt branch name for a plan step:
// step-<id>-<slug>-try-<n>.
func StepBranchLabel(stepID int, name string, try int) string {
	slug := strings.Trim(slugRE.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "step"
	}
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	return fmt.Sprintf("step-%d-%s-try-%d", stepID, slug, try)
}

// PhaseBranchLabel builds a timestamped branch name for the synthetic
// phases (setup, dataprep, analysis).
func PhaseBranchLabel(phase string, startedAt time.Time, try int) string {
	return fmt.Sprintf("%s-%d-try-%d", phase, startedAt.Unix(), try)
}
