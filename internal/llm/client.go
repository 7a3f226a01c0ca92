// Package llm is the boundary to the language-model collaborators the engine
// delegates to: code synthesis and repair, dependency-list repair, analysis
// and conclusion writing, and pass/fail judgment of execution attempts. The
// engine only sees these interfaces; everything behind them is opaque text
// in, text or structured data out.
package llm

import "context"

// StepContext is everything a synthesis call knows about the work item.
type StepContext struct {
	PlanTitle    string
	StepName     string
	Description  string
	Dependencies []string
	// Existing workspace files, for continuity across steps.
	ExistingFiles []string
	// Drained operator feedback, surfaced as extra context.
	Feedback []string
}

// AttemptRecord is one prior failed attempt, passed as history so repair
// calls avoid repeating mistakes.
type AttemptRecord struct {
	Artifact string
	Error    string
}

type CodeSynthesizer interface {
	// GenerateCode writes a complete executable script for the step.
	GenerateCode(ctx context.Context, sc StepContext) (string, error)

	// FixCode repairs code that failed, given the error text and the history
	// of prior failed attempts.
	FixCode(ctx context.Context, code, errorText, contextText string, history []AttemptRecord) (string, error)

	// ResolveEnvironmentError rewrites a dependency manifest after a build
	// failure, given the raw build log.
	ResolveEnvironmentError(ctx context.Context, requirements, errorLog string, history []AttemptRecord) (string, error)
}

type Analyst interface {
	// GenerateAnalysisCode writes the final analysis script, which must save
	// quantitative_summary.json and charts to the workspace.
	GenerateAnalysisCode(ctx context.Context, planJSON string, existingFiles []string) (string, error)

	// SynthesizeConclusion turns the quantitative summary into a structured
	// conclusion document.
	SynthesizeConclusion(ctx context.Context, planJSON string, quantitative map[string]any) (map[string]any, error)
}

type Judgment struct {
	Pass        bool     `json:"pass"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type Judge interface {
	// JudgeExecution decides whether a successful-looking execution actually
	// accomplished the step.
	JudgeExecution(ctx context.Context, contextText, code, output string) (Judgment, error)

	// JudgeDependencyList reviews a manifest before the environment build.
	JudgeDependencyList(ctx context.Context, manifest, contextText string) (Judgment, error)
}
