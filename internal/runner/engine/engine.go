// Package engine is the phase controller: a single-goroutine state machine
// that drives an approved experiment plan through environment setup, data
// preparation, the plan steps, and final analysis. Every attempt is metered
// by the iteration governor and recorded on its own ledger branch; only
// attempts that executed and passed judgment are promoted to the main line.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/autoresearchlab/autolab/internal/llm"
	"github.com/autoresearchlab/autolab/internal/runner/feedback"
	"github.com/autoresearchlab/autolab/internal/runner/governor"
	"github.com/autoresearchlab/autolab/internal/runner/ledger"
	"github.com/autoresearchlab/autolab/internal/runner/plan"
	"github.com/autoresearchlab/autolab/internal/runner/sandbox"
	"github.com/autoresearchlab/autolab/internal/runner/state"
)

// Sandbox is the slice of the execution service the engine uses.
// *sandbox.Docker satisfies it; tests substitute stubs.
type Sandbox interface {
	Available(ctx context.Context) error
	BuildExperimentImage(ctx context.Context, experimentID, workspace string) (string, error)
	Execute(ctx context.Context, image, workspace, scriptName, script string, timeout time.Duration) (sandbox.Result, error)
}

// ErrStepExhausted means a phase ran out of repair attempts.
var ErrStepExhausted = errors.New("retry limit exhausted")

type Options struct {
	Config      Config
	Plan        *plan.Plan
	Sandbox     Sandbox
	Synthesizer llm.CodeSynthesizer
	Analyst     llm.Analyst
	Judge       llm.Judge
	Logger      *slog.Logger
}

type Engine struct {
	cfg     Config
	plan    *plan.Plan
	box     Sandbox
	synth   llm.CodeSynthesizer
	analyst llm.Analyst
	judge   llm.Judge
	logger  *slog.Logger

	store *state.Store
	gov   *governor.Governor
	led   *ledger.Ledger
	queue *feedback.Queue

	// Image tag resolved by the environment setup phase.
	image string
}

func New(opts Options) (*Engine, error) {
	if err := opts.Config.validate(); err != nil {
		return nil, err
	}
	if opts.Plan == nil || len(opts.Plan.Steps) == 0 {
		return nil, fmt.Errorf("engine: plan has no steps")
	}
	if opts.Sandbox == nil || opts.Synthesizer == nil || opts.Analyst == nil || opts.Judge == nil {
		return nil, fmt.Errorf("engine: sandbox and all collaborators are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.Config.Workspace, 0o755); err != nil {
		return nil, err
	}
	store := state.NewStore(opts.Config.Workspace)
	return &Engine{
		cfg:     opts.Config,
		plan:    opts.Plan,
		box:     opts.Sandbox,
		synth:   opts.Synthesizer,
		analyst: opts.Analyst,
		judge:   opts.Judge,
		logger:  logger,
		store:   store,
		gov:     governor.New(store, opts.Config.governorPoll(), logger),
		queue:   feedback.NewQueue(opts.Config.Workspace),
	}, nil
}

// maxTries is the first attempt plus the configured repairs.
func (e *Engine) maxTries() int { return e.cfg.Retry.MaxRepairs + 1 }

// Run drives the full lifecycle. It returns nil when the run reaches the
// completed state; analysis-phase exhaustion degrades the result but does
// not fail the run.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.box.Available(ctx); err != nil {
		e.publishExperiment(state.ExperimentFailed, state.PhaseFailed, "Environment Setup", err.Error())
		return err
	}

	led, err := ledger.Open(e.cfg.Workspace)
	if err != nil {
		e.publishExperiment(state.ExperimentFailed, state.PhaseFailed, "Environment Setup", err.Error())
		return err
	}
	e.led = led

	if err := plan.Save(e.cfg.Workspace, e.plan); err != nil {
		return fmt.Errorf("persist plan snapshot: %w", err)
	}
	if _, err := e.store.CompareAndSwap(func(r *state.Record) {
		r.ExperimentStatus = state.ExperimentRunning
		r.TotalSteps = len(e.plan.Steps)
		if r.MaxIterations == 0 {
			r.MaxIterations = e.cfg.Governor.MaxIterations
		}
	}); err != nil {
		return err
	}

	e.logger.Info("experiment started",
		"experiment_id", e.cfg.ExperimentID,
		"plan", e.plan.Title,
		"steps", len(e.plan.Steps))

	if err := e.environmentSetup(ctx); err != nil {
		return e.fail(ctx, "Environment Setup", err)
	}
	if err := e.dataPreparation(ctx); err != nil {
		return e.fail(ctx, "Data Preparation", err)
	}
	for i, step := range e.plan.Steps {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, step.Name, context.Cause(ctx))
		}
		e.publishStep(i+1, step.Name, state.PhaseRunning, "Executing step")
		if err := e.runPlanStep(ctx, i+1, step); err != nil {
			return e.fail(ctx, step.Name, err)
		}
	}

	details := "Experiment completed."
	if err := e.analysis(ctx); err != nil {
		// Degraded completion: results stand even when analysis could not.
		e.logger.Warn("analysis phase failed, completing without conclusion", "error", err)
		details = fmt.Sprintf("Experiment completed; analysis failed: %v", err)
	}

	e.publishExperiment(state.ExperimentCompleted, state.PhaseCompleted, "Analysis", details)
	e.logger.Info("experiment completed", "experiment_id", e.cfg.ExperimentID)
	return nil
}

// RunAnalysisOnly re-runs the analysis phase against an existing workspace,
// rebuilding the experiment image from the manifest already on disk.
func (e *Engine) RunAnalysisOnly(ctx context.Context) error {
	if err := e.box.Available(ctx); err != nil {
		return err
	}
	led, err := ledger.Open(e.cfg.Workspace)
	if err != nil {
		return err
	}
	e.led = led

	buildCtx, cancel := context.WithTimeout(ctx, e.cfg.buildTimeout())
	image, err := e.box.BuildExperimentImage(buildCtx, e.cfg.ExperimentID, e.cfg.Workspace)
	cancel()
	if err != nil {
		return fmt.Errorf("rebuild experiment image: %w", err)
	}
	e.image = image

	if err := e.analysis(ctx); err != nil {
		e.publishExperiment(state.ExperimentFailed, state.PhaseFailed, "Analysis", err.Error())
		return err
	}
	e.publishExperiment(state.ExperimentCompleted, state.PhaseCompleted, "Analysis", "Analysis completed.")
	return nil
}

func (e *Engine) fail(ctx context.Context, stepName string, err error) error {
	e.publishExperiment(state.ExperimentFailed, state.PhaseFailed, stepName, err.Error())
	e.logger.Error("experiment failed", "step", stepName, "error", err)
	return err
}

// environmentSetup derives the dependency manifest, runs it past the judge,
// and builds the experiment image, repairing the manifest on build failures.
func (e *Engine) environmentSetup(ctx context.Context) error {
	e.publishStep(0, "Environment Setup", state.PhaseRunning, "Preparing dependency manifest")

	manifest := plan.DeriveManifest(e.plan)
	if j, err := e.judge.JudgeDependencyList(ctx, strings.Join(manifest, "\n"), e.plan.Title); err != nil {
		// Fail-open: an unreachable judge never blocks the build.
		e.logger.Warn("dependency judgment unavailable, proceeding", "error", err)
	} else if !j.Pass && len(j.Suggestions) > 0 {
		e.logger.Info("dependency list amended by judge", "reason", j.Reason)
		manifest = plan.FilterManifest(j.Suggestions)
	}
	if err := plan.WriteManifest(e.cfg.Workspace, manifest); err != nil {
		return err
	}

	started := time.Now()
	var history []llm.AttemptRecord
	for try := 1; try <= e.maxTries(); try++ {
		if err := e.gov.IncrementAndCheck(ctx); err != nil {
			return err
		}
		if err := e.led.BeginAttempt(ledger.PhaseBranchLabel("setup", started, try)); err != nil {
			return err
		}

		buildCtx, cancel := context.WithTimeout(ctx, e.cfg.buildTimeout())
		image, err := e.box.BuildExperimentImage(buildCtx, e.cfg.ExperimentID, e.cfg.Workspace)
		cancel()
		if err == nil {
			e.image = image
			if recErr := e.recordAttempt("setup", "Environment Setup", try, "dependency install", ledger.ResultSuccess, ledger.DecisionMerge, manifestText(manifest), "image: "+image); recErr != nil {
				return recErr
			}
			if recErr := e.led.PromoteToMain(); recErr != nil {
				return recErr
			}
			e.publishStep(0, "Environment Setup", state.PhaseCompleted, "Environment ready: "+image)
			e.logger.Info("environment image ready", "image", image, "tries", try)
			return nil
		}

		var buildErr *sandbox.BuildError
		if !errors.As(err, &buildErr) {
			// Substrate-level failure, not a dependency problem.
			return err
		}
		e.logger.Warn("environment build failed", "try", try, "image", buildErr.Image)
		decision := ledger.DecisionRetry
		if try == e.maxTries() {
			decision = ledger.DecisionAbort
		}
		if recErr := e.recordAttempt("setup", "Environment Setup", try, "dependency install", ledger.ResultFailed, decision, manifestText(manifest), buildErr.Log); recErr != nil {
			return recErr
		}
		if try == e.maxTries() {
			break
		}

		history = append(history, llm.AttemptRecord{Artifact: manifestText(manifest), Error: tail(buildErr.Log, 3000)})
		e.publishStep(0, "Environment Setup", state.PhaseFixing, "Repairing dependency manifest")
		fixed, fixErr := e.synth.ResolveEnvironmentError(ctx, manifestText(manifest), tail(buildErr.Log, 3000), history)
		if fixErr != nil {
			// Fail-soft: rebuild from the unmodified manifest.
			e.logger.Warn("dependency repair unavailable, retrying previous manifest", "error", fixErr)
		} else {
			manifest = plan.FilterManifest(strings.Split(fixed, "\n"))
			if err := plan.WriteManifest(e.cfg.Workspace, manifest); err != nil {
				return err
			}
		}
		if err := sleep(ctx, DelayForAttempt(try, e.cfg.Retry.Backoff, "setup:"+e.cfg.ExperimentID)); err != nil {
			return err
		}
	}
	return fmt.Errorf("environment setup: %w after %d tries", ErrStepExhausted, e.maxTries())
}

// dataPreparation runs as a synthetic step ahead of the plan.
func (e *Engine) dataPreparation(ctx context.Context) error {
	e.publishStep(0, "Data Preparation", state.PhaseRunning, "Preparing datasets")
	started := time.Now()
	sc := llm.StepContext{
		PlanTitle:     e.plan.Title,
		StepName:      "Data Preparation",
		Description:   "Download the public datasets the plan requires, or generate synthetic data matching their shape. Save everything to files in the current directory.",
		Dependencies:  datasetNames(e.plan),
		ExistingFiles: e.workspaceFiles(),
	}
	return e.generateExecuteLoop(ctx, attemptSpec{
		phase:      "dataprep",
		name:       "Data Preparation",
		scriptName: "setup_data.py",
		branch: func(try int) string {
			return ledger.PhaseBranchLabel("dataprep", started, try)
		},
		stepCtx: sc,
	})
}

func (e *Engine) runPlanStep(ctx context.Context, ordinal int, step plan.Step) error {
	fb, err := e.drainFeedback()
	if err != nil {
		return err
	}
	sc := llm.StepContext{
		PlanTitle:     e.plan.Title,
		StepName:      step.Name,
		Description:   step.Description,
		Dependencies:  packageNames(step),
		ExistingFiles: e.workspaceFiles(),
		Feedback:      fb,
	}
	return e.generateExecuteLoop(ctx, attemptSpec{
		phase:      fmt.Sprintf("step-%d", step.StepID),
		name:       step.Name,
		ordinal:    ordinal,
		scriptName: fmt.Sprintf("step_%d.py", step.StepID),
		branch: func(try int) string {
			return ledger.StepBranchLabel(step.StepID, step.Name, try)
		},
		stepCtx: sc,
	})
}

type attemptSpec struct {
	phase      string
	name       string
	ordinal    int
	scriptName string
	branch     func(try int) string
	stepCtx    llm.StepContext
}

// generateExecuteLoop is the shared attempt loop: synthesize once, then
// execute/judge/repair until success or exhaustion. Synthesis and repair are
// fail-soft: an unreachable collaborator degrades to a stub artifact or the
// previous code, consuming the attempt, so the retry ceiling stays the sole
// authority on giving up.
func (e *Engine) generateExecuteLoop(ctx context.Context, spec attemptSpec) error {
	code, err := e.synth.GenerateCode(ctx, spec.stepCtx)
	if err != nil {
		e.logger.Warn("code synthesis unavailable, using stub artifact", "step", spec.phase, "error", err)
		code = stubScript(err)
	}

	var history []llm.AttemptRecord
	for try := 1; try <= e.maxTries(); try++ {
		if err := e.gov.IncrementAndCheck(ctx); err != nil {
			return err
		}
		if err := e.led.BeginAttempt(spec.branch(try)); err != nil {
			return err
		}

		scheme := "initial generation"
		if try > 1 {
			scheme = fmt.Sprintf("repair %d", try-1)
		}
		res, err := e.box.Execute(ctx, e.image, e.cfg.Workspace, spec.scriptName, code, e.cfg.execTimeout())
		if err != nil {
			return fmt.Errorf("execute %s: %w", spec.scriptName, err)
		}

		outcome, failText := e.judgeOutcome(ctx, spec, code, res)
		if outcome == ledger.ResultSuccess {
			if err := e.recordCode(spec, try, scheme, ledger.ResultSuccess, ledger.DecisionMerge, code, res.Stdout); err != nil {
				return err
			}
			if err := e.led.PromoteToMain(); err != nil {
				return err
			}
			e.publishStep(spec.ordinal, spec.name, state.PhaseCompleted, "Step completed")
			e.logger.Info("step succeeded", "step", spec.phase, "try", try)
			return nil
		}

		decision := ledger.DecisionRetry
		if try == e.maxTries() {
			decision = ledger.DecisionAbort
		}
		if err := e.recordCode(spec, try, scheme, ledger.ResultFailed, decision, code, failText); err != nil {
			return err
		}
		e.logger.Warn("attempt failed", "step", spec.phase, "try", try, "exit_code", res.ExitCode, "timed_out", res.TimedOut)
		if try == e.maxTries() {
			break
		}

		history = append(history, llm.AttemptRecord{Artifact: code, Error: failText})
		e.publishStep(spec.ordinal, spec.name, state.PhaseFixing, fmt.Sprintf("Fixing after failed attempt %d", try))
		fixed, fixErr := e.synth.FixCode(ctx, code, failText, spec.stepCtx.Description, history)
		if fixErr != nil {
			// Fail-soft: retry the previous artifact rather than giving up early.
			e.logger.Warn("code repair unavailable, retrying previous artifact", "step", spec.phase, "error", fixErr)
		} else {
			code = fixed
		}
		if err := sleep(ctx, DelayForAttempt(try, e.cfg.Retry.Backoff, spec.phase+":"+e.cfg.ExperimentID)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w after %d tries", spec.name, ErrStepExhausted, e.maxTries())
}

// judgeOutcome canonicalizes an execution result. A clean exit still has to
// pass the judge; an unreachable judge counts as a pass so the run is never
// hostage to the reviewer. Rejections carry the exit code and output
// alongside the reason so repair sees the full picture.
func (e *Engine) judgeOutcome(ctx context.Context, spec attemptSpec, code string, res sandbox.Result) (string, string) {
	if res.ExitCode != 0 {
		text := res.Stderr
		if text == "" {
			text = res.Stdout
		}
		return ledger.ResultFailed, fmt.Sprintf("exit code %d\n%s", res.ExitCode, tail(text, 3000))
	}
	j, err := e.judge.JudgeExecution(ctx, spec.stepCtx.Description, code, tail(res.Stdout, 3000))
	if err != nil {
		e.logger.Warn("execution judgment unavailable, accepting clean exit", "step", spec.phase, "error", err)
		return ledger.ResultSuccess, ""
	}
	if j.Pass {
		return ledger.ResultSuccess, ""
	}
	fail := fmt.Sprintf("judge rejected (exit code 0): %s", j.Reason)
	if len(j.Suggestions) > 0 {
		fail += "\nSuggestions: " + strings.Join(j.Suggestions, "; ")
	}
	return ledger.ResultFailed, fail + "\n\nOutput:\n" + tail(res.Stdout, 2000)
}

// analysis runs the final analysis script and synthesizes the conclusion.
// Unlike the plan steps, exhaustion here is reported, not fatal.
func (e *Engine) analysis(ctx context.Context) error {
	e.publishStep(len(e.plan.Steps), "Analysis", state.PhaseRunning, "Generating analysis")
	planJSON, err := json.MarshalIndent(e.plan, "", "  ")
	if err != nil {
		return err
	}

	started := time.Now()
	code, err := e.analyst.GenerateAnalysisCode(ctx, string(planJSON), e.workspaceFiles())
	if err != nil {
		e.logger.Warn("analysis synthesis unavailable, using stub artifact", "error", err)
		code = stubScript(err)
	}

	var history []llm.AttemptRecord
	for try := 1; try <= e.maxTries(); try++ {
		if err := e.gov.IncrementAndCheck(ctx); err != nil {
			return err
		}
		if err := e.led.BeginAttempt(ledger.PhaseBranchLabel("analysis", started, try)); err != nil {
			return err
		}
		res, err := e.box.Execute(ctx, e.image, e.cfg.Workspace, "final_analysis.py", code, e.cfg.execTimeout())
		if err != nil {
			return fmt.Errorf("execute analysis: %w", err)
		}

		failText := ""
		if res.ExitCode != 0 {
			failText = fmt.Sprintf("exit code %d\n%s", res.ExitCode, tail(res.Stderr+res.Stdout, 3000))
		} else if _, statErr := os.Stat(filepath.Join(e.cfg.Workspace, "quantitative_summary.json")); statErr != nil {
			// The summary artifact is the phase's contract.
			failText = "script exited cleanly but did not produce quantitative_summary.json"
		}

		if failText == "" {
			// Second gate: the conclusion must synthesize cleanly and carry no
			// failure markers. Like the summary gate, a rejection here feeds
			// the same repair loop and consumes a retry.
			if concErr := e.synthesizeConclusion(ctx, string(planJSON)); concErr != nil {
				failText = concErr.Error()
			}
		}

		spec := attemptSpec{phase: "analysis", name: "Analysis"}
		if failText == "" {
			if err := e.recordCode(spec, try, "analysis", ledger.ResultSuccess, ledger.DecisionMerge, code, res.Stdout); err != nil {
				return err
			}
			return e.led.PromoteToMain()
		}

		decision := ledger.DecisionRetry
		if try == e.maxTries() {
			decision = ledger.DecisionAbort
		}
		if err := e.recordCode(spec, try, "analysis", ledger.ResultFailed, decision, code, failText); err != nil {
			return err
		}
		if try == e.maxTries() {
			break
		}
		history = append(history, llm.AttemptRecord{Artifact: code, Error: failText})
		fixed, fixErr := e.synth.FixCode(ctx, code, failText, "Final analysis script; must save quantitative_summary.json.", history)
		if fixErr != nil {
			e.logger.Warn("analysis repair unavailable, retrying previous artifact", "error", fixErr)
		} else {
			code = fixed
		}
		if err := sleep(ctx, DelayForAttempt(try, e.cfg.Retry.Backoff, "analysis:"+e.cfg.ExperimentID)); err != nil {
			return err
		}
	}
	return fmt.Errorf("analysis: %w after %d tries", ErrStepExhausted, e.maxTries())
}

var conclusionFailureMarkers = []string{
	"unable to", "could not", "no data", "failed to produce", "insufficient data",
}

func (e *Engine) synthesizeConclusion(ctx context.Context, planJSON string) error {
	b, err := os.ReadFile(filepath.Join(e.cfg.Workspace, "quantitative_summary.json"))
	if err != nil {
		return err
	}
	var quantitative map[string]any
	if err := json.Unmarshal(b, &quantitative); err != nil {
		return fmt.Errorf("decode quantitative_summary.json: %w", err)
	}

	conclusion, err := e.analyst.SynthesizeConclusion(ctx, planJSON, quantitative)
	if err != nil {
		return fmt.Errorf("synthesize conclusion: %w", err)
	}
	if summary, _ := conclusion["summary"].(string); summary != "" {
		lower := strings.ToLower(summary)
		for _, marker := range conclusionFailureMarkers {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("conclusion reports failure: %q", summary)
			}
		}
	}
	if err := state.WriteJSONAtomic(filepath.Join(e.cfg.Workspace, "conclusion.json"), conclusion); err != nil {
		return err
	}
	e.logger.Info("conclusion written", "path", "conclusion.json")
	return nil
}

// drainFeedback consumes pending operator feedback at a step boundary and
// returns the messages for the next synthesis call.
func (e *Engine) drainFeedback() ([]string, error) {
	pending, err := e.queue.Pending()
	if err != nil {
		return nil, err
	}
	var msgs []string
	for _, item := range pending {
		e.logger.Info("incorporating operator feedback", "id", item.ID, "type", item.Type)
		msgs = append(msgs, fmt.Sprintf("[%s] %s", item.Type, item.Message))
		if err := e.queue.MarkProcessed(item.ID, feedback.StatusProcessed); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (e *Engine) recordCode(spec attemptSpec, try int, scheme, result, decision, code, output string) error {
	return e.recordAttempt(spec.phase, spec.name, try, scheme, result, decision, code, output)
}

func (e *Engine) recordAttempt(phase, name string, try int, scheme, result, decision, artifact, output string) error {
	return e.led.Record(name, ledger.Metadata{
		Step:         phase,
		Attempt:      try,
		Plan:         e.plan.Title,
		Scheme:       scheme,
		Result:       result,
		Decision:     decision,
		ArtifactHash: ledger.HashArtifact(artifact),
	}, output)
}

func (e *Engine) publishStep(current int, name string, status state.PhaseStatus, details string) {
	if _, err := e.store.CompareAndSwap(func(r *state.Record) {
		r.ExperimentStatus = state.ExperimentRunning
		r.CurrentStep = current
		r.StepName = name
		r.Status = status
		r.Details = details
	}); err != nil {
		e.logger.Warn("status publish failed", "error", err)
	}
}

func (e *Engine) publishExperiment(exp state.ExperimentStatus, status state.PhaseStatus, name, details string) {
	if _, err := e.store.CompareAndSwap(func(r *state.Record) {
		r.ExperimentStatus = exp
		r.StepName = name
		r.Status = status
		r.Details = details
	}); err != nil {
		e.logger.Warn("status publish failed", "error", err)
	}
}

// workspaceFiles lists top-level workspace files for synthesis context,
// skipping internals.
func (e *Engine) workspaceFiles() []string {
	entries, err := os.ReadDir(e.cfg.Workspace)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch name {
		case "status.json", "user_feedback.json", "execution.log", "Dockerfile.exp", "requirements.txt":
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

func datasetNames(p *plan.Plan) []string {
	set := map[string]bool{}
	for _, s := range p.Steps {
		for _, d := range s.Dependencies {
			if d.Kind == plan.DepDataset {
				set[d.Name] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func packageNames(s plan.Step) []string {
	var out []string
	for _, d := range s.Dependencies {
		if d.Kind == plan.DepPackage {
			out = append(out, d.Name)
		}
	}
	return out
}

// stubScript is the artifact committed when synthesis itself failed: it
// fails loudly in the sandbox so the attempt is recorded like any other
// failure and the repair loop gets a concrete error to work from.
func stubScript(cause error) string {
	return fmt.Sprintf("import sys\nprint(%q, file=sys.stderr)\nsys.exit(1)\n",
		"code synthesis unavailable: "+cause.Error())
}

func manifestText(lines []string) string {
	return strings.Join(lines, "\n")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
