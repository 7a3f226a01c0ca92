package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autoresearchlab/autolab/internal/llm"
	"github.com/autoresearchlab/autolab/internal/logging"
	"github.com/autoresearchlab/autolab/internal/runner/feedback"
	"github.com/autoresearchlab/autolab/internal/runner/ledger"
	"github.com/autoresearchlab/autolab/internal/runner/plan"
	"github.com/autoresearchlab/autolab/internal/runner/sandbox"
	"github.com/autoresearchlab/autolab/internal/runner/state"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// stubBox stands in for the docker sandbox. It materializes scripts into the
// workspace like the real one so ledger commits see the files, and pops
// scripted results per script name (default: clean exit).
type stubBox struct {
	mu        sync.Mutex
	availErr  error
	buildErrs []error
	buildN    int
	results   map[string][]sandbox.Result
	execLog   []string
	onExec    func(workspace, scriptName string)
}

func (b *stubBox) Available(ctx context.Context) error { return b.availErr }

func (b *stubBox) BuildExperimentImage(ctx context.Context, experimentID, workspace string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.buildN < len(b.buildErrs) {
		err = b.buildErrs[b.buildN]
	}
	b.buildN++
	if err != nil {
		return "", err
	}
	return "autoresearchlab/exp_" + strings.ToLower(experimentID), nil
}

func (b *stubBox) Execute(ctx context.Context, image, workspace, scriptName, script string, timeout time.Duration) (sandbox.Result, error) {
	if err := os.WriteFile(filepath.Join(workspace, scriptName), []byte(script), 0o644); err != nil {
		return sandbox.Result{}, err
	}
	b.mu.Lock()
	b.execLog = append(b.execLog, scriptName)
	var res sandbox.Result
	if queued := b.results[scriptName]; len(queued) > 0 {
		res = queued[0]
		b.results[scriptName] = queued[1:]
	} else {
		res = sandbox.Result{ExitCode: 0, Stdout: "ok"}
	}
	onExec := b.onExec
	b.mu.Unlock()
	if onExec != nil {
		onExec(workspace, scriptName)
	}
	return res, nil
}

type stubSynth struct {
	mu       sync.Mutex
	code     string
	genErr   error
	fixErr   error
	fixCalls int
	lastHist []llm.AttemptRecord

	resolveCalls int
	resolved     string

	contexts []llm.StepContext
}

func (s *stubSynth) GenerateCode(ctx context.Context, sc llm.StepContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = append(s.contexts, sc)
	return s.code, s.genErr
}

func (s *stubSynth) FixCode(ctx context.Context, code, errorText, contextText string, history []llm.AttemptRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixCalls++
	s.lastHist = history
	if s.fixErr != nil {
		return "", s.fixErr
	}
	return fmt.Sprintf("%s # fix %d", code, s.fixCalls), nil
}

func (s *stubSynth) ResolveEnvironmentError(ctx context.Context, requirements, errorLog string, history []llm.AttemptRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	return s.resolved, nil
}

type stubAnalyst struct {
	mu sync.Mutex
	// summaries are consumed one per conclusion call; when exhausted (or
	// empty) a passing summary is returned.
	summaries []string
	calls     int
}

func (a *stubAnalyst) GenerateAnalysisCode(ctx context.Context, planJSON string, existingFiles []string) (string, error) {
	return "print('analysis')", nil
}

func (a *stubAnalyst) SynthesizeConclusion(ctx context.Context, planJSON string, quantitative map[string]any) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	summary := "The hypothesis held across all runs."
	if len(a.summaries) > 0 {
		summary = a.summaries[0]
		a.summaries = a.summaries[1:]
	}
	return map[string]any{"title": "Final Conclusion", "summary": summary}, nil
}

type stubJudge struct {
	mu           sync.Mutex
	rejectWhen   string // reject first clean exit whose context contains this
	rejected     bool
	judgeErr     error
	depJudgment  llm.Judgment
	depJudgeErr  error
	depCallCount int
}

func (j *stubJudge) JudgeExecution(ctx context.Context, contextText, code, output string) (llm.Judgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.judgeErr != nil {
		return llm.Judgment{}, j.judgeErr
	}
	if j.rejectWhen != "" && !j.rejected && strings.Contains(contextText, j.rejectWhen) {
		j.rejected = true
		return llm.Judgment{Pass: false, Reason: "output shows placeholder results", Suggestions: []string{"save real metrics"}}, nil
	}
	return llm.Judgment{Pass: true, Reason: "accomplished"}, nil
}

func (j *stubJudge) JudgeDependencyList(ctx context.Context, manifest, contextText string) (llm.Judgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.depCallCount++
	if j.depJudgeErr != nil {
		return llm.Judgment{}, j.depJudgeErr
	}
	if j.depJudgment.Reason == "" && !j.depJudgment.Pass {
		return llm.Judgment{Pass: true}, nil
	}
	return j.depJudgment, nil
}

func testPlan() *plan.Plan {
	return &plan.Plan{
		Title: "Optimizer comparison",
		Steps: []plan.Step{
			{StepID: 1, Name: "Compute baseline", Description: "Compute the baseline metrics and save baseline.csv.",
				Dependencies: []plan.Dependency{{Name: "numpy", Kind: plan.DepPackage, Status: plan.DepAutoInstallable}}},
			{StepID: 2, Name: "Compare variants", Description: "Train the variant configurations and save results.csv."},
		},
	}
}

type harness struct {
	eng     *Engine
	box     *stubBox
	synth   *stubSynth
	judge   *stubJudge
	analyst *stubAnalyst
	store   *state.Store
	dir     string
}

func newHarness(t *testing.T, mutate func(*Config, *stubBox, *stubSynth, *stubJudge)) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workspace = dir
	cfg.ExperimentID = "TESTRUN"
	cfg.Retry.Backoff.InitialDelayMS = 0
	cfg.Governor.MaxIterations = 0
	cfg.Governor.PollIntervalMS = 5

	box := &stubBox{results: map[string][]sandbox.Result{}}
	// Default: the analysis script produces its contract artifact.
	box.onExec = func(workspace, scriptName string) {
		if scriptName == "final_analysis.py" {
			_ = os.WriteFile(filepath.Join(workspace, "quantitative_summary.json"),
				[]byte(`{"metrics": {"accuracy": 0.91}, "observations": [], "generated_charts": []}`), 0o644)
		}
	}
	synth := &stubSynth{code: "print('step')", resolved: "numpy\nscipy"}
	judge := &stubJudge{}
	analyst := &stubAnalyst{}
	if mutate != nil {
		mutate(&cfg, box, synth, judge)
	}

	eng, err := New(Options{
		Config:      cfg,
		Plan:        testPlan(),
		Sandbox:     box,
		Synthesizer: synth,
		Analyst:     analyst,
		Judge:       judge,
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{eng: eng, box: box, synth: synth, judge: judge, analyst: analyst, store: state.NewStore(dir), dir: dir}
}

func mainMetadata(t *testing.T, dir string) []ledger.Metadata {
	t.Helper()
	led, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	entries, err := led.History(100)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var mds []ledger.Metadata
	for _, e := range entries {
		if e.Metadata != nil {
			mds = append(mds, *e.Metadata)
		}
	}
	return mds
}

func TestRunCompletesCleanPlan(t *testing.T) {
	requireGit(t)
	h := newHarness(t, nil)

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExperimentStatus != state.ExperimentCompleted {
		t.Fatalf("experiment_status = %q, details = %q", rec.ExperimentStatus, rec.Details)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "conclusion.json")); err != nil {
		t.Fatalf("conclusion.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "plan.json")); err != nil {
		t.Fatalf("plan.json: %v", err)
	}

	// setup, dataprep, two steps, analysis: all promoted, all successful.
	mds := mainMetadata(t, h.dir)
	if len(mds) != 5 {
		t.Fatalf("promoted attempts = %d, want 5: %+v", len(mds), mds)
	}
	for _, md := range mds {
		if md.Result != ledger.ResultSuccess || md.Decision != ledger.DecisionMerge {
			t.Fatalf("non-success on main: %+v", md)
		}
	}
	want := []string{"setup_data.py", "step_1.py", "step_2.py", "final_analysis.py"}
	if len(h.box.execLog) != len(want) {
		t.Fatalf("execLog = %v", h.box.execLog)
	}
	for i := range want {
		if h.box.execLog[i] != want[i] {
			t.Fatalf("execLog = %v", h.box.execLog)
		}
	}
}

func TestStepRepairedAfterFailures(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		box.results["step_1.py"] = []sandbox.Result{
			{ExitCode: 1, Stderr: "NameError: name 'pd' is not defined"},
			{ExitCode: 1, Stderr: "FileNotFoundError: data.csv"},
		}
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.synth.fixCalls != 2 {
		t.Fatalf("fixCalls = %d, want 2", h.synth.fixCalls)
	}
	if len(h.synth.lastHist) != 2 {
		t.Fatalf("history len = %d, want 2", len(h.synth.lastHist))
	}
	if !strings.Contains(h.synth.lastHist[0].Error, "NameError") {
		t.Fatalf("history[0] = %+v", h.synth.lastHist[0])
	}

	var step1 *ledger.Metadata
	for _, md := range mainMetadata(t, h.dir) {
		if md.Step == "step-1" {
			md := md
			step1 = &md
		}
	}
	if step1 == nil {
		t.Fatal("step-1 not promoted")
	}
	if step1.Attempt != 3 || step1.Result != ledger.ResultSuccess {
		t.Fatalf("step-1 metadata = %+v", step1)
	}
}

func TestStepExhaustionFailsRun(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		box.results["step_1.py"] = []sandbox.Result{
			{ExitCode: 1, Stderr: "boom"}, {ExitCode: 1, Stderr: "boom"},
			{ExitCode: 1, Stderr: "boom"}, {ExitCode: 1, Stderr: "boom"},
		}
	})

	err := h.eng.Run(context.Background())
	if !errors.Is(err, ErrStepExhausted) {
		t.Fatalf("err = %v, want ErrStepExhausted", err)
	}
	if h.synth.fixCalls != 3 {
		t.Fatalf("fixCalls = %d, want 3", h.synth.fixCalls)
	}

	rec, err := h.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExperimentStatus != state.ExperimentFailed || rec.Status != state.PhaseFailed {
		t.Fatalf("record = %+v", rec)
	}

	// Nothing from the failed step reached main; step 2 never ran.
	for _, md := range mainMetadata(t, h.dir) {
		if md.Step == "step-1" || md.Step == "step-2" {
			t.Fatalf("unexpected promotion: %+v", md)
		}
	}
	for _, script := range h.box.execLog {
		if script == "step_2.py" {
			t.Fatal("step 2 executed after step 1 exhaustion")
		}
	}
}

func TestJudgeRejectionRoutesToRepair(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		judge.rejectWhen = "baseline"
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.synth.fixCalls != 1 {
		t.Fatalf("fixCalls = %d, want 1", h.synth.fixCalls)
	}
	if len(h.synth.lastHist) != 1 || !strings.Contains(h.synth.lastHist[0].Error, "judge rejected") {
		t.Fatalf("history = %+v", h.synth.lastHist)
	}
	if !strings.Contains(h.synth.lastHist[0].Error, "exit code 0") {
		t.Fatalf("rejection lost the exit code: %q", h.synth.lastHist[0].Error)
	}
}

func TestJudgeOutageFailsOpen(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		judge.judgeErr = errors.New("upstream 503")
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.synth.fixCalls != 0 {
		t.Fatalf("fixCalls = %d, want 0", h.synth.fixCalls)
	}
	rec, _ := h.store.Load()
	if rec.ExperimentStatus != state.ExperimentCompleted {
		t.Fatalf("experiment_status = %q", rec.ExperimentStatus)
	}
}

func TestSynthesisOutageIsFailSoft(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		synth.genErr = errors.New("upstream 500")
		synth.fixErr = errors.New("upstream 500")
		// The stub artifact fails loudly every time.
		box.results["setup_data.py"] = []sandbox.Result{
			{ExitCode: 1, Stderr: "code synthesis unavailable"}, {ExitCode: 1, Stderr: "code synthesis unavailable"},
			{ExitCode: 1, Stderr: "code synthesis unavailable"}, {ExitCode: 1, Stderr: "code synthesis unavailable"},
		}
	})

	err := h.eng.Run(context.Background())
	if !errors.Is(err, ErrStepExhausted) {
		t.Fatalf("err = %v, want ErrStepExhausted (outage must consume attempts, not abort)", err)
	}
	// The full retry budget was spent even though every repair call failed.
	if h.synth.fixCalls != 3 {
		t.Fatalf("fixCalls = %d, want 3", h.synth.fixCalls)
	}
	count := 0
	for _, script := range h.box.execLog {
		if script == "setup_data.py" {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("setup_data.py executed %d times, want 4", count)
	}
}

func TestEnvironmentBuildRepaired(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		box.buildErrs = []error{
			&sandbox.BuildError{Image: "autoresearchlab/exp_testrun", Log: "ERROR: No matching distribution found for torch==99.0", Err: errors.New("exit status 1")},
		}
		synth.resolved = "numpy\ntorch"
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.synth.resolveCalls != 1 {
		t.Fatalf("resolveCalls = %d, want 1", h.synth.resolveCalls)
	}
	b, err := os.ReadFile(filepath.Join(h.dir, "requirements.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "numpy\ntorch\n" {
		t.Fatalf("requirements.txt = %q", b)
	}

	var setup *ledger.Metadata
	for _, md := range mainMetadata(t, h.dir) {
		if md.Step == "setup" {
			md := md
			setup = &md
		}
	}
	if setup == nil || setup.Attempt != 2 || setup.Result != ledger.ResultSuccess {
		t.Fatalf("setup metadata = %+v", setup)
	}
}

func TestDependencyJudgeAmendsManifest(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		judge.depJudgment = llm.Judgment{
			Pass:        false,
			Reason:      "os is a standard-library module",
			Suggestions: []string{"numpy==1.26.4", "pandas", "matplotlib", "seaborn"},
		}
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines, err := plan.ReadManifest(h.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 4 || lines[0] != "numpy==1.26.4" {
		t.Fatalf("manifest = %v", lines)
	}
}

func TestAnalysisExhaustionDoesNotFailRun(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		box.onExec = nil // analysis never produces quantitative_summary.json
	})

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rec, _ := h.store.Load()
	if rec.ExperimentStatus != state.ExperimentCompleted {
		t.Fatalf("experiment_status = %q", rec.ExperimentStatus)
	}
	if !strings.Contains(rec.Details, "analysis failed") {
		t.Fatalf("details = %q", rec.Details)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "conclusion.json")); !os.IsNotExist(err) {
		t.Fatal("conclusion.json written despite analysis failure")
	}
}

func TestConclusionFailureMarkerConsumesRetry(t *testing.T) {
	requireGit(t)
	h := newHarness(t, nil)
	h.analyst.summaries = []string{"Insufficient data to support any conclusion."}

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The marker-bearing conclusion consumed one retry and went through repair.
	if h.synth.fixCalls != 1 {
		t.Fatalf("fixCalls = %d, want 1", h.synth.fixCalls)
	}
	if len(h.synth.lastHist) != 1 || !strings.Contains(h.synth.lastHist[0].Error, "conclusion reports failure") {
		t.Fatalf("history = %+v", h.synth.lastHist)
	}
	if h.analyst.calls != 2 {
		t.Fatalf("conclusion calls = %d, want 2", h.analyst.calls)
	}

	b, err := os.ReadFile(filepath.Join(h.dir, "conclusion.json"))
	if err != nil {
		t.Fatalf("conclusion.json: %v", err)
	}
	if !strings.Contains(string(b), "hypothesis held") {
		t.Fatalf("conclusion.json = %s", b)
	}

	var analysis *ledger.Metadata
	for _, md := range mainMetadata(t, h.dir) {
		if md.Step == "analysis" {
			md := md
			analysis = &md
		}
	}
	if analysis == nil || analysis.Attempt != 2 || analysis.Result != ledger.ResultSuccess {
		t.Fatalf("analysis metadata = %+v", analysis)
	}
}

func TestConclusionFailureMarkerExhaustion(t *testing.T) {
	requireGit(t)
	h := newHarness(t, nil)
	h.analyst.summaries = []string{
		"We could not reproduce the effect.", "We could not reproduce the effect.",
		"We could not reproduce the effect.", "We could not reproduce the effect.",
	}

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rec, _ := h.store.Load()
	if rec.ExperimentStatus != state.ExperimentCompleted || !strings.Contains(rec.Details, "analysis failed") {
		t.Fatalf("record = %+v", rec)
	}
	if h.synth.fixCalls != 3 {
		t.Fatalf("fixCalls = %d, want 3", h.synth.fixCalls)
	}
	// A rejected conclusion is never written, and the attempt never promoted.
	if _, err := os.Stat(filepath.Join(h.dir, "conclusion.json")); !os.IsNotExist(err) {
		t.Fatalf("conclusion.json should not exist: %v", err)
	}
	for _, md := range mainMetadata(t, h.dir) {
		if md.Step == "analysis" {
			t.Fatalf("rejected analysis promoted to main: %+v", md)
		}
	}
}

func TestFeedbackDrainedIntoStepContext(t *testing.T) {
	requireGit(t)
	h := newHarness(t, nil)

	q := feedback.NewQueue(h.dir)
	item, err := q.Add(feedback.TypeCorrection, "Use a fixed random seed of 42")
	if err != nil {
		t.Fatal(err)
	}

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// contexts[0] is data preparation; contexts[1] is step 1.
	if len(h.synth.contexts) < 2 {
		t.Fatalf("contexts = %d", len(h.synth.contexts))
	}
	sc := h.synth.contexts[1]
	if len(sc.Feedback) != 1 || !strings.Contains(sc.Feedback[0], "fixed random seed") {
		t.Fatalf("feedback = %v", sc.Feedback)
	}

	pending, err := q.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("item %s still pending", item.ID)
	}
}

func TestIterationCeilingPausesUntilRaised(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		cfg.Governor.MaxIterations = 2
	})

	sawPause := make(chan struct{})
	go func() {
		for {
			rec, err := h.store.Load()
			if err == nil && rec.Status == state.PhasePaused {
				close(sawPause)
				_, _ = h.store.CompareAndSwap(func(r *state.Record) {
					r.MaxIterations = 100
				})
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	done := make(chan error, 1)
	go func() { done <- h.eng.Run(context.Background()) }()

	select {
	case <-sawPause:
	case <-time.After(10 * time.Second):
		t.Fatal("never paused")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after resume: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("did not resume after ceiling raise")
	}

	rec, _ := h.store.Load()
	if rec.ExperimentStatus != state.ExperimentCompleted {
		t.Fatalf("experiment_status = %q", rec.ExperimentStatus)
	}
	if rec.CurrentIterations < 3 {
		t.Fatalf("current_iterations = %d", rec.CurrentIterations)
	}
}

func TestUnavailableSandboxFailsFast(t *testing.T) {
	requireGit(t)
	h := newHarness(t, func(cfg *Config, box *stubBox, synth *stubSynth, judge *stubJudge) {
		box.availErr = fmt.Errorf("%w: no daemon", sandbox.ErrServiceUnavailable)
	})

	err := h.eng.Run(context.Background())
	if !errors.Is(err, sandbox.ErrServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	rec, _ := h.store.Load()
	if rec.ExperimentStatus != state.ExperimentFailed {
		t.Fatalf("experiment_status = %q", rec.ExperimentStatus)
	}
	if len(h.box.execLog) != 0 {
		t.Fatalf("executed despite unavailable sandbox: %v", h.box.execLog)
	}
}

func TestWorkspaceFilesSkipsRunnerInternals(t *testing.T) {
	h := newHarness(t, nil)
	for _, name := range []string{"results.csv", "requirements.txt", "status.json", "execution.log", "plan.json"} {
		if err := os.WriteFile(filepath.Join(h.dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got := h.eng.workspaceFiles()
	want := []string{"plan.json", "results.csv"}
	if len(got) != len(want) {
		t.Fatalf("workspaceFiles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("workspaceFiles = %v, want %v", got, want)
		}
	}
}

func TestNewRejectsEmptyPlan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = t.TempDir()
	_, err := New(Options{
		Config:      cfg,
		Plan:        &plan.Plan{Title: "empty"},
		Sandbox:     &stubBox{},
		Synthesizer: &stubSynth{},
		Analyst:     &stubAnalyst{},
		Judge:       &stubJudge{},
		Logger:      logging.Discard(),
	})
	if err == nil {
		t.Fatal("expected error for empty plan")
	}
}
