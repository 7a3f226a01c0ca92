package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoresearchlab/autolab/internal/llm"
	"github.com/autoresearchlab/autolab/internal/logging"
	"github.com/autoresearchlab/autolab/internal/runner/engine"
	"github.com/autoresearchlab/autolab/internal/runner/feedback"
	"github.com/autoresearchlab/autolab/internal/runner/plan"
	"github.com/autoresearchlab/autolab/internal/runner/sandbox"
	"github.com/autoresearchlab/autolab/internal/runner/state"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "analyze":
		analyzeCmd(os.Args[2:])
	case "status":
		statusCmd(os.Args[2:])
	case "feedback":
		feedbackCmd(os.Args[2:])
	case "resume":
		resumeCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  autolab run --plan <plan.json> [--config <run.yaml>] [--workspace <dir>] [--max-iterations <n>] [--debug]")
	fmt.Fprintln(os.Stderr, "  autolab analyze [--config <run.yaml>] [--workspace <dir>]")
	fmt.Fprintln(os.Stderr, "  autolab status --workspace <dir>")
	fmt.Fprintln(os.Stderr, "  autolab feedback --workspace <dir> --type <risk|correction|suggestion> -m <message>")
	fmt.Fprintln(os.Stderr, "  autolab resume --workspace <dir> --max-iterations <n>")
}

// loadEngineConfig merges --config over defaults, then applies the explicit
// flag overrides.
func loadEngineConfig(configPath, workspace string, maxIterations int) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		loaded, err := engine.LoadConfig(configPath)
		if err != nil {
			return engine.Config{}, err
		}
		cfg = loaded
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	if maxIterations > 0 {
		cfg.Governor.MaxIterations = maxIterations
	}
	if cfg.Workspace == "" {
		return engine.Config{}, fmt.Errorf("a workspace is required (--workspace or config)")
	}
	return cfg, nil
}

func buildEngine(cfg engine.Config, p *plan.Plan) (*engine.Engine, func(), error) {
	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		return nil, nil, err
	}
	logger, closer, err := logging.ForWorkspace(cfg.Workspace)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = closer.Close() }

	client, err := llm.NewOpenAIClient(logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	box := sandbox.NewDocker()
	if cfg.Sandbox.Binary != "" {
		box.Binary = cfg.Sandbox.Binary
	}
	if cfg.Sandbox.BaseImage != "" {
		box.BaseImage = cfg.Sandbox.BaseImage
	}
	if cfg.Sandbox.Memory != "" {
		box.MemoryLimit = cfg.Sandbox.Memory
	}
	if cfg.Sandbox.CPUs != "" {
		box.CPUs = cfg.Sandbox.CPUs
	}

	eng, err := engine.New(engine.Options{
		Config:      cfg,
		Plan:        p,
		Sandbox:     box,
		Synthesizer: client,
		Analyst:     client,
		Judge:       client,
		Logger:      logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

func runCmd(args []string) {
	var planPath, configPath, workspace string
	var maxIterations int
	var debug bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--plan":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--plan requires a value")
				os.Exit(1)
			}
			planPath = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--workspace":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--workspace requires a value")
				os.Exit(1)
			}
			workspace = args[i]
		case "--max-iterations":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-iterations requires a value")
				os.Exit(1)
			}
			if _, err := fmt.Sscanf(args[i], "%d", &maxIterations); err != nil {
				fmt.Fprintf(os.Stderr, "invalid --max-iterations: %s\n", args[i])
				os.Exit(1)
			}
		case "--debug":
			debug = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if planPath == "" {
		usage()
		os.Exit(1)
	}
	if debug {
		logging.SetDebug()
	}

	raw, err := os.ReadFile(planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read plan: %v\n", err)
		os.Exit(1)
	}
	p, err := plan.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid plan: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadEngineConfig(configPath, workspace, maxIterations)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	eng, cleanup, err := buildEngine(cfg, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := eng.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("experiment completed")
}

func analyzeCmd(args []string) {
	var configPath, workspace string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--workspace":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--workspace requires a value")
				os.Exit(1)
			}
			workspace = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	cfg, err := loadEngineConfig(configPath, workspace, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	p, err := plan.Load(cfg.Workspace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load plan snapshot: %v\n", err)
		os.Exit(1)
	}

	eng, cleanup, err := buildEngine(cfg, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := eng.RunAnalysisOnly(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("analysis completed")
}

func statusCmd(args []string) {
	var workspace string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workspace":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--workspace requires a value")
				os.Exit(1)
			}
			workspace = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if workspace == "" {
		usage()
		os.Exit(1)
	}

	rec, err := state.NewStore(workspace).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load status: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if rec.LastUpdated > 0 {
		fmt.Fprintf(os.Stderr, "last updated: %s\n",
			time.Unix(int64(rec.LastUpdated), 0).Format(time.RFC3339))
	}
}

// resumeCmd raises the iteration ceiling of a paused run. The engine polls
// status.json and picks the change up on its own; no signal is needed.
func resumeCmd(args []string) {
	var workspace string
	var maxIterations int

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workspace":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--workspace requires a value")
				os.Exit(1)
			}
			workspace = args[i]
		case "--max-iterations":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-iterations requires a value")
				os.Exit(1)
			}
			if _, err := fmt.Sscanf(args[i], "%d", &maxIterations); err != nil {
				fmt.Fprintf(os.Stderr, "invalid --max-iterations: %s\n", args[i])
				os.Exit(1)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if workspace == "" || maxIterations <= 0 {
		usage()
		os.Exit(1)
	}

	rec, err := state.NewStore(workspace).CompareAndSwap(func(r *state.Record) {
		r.MaxIterations = maxIterations
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "update status: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("max_iterations set to %d (current: %d)\n", rec.MaxIterations, rec.CurrentIterations)
}

func feedbackCmd(args []string) {
	var workspace, message string
	kind := feedback.TypeSuggestion

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workspace":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--workspace requires a value")
				os.Exit(1)
			}
			workspace = args[i]
		case "--type":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--type requires a value")
				os.Exit(1)
			}
			switch args[i] {
			case "risk":
				kind = feedback.TypeRisk
			case "correction":
				kind = feedback.TypeCorrection
			case "suggestion":
				kind = feedback.TypeSuggestion
			default:
				fmt.Fprintf(os.Stderr, "unknown feedback type: %s\n", args[i])
				os.Exit(1)
			}
		case "-m", "--message":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "-m requires a value")
				os.Exit(1)
			}
			message = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if workspace == "" || message == "" {
		usage()
		os.Exit(1)
	}

	item, err := feedback.NewQueue(workspace).Add(kind, message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "add feedback: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("queued %s feedback %s\n", item.Type, item.ID)
}
