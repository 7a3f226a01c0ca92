package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements all collaborator roles against an OpenAI-compatible
// chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var (
	_ CodeSynthesizer = (*OpenAIClient)(nil)
	_ Analyst         = (*OpenAIClient)(nil)
	_ Judge           = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client from LLM_API_KEY / LLM_API_BASE / LLM_MODEL.
// A custom base URL allows any OpenAI-compatible provider.
func NewOpenAIClient(logger *slog.Logger) (*OpenAIClient, error) {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("LLM_API_BASE")); base != "" {
		cfg.BaseURL = base
	}
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) GenerateCode(ctx context.Context, sc StepContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment Plan: %s\n", sc.PlanTitle)
	fmt.Fprintf(&b, "Current Step: %s\n", sc.StepName)
	fmt.Fprintf(&b, "Description: %s\n", sc.Description)
	if len(sc.Dependencies) > 0 {
		fmt.Fprintf(&b, "Required Dependencies: %s\n", strings.Join(sc.Dependencies, ", "))
	}
	if len(sc.ExistingFiles) > 0 {
		fmt.Fprintf(&b, "Existing Files in Workspace: %s\n", strings.Join(sc.ExistingFiles, ", "))
	}
	if len(sc.Feedback) > 0 {
		fmt.Fprintf(&b, "Operator Feedback to incorporate:\n- %s\n", strings.Join(sc.Feedback, "\n- "))
	}

	prompt := fmt.Sprintf(`You are an expert Python Research Engineer. Your task is to write a Python script to execute the current step of a research experiment.

CONTEXT:
%s
REQUIREMENTS:
1. Write a COMPLETE, executable Python script.
2. The script should perform the task described in the step.
3. If this step produces data, save it to files (e.g., .csv, .json, .png) in the current directory.
4. If this step relies on previous data, assume it exists in the current directory (check if file exists before reading).
5. Include basic error handling (try/except) and print informative messages to stdout.
6. Do NOT use placeholder comments like "# implement logic here". Write the actual logic.
7. If the step is abstract (e.g., "Analyze results"), write code that would perform that analysis on the expected data.
8. RETURN ONLY THE CODE. Use Markdown code blocks if necessary, but I will extract the content.

PYTHON CODE:`, b.String())

	c.logger.Info("generating code", "step", sc.StepName)
	resp, err := c.complete(ctx, "You are an expert Python Research Engineer.", prompt)
	if err != nil {
		return "", err
	}
	return ExtractCode(resp), nil
}

func (c *OpenAIClient) FixCode(ctx context.Context, code, errorText, contextText string, history []AttemptRecord) (string, error) {
	prompt := fmt.Sprintf(`You are an expert Python Research Engineer. The following code execution failed.

CODE TO FIX:
`+"```python\n%s\n```"+`

CURRENT ERROR MESSAGE:
%s

%s
ADDITIONAL CONTEXT:
%s

TASK:
1. Analyze the error and fix the code.
2. Return the COMPLETE fixed code.
3. Do not assume any external fixes (like installing packages) unless you can solve it by importing correctly or using alternatives.
4. If it's a syntax error, fix it. If it's a runtime error, add checks or fix logic.
5. REVIEW THE HISTORY: Avoid repeating mistakes from previous attempts.

FIXED PYTHON CODE:`, code, errorText, historySection(history, "Code", 2000), contextText)

	c.logger.Info("attempting code fix", "history", len(history))
	resp, err := c.complete(ctx, "You are an expert Python Research Engineer.", prompt)
	if err != nil {
		return "", err
	}
	return ExtractCode(resp), nil
}

func (c *OpenAIClient) ResolveEnvironmentError(ctx context.Context, requirements, errorLog string, history []AttemptRecord) (string, error) {
	prompt := fmt.Sprintf(`You are an expert DevOps/Python Engineer. The Docker environment build failed due to dependency issues.

CURRENT REQUIREMENTS.TXT:
`+"```\n%s\n```"+`

ERROR LOG:
%s

%s
TASK:
1. Analyze the error (e.g., version conflict, package not found, build error).
2. Fix the requirements list.
3. Return ONLY the content of the new requirements.txt. NO conversational text.
4. If a package is causing issues and is not critical, remove it or relax the version.
5. REVIEW HISTORY: Do not repeat identical failed requirements.

NEW REQUIREMENTS.TXT CONTENT:`, requirements, errorLog, historySection(history, "Requirements", 0))

	c.logger.Info("resolving environment error", "history", len(history))
	resp, err := c.complete(ctx, "You are an expert DevOps Engineer. Output ONLY valid requirements.txt content.", prompt)
	if err != nil {
		return "", err
	}
	return ExtractRequirements(resp), nil
}

func (c *OpenAIClient) GenerateAnalysisCode(ctx context.Context, planJSON string, existingFiles []string) (string, error) {
	prompt := fmt.Sprintf(`You are a Data Science Expert. Your task is to write a Python script to analyze the results of the experiment.

EXPERIMENT PLAN:
%s

AVAILABLE FILES: %s

REQUIREMENTS:
1. Identify relevant data files (CSVs, JSONs) from the "Available Files" list.
2. Load the data using pandas or json.
3. Generate meaningful visualizations (matplotlib/seaborn) saved as PNG files.
   - Examples: Comparisons, trends, distributions.
   - Ensure titles and labels are clear.
4. Calculate key metrics or summaries.
5. IMPORTANT: The script MUST save a JSON file named quantitative_summary.json containing:
   - "metrics": Dictionary of calculated values.
   - "observations": List of text observations derived programmatically.
   - "generated_charts": List of filenames of charts generated.
6. Return ONLY the Python code.`, planJSON, strings.Join(existingFiles, ", "))

	c.logger.Info("generating analysis code")
	resp, err := c.complete(ctx, "You are a helpful Research Assistant.", prompt)
	if err != nil {
		return "", err
	}
	return ExtractCode(resp), nil
}

func (c *OpenAIClient) SynthesizeConclusion(ctx context.Context, planJSON string, quantitative map[string]any) (map[string]any, error) {
	qb, err := json.MarshalIndent(quantitative, "", "  ")
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`You are a Principal Researcher. Synthesize a final conclusion for the experiment.

EXPERIMENT PLAN:
%s

QUANTITATIVE RESULTS:
%s

TASK:
Generate a conclusion.json object with the following structure:
{
  "title": "Final Conclusion",
  "summary": "A concise executive summary of findings.",
  "key_findings": ["Finding 1", "Finding 2"],
  "evidence": {
    "metrics": { ... key metrics ... },
    "charts": ["list of chart files generated"]
  },
  "recommendation": "Next steps or recommendations based on data."
}

Return ONLY the JSON object.`, planJSON, qb)

	c.logger.Info("synthesizing conclusion")
	resp, err := c.complete(ctx, "You are a helpful Research Assistant.", prompt)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp)
	if m := jsonFenceRE.FindStringSubmatch(resp); len(m) == 2 {
		text = strings.TrimSpace(m[1])
	}
	var conclusion map[string]any
	if err := json.Unmarshal([]byte(text), &conclusion); err != nil {
		return nil, fmt.Errorf("parse conclusion JSON: %w", err)
	}
	return conclusion, nil
}

func (c *OpenAIClient) JudgeExecution(ctx context.Context, contextText, code, output string) (Judgment, error) {
	prompt := fmt.Sprintf(`You are a strict Research Reviewer. A script ran without crashing; decide whether it actually accomplished its task.

TASK CONTEXT:
%s

SCRIPT:
`+"```python\n%s\n```"+`

EXECUTION OUTPUT:
%s

Respond with ONLY a JSON object: {"pass": true|false, "reason": "...", "suggestions": ["..."]}.
Fail the attempt if the output shows silent errors, placeholder results, or the expected artifacts were clearly not produced.`, contextText, code, output)

	resp, err := c.complete(ctx, "You are a strict Research Reviewer. Output ONLY JSON.", prompt)
	if err != nil {
		return Judgment{}, err
	}
	j, ok := ExtractJudgment(resp)
	if !ok {
		return Judgment{}, fmt.Errorf("unparseable judgment: %q", strings.TrimSpace(resp))
	}
	return j, nil
}

func (c *OpenAIClient) JudgeDependencyList(ctx context.Context, manifest, contextText string) (Judgment, error) {
	prompt := fmt.Sprintf(`You are a Python packaging reviewer. Review this requirements.txt for an isolated research container.

EXPERIMENT CONTEXT:
%s

REQUIREMENTS.TXT:
`+"```\n%s\n```"+`

Respond with ONLY a JSON object: {"pass": true|false, "reason": "...", "suggestions": ["replacement requirements line", ...]}.
Fail only for packages that cannot install (typos, standard-library modules, impossible pins).`, contextText, manifest)

	resp, err := c.complete(ctx, "You are a Python packaging reviewer. Output ONLY JSON.", prompt)
	if err != nil {
		return Judgment{}, err
	}
	j, ok := ExtractJudgment(resp)
	if !ok {
		return Judgment{}, fmt.Errorf("unparseable judgment: %q", strings.TrimSpace(resp))
	}
	return j, nil
}

func historySection(history []AttemptRecord, label string, truncate int) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("HISTORY OF PREVIOUS FAILED ATTEMPTS:\n")
	for i, attempt := range history {
		artifact := attempt.Artifact
		if truncate > 0 && len(artifact) > truncate {
			artifact = artifact[:truncate] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "--- Attempt %d ---\n%s:\n```\n%s\n```\nError:\n%s\n\n",
			i+1, label, artifact, attempt.Error)
	}
	return b.String()
}
