package llm

import (
	"strings"
	"testing"
)

func TestExtractCodePrefersLongestPythonBlock(t *testing.T) {
	resp := "Here is a helper:\n```python\nx = 1\n```\nAnd the full script:\n```python\nimport json\nprint(json.dumps({'ok': True}))\n```\nDone."
	got := ExtractCode(resp)
	if !strings.Contains(got, "import json") || strings.Contains(got, "x = 1") {
		t.Fatalf("got %q", got)
	}
}

func TestExtractCodeGenericFence(t *testing.T) {
	resp := "```\nprint('hello')\n```"
	if got := ExtractCode(resp); got != "print('hello')" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractCodeRawFallback(t *testing.T) {
	if got := ExtractCode("  print('raw')  "); got != "print('raw')" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractRequirementsDropsChatter(t *testing.T) {
	resp := "Sure! Here is the fixed file:\n```\n# pinned\nnumpy==1.26.4\npandas\n```\nLet me know if this helps."
	got := ExtractRequirements(resp)
	want := "# pinned\nnumpy==1.26.4\npandas"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractRequirementsUnfenced(t *testing.T) {
	got := ExtractRequirements("numpy\n\nscipy>=1.10\n")
	if got != "numpy\nscipy>=1.10" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJudgment(t *testing.T) {
	j, ok := ExtractJudgment(`{"pass": false, "reason": "no output file", "suggestions": ["save results.csv"]}`)
	if !ok || j.Pass || j.Reason != "no output file" || len(j.Suggestions) != 1 {
		t.Fatalf("j = %+v ok = %v", j, ok)
	}
}

func TestExtractJudgmentFenced(t *testing.T) {
	j, ok := ExtractJudgment("```json\n{\"pass\": true, \"reason\": \"looks good\"}\n```")
	if !ok || !j.Pass {
		t.Fatalf("j = %+v ok = %v", j, ok)
	}
}

func TestExtractJudgmentUnparseable(t *testing.T) {
	if _, ok := ExtractJudgment("I think it passed."); ok {
		t.Fatal("expected parse failure")
	}
}
