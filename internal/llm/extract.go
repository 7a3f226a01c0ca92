package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	pythonFenceRE  = regexp.MustCompile("(?s)```python(.*?)```")
	textFenceRE    = regexp.MustCompile("(?s)```(?:txt|text)?\n(.*?)```")
	genericFenceRE = regexp.MustCompile("(?s)```(?:\\w+)?\n?(.*?)```")
	jsonFenceRE    = regexp.MustCompile("(?s)```(?:json)?\n?(\\{.*?\\})\n?```")
	packageLineRE  = regexp.MustCompile(`^[a-zA-Z0-9]`)
)

// ExtractCode pulls executable code out of a model response. Responses
// usually wrap code in markdown fences; the longest python block wins, then
// the longest generic block, then the raw text as a last resort.
func ExtractCode(response string) string {
	if m := longestMatch(pythonFenceRE, response); m != "" {
		return m
	}
	if m := longestMatch(genericFenceRE, response); m != "" {
		return m
	}
	return strings.TrimSpace(response)
}

// ExtractRequirements pulls a requirements.txt body out of a model response
// and drops any conversational lines: only comments and lines that start
// with a package name survive.
func ExtractRequirements(response string) string {
	content := strings.TrimSpace(response)
	if m := longestMatch(textFenceRE, response); m != "" {
		content = m
	} else if m := longestMatch(genericFenceRE, response); m != "" {
		content = m
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || packageLineRE.MatchString(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ExtractJudgment parses a pass/fail verdict from a model response. Accepts
// a bare or fenced JSON object; anything unparseable fails closed so the
// fail-open policy lives with the caller, not the parser.
func ExtractJudgment(response string) (Judgment, bool) {
	candidates := []string{strings.TrimSpace(response)}
	if m := jsonFenceRE.FindStringSubmatch(response); len(m) == 2 {
		candidates = append([]string{strings.TrimSpace(m[1])}, candidates...)
	}
	for _, c := range candidates {
		var j Judgment
		if err := json.Unmarshal([]byte(c), &j); err == nil {
			return j, true
		}
	}
	return Judgment{}, false
}

func longestMatch(re *regexp.Regexp, s string) string {
	best := ""
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if len(m) == 2 {
			if candidate := strings.TrimSpace(m[1]); len(candidate) > len(best) {
				best = candidate
			}
		}
	}
	return best
}
