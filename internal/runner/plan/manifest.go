package plan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Python standard library modules that design collaborators habitually list
// as installable packages. Installing them either fails or shadows the real
// module, so they are dropped from the manifest.
var stdlibModules = map[string]bool{
	"abc": true, "argparse": true, "array": true, "asyncio": true,
	"base64": true, "binascii": true, "bisect": true, "builtins": true,
	"calendar": true, "cmath": true, "collections": true, "contextlib": true,
	"copy": true, "csv": true, "datetime": true, "decimal": true,
	"difflib": true, "enum": true, "errno": true, "fnmatch": true,
	"functools": true, "gc": true, "glob": true, "hashlib": true,
	"heapq": true, "hmac": true, "html": true, "http": true,
	"importlib": true, "inspect": true, "io": true, "itertools": true,
	"json": true, "logging": true, "math": true, "mmap": true,
	"multiprocessing": true, "netrc": true, "numbers": true, "operator": true,
	"os": true, "pathlib": true, "pickle": true, "platform": true,
	"pprint": true, "profile": true, "pstats": true, "queue": true,
	"random": true, "re": true, "select": true, "shlex": true,
	"shutil": true, "signal": true, "socket": true, "sqlite3": true,
	"ssl": true, "stat": true, "statistics": true, "string": true,
	"struct": true, "subprocess": true, "sys": true, "tempfile": true,
	"textwrap": true, "threading": true, "time": true, "timeit": true,
	"tokenize": true, "traceback": true, "types": true, "typing": true,
	"unittest": true, "urllib": true, "uuid": true, "warnings": true,
	"weakref": true, "xml": true, "zipfile": true, "zlib": true,
}

// Phrases the collaborator sometimes emits instead of a package name.
var hallucinatedNames = map[string]bool{
	"typing module":           true,
	"typing_module":           true,
	"python standard library": true,
	"standard library":        true,
	"built-in":                true,
}

// The analysis phase always needs these regardless of what the plan lists.
var analysisPackages = []string{"pandas", "matplotlib", "seaborn"}

// DeriveManifest collects auto-installable package dependencies across all
// steps, filters stdlib and hallucinated names, and appends the standard
// analysis libraries. The result is sorted so repeated derivation is
// byte-identical.
func DeriveManifest(p *Plan) []string {
	set := map[string]bool{}
	for _, step := range p.Steps {
		for _, dep := range step.Dependencies {
			if dep.Kind != DepPackage || dep.Status != DepAutoInstallable {
				continue
			}
			if name := filterPackageName(dep.Name); name != "" {
				set[name] = true
			}
		}
	}
	for _, name := range analysisPackages {
		set[name] = true
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FilterManifest re-applies the stdlib/hallucination filter to an existing
// manifest (e.g. one rewritten by a repair call). Idempotent: filtering an
// already-filtered manifest returns it unchanged.
func FilterManifest(lines []string) []string {
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			out = append(out, line)
			continue
		}
		// Strip version specifiers for the filter check only.
		name := line
		for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<", "["} {
			if i := strings.Index(name, sep); i >= 0 {
				name = name[:i]
			}
		}
		if filterPackageName(name) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func filterPackageName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	if name == "" || stdlibModules[lower] || hallucinatedNames[lower] {
		return ""
	}
	return name
}

const ManifestFileName = "requirements.txt"

func WriteManifest(workspace string, packages []string) error {
	content := strings.Join(packages, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(filepath.Join(workspace, ManifestFileName), []byte(content), 0o644)
}

func ReadManifest(workspace string) ([]string, error) {
	b, err := os.ReadFile(filepath.Join(workspace, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(b), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}
