package plan

import (
	"strings"
	"testing"
)

const validPlanJSON = `{
  "title": "Dropout sensitivity",
  "steps": [
    {
      "step_id": 2,
      "name": "Train variants",
      "description": "Train with dropout in {0.1, 0.3, 0.5}.",
      "dependencies": [
        {"name": "torch", "type": "python_package", "status": "auto_installable"}
      ],
      "artifacts": ["results.csv"]
    },
    {
      "step_id": 1,
      "name": "Generate data",
      "description": "Synthesize a toy classification dataset.",
      "dependencies": [
        {"name": "numpy", "type": "package", "status": "auto_installable"},
        {"name": "os", "type": "package", "status": "auto_installable"},
        {"name": "GPU cluster", "type": "system_tool", "status": "manual_intervention_required"}
      ]
    }
  ]
}`

func TestDecodeSortsByStepID(t *testing.T) {
	p, err := Decode([]byte(validPlanJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(p.Steps))
	}
	if p.Steps[0].StepID != 1 || p.Steps[1].StepID != 2 {
		t.Fatalf("steps not ordered by step_id: %+v", p.Steps)
	}
}

func TestDecodeNormalizesDependencyKinds(t *testing.T) {
	p, err := Decode([]byte(validPlanJSON))
	if err != nil {
		t.Fatal(err)
	}
	deps := p.Steps[1].Dependencies
	if deps[0].Kind != DepPackage {
		t.Fatalf("python_package should normalize to package, got %q", deps[0].Kind)
	}
}

func TestDecodeRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"steps": [`,
		"missing steps":     `{"title": "x"}`,
		"missing step name": `{"steps": [{"step_id": 1, "description": "d"}]}`,
		"bad step_id":       `{"steps": [{"step_id": "one", "name": "n", "description": "d"}]}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeRejectsDuplicateStepIDs(t *testing.T) {
	raw := `{"steps": [
      {"step_id": 1, "name": "a", "description": ""},
      {"step_id": 1, "name": "b", "description": ""}
    ]}`
	if _, err := Decode([]byte(raw)); err == nil || !strings.Contains(err.Error(), "duplicate step_id") {
		t.Fatalf("expected duplicate step_id error, got %v", err)
	}
}

func TestDeriveManifestFiltersAndAddsAnalysisLibs(t *testing.T) {
	p, err := Decode([]byte(validPlanJSON))
	if err != nil {
		t.Fatal(err)
	}
	got := DeriveManifest(p)
	want := map[string]bool{
		"numpy": true, "torch": true,
		"pandas": true, "matplotlib": true, "seaborn": true,
	}
	if len(got) != len(want) {
		t.Fatalf("manifest = %v, want keys %v", got, want)
	}
	for _, name := range got {
		if !want[name] {
			t.Fatalf("unexpected package %q in %v", name, got)
		}
		if name == "os" {
			t.Fatal("stdlib module leaked into manifest")
		}
	}
}

func TestDeriveManifestEmptyPlanStillHasAnalysisLibs(t *testing.T) {
	got := DeriveManifest(&Plan{})
	if len(got) != 3 {
		t.Fatalf("manifest = %v, want exactly the analysis libraries", got)
	}
}

func TestFilterManifestIdempotent(t *testing.T) {
	in := []string{"numpy==1.26", "os", "typing module", "# pinned for repro", "pandas"}
	once := FilterManifest(in)
	twice := FilterManifest(once)
	if len(once) != 3 {
		t.Fatalf("first pass = %v, want 3 entries", once)
	}
	if strings.Join(once, "\n") != strings.Join(twice, "\n") {
		t.Fatalf("filter not idempotent: %v vs %v", once, twice)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := WriteManifest(dir, []string{"numpy", "pandas"}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "numpy" || got[1] != "pandas" {
		t.Fatalf("manifest round trip = %v", got)
	}
}

func TestPlanSaveLoad(t *testing.T) {
	dir := t.TempDir()
	p, err := Decode([]byte(validPlanJSON))
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(dir, p); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Title != p.Title || len(loaded.Steps) != len(p.Steps) {
		t.Fatalf("loaded plan mismatch: %+v", loaded)
	}
}
