// Package plan defines the typed experiment plan schema and the dependency
// manifest derivation used to build the sandbox environment. Plans arrive as
// loosely-typed JSON from the design collaborator and are validated and
// normalized here, at the boundary, before the engine trusts them.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type DependencyKind string

const (
	DepPackage    DependencyKind = "package"
	DepDataset    DependencyKind = "dataset"
	DepPaper      DependencyKind = "paper"
	DepSystemTool DependencyKind = "system_tool"
	DepOther      DependencyKind = "other"
)

type DependencyStatus string

const (
	DepAutoInstallable DependencyStatus = "auto_installable"
	DepManualRequired  DependencyStatus = "manual_intervention_required"
)

type Dependency struct {
	Name   string           `json:"name"`
	Kind   DependencyKind   `json:"type"`
	Status DependencyStatus `json:"status"`
}

type Step struct {
	StepID       int          `json:"step_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Artifacts    []string     `json:"artifacts,omitempty"`
}

// Plan is immutable once approved; the engine persists a snapshot at run
// start and only an explicit feedback-resolution step may change it.
type Plan struct {
	Title string `json:"title"`
	Goal  string `json:"goal,omitempty"`
	Steps []Step `json:"steps"`
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "title": {"type": "string"},
    "goal": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["step_id", "name", "description"],
        "properties": {
          "step_id": {"type": "integer", "minimum": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "dependencies": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {"type": "string"},
                "status": {"type": "string"}
              }
            }
          },
          "artifacts": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var planSchema = jsonschema.MustCompileString("plan.schema.json", schemaJSON)

// Decode validates raw collaborator output against the plan schema, then
// normalizes it into the typed form. Validation errors name the offending
// path so a repair prompt can quote them.
func Decode(raw []byte) (*Plan, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("plan is not valid JSON: %w", err)
	}
	if err := planSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) normalize() error {
	seen := map[int]bool{}
	for i := range p.Steps {
		s := &p.Steps[i]
		if seen[s.StepID] {
			return fmt.Errorf("duplicate step_id %d", s.StepID)
		}
		seen[s.StepID] = true
		for j := range s.Dependencies {
			d := &s.Dependencies[j]
			d.Name = strings.TrimSpace(d.Name)
			d.Kind = normalizeKind(d.Kind)
			if d.Status == "" {
				d.Status = DepAutoInstallable
			}
		}
	}
	// step_id defines execution order.
	sort.SliceStable(p.Steps, func(i, j int) bool { return p.Steps[i].StepID < p.Steps[j].StepID })
	return nil
}

func normalizeKind(k DependencyKind) DependencyKind {
	switch strings.ToLower(strings.TrimSpace(string(k))) {
	case "package", "python_package", "pip_package":
		return DepPackage
	case "dataset":
		return DepDataset
	case "paper":
		return DepPaper
	case "system_tool", "tool":
		return DepSystemTool
	case "":
		return DepOther
	default:
		return DepOther
	}
}

const planFileName = "plan.json"

// Save writes the plan snapshot into the workspace for durability.
func Save(workspace string, p *Plan) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workspace, planFileName), append(b, '\n'), 0o644)
}

func Load(workspace string) (*Plan, error) {
	b, err := os.ReadFile(filepath.Join(workspace, planFileName))
	if err != nil {
		return nil, err
	}
	return Decode(b)
}
