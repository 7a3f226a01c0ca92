// Package state owns the persisted status.json snapshot: the externally
// observable StatusRecord merged with the IterationState the governor tracks.
// All writes go through this store; external actors edit max_iterations and
// the paused flag in the same file shape.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type ExperimentStatus string

const (
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

type PhaseStatus string

const (
	PhaseRunning   PhaseStatus = "running"
	PhaseFixing    PhaseStatus = "fixing"
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
	PhasePaused    PhaseStatus = "paused"
)

// Record is the single current-state snapshot. It is overwritten, never
// appended, on every transition.
type Record struct {
	ExperimentStatus ExperimentStatus `json:"experiment_status"`
	CurrentStep      int              `json:"current_step"`
	TotalSteps       int              `json:"total_steps"`
	StepName         string           `json:"step_name"`
	Status           PhaseStatus      `json:"status"`
	Details          string           `json:"details"`
	LastUpdated      float64          `json:"last_updated"`

	// Iteration governor fields. External actors may raise MaxIterations to
	// resume a paused run.
	CurrentIterations int `json:"current_iterations"`
	MaxIterations     int `json:"max_iterations"`
}

const statusFileName = "status.json"

type Store struct {
	path string
}

func NewStore(workspace string) *Store {
	return &Store{path: filepath.Join(workspace, statusFileName)}
}

func (s *Store) Path() string { return s.path }

// Load reads the current snapshot. A missing file yields a zero Record with
// no error so a fresh workspace starts clean.
func (s *Store) Load() (Record, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return rec, nil
}

func (s *Store) Save(rec Record) error {
	rec.LastUpdated = float64(time.Now().UnixNano()) / float64(time.Second)
	return writeJSONAtomic(s.path, rec)
}

// CompareAndSwap reloads the snapshot, applies mutate, and persists the
// result. It is the single funnel for read-modify-write updates so the
// governor's counter and external ceiling edits never clobber each other.
func (s *Store) CompareAndSwap(mutate func(rec *Record)) (Record, error) {
	rec, err := s.Load()
	if err != nil {
		return Record{}, err
	}
	mutate(&rec)
	if err := s.Save(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// writeJSONAtomic writes via temp file + rename so an observer polling the
// file never reads a torn snapshot.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteJSONAtomic is the shared atomic-write helper for other workspace
// documents (plan snapshot, conclusion).
func WriteJSONAtomic(path string, v any) error {
	return writeJSONAtomic(path, v)
}
