// Package feedback is the interrupt channel: a durable, append-only queue of
// human guidance in the workspace that the engine drains at step boundaries.
// External writers only ever append; the engine only ever flips status, so
// both sides stay safe without locking.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	TypeRisk       Type = "risk"
	TypeCorrection Type = "correction"
	TypeSuggestion Type = "suggestion"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusIgnored   Status = "ignored"
)

type Item struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Type        Type   `json:"type"`
	Message     string `json:"message"`
	Status      Status `json:"status"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

const fileName = "user_feedback.json"

type Queue struct {
	path string
}

func NewQueue(workspace string) *Queue {
	return &Queue{path: filepath.Join(workspace, fileName)}
}

func (q *Queue) load() ([]Item, error) {
	b, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.path, err)
	}
	return items, nil
}

func (q *Queue) save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(q.path, append(b, '\n'), 0o644)
}

// Add appends a new pending item and returns it.
func (q *Queue) Add(t Type, message string) (Item, error) {
	items, err := q.load()
	if err != nil {
		return Item{}, err
	}
	item := Item{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      t,
		Message:   message,
		Status:    StatusPending,
	}
	items = append(items, item)
	if err := q.save(items); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Pending returns items not yet consumed, in insertion order.
func (q *Queue) Pending() ([]Item, error) {
	items, err := q.load()
	if err != nil {
		return nil, err
	}
	var pending []Item
	for _, item := range items {
		if item.Status == StatusPending {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// MarkProcessed transitions an item out of pending. Items are never deleted.
func (q *Queue) MarkProcessed(id string, status Status) error {
	items, err := q.load()
	if err != nil {
		return err
	}
	found := false
	for i := range items {
		if items[i].ID == id {
			items[i].Status = status
			items[i].ProcessedAt = time.Now().UTC().Format(time.RFC3339)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("feedback item not found: %s", id)
	}
	return q.save(items)
}
