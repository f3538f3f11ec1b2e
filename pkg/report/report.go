// Package report tallies the writes a migration or sync run performs.
package report

import (
	"context"
	"sort"
	"sync"
)

type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionAssigned Action = "assigned"
)

// Change is one write against a representation or an assigned original.
type Change struct {
	Action     Action `json:"action"`
	EntityType string `json:"entity_type"`
	ID         string `json:"id"`
	OriginalID string `json:"original_id,omitempty"`
	ProgramID  string `json:"program_id,omitempty"`
}

// Counts holds per-action totals for one entity type.
type Counts struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	Assigned int `json:"assigned"`
}

func (c Counts) Total() int {
	return c.Created + c.Updated + c.Deleted + c.Assigned
}

// Report is safe for concurrent use. A nil *Report discards everything.
type Report struct {
	mu      sync.Mutex
	changes []Change
	skipped map[string]int
}

func New() *Report {
	return &Report{skipped: map[string]int{}}
}

func (r *Report) Record(change Change) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *Report) Created(entityType, id, originalID, programID string) {
	r.Record(Change{Action: ActionCreated, EntityType: entityType, ID: id, OriginalID: originalID, ProgramID: programID})
}

func (r *Report) Updated(entityType, id, originalID, programID string) {
	r.Record(Change{Action: ActionUpdated, EntityType: entityType, ID: id, OriginalID: originalID, ProgramID: programID})
}

func (r *Report) Deleted(entityType, id, originalID, programID string) {
	r.Record(Change{Action: ActionDeleted, EntityType: entityType, ID: id, OriginalID: originalID, ProgramID: programID})
}

func (r *Report) Assigned(entityType, id, programID string) {
	r.Record(Change{Action: ActionAssigned, EntityType: entityType, ID: id, OriginalID: id, ProgramID: programID})
}

// Skip counts a record left alone because a required representation was missing.
func (r *Report) Skip(entityType string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[entityType]++
}

// Merge appends other into r. Used to fold a committed batch into the run.
func (r *Report) Merge(other *Report) {
	if r == nil || other == nil || r == other {
		return
	}
	changes, skipped := other.snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, changes...)
	for k, v := range skipped {
		r.skipped[k] += v
	}
}

func (r *Report) snapshot() ([]Change, map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skipped := make(map[string]int, len(r.skipped))
	for k, v := range r.skipped {
		skipped[k] = v
	}
	return append([]Change{}, r.changes...), skipped
}

func (r *Report) Changes() []Change {
	if r == nil {
		return nil
	}
	changes, _ := r.snapshot()
	return changes
}

func (r *Report) Skipped() map[string]int {
	if r == nil {
		return map[string]int{}
	}
	_, skipped := r.snapshot()
	return skipped
}

// Counts groups changes by entity type.
func (r *Report) Counts() map[string]Counts {
	out := map[string]Counts{}
	for _, c := range r.Changes() {
		counts := out[c.EntityType]
		switch c.Action {
		case ActionCreated:
			counts.Created++
		case ActionUpdated:
			counts.Updated++
		case ActionDeleted:
			counts.Deleted++
		case ActionAssigned:
			counts.Assigned++
		}
		out[c.EntityType] = counts
	}
	return out
}

// Writes is the number of rows the run wrote.
func (r *Report) Writes() int {
	return len(r.Changes())
}

// EntityTypes lists the types with at least one change, sorted.
func (r *Report) EntityTypes() []string {
	counts := r.Counts()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Summary is the JSON shape returned by the CLI and the ops API.
type Summary struct {
	Writes  int               `json:"writes"`
	Counts  map[string]Counts `json:"counts"`
	Skipped map[string]int    `json:"skipped"`
}

func (r *Report) Summary() Summary {
	return Summary{Writes: r.Writes(), Counts: r.Counts(), Skipped: r.Skipped()}
}

type ctxKey struct{}

// WithRecorder attaches r to ctx so nested copy helpers can record into it.
func WithRecorder(ctx context.Context, r *Report) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// From returns the report carried by ctx, or nil.
func From(ctx context.Context) *Report {
	r, _ := ctx.Value(ctxKey{}).(*Report)
	return r
}
