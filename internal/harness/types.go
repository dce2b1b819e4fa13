package harness

import (
	"github.com/roach88/rumscope/internal/rum"
)

// DocumentRecord is one document written during a scenario, in the shape it
// is compared and snapshotted.
type DocumentRecord struct {
	// Seq is the 1-based write order.
	Seq  int              `json:"seq"`
	Kind rum.DocumentKind `json:"kind"`

	// Body is the canonical JSON of the document decoded into generic
	// values. Numbers are json.Number.
	Body map[string]any `json:"body"`
}

// ViewName returns view.name of the document body.
func (d DocumentRecord) ViewName() string {
	v, _ := lookupPath(d.Body, "view.name")
	s, _ := v.(string)
	return s
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Documents holds every written document in write order.
	Documents []DocumentRecord `json:"documents"`

	// Handled counts the events the engine processed, acknowledgements
	// included.
	Handled int `json:"handled"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Documents: []DocumentRecord{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of documents of kind (all kinds when empty).
func (r *Result) Count(kind rum.DocumentKind) int {
	n := 0
	for _, d := range r.Documents {
		if kind == "" || d.Kind == kind {
			n++
		}
	}
	return n
}
