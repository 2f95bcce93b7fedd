// Package classifier adapts an external generative-text endpoint into an
// optional intent oracle. It is a soft dependency: every failure mode maps to
// a nil result meaning "unavailable, use local heuristics".
package classifier

import "context"

type Status string

const (
	SELECTED      Status = "selected"
	NO_MATCH      Status = "no_match"
	INDETERMINATE Status = "indeterminate"
)

type Result struct {
	Status     Status
	Id         string
	Confidence float64
	Reason     string
}

type Candidate struct {
	Id     string `json:"id"`
	Label  string `json:"label"`
	Sample string `json:"sample,omitempty"`
}

// Classifier proposes a candidate for a free-text message. A nil result means
// the upstream is unavailable or disabled; callers fall back to local
// matching. NO_MATCH is a definite verdict and is treated differently.
type Classifier interface {
	Classify(ctx context.Context, message string, candidates []Candidate) *Result
}
