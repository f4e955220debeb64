package identification

import (
	"time"

	"github.com/kdimtricp/breedid/internal/imaging"
)

// Request is one submission. It is never mutated after creation.
type Request struct {
	SessionID   string
	Image       *imaging.Still
	SubmittedAt time.Time
}

// Result is the composed identification. The tier is derived from
// Confidence on every call.
type Result struct {
	Breed      string   `json:"breed"`
	Confidence int      `json:"confidence"`
	Features   []string `json:"features"`
}

func (r Result) Tier() Tier {
	return Classify(r.Confidence)
}

// Handoff carries a result and the image it was computed from to the result
// surface, once.
type Handoff struct {
	ID          string
	SessionID   string
	Image       *imaging.Still
	Result      Result
	SubmittedAt time.Time
	CompletedAt time.Time
}
