package extraction

import (
	"unicode/utf8"

	"github.com/davidemeka/ingesta/internal/models"
)

// Candidate is the outcome of one strategy's attempt at a document. A strategy
// that cannot process the input returns a Candidate with empty text and a
// non-nil Err; it never panics past the arbiter.
type Candidate struct {
	Strategy   string
	Text       string
	PageCount  int
	TableCount int
	Err        error
}

// CharCount returns the extracted length in characters, the score used for
// arbitration.
func (c Candidate) CharCount() int {
	return utf8.RuneCountInString(c.Text)
}

// Strategy is one self-contained algorithm for turning document bytes into
// text. Strategies are independent and order-insensitive; running fewer of
// them only lowers result quality, never correctness.
type Strategy interface {
	// Name identifies the strategy in provenance records.
	Name() string

	// Supports reports whether the strategy can attempt the given media type.
	Supports(contentType string) bool

	// Extract attempts to produce plain text from the raw bytes.
	Extract(data []byte, contentType string) Candidate
}

// Result is the arbitrated extraction outcome for one document. Immutable
// after creation; the candidate summaries are persisted as provenance.
type Result struct {
	Text          string
	Strategy      string
	CharCount     int
	PageCount     int
	TableCount    int
	LowConfidence bool
	Candidates    []models.StrategySummary
}
