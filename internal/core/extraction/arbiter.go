package extraction

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/davidemeka/ingesta/internal/core"
	"github.com/davidemeka/ingesta/internal/models"
)

// RawDecodeStrategy is the provenance name recorded when every strategy came
// up empty and the arbiter fell back to decoding the raw bytes directly.
const RawDecodeStrategy = "raw-decode"

// Arbiter runs every registered strategy against a document and selects the
// winner by maximum extracted character length, ties broken by registration
// order. It never re-runs a strategy and never blends text from two
// strategies.
type Arbiter struct {
	strategies []Strategy
	pool       *ants.Pool
	logger     *slog.Logger
}

// NewArbiter creates an arbiter over the given strategies, in registration
// order. Strategies run concurrently on a shared worker pool sized to the
// strategy count.
func NewArbiter(logger *slog.Logger, strategies ...Strategy) (*Arbiter, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("arbiter needs at least one strategy")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(len(strategies))
	if err != nil {
		return nil, fmt.Errorf("strategy pool: %w", err)
	}
	return &Arbiter{strategies: strategies, pool: pool, logger: logger}, nil
}

// Release frees the strategy worker pool.
func (a *Arbiter) Release() {
	if a.pool != nil {
		a.pool.Release()
	}
}

// Extract runs arbitration for one document. It returns ErrUnsupportedInput
// when the input is empty or no strategy supports the declared media type;
// otherwise it always produces a Result, falling back to a low-confidence raw
// decode when every strategy yields zero text.
func (a *Arbiter) Extract(data []byte, contentType string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty source bytes: %w", core.ErrUnsupportedInput)
	}

	eligible := make([]Strategy, 0, len(a.strategies))
	for _, s := range a.strategies {
		if s.Supports(contentType) {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("media type %q: %w", contentType, core.ErrUnsupportedInput)
	}

	// Candidates keep registration order regardless of completion order so the
	// tie-break stays deterministic.
	candidates := make([]Candidate, len(eligible))
	var wg sync.WaitGroup
	for i, s := range eligible {
		wg.Add(1)
		run := func() {
			defer wg.Done()
			candidates[i] = a.runOne(s, data, contentType)
		}
		if err := a.pool.Submit(run); err != nil {
			run()
		}
	}
	wg.Wait()

	summaries := make([]models.StrategySummary, len(candidates))
	for i, c := range candidates {
		summaries[i] = models.StrategySummary{
			Strategy:  c.Strategy,
			CharCount: c.CharCount(),
			PageCount: c.PageCount,
		}
		if c.Err != nil {
			summaries[i].Error = c.Err.Error()
			a.logger.Warn("extraction strategy failed",
				"strategy", c.Strategy, "content_type", contentType, "err", c.Err)
		}
	}

	best := -1
	bestLen := 0
	for i, c := range candidates {
		if n := c.CharCount(); n > bestLen {
			best, bestLen = i, n
		}
	}

	if best < 0 {
		// Every strategy yielded zero text. Ingestion must still produce some
		// artifact, so decode the raw bytes and flag the result.
		a.logger.Warn("all strategies empty, falling back to raw decode",
			"content_type", contentType)
		text := CleanDecode(data)
		return &Result{
			Text:          text,
			Strategy:      RawDecodeStrategy,
			CharCount:     len([]rune(text)),
			LowConfidence: true,
			Candidates:    summaries,
		}, nil
	}

	winner := candidates[best]
	a.logger.Debug("extraction winner selected",
		"strategy", winner.Strategy, "chars", bestLen, "candidates", len(candidates))
	return &Result{
		Text:       winner.Text,
		Strategy:   winner.Strategy,
		CharCount:  bestLen,
		PageCount:  winner.PageCount,
		TableCount: winner.TableCount,
		Candidates: summaries,
	}, nil
}

// runOne isolates a single strategy: a panic inside Extract becomes a failed
// candidate instead of aborting arbitration.
func (a *Arbiter) runOne(s Strategy, data []byte, contentType string) (cand Candidate) {
	defer func() {
		if r := recover(); r != nil {
			cand = Candidate{Strategy: s.Name(), Err: fmt.Errorf("strategy panic: %v", r)}
		}
	}()
	return s.Extract(data, contentType)
}
