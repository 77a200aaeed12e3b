package ingest

// Config tunes the ingestion pipeline.
//
// TargetSize:   characters per chunk (e.g., 1000).
// Overlap:      character overlap between consecutive chunks (e.g., 100);
//               must be strictly less than TargetSize.
// BatchSize:    how many chunks to embed per gateway call (e.g., 16).
// MinTextChars: minimum extracted length; anything shorter is rejected as
//               insufficient (e.g., 100).
type Config struct {
	TargetSize   int
	Overlap      int
	BatchSize    int
	MinTextChars int
}

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TargetSize:   1000,
		Overlap:      100,
		BatchSize:    16,
		MinTextChars: 100,
	}
}
