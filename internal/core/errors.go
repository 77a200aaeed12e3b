package core

import "errors"

// Failure taxonomy for ingestion and retrieval. Strategy-level and gateway-level
// failures are absorbed and degrade functionality; these sentinels are the
// conditions that surface to callers.
var (
	// ErrUnsupportedInput means the source bytes were empty or no extraction
	// strategy supports the declared media type. No strategies were invoked.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrInsufficientText means extraction succeeded but yielded too little
	// usable text to be worth indexing.
	ErrInsufficientText = errors.New("insufficient extracted text")

	// ErrGatewayUnavailable means the embedding gateway could not produce a
	// vector after bounded retries. Ingestion stores chunks without vectors;
	// queries degrade to keyword-only. Never fatal on its own.
	ErrGatewayUnavailable = errors.New("embedding gateway unavailable")
)
