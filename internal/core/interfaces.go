package core

import "context"

// EmbeddingProvider is the gateway to an external embedding service. Inputs
// are truncated to a provider-safe length before the call. A provider that
// cannot produce vectors reports ErrGatewayUnavailable rather than panicking;
// callers treat that as "no vector available", not as a pipeline failure.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider generates an answer from a system prompt and a user prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// ObjectClient archives original document bytes in object storage. Abstract so
// AWS can be swapped for MinIO, GCP, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
