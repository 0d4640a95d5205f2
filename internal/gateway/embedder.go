// Package gateway implements C1 (embedder) and C2 (LLM) against
// openai-go, grounded on beeper-ai-bridge pkg/memory/embedding/openai.go
// (client construction, embedding batch call) and
// pkg/connector/provider_openai.go (chat completion call shape).
//
// tarsy's own LLM gateway is a gRPC client against protobuf-generated
// types produced by a separate microservice's build; reproducing that
// would require running protoc/go generate (forbidden) or hand-writing
// fake .pb.go files (a vendored fake, also forbidden). openai-go is a
// directly importable SDK already present in the pack's dependency graph
// (beeper-ai-bridge go.mod, as a direct dependency), so it stands in for
// both gateways here.
package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
)

// Embedder is C1: text -> vector, with the retry/timeout contract from
// spec.md §5 (≤2s budget, 1 retry with 250ms backoff).
type Embedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
	retries int
}

// NewEmbedder constructs an embedder against the OpenAI embeddings endpoint.
func NewEmbedder(apiKey, model string, timeout time.Duration, retries int) *Embedder {
	return &Embedder{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		retries: retries,
	}
}

// Embed returns the embedding vector for text, retrying once on
// failure with a 250ms backoff before the overall timeout elapses.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", apperr.ErrEmbedding)
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", apperr.ErrEmbedding, ctx.Err())
			case <-time.After(250 * time.Millisecond):
			}
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err == nil {
			out := make([][]float32, len(resp.Data))
			for i, entry := range resp.Data {
				out[i] = toFloat32(entry.Embedding)
			}
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", apperr.ErrEmbedding, lastErr)
}

// toFloat32 converts a provider embedding to float32 and L2-normalizes
// it, so every returned vector is unit length (a zero vector stays zero).
func toFloat32(in []float64) []float32 {
	var sum float64
	for _, v := range in {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(in))
	for i, v := range in {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}
