package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
)

// LLM is C2: chat completion with JSON-schema-constrained structured
// output, used by ingestion (extraction), compaction (golden-record
// merge), and optional retrieval narrative passes.
type LLM struct {
	client        openai.Client
	model         string
	timeout       time.Duration
	schemaRetries int
}

// NewLLM constructs an LLM gateway against the OpenAI chat completions endpoint.
func NewLLM(apiKey, model string, timeout time.Duration, schemaRetries int) *LLM {
	return &LLM{
		client:        openai.NewClient(option.WithAPIKey(apiKey)),
		model:         model,
		timeout:       timeout,
		schemaRetries: schemaRetries,
	}
}

// CompleteJSON runs a chat completion constrained to schema, decoding
// the result into dest. On a request error, an empty response, or output
// that does not decode into dest it retries (schemaRetries times, within
// spec.md §5's 30s overall budget) before returning apperr.ErrLLM; a
// retry after undecodable output adds a stricter system instruction.
// schemaName annotates the request for the provider's strict
// structured-output mode, which enforces the schema; no client-side
// schema validation is done. Callers build schema themselves and pass it
// in so they keep ownership of their own result types.
func (l *LLM) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, schema *jsonschema.Schema, schemaName string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %v", apperr.ErrLLM, err)
	}
	var schemaMap map[string]interface{}
	if err := json.Unmarshal(rawSchema, &schemaMap); err != nil {
		return fmt.Errorf("%w: decode schema: %v", apperr.ErrLLM, err)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schemaMap,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= l.schemaRetries; attempt++ {
		resp, err := l.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices")
			continue
		}
		content := resp.Choices[0].Message.Content
		if err := json.Unmarshal([]byte(content), dest); err != nil {
			lastErr = fmt.Errorf("decode structured output: %w", err)
			params.Messages = append(params.Messages, openai.SystemMessage(
				"Your previous reply did not match the required JSON schema. Reply again with JSON only, matching the schema exactly."))
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrLLM, lastErr)
}

// Complete runs a plain-text chat completion, used for the compaction
// golden-record merge's free-form summary and the optional retrieval
// narrative pass.
func (l *LLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrLLM, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", apperr.ErrLLM)
	}
	return resp.Choices[0].Message.Content, nil
}
