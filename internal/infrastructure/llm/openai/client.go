package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

// Client talks to any OpenAI-compatible endpoint (OpenAI, vLLM, LocalAI).
// Retries are owned by the resilience executor, so the SDK's own are off.
type Client struct {
	api        openai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(baseURL, apiKey, genModel, embedModel string, executor *resilience.Executor) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Client{
		api:        openai.NewClient(opts...),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, false)
}

func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, true)
}

func (g *Generator) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.client.genModel),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var content string
	err := g.client.call(ctx, "chat", func(callCtx context.Context) error {
		resp, err := g.client.api.Chat.Completions.New(callCtx, params)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai chat: empty choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", callError(domain.ErrOracle, "openai chat", err)
	}
	return strings.TrimSpace(content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	err := e.client.call(ctx, "embed", func(callCtx context.Context) error {
		resp, err := e.client.api.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.client.embedModel),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("got %d vectors for %d inputs", len(resp.Data), len(texts))
		}
		for _, item := range resp.Data {
			idx := int(item.Index)
			if idx < 0 || idx >= len(out) {
				return fmt.Errorf("embedding index %d out of range", idx)
			}
			out[idx] = toFloat32(item.Embedding)
		}
		return nil
	})
	if err != nil {
		return nil, callError(domain.ErrEmbedding, "openai embed", err)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "openai."+operation, fn, classifyOpenAIError)
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
