package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studyforge/studyforge/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultSummaryModel is the chat model used for document summaries
	DefaultSummaryModel = openai.GPT4oMini

	summaryPrompt = "Summarize the following document in 2-3 sentences for a student building study material from it. Respond with the summary only."
	// Summaries only need the opening of the document; sending whole files
	// wastes tokens without improving a 2-3 sentence summary.
	summaryInputCap = 8000
)

var (
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI defines the subset of the OpenAI API the client depends on
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps the OpenAI API for batch embeddings and summaries.
type Client struct {
	api            EmbeddingAPI
	embeddingModel openai.EmbeddingModel
	summaryModel   string
	dimensions     int
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	SummaryModel        string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = DefaultSummaryModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:            openai.NewClient(cfg.APIKey),
		embeddingModel: model,
		summaryModel:   summaryModel,
		dimensions:     dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// EmbedMany generates one embedding per input text, order-preserving.
// Throttling responses are reported as domain.ErrRateLimited so callers can
// distinguish retryable failures from fatal ones.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// The embeddings API rejects empty strings; an empty query still needs an
	// embedding, so substitute a single space.
	input := make([]string, len(texts))
	for i, text := range texts {
		if text == "" {
			text = " "
		}
		input[i] = text
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "embedding response size mismatch",
			fmt.Errorf("requested %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if len(item.Embedding) != c.dimensions {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "unexpected embedding dimensions", ErrWrongDimensions)
		}
		embeddings[item.Index] = item.Embedding
	}

	return embeddings, nil
}

// Dimensions returns the configured embedding width.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Summarize produces a short summary of extracted document text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	// Truncate on runes so a multi-byte character is never split.
	if runes := []rune(text); len(runes) > summaryInputCap {
		text = string(runes[:summaryInputCap])
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create summary: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no summary returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyEmbeddingError maps OpenAI API failures onto the domain taxonomy:
// HTTP 429 is retryable, everything else is fatal.
func classifyEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, "embedding provider throttled the request", err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "embedding generation failed", err)
}
