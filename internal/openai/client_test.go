package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
)

// MockEmbeddingAPI is a mock implementation of EmbeddingAPI
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

func (m *MockEmbeddingAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func newTestClient(api EmbeddingAPI, dimensions int) *Client {
	return &Client{
		api:            api,
		embeddingModel: DefaultEmbeddingModel,
		summaryModel:   DefaultSummaryModel,
		dimensions:     dimensions,
	}
}

func embeddingResponse(vectors ...[]float32) openai.EmbeddingResponse {
	data := make([]openai.Embedding, len(vectors))
	for i, v := range vectors {
		data[i] = openai.Embedding{Index: i, Embedding: v}
	}
	return openai.EmbeddingResponse{Data: data}
}

// TestEmbedMany_OrderPreserved tests that vectors come back in input order
// even when the API reports them out of order.
func TestEmbedMany_OrderPreserved(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	resp := openai.EmbeddingResponse{Data: []openai.Embedding{
		{Index: 1, Embedding: []float32{2, 2}},
		{Index: 0, Embedding: []float32{1, 1}},
	}}
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(resp, nil)

	client := newTestClient(mockAPI, 2)
	embeddings, err := client.EmbedMany(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{1, 1}, embeddings[0])
	assert.Equal(t, []float32{2, 2}, embeddings[1])
}

// TestEmbedMany_EmptyInputSubstituted tests that empty strings are replaced
// before hitting the API, which rejects them.
func TestEmbedMany_EmptyInputSubstituted(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(req openai.EmbeddingRequestConverter) bool {
		r, ok := req.(openai.EmbeddingRequest)
		if !ok {
			return false
		}
		input, ok := r.Input.([]string)
		return ok && len(input) == 1 && input[0] == " "
	})).Return(embeddingResponse([]float32{1, 0}), nil)

	client := newTestClient(mockAPI, 2)
	_, err := client.EmbedMany(context.Background(), []string{""})

	assert.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

// TestEmbedMany_NoTexts tests the no-op path.
func TestEmbedMany_NoTexts(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)

	client := newTestClient(mockAPI, 2)
	embeddings, err := client.EmbedMany(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, embeddings)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

// TestEmbedMany_RateLimitClassified tests that HTTP 429 maps to the
// retryable rate-limit domain error.
func TestEmbedMany_RateLimitClassified(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limit"}
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(openai.EmbeddingResponse{}, apiErr)

	client := newTestClient(mockAPI, 2)
	_, err := client.EmbedMany(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

// TestEmbedMany_OtherAPIErrorFatal tests that non-429 failures map to the
// fatal embedding error.
func TestEmbedMany_OtherAPIErrorFatal(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad input"}
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(openai.EmbeddingResponse{}, apiErr)

	client := newTestClient(mockAPI, 2)
	_, err := client.EmbedMany(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRateLimited))
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEmbedding, domainErr.Code)
}

// TestEmbedMany_WrongDimensions tests rejection of vectors with an
// unexpected width.
func TestEmbedMany_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(embeddingResponse([]float32{1, 2, 3}), nil)

	client := newTestClient(mockAPI, 2)
	_, err := client.EmbedMany(context.Background(), []string{"text"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

// TestSummarize_TruncatesOnRunes tests that oversized input is cut on rune
// boundaries so the API never receives broken UTF-8.
func TestSummarize_TruncatesOnRunes(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		content := req.Messages[len(req.Messages)-1].Content
		return utf8.ValidString(content) && len([]rune(content)) == summaryInputCap
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "summary"}},
		},
	}, nil)

	client := newTestClient(mockAPI, 2)
	_, err := client.Summarize(context.Background(), strings.Repeat("é", summaryInputCap+100))

	require.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

// TestSummarize tests the summary chat call and the empty choice guard.
func TestSummarize(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "a short summary"}},
		},
	}, nil).Once()

	client := newTestClient(mockAPI, 2)
	summary, err := client.Summarize(context.Background(), "long document text")

	require.NoError(t, err)
	assert.Equal(t, "a short summary", summary)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil).Once()
	_, err = client.Summarize(context.Background(), "more text")
	assert.Error(t, err)
}
