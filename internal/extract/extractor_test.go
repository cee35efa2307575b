package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
)

// MockSummarizer is a mock implementation of Summarizer
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

// TestExtract_Plaintext tests plaintext passthrough with normalization.
func TestExtract_Plaintext(t *testing.T) {
	extractor := New(nil)

	result, err := extractor.Extract(context.Background(), []byte("Line one.\r\nLine two.   \r\n\r\nPara two.\n"), "txt")

	require.NoError(t, err)
	assert.Equal(t, "Line one.\nLine two.\n\nPara two.", result.Content)
	assert.Empty(t, result.Summary)
}

// TestExtract_PlaintextInvalidUTF8 tests that binary framing bytes are
// dropped rather than failing the extraction.
func TestExtract_PlaintextInvalidUTF8(t *testing.T) {
	extractor := New(nil)

	data := append([]byte{0xff, 0xfe}, []byte("readable text")...)
	result, err := extractor.Extract(context.Background(), data, "doc")

	require.NoError(t, err)
	assert.Contains(t, result.Content, "readable text")
}

// TestExtract_UnsupportedType tests the extraction domain error for unknown
// extensions.
func TestExtract_UnsupportedType(t *testing.T) {
	extractor := New(nil)

	_, err := extractor.Extract(context.Background(), []byte("data"), "xlsx")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExtraction, domainErr.Code)
}

// TestExtract_CorruptPDF tests that unparseable PDF bytes fail as an
// extraction error.
func TestExtract_CorruptPDF(t *testing.T) {
	extractor := New(nil)

	_, err := extractor.Extract(context.Background(), []byte("not a pdf"), "pdf")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExtraction, domainErr.Code)
}

// TestExtract_SummarizerUsed tests that a configured summarizer contributes
// the document summary.
func TestExtract_SummarizerUsed(t *testing.T) {
	mockSummarizer := new(MockSummarizer)
	mockSummarizer.On("Summarize", mock.Anything, "Some study notes.").Return("short summary", nil)

	extractor := New(mockSummarizer)
	result, err := extractor.Extract(context.Background(), []byte("Some study notes."), "txt")

	require.NoError(t, err)
	assert.Equal(t, "short summary", result.Summary)
	mockSummarizer.AssertExpectations(t)
}

// TestExtract_SummarizerFailureIsNotFatal tests that a failed summary leaves
// the extraction intact.
func TestExtract_SummarizerFailureIsNotFatal(t *testing.T) {
	mockSummarizer := new(MockSummarizer)
	mockSummarizer.On("Summarize", mock.Anything, mock.Anything).Return("", errors.New("provider down"))

	extractor := New(mockSummarizer)
	result, err := extractor.Extract(context.Background(), []byte("Some study notes."), "txt")

	require.NoError(t, err)
	assert.Equal(t, "Some study notes.", result.Content)
	assert.Empty(t, result.Summary)
}

// TestExtract_EmptyContentSkipsSummarizer tests that whitespace-only content
// never reaches the summarizer.
func TestExtract_EmptyContentSkipsSummarizer(t *testing.T) {
	mockSummarizer := new(MockSummarizer)

	extractor := New(mockSummarizer)
	result, err := extractor.Extract(context.Background(), []byte("   \n\n"), "txt")

	require.NoError(t, err)
	assert.Empty(t, result.Content)
	mockSummarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

// TestNormalizeText tests line-ending and trailing whitespace cleanup.
func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a\nb", normalizeText("a  \r\nb\t\r\n"))
	assert.Equal(t, "a\n\nb", normalizeText("a\n\nb"))
	assert.Equal(t, "", normalizeText("  \n \t "))
}
