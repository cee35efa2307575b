package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any DomainError carrying the same code, so wrapped
// stage errors still compare equal to the sentinel they were derived from.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeExtraction    = "EXTRACTION_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeSearchBackend = "SEARCH_BACKEND_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrUnsupportedFileType  = NewDomainError(ErrCodeValidation, "unsupported file type")
	ErrEmptyUpload          = NewDomainError(ErrCodeValidation, "no files in upload request")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrProjectNotFound  = NewDomainError(ErrCodeNotFound, "project not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Pipeline errors. ErrRateLimited is the only retryable one: the embedding
// batch processor backs off and retries it; everything else fails the
// document immediately.
var (
	ErrExtractionFailed = NewDomainError(ErrCodeExtraction, "content extraction failed")
	ErrRateLimited      = NewDomainError(ErrCodeRateLimited, "embedding provider throttled the request")
	ErrEmbeddingFailed  = NewDomainError(ErrCodeEmbedding, "embedding generation failed")
)

// Retrieval errors
var (
	ErrSearchBackend = NewDomainError(ErrCodeSearchBackend, "vector search failed")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
