package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
)

// MockAPIKeyRepository is a mock implementation of APIKeyRepository
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// TestCreateAPIKey tests that a minted key has the expected token format and
// only its hash is persisted.
func TestCreateAPIKey(t *testing.T) {
	mockRepo := new(MockAPIKeyRepository)

	var stored *domain.APIKey
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.APIKey")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.APIKey)
	}).Return(nil)

	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})
	token, err := svc.CreateAPIKey(context.Background(), "owner-1", "ci key")

	require.NoError(t, err)
	assert.True(t, IsValidAPIToken(token))

	require.NotNil(t, stored)
	assert.Equal(t, "owner-1", stored.OwnerID)
	assert.Equal(t, "ci key", stored.Name)
	assert.NotEqual(t, token, stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, token)
	assert.Len(t, stored.KeyHash, 64)
}

// TestCreateAPIKey_Validation tests required field checks.
func TestCreateAPIKey_Validation(t *testing.T) {
	svc := NewAuthService(new(MockAPIKeyRepository), &DefaultUUIDGenerator{})

	_, err := svc.CreateAPIKey(context.Background(), "", "name")
	assert.Error(t, err)

	_, err = svc.CreateAPIKey(context.Background(), "owner-1", "")
	assert.Error(t, err)
}

// TestValidateAPIKey_Success tests that a stored token resolves to its owner.
func TestValidateAPIKey_Success(t *testing.T) {
	mockRepo := new(MockAPIKeyRepository)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.APIKey")).Run(func(args mock.Arguments) {
		key := args.Get(1).(*domain.APIKey)
		mockRepo.On("GetByHash", mock.Anything, key.KeyHash).Return(key, nil)
	}).Return(nil)

	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})
	token, err := svc.CreateAPIKey(context.Background(), "owner-1", "test")
	require.NoError(t, err)

	ownerID, err := svc.ValidateAPIKey(context.Background(), token)

	assert.NoError(t, err)
	assert.Equal(t, "owner-1", ownerID)
}

// TestValidateAPIKey_BadFormat tests that malformed tokens are rejected
// without a repository lookup.
func TestValidateAPIKey_BadFormat(t *testing.T) {
	mockRepo := new(MockAPIKeyRepository)
	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	for _, token := range []string{
		"",
		"sfk_",
		"sfk_tooshort",
		"wrongprefix_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		"sfk_" + "zzzz456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	} {
		_, err := svc.ValidateAPIKey(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey, "token %q", token)
	}

	mockRepo.AssertNotCalled(t, "GetByHash", mock.Anything, mock.Anything)
}

// TestValidateAPIKey_UnknownToken tests that a well-formed but unknown token
// reads as invalid, not as not-found.
func TestValidateAPIKey_UnknownToken(t *testing.T) {
	mockRepo := new(MockAPIKeyRepository)
	mockRepo.On("GetByHash", mock.Anything, mock.Anything).Return(nil, domain.ErrAPIKeyNotFound)

	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})
	_, err := svc.ValidateAPIKey(context.Background(), "sfk_"+"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

// TestValidateAPIKey_Revoked tests that revoked keys are refused.
func TestValidateAPIKey_Revoked(t *testing.T) {
	revokedAt := time.Now().UTC()
	key := &domain.APIKey{
		ID:        "key-1",
		OwnerID:   "owner-1",
		KeyHash:   "whatever",
		RevokedAt: &revokedAt,
	}

	mockRepo := new(MockAPIKeyRepository)
	mockRepo.On("GetByHash", mock.Anything, mock.Anything).Return(key, nil)

	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})
	_, err := svc.ValidateAPIKey(context.Background(), "sfk_"+"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

	assert.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
}

// TestRevokeAPIKey tests delegation and the empty ID guard.
func TestRevokeAPIKey(t *testing.T) {
	mockRepo := new(MockAPIKeyRepository)
	mockRepo.On("Revoke", mock.Anything, "key-1").Return(nil)

	svc := NewAuthService(mockRepo, &DefaultUUIDGenerator{})

	assert.NoError(t, svc.RevokeAPIKey(context.Background(), "key-1"))
	assert.Error(t, svc.RevokeAPIKey(context.Background(), ""))
	mockRepo.AssertExpectations(t)
}
