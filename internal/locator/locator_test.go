package locator

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperrors"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/providers"
	"messenger-service/internal/repositories"
)

var (
	tippin = models.Ref("user", "tippin")
	doe    = models.Ref("user", "doe")
)

func newLocator() (*Locator, *mocks.ProviderRepositoryMock, *mocks.ThreadRepositoryMock) {
	providerRepo := new(mocks.ProviderRepositoryMock)
	threadRepo := new(mocks.ThreadRepositoryMock)
	dir := providers.NewDirectory([]providers.Definition{{Alias: "user", Devices: true}, {Alias: "company"}}, providerRepo)
	return New(dir, threadRepo), providerRepo, threadRepo
}

func TestLocateFindsExistingThread(t *testing.T) {
	l, providerRepo, threadRepo := newLocator()
	providerRepo.On("Find", mock.Anything, doe).Return(models.Provider{Type: "user", ID: "doe", Name: "John Doe"}, nil).Once()
	threadRepo.On("FindPrivateBetween", mock.Anything, tippin, doe).Return(models.Thread{ID: "t1", Type: models.ThreadPrivate}, nil).Once()

	result, err := l.Locate(context.Background(), tippin, "user", "doe")
	require.NoError(t, err)
	require.NotNil(t, result.Recipient)
	require.NotNil(t, result.Thread)
	assert.Equal(t, "John Doe", result.Recipient.Name)
	assert.Equal(t, "t1", result.Thread.ID)
	providerRepo.AssertExpectations(t)
	threadRepo.AssertExpectations(t)
}

func TestLocateWithoutThread(t *testing.T) {
	l, providerRepo, threadRepo := newLocator()
	providerRepo.On("Find", mock.Anything, doe).Return(models.Provider{Type: "user", ID: "doe"}, nil).Once()
	threadRepo.On("FindPrivateBetween", mock.Anything, tippin, doe).Return(nil, repositories.ErrThreadNotFound).Once()

	result, err := l.Locate(context.Background(), tippin, "user", "doe")
	require.NoError(t, err)
	require.NotNil(t, result.Recipient)
	assert.Nil(t, result.Thread)
}

func TestLocateReturnsEmptyResult(t *testing.T) {
	tests := []struct {
		name  string
		alias string
		id    string
		setup func(*mocks.ProviderRepositoryMock)
	}{
		{name: "unknown alias", alias: "robot", id: "r2", setup: func(*mocks.ProviderRepositoryMock) {}},
		{name: "unknown id", alias: "user", id: "ghost", setup: func(m *mocks.ProviderRepositoryMock) {
			m.On("Find", mock.Anything, models.Ref("user", "ghost")).Return(nil, repositories.ErrProviderNotFound).Once()
		}},
		{name: "self", alias: "user", id: "tippin", setup: func(*mocks.ProviderRepositoryMock) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, providerRepo, threadRepo := newLocator()
			tt.setup(providerRepo)

			result, err := l.Locate(context.Background(), tippin, tt.alias, tt.id)
			require.NoError(t, err)
			assert.Nil(t, result.Recipient)
			assert.Nil(t, result.Thread)
			providerRepo.AssertExpectations(t)
			threadRepo.AssertNotCalled(t, "FindPrivateBetween", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLocatePropagatesStorageErrors(t *testing.T) {
	l, providerRepo, _ := newLocator()
	providerRepo.On("Find", mock.Anything, doe).Return(nil, errors.New("connection reset")).Once()

	_, err := l.Locate(context.Background(), tippin, "user", "doe")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderNotFound)
}

func TestLocateOrFail(t *testing.T) {
	l, providerRepo, _ := newLocator()
	providerRepo.On("Find", mock.Anything, models.Ref("company", "acme")).Return(nil, repositories.ErrProviderNotFound).Once()

	_, err := l.LocateOrFail(context.Background(), tippin, "company", "acme")
	require.ErrorIs(t, err, ErrProviderNotFound)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}
