package stockservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/stockservice"
)

// MockStockStore é uma implementação mock da interface domain.StockStore
type MockStockStore struct {
	mock.Mock
}

func (m *MockStockStore) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	args := m.Called(ctx, productID, delta)
	return args.Get(0).(domain.Product), args.Error(1)
}

func newService() (*stockservice.Service, *MockStockStore) {
	repo := new(MockStockStore)
	return stockservice.NewService(repo, logger.NewLogger("error")), repo
}

// TestAdjustStock_Success testa um ajuste de estoque bem-sucedido.
func TestAdjustStock_Success(t *testing.T) {
	svc, repo := newService()
	productID := uuid.New().String()
	quantity := 15

	repo.On("AdjustStock", mock.Anything, productID, 5).
		Return(domain.Product{ID: productID, SKU: "TEE", TrackStock: true, Stock: &quantity}, nil).Once()

	result, err := svc.AdjustStock(context.Background(), productID, 5)

	require.NoError(t, err)
	assert.Equal(t, 15, *result.Stock)
	repo.AssertExpectations(t)
}

// TestAdjustStock_Fail_ZeroDelta testa o caso onde o delta é zero.
func TestAdjustStock_Fail_ZeroDelta(t *testing.T) {
	svc, repo := newService()

	_, err := svc.AdjustStock(context.Background(), uuid.New().String(), 0)

	assert.IsType(t, &apperror.ValidationError{}, err)
	repo.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdjustStock_Fail_InvalidID(t *testing.T) {
	svc, repo := newService()

	_, err := svc.AdjustStock(context.Background(), "not-a-uuid", 1)

	assert.IsType(t, &apperror.ValidationError{}, err)
	repo.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything)
}

// TestAdjustStock_DomainErrorsPassThrough garante que os erros 4xx do repositório chegam intactos ao handler.
func TestAdjustStock_DomainErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want interface{}
	}{
		{"estoque insuficiente", apperror.NewConflictError("Estoque insuficiente."), &apperror.ConflictError{}},
		{"sem controle", apperror.NewValidationError("O produto não controla estoque."), &apperror.ValidationError{}},
		{"inexistente", apperror.NewNotFoundError("Produto não existe."), &apperror.NotFoundError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService()
			productID := uuid.New().String()
			repo.On("AdjustStock", mock.Anything, productID, -3).Return(domain.Product{}, tt.err).Once()

			_, err := svc.AdjustStock(context.Background(), productID, -3)

			assert.IsType(t, tt.want, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestAdjustStock_Fail_UnexpectedErrorBecomesInternal(t *testing.T) {
	svc, repo := newService()
	productID := uuid.New().String()
	cause := errors.New("conexão recusada")
	repo.On("AdjustStock", mock.Anything, productID, 1).Return(domain.Product{}, cause).Once()

	_, err := svc.AdjustStock(context.Background(), productID, 1)

	assert.IsType(t, &apperror.InternalError{}, err)
	assert.ErrorIs(t, err, cause)
}

// TestAdjustStock_Fail_DeltaOutOfRange recusa ajustes que não cabem na coluna INTEGER.
func TestAdjustStock_Fail_DeltaOutOfRange(t *testing.T) {
	svc, repo := newService()

	for _, delta := range []int{domain.MaxStock + 1, -domain.MaxStock - 1} {
		_, err := svc.AdjustStock(context.Background(), uuid.New().String(), delta)
		assert.IsType(t, &apperror.ValidationError{}, err, "delta %d", delta)
	}
	repo.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything)
}
