package stockservice

import (
	"context"
	"fmt"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"

	"github.com/google/uuid"
)

// Service aplica ajustes de estoque sobre produtos que controlam estoque.
type Service struct {
	repo   domain.StockStore
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(repo domain.StockStore, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// AdjustStock soma delta (positivo ou negativo) ao estoque do produto.
// O estoque resultante nunca fica negativo; um estoque nulo conta como zero.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"product_id": productID,
		"delta":      delta,
	})

	if delta == 0 {
		return domain.Product{}, apperror.NewValidationError("O ajuste de estoque (delta) não pode ser zero.")
	}
	if delta > domain.MaxStock || delta < -domain.MaxStock {
		return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("O ajuste de estoque deve estar entre -%d e %d.", domain.MaxStock, domain.MaxStock))
	}
	if _, err := uuid.Parse(productID); err != nil {
		return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("ID de produto inválido: %s", productID))
	}

	product, err := s.repo.AdjustStock(ctx, productID, delta)
	if err != nil {
		var appErr apperror.AppError
		if apperror.As(err, &appErr) && appErr.HTTPStatus() < 500 {
			s.logger.Warn("Ajuste de estoque recusado.", map[string]interface{}{"product_id": productID, "delta": delta, "reason": err.Error()})
			return domain.Product{}, err
		}
		s.logger.Error("Falha ao ajustar estoque no repositório.", err)
		return domain.Product{}, apperror.NewInternalError("Falha interna ao ajustar estoque.", err)
	}

	fields := map[string]interface{}{"product_id": product.ID, "sku": product.SKU}
	if product.Stock != nil {
		fields["new_quantity"] = *product.Stock
	}
	s.logger.Info("Estoque ajustado com sucesso.", fields)
	return product, nil
}
