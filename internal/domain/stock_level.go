package domain

import (
	"context"
	"math"
)

// MaxStock é o maior estoque representável: a coluna stock é INTEGER.
const MaxStock = math.MaxInt32

// StockAdjustmentRequest é o payload esperado para a requisição de ajuste de estoque.
type StockAdjustmentRequest struct {
	Delta int `json:"delta" validate:"required"` // Quantidade a ser adicionada/removida
}

// StockStore aplica ajustes de estoque de forma atômica. Dois ajustes concorrentes
// sobre o mesmo produto nunca perdem atualização.
//
// Erros esperados: NotFoundError (produto inexistente), ValidationError (produto
// sem controle de estoque ou estoque resultante acima de MaxStock) e ConflictError
// (o ajuste deixaria o estoque negativo).
type StockStore interface {
	AdjustStock(ctx context.Context, productID string, delta int) (Product, error)
}
