package productrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/errors"
	"gocatalog/internal/pkg/database"
)

// AdjustStock soma delta ao estoque numa única instrução UPDATE condicional.
// A condição na própria linha substitui o par SELECT FOR UPDATE + versão:
// o banco serializa as escritas e nenhuma atualização concorrente se perde.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const adjustSQL = `UPDATE products SET stock = COALESCE(stock, 0) + $2, updated_at = $3
		WHERE id = $1 AND track_stock AND COALESCE(stock, 0) + $2 >= 0
		RETURNING ` + productColumns

	row := r.DB.QueryRowContext(ctxTimeout, adjustSQL, productID, delta, time.Now().UTC())
	product, err := scanProduct(row)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return domain.Product{}, r.explainRejectedAdjustment(ctxTimeout, productID, delta)
	}
	if database.IsOutOfRange(err) {
		return domain.Product{}, errors.NewValidationError(fmt.Sprintf("O estoque resultante excede o limite de %d.", domain.MaxStock))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao ajustar estoque no DB", err)
	}

	r.invalidate(ctx, productID)
	return product, nil
}

// explainRejectedAdjustment descobre por que o UPDATE não afetou nenhuma linha.
// Lê direto do banco: o cache pode estar defasado justamente neste ponto.
func (r *ProductRepository) explainRejectedAdjustment(ctx context.Context, productID string, delta int) error {
	var (
		tracked bool
		stock   sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, `SELECT track_stock, stock FROM products WHERE id = $1`, productID).Scan(&tracked, &stock)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", productID))
	}
	if err != nil {
		return errors.NewDBError("Falha ao ler estoque no DB", err)
	}
	if !tracked {
		return errors.NewValidationError("O produto não controla estoque.")
	}
	return errors.NewConflictError(fmt.Sprintf("Estoque insuficiente: disponível %d, ajuste %d.", stock.Int64, delta))
}
