// Package txstore liga os repositórios PostgreSQL a uma transação por unidade de trabalho.
package txstore

import (
	"context"
	"database/sql"

	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/repository/productrepo"
	"gocatalog/internal/repository/tagrepo"
)

// UnitOfWork implementa domain.UnitOfWork sobre *sql.DB.
type UnitOfWork struct {
	DB       *sql.DB
	Products *productrepo.ProductRepository
	Tags     *tagrepo.TagRepository
}

// New cria a unidade de trabalho a partir dos repositórios já configurados.
func New(db *sql.DB, products *productrepo.ProductRepository, tags *tagrepo.TagRepository) *UnitOfWork {
	return &UnitOfWork{DB: db, Products: products, Tags: tags}
}

// Repositories devolve os repositórios que operam fora de transação.
func (u *UnitOfWork) Repositories() domain.Store {
	return domain.Store{Products: u.Products, Tags: u.Tags}
}

// WithinTx executa fn com repositórios ligados a uma única transação.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	return database.RunInTx(ctx, u.DB, func(tx *sql.Tx) error {
		return fn(ctx, domain.Store{
			Products: u.Products.WithTx(tx),
			Tags:     u.Tags.WithTx(tx),
		})
	})
}
