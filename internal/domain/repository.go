package domain

import "context"

// --- Contratos de persistência ---

// ProductRepository persiste produtos por ID substituto e SKU único.
// Buscas por ID/SKU retornam errors.NotFoundError quando não há registro.
type ProductRepository interface {
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	FindByID(ctx context.Context, id string) (Product, error)
	FindBySKU(ctx context.Context, sku string) (Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]Product, error)
	Find(ctx context.Context, criteria ProductCriteria) ([]Product, error)
}

// TagStore mapeia (grupo, slug) para tags e mantém a relação N:N produto-tag.
// FindOrCreate deve convergir para um único registro mesmo com chamadas concorrentes,
// o que exige restrição de unicidade no armazenamento.
type TagStore interface {
	FindOrCreate(ctx context.Context, group TagGroup, slug, title string) (Tag, error)
	Find(ctx context.Context, group TagGroup, slug string) (Tag, bool, error)
	Relate(ctx context.Context, productID, tagID string) error
	Unrelate(ctx context.Context, productID, tagID string) error
	TagsFor(ctx context.Context, productID string, group TagGroup) ([]Tag, error)
	ProductsRelatedTo(ctx context.Context, tagID string) ([]string, error)
	TagsWithSlugPrefix(ctx context.Context, group TagGroup, prefix string) ([]Tag, error)
}

// Store agrupa os repositórios ligados a uma mesma transação.
type Store struct {
	Products ProductRepository
	Tags     TagStore
}

// UnitOfWork executa fn numa transação: ou tudo é confirmado, ou nada.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
