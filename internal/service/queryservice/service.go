// Package queryservice compõe filtros de coluna e filtros mediados por tags numa única
// busca sobre o ProductRepository.
package queryservice

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"

	"github.com/shopspring/decimal"
)

// MaxLimit é o maior tamanho de página aceito; consultas sem Limit usam esse valor.
const MaxLimit = 100

// Service cria consultas sobre um Store.
type Service struct {
	store  domain.Store
	logger logger.Logger
}

// NewService cria o serviço de consultas.
func NewService(store domain.Store, log logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Query inicia uma consulta vazia (todos os produtos, ordem de criação).
func (s *Service) Query() *Query {
	return &Query{svc: s}
}

// Query acumula filtros. Dimensões diferentes combinam com E; Attributes exige todos os
// pares (E) e Categories aceita qualquer caminho (OU).
type Query struct {
	svc        *Service
	criteria   domain.ProductCriteria
	attributes []domain.Attribute
	categories []string
	parentSKU  string
	main       *bool
	variant    *bool
}

func (q *Query) SKU(sku string) *Query {
	q.criteria.SKU = sku
	return q
}

func (q *Query) PriceMin(price decimal.Decimal) *Query {
	q.criteria.MinPrice = &price
	return q
}

func (q *Query) PriceMax(price decimal.Decimal) *Query {
	q.criteria.MaxPrice = &price
	return q
}

// PriceRange é um atalho para PriceMin + PriceMax (limites inclusivos).
func (q *Query) PriceRange(low, high decimal.Decimal) *Query {
	return q.PriceMin(low).PriceMax(high)
}

// InStock(true) usa (¬trackStock ∨ stock > 0 ∨ allowBackorder); InStock(false) usa o
// predicado explícito de esgotado (trackStock ∧ stock ≤ 0 ∧ ¬allowBackorder).
func (q *Query) InStock(inStock bool) *Query {
	q.criteria.InStock = &inStock
	return q
}

func (q *Query) TrackStock(track bool) *Query {
	q.criteria.TrackStock = &track
	return q
}

func (q *Query) AllowBackorder(allow bool) *Query {
	q.criteria.AllowBackorder = &allow
	return q
}

func (q *Query) Status(status domain.ProductStatus) *Query {
	q.criteria.Status = status
	return q
}

// IsMainProduct(true) mantém só produtos sem tag de pai; false mantém só variantes.
func (q *Query) IsMainProduct(main bool) *Query {
	q.main = &main
	return q
}

// IsVariant é o complemento de IsMainProduct.
func (q *Query) IsVariant(variant bool) *Query {
	q.variant = &variant
	return q
}

// ParentSKU restringe às variantes diretas do produto com esse SKU.
func (q *Query) ParentSKU(sku string) *Query {
	q.parentSKU = sku
	return q
}

func (q *Query) Attributes(attrs ...domain.Attribute) *Query {
	q.attributes = append(q.attributes, attrs...)
	return q
}

// Categories recebe caminhos como "apparel/t-shirts".
func (q *Query) Categories(paths ...string) *Query {
	q.categories = append(q.categories, paths...)
	return q
}

func (q *Query) OrderBy(order domain.ProductOrder) *Query {
	q.criteria.OrderBy = order
	return q
}

func (q *Query) Desc() *Query {
	q.criteria.Descending = true
	return q
}

func (q *Query) Limit(n int) *Query {
	q.criteria.Limit = n
	return q
}

func (q *Query) Offset(n int) *Query {
	q.criteria.Offset = n
	return q
}

// All executa a consulta.
func (q *Query) All(ctx context.Context) ([]domain.Product, error) {
	criteria, empty, err := q.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return []domain.Product{}, nil
	}

	products, err := q.svc.store.Products.Find(ctx, criteria)
	if err != nil {
		q.svc.logger.Error("Falha ao consultar produtos.", err)
		return nil, err
	}
	q.svc.logger.Debug("Consulta de produtos executada.", map[string]interface{}{"results": len(products)})
	return products, nil
}

// One devolve o primeiro resultado, se houver.
func (q *Query) One(ctx context.Context) (domain.Product, bool, error) {
	products, err := q.Limit(1).All(ctx)
	if err != nil || len(products) == 0 {
		return domain.Product{}, false, err
	}
	return products[0], true, nil
}

// resolve valida os filtros e converte os filtros de tag em conjuntos de IDs.
// empty indica que algum filtro de tag já garante resultado vazio.
func (q *Query) resolve(ctx context.Context) (domain.ProductCriteria, bool, error) {
	c := q.criteria
	if err := validateCriteria(c); err != nil {
		return c, false, err
	}
	if c.Limit == 0 || c.Limit > MaxLimit {
		c.Limit = MaxLimit
	}
	if c.Status != "" {
		c.Status = domain.ProductStatus(strings.ToLower(string(c.Status)))
	}

	var only map[string]bool
	restrict := func(ids map[string]bool) {
		if only == nil {
			only = ids
			return
		}
		only = intersect(only, ids)
	}

	tags := q.svc.store.Tags
	wantVariants, wantMain := false, false
	if q.main != nil {
		wantMain, wantVariants = *q.main, !*q.main
	}
	if q.variant != nil {
		wantVariants = wantVariants || *q.variant
		wantMain = wantMain || !*q.variant
	}
	if wantMain || wantVariants {
		variants, err := variantIDs(ctx, tags)
		if err != nil {
			return c, false, err
		}
		if wantVariants {
			restrict(variants)
		}
		if wantMain {
			c.ExcludeIDs = append(c.ExcludeIDs, sortedKeys(variants)...)
		}
	}

	if q.parentSKU != "" {
		ids, err := holders(ctx, tags, domain.GroupHierarchy, domain.ParentSlug(q.parentSKU))
		if err != nil {
			return c, false, err
		}
		restrict(ids)
	}

	for _, attr := range q.attributes {
		ids, err := holders(ctx, tags, domain.GroupAttributes, domain.AttributeSlug(attr.Type, attr.Value))
		if err != nil {
			return c, false, err
		}
		restrict(ids)
	}

	if len(q.categories) > 0 {
		matched := map[string]bool{}
		for _, path := range q.categories {
			ids, err := holders(ctx, tags, domain.GroupCategories, domain.CategorySlug(normalizePath(path)))
			if err != nil {
				return c, false, err
			}
			for id := range ids {
				matched[id] = true
			}
		}
		restrict(matched)
	}

	if only != nil {
		if len(only) == 0 {
			return c, true, nil
		}
		c.RestrictToIDs = true
		c.OnlyIDs = sortedKeys(only)
	}
	return c, false, nil
}

func validateCriteria(c domain.ProductCriteria) error {
	if c.MinPrice != nil && c.MaxPrice != nil && c.MinPrice.GreaterThan(*c.MaxPrice) {
		return apperror.NewValidationError(fmt.Sprintf("Faixa de preço inválida: %s > %s.", c.MinPrice, c.MaxPrice))
	}
	if c.Limit < 0 || c.Offset < 0 {
		return apperror.NewValidationError("limit e offset não podem ser negativos.")
	}
	switch c.OrderBy {
	case domain.OrderByCreated, domain.OrderByPrice, domain.OrderByStock, domain.OrderBySKU:
	default:
		return apperror.NewValidationError(fmt.Sprintf("Ordenação desconhecida: %s.", c.OrderBy))
	}
	return nil
}

// holders devolve os produtos relacionados à tag; tag inexistente resulta em conjunto vazio.
func holders(ctx context.Context, tags domain.TagStore, group domain.TagGroup, slug string) (map[string]bool, error) {
	tag, found, err := tags.Find(ctx, group, slug)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]bool{}, nil
	}
	ids, err := tags.ProductsRelatedTo(ctx, tag.ID)
	if err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// variantIDs reúne todos os produtos com alguma tag parent-*.
func variantIDs(ctx context.Context, tags domain.TagStore) (map[string]bool, error) {
	parents, err := tags.TagsWithSlugPrefix(ctx, domain.GroupHierarchy, domain.ParentSlugPrefix)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, tag := range parents {
		ids, err := tags.ProductsRelatedTo(ctx, tag.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out, nil
}

// normalizePath segue a mesma normalização do cadastro de categorias.
func normalizePath(path string) string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg = strings.ToLower(strings.TrimSpace(seg)); seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/")
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for id := range a {
		if b[id] {
			out[id] = true
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for id := range set {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
