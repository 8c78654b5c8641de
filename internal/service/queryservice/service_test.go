package queryservice_test

import (
	"context"
	"testing"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/repository/memstore"
	"gocatalog/internal/service/hierarchyservice"
	"gocatalog/internal/service/productservice"
	"gocatalog/internal/service/queryservice"
	"gocatalog/internal/service/variantservice"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	ctx      context.Context
	svc      *queryservice.Service
	tee      domain.Product
	polo     domain.Product
	mug      domain.Product
	variants []domain.Product
}

// newCatalog monta: TEE (com 4 variantes cor x tamanho, em apparel/t-shirts),
// POLO (apparel/polos, esgotado) e MUG (sem categoria, sem controle de estoque).
func newCatalog(t *testing.T) *catalog {
	ctx := context.Background()
	log := logger.NewLogger("error")
	mem := memstore.New()
	repos := mem.Repositories()
	products := productservice.NewService(mem, repos, hierarchyservice.NewService(repos, log, 0), log, 0)
	variants := variantservice.NewService(mem, log, 0)

	create := func(sku string, price int64, stock int, track bool) domain.Product {
		p, err := products.CreateProduct(ctx, domain.Product{
			SKU:        sku,
			Title:      sku,
			Price:      decimal.NewFromInt(price),
			Stock:      &stock,
			TrackStock: track,
		}, "")
		require.NoError(t, err)
		return p
	}

	c := &catalog{ctx: ctx, svc: queryservice.NewService(repos, log)}
	c.tee = create("TEE", 50, 10, true)
	c.polo = create("POLO", 80, 0, true)
	c.mug = create("MUG", 20, 0, false)
	require.NoError(t, products.AddToCategory(ctx, c.tee, "apparel/t-shirts"))
	require.NoError(t, products.AddToCategory(ctx, c.polo, "apparel/polos"))

	created, err := variants.CreateVariantMatrix(ctx, c.tee, []domain.OptionSet{
		{Type: "color", Values: []string{"red", "blue"}},
		{Type: "size", Values: []string{"s", "m"}},
	}, domain.PriceModifiers{"size": {"m": decimal.NewFromInt(5)}})
	require.NoError(t, err)
	c.variants = created
	return c
}

func skus(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.SKU
	}
	return out
}

func TestQuery_MainAndVariantPartitionCatalog(t *testing.T) {
	c := newCatalog(t)

	all, err := c.svc.Query().All(c.ctx)
	require.NoError(t, err)
	mains, err := c.svc.Query().IsMainProduct(true).All(c.ctx)
	require.NoError(t, err)
	variants, err := c.svc.Query().IsVariant(true).All(c.ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"TEE", "POLO", "MUG"}, skus(mains))
	assert.Equal(t, []string{"TEE-RED-S", "TEE-RED-M", "TEE-BLUE-S", "TEE-BLUE-M"}, skus(variants))
	assert.Len(t, all, len(mains)+len(variants))
	assert.ElementsMatch(t, skus(all), append(skus(mains), skus(variants)...))

	notMain, err := c.svc.Query().IsMainProduct(false).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, skus(variants), skus(notMain))

	none, err := c.svc.Query().IsMainProduct(true).IsVariant(true).All(c.ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQuery_AttributesAreConjunctive(t *testing.T) {
	c := newCatalog(t)

	red, err := c.svc.Query().Attributes(domain.Attribute{Type: "color", Value: "red"}).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEE-RED-S", "TEE-RED-M"}, skus(red))

	redM, err := c.svc.Query().Attributes(
		domain.Attribute{Type: "color", Value: "red"},
		domain.Attribute{Type: "size", Value: "m"},
	).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEE-RED-M"}, skus(redM))

	unknown, err := c.svc.Query().Attributes(domain.Attribute{Type: "color", Value: "green"}).All(c.ctx)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestQuery_CategoriesAreDisjunctive(t *testing.T) {
	c := newCatalog(t)

	shirts, err := c.svc.Query().Categories("Apparel/T-Shirts").IsMainProduct(true).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEE"}, skus(shirts))

	both, err := c.svc.Query().Categories("apparel/t-shirts", "apparel/polos", "toys").IsMainProduct(true).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEE", "POLO"}, skus(both))

	apparel, err := c.svc.Query().Categories("apparel").All(c.ctx)
	require.NoError(t, err)
	assert.Len(t, apparel, 6)
}

func TestQuery_ParentSKU(t *testing.T) {
	c := newCatalog(t)

	children, err := c.svc.Query().ParentSKU("TEE").PriceMin(decimal.NewFromInt(55)).All(c.ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"TEE-RED-M", "TEE-BLUE-M"}, skus(children))
}

func TestQuery_StockPredicates(t *testing.T) {
	c := newCatalog(t)

	inStock, err := c.svc.Query().IsMainProduct(true).InStock(true).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEE", "MUG"}, skus(inStock))

	outOfStock, err := c.svc.Query().IsMainProduct(true).InStock(false).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"POLO"}, skus(outOfStock))

	untracked, err := c.svc.Query().TrackStock(false).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MUG"}, skus(untracked))
}

func TestQuery_OrderingAndPaging(t *testing.T) {
	c := newCatalog(t)

	page, err := c.svc.Query().IsMainProduct(true).OrderBy(domain.OrderByPrice).Desc().Limit(2).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"POLO", "TEE"}, skus(page))

	next, err := c.svc.Query().IsMainProduct(true).OrderBy(domain.OrderByPrice).Desc().Limit(2).Offset(2).All(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MUG"}, skus(next))

	cheapest, found, err := c.svc.Query().OrderBy(domain.OrderByPrice).One(c.ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "MUG", cheapest.SKU)

	_, found, err = c.svc.Query().SKU("NOPE").One(c.ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQuery_Fail_Validation(t *testing.T) {
	c := newCatalog(t)

	queries := map[string]*queryservice.Query{
		"faixa invertida":    c.svc.Query().PriceRange(decimal.NewFromInt(10), decimal.NewFromInt(5)),
		"limit negativo":     c.svc.Query().Limit(-1),
		"offset negativo":    c.svc.Query().Offset(-3),
		"ordem desconhecida": c.svc.Query().OrderBy(domain.ProductOrder("title")),
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			_, err := q.All(c.ctx)
			var validationErr *apperror.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

// MockProductRepository registra os critérios que chegam ao repositório.
type MockProductRepository struct {
	mock.Mock
	domain.ProductRepository
}

func (m *MockProductRepository) Find(ctx context.Context, criteria domain.ProductCriteria) ([]domain.Product, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func TestQuery_CapsLimitAndPassesColumnFilters(t *testing.T) {
	repo := new(MockProductRepository)
	store := domain.Store{Products: repo, Tags: memstore.New().Repositories().Tags}
	svc := queryservice.NewService(store, logger.NewLogger("error"))

	repo.On("Find", mock.Anything, mock.MatchedBy(func(c domain.ProductCriteria) bool {
		return c.Limit == queryservice.MaxLimit &&
			c.Status == domain.StatusActive &&
			c.AllowBackorder != nil && *c.AllowBackorder &&
			!c.RestrictToIDs
	})).Return([]domain.Product{}, nil).Once()

	products, err := svc.Query().Status("ACTIVE").AllowBackorder(true).Limit(500).All(context.Background())

	require.NoError(t, err)
	assert.Empty(t, products)
	repo.AssertExpectations(t)
}

func TestQuery_MissingTagSkipsRepository(t *testing.T) {
	repo := new(MockProductRepository)
	store := domain.Store{Products: repo, Tags: memstore.New().Repositories().Tags}
	svc := queryservice.NewService(store, logger.NewLogger("error"))

	products, err := svc.Query().ParentSKU("GHOST").All(context.Background())

	require.NoError(t, err)
	assert.Empty(t, products)
	repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}
