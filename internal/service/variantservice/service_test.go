package variantservice_test

import (
	"context"
	"errors"
	"testing"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/metrics"
	"gocatalog/internal/repository/memstore"
	"gocatalog/internal/service/hierarchyservice"
	"gocatalog/internal/service/productservice"
	"gocatalog/internal/service/variantservice"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	mem      *memstore.Store
	repos    domain.Store
	products *productservice.Service
	variants *variantservice.Service
}

func newFixture(t *testing.T) *fixture {
	log := logger.NewLogger("error")
	mem := memstore.New()
	repos := mem.Repositories()
	hierarchy := hierarchyservice.NewService(repos, log, 0)
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		mem:      mem,
		repos:    repos,
		products: productservice.NewService(mem, repos, hierarchy, log, 0),
		variants: variantservice.NewService(mem, log, 0),
	}
}

func (f *fixture) parent(sku string) domain.Product {
	stock := 5
	p, err := f.products.CreateProduct(f.ctx, domain.Product{
		SKU:              sku,
		Title:            "Camiseta Mito",
		Description:      "Algodão",
		Price:            decimal.NewFromInt(100),
		Weight:           decimal.RequireFromString("0.25"),
		WeightUnit:       "kg",
		Stock:            &stock,
		TrackStock:       true,
		AllowBackorder:   true,
		CustomAttributes: map[string]string{"material": "cotton"},
		Media:            map[domain.MediaSlot][]string{domain.MediaFront: {"img-1", "img-2"}},
	}, "")
	require.NoError(f.t, err)
	return p
}

func slugs(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.Slug
	}
	return out
}

func TestCreateVariant_Success(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")
	before := testutil.ToFloat64(metrics.VariantsCreated)

	variant, err := f.variants.CreateVariant(f.ctx, parent, []domain.Attribute{
		{Type: "color", Value: "red"},
		{Type: "size", Value: "s"},
	}, variantservice.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "TSH-RED-S", variant.SKU)
	assert.Equal(t, "Camiseta Mito - Red / S", variant.Title)
	assert.Equal(t, "camiseta-mito-red-s", variant.Slug)
	assert.Equal(t, "Algodão", variant.Description)
	assert.True(t, parent.Price.Equal(variant.Price))
	require.NotNil(t, variant.Stock)
	assert.Equal(t, 0, *variant.Stock)
	assert.True(t, variant.TrackStock)
	assert.False(t, variant.AllowBackorder)
	assert.Equal(t, domain.StatusActive, variant.Status)
	assert.Equal(t, map[string]string{"material": "cotton", "color": "red", "size": "s"}, variant.CustomAttributes)
	assert.Equal(t, []string{"img-1", "img-2"}, variant.Media[domain.MediaFront])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.VariantsCreated))

	hierarchy, err := f.repos.Tags.TagsFor(f.ctx, variant.ID, domain.GroupHierarchy)
	require.NoError(t, err)
	assert.Equal(t, []string{"parent-TSH"}, slugs(hierarchy))

	attrs, err := f.repos.Tags.TagsFor(f.ctx, variant.ID, domain.GroupAttributes)
	require.NoError(t, err)
	assert.Equal(t, []string{"color-red", "size-s"}, slugs(attrs))
	assert.Equal(t, "Color: Red", attrs[0].Title)

	sku, err := f.repos.Tags.TagsFor(f.ctx, variant.ID, domain.GroupSKU)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku-TSH-RED-S"}, slugs(sku))
}

func TestCreateVariant_AppliesOverrides(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")
	price := decimal.RequireFromString("120.50")
	stock := 9

	variant, err := f.variants.CreateVariant(f.ctx, parent, []domain.Attribute{{Type: "color", Value: "blue"}}, variantservice.Overrides{
		Price: &price,
		Stock: &stock,
		Media: map[domain.MediaSlot][]string{domain.MediaPrimary: {"blue.png"}},
	})

	require.NoError(t, err)
	assert.True(t, price.Equal(variant.Price))
	assert.Equal(t, 9, *variant.Stock)
	assert.Equal(t, []string{"blue.png"}, variant.Media[domain.MediaPrimary])
	assert.Empty(t, variant.Media[domain.MediaFront])
}

func TestCreateVariant_InheritsCategoriesAndSystemTags(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")
	require.NoError(t, f.products.AddToCategory(f.ctx, parent, "Apparel/T-Shirts"))
	require.NoError(t, f.products.AddSystemTag(f.ctx, parent, "price-tier-wholesale"))
	require.NoError(t, f.products.AddSystemTag(f.ctx, parent, "stock-tracked"))
	require.NoError(t, f.products.AddSystemTag(f.ctx, parent, "featured"))

	variant, err := f.variants.CreateVariant(f.ctx, parent, []domain.Attribute{{Type: "size", Value: "m"}}, variantservice.Overrides{})
	require.NoError(t, err)

	categories, err := f.products.CategoriesOf(f.ctx, variant)
	require.NoError(t, err)
	assert.Equal(t, []string{"category-apparel", "category-apparel-t-shirts"}, slugs(categories))

	system, err := f.products.SystemTags(f.ctx, variant)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"price-tier-wholesale", "stock-tracked"}, slugs(system))
}

func TestCreateVariant_Fail_Validation(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")

	tests := []struct {
		name  string
		attrs []domain.Attribute
	}{
		{"sem atributos", nil},
		{"tipo vazio", []domain.Attribute{{Type: "", Value: "red"}}},
		{"tipo com hífen", []domain.Attribute{{Type: "sleeve-length", Value: "long"}}},
		{"valor vazio", []domain.Attribute{{Type: "color", Value: " "}}},
		{"tipo repetido", []domain.Attribute{{Type: "color", Value: "red"}, {Type: "Color", Value: "blue"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.variants.CreateVariant(f.ctx, parent, tt.attrs, variantservice.Overrides{})
			var validationErr *apperror.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestCreateVariant_Fail_DuplicateSKU(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")
	attrs := []domain.Attribute{{Type: "color", Value: "red"}}

	_, err := f.variants.CreateVariant(f.ctx, parent, attrs, variantservice.Overrides{})
	require.NoError(t, err)
	_, err = f.variants.CreateVariant(f.ctx, parent, attrs, variantservice.Overrides{})

	assert.True(t, apperror.IsConflict(err))
}

func TestCreateVariant_Fail_ParentGone(t *testing.T) {
	f := newFixture(t)
	ghost := domain.Product{ID: "00000000-0000-0000-0000-000000000000", SKU: "GHOST", Title: "Fantasma", Price: decimal.NewFromInt(1)}

	_, err := f.variants.CreateVariant(f.ctx, ghost, []domain.Attribute{{Type: "color", Value: "red"}}, variantservice.Overrides{})

	assert.True(t, apperror.IsNotFound(err))
	_, err = f.repos.Products.FindBySKU(f.ctx, "GHOST-RED")
	assert.True(t, apperror.IsNotFound(err))
}

// failingTags derruba a criação de tags de atributo para forçar o rollback no meio do fluxo.
type failingTags struct {
	domain.TagStore
}

func (f failingTags) FindOrCreate(ctx context.Context, group domain.TagGroup, slug, title string) (domain.Tag, error) {
	if group == domain.GroupAttributes {
		return domain.Tag{}, errors.New("falha simulada")
	}
	return f.TagStore.FindOrCreate(ctx, group, slug, title)
}

type failingUnitOfWork struct {
	mem *memstore.Store
}

func (u failingUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	return u.mem.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		store.Tags = failingTags{store.Tags}
		return fn(ctx, store)
	})
}

func TestCreateVariant_RollsBackOnTagFailure(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("TSH")
	svc := variantservice.NewService(failingUnitOfWork{f.mem}, logger.NewLogger("error"), 0)
	before := testutil.ToFloat64(metrics.VariantFailures.WithLabelValues("single"))

	_, err := svc.CreateVariant(f.ctx, parent, []domain.Attribute{{Type: "color", Value: "red"}}, variantservice.Overrides{})

	var internalErr *apperror.InternalError
	require.ErrorAs(t, err, &internalErr)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.VariantFailures.WithLabelValues("single")))

	_, err = f.repos.Products.FindBySKU(f.ctx, "TSH-RED")
	assert.True(t, apperror.IsNotFound(err))
	_, found, err := f.repos.Tags.Find(f.ctx, domain.GroupSKU, "sku-TSH-RED")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = f.repos.Tags.Find(f.ctx, domain.GroupHierarchy, "parent-TSH")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateVariantMatrix_CartesianOrder(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("X")

	created, err := f.variants.CreateVariantMatrix(f.ctx, parent, []domain.OptionSet{
		{Type: "color", Values: []string{"red", "blue"}},
		{Type: "size", Values: []string{"s", "m"}},
	}, nil)

	require.NoError(t, err)
	require.Len(t, created, 4)
	assert.Equal(t, "X-RED-S", created[0].SKU)
	assert.Equal(t, "X-RED-M", created[1].SKU)
	assert.Equal(t, "X-BLUE-S", created[2].SKU)
	assert.Equal(t, "X-BLUE-M", created[3].SKU)

	for _, variant := range created {
		attrs, err := f.repos.Tags.TagsFor(f.ctx, variant.ID, domain.GroupAttributes)
		require.NoError(t, err)
		assert.Len(t, attrs, 2, variant.SKU)
		assert.True(t, parent.Price.Equal(variant.Price), variant.SKU)
	}

	tag, found, err := f.repos.Tags.Find(f.ctx, domain.GroupHierarchy, "parent-X")
	require.NoError(t, err)
	require.True(t, found)
	ids, err := f.repos.Tags.ProductsRelatedTo(f.ctx, tag.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestCreateVariantMatrix_PriceModifiers(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("X")

	created, err := f.variants.CreateVariantMatrix(f.ctx, parent, []domain.OptionSet{
		{Type: "color", Values: []string{"red", "blue"}},
		{Type: "size", Values: []string{"s", "xl"}},
	}, domain.PriceModifiers{
		"size":  {"xl": decimal.NewFromInt(10)},
		"color": {"blue": decimal.NewFromInt(-10)},
	})

	require.NoError(t, err)
	prices := map[string]string{}
	for _, variant := range created {
		prices[variant.SKU] = variant.Price.String()
	}
	assert.Equal(t, map[string]string{
		"X-RED-S":   "100",
		"X-RED-XL":  "110",
		"X-BLUE-S":  "90",
		"X-BLUE-XL": "100",
	}, prices)
}

func TestCreateVariantMatrix_PartialFailure(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("X")
	_, err := f.products.CreateProduct(f.ctx, domain.Product{SKU: "X-RED-M", Title: "Ocupado", Price: decimal.NewFromInt(1)}, "")
	require.NoError(t, err)
	before := testutil.ToFloat64(metrics.VariantFailures.WithLabelValues("matrix"))

	created, err := f.variants.CreateVariantMatrix(f.ctx, parent, []domain.OptionSet{
		{Type: "color", Values: []string{"red", "blue"}},
		{Type: "size", Values: []string{"s", "m"}},
	}, nil)

	require.Error(t, err)
	var partial *apperror.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failed, 1)
	assert.Equal(t, "X-RED-M", partial.Failed[0].Key)
	assert.True(t, apperror.IsConflict(partial.Failed[0].Err))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.VariantFailures.WithLabelValues("matrix")))

	require.Len(t, created, 3)
	assert.Equal(t, []string{"X-RED-S", "X-BLUE-S", "X-BLUE-M"}, []string{created[0].SKU, created[1].SKU, created[2].SKU})
}

func TestCreateVariantMatrix_Fail_Validation(t *testing.T) {
	f := newFixture(t)
	parent := f.parent("X")

	for _, options := range [][]domain.OptionSet{
		nil,
		{{Type: "color", Values: nil}},
		{{Type: "color", Values: []string{"red"}}, {Type: "color", Values: []string{"blue"}}},
	} {
		created, err := f.variants.CreateVariantMatrix(f.ctx, parent, options, nil)
		var validationErr *apperror.ValidationError
		assert.ErrorAs(t, err, &validationErr)
		assert.Empty(t, created)
	}
}
