// Package variantservice cria variantes a partir de um produto pai, uma a uma ou pela
// matriz completa de combinações de atributos.
package variantservice

import (
	"context"
	"fmt"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/metrics"
	"gocatalog/internal/service/productservice"

	"github.com/shopspring/decimal"
)

// Prefixos de tags de sistema que o pai repassa às variantes.
var inheritedSystemPrefixes = []string{"price-tier", "stock"}

// Overrides substitui campos que a variante herdaria do pai. Campos nil herdam.
type Overrides struct {
	Price  *decimal.Decimal              `json:"price,omitempty"`
	Weight *decimal.Decimal              `json:"weight,omitempty"`
	Stock  *int                          `json:"stock,omitempty"`
	Media  map[domain.MediaSlot][]string `json:"media,omitempty"`
}

// Service implementa a geração de variantes.
type Service struct {
	uow         domain.UnitOfWork
	logger      logger.Logger
	minSegments int
}

// NewService cria o gerador de variantes.
func NewService(uow domain.UnitOfWork, log logger.Logger, minSegments int) *Service {
	if minSegments <= 0 {
		minSegments = productservice.DefaultParentMinSegments
	}
	return &Service{uow: uow, logger: log, minSegments: minSegments}
}

// CreateVariant grava a variante e todas as suas tags numa única transação: registro,
// sku-<SKU>, parent-<SKU do pai>, atributos, categorias do pai e as tags de sistema
// price-tier* / stock* do pai. Se qualquer passo falhar, nada é gravado.
func (s *Service) CreateVariant(ctx context.Context, parent domain.Product, attrs []domain.Attribute, overrides Overrides) (domain.Product, error) {
	return s.createVariant(ctx, parent, attrs, overrides, "single")
}

func (s *Service) createVariant(ctx context.Context, parent domain.Product, attrs []domain.Attribute, overrides Overrides, operation string) (domain.Product, error) {
	if err := validateAttributes(attrs); err != nil {
		return domain.Product{}, err
	}

	variant := buildVariant(parent, attrs, overrides)
	s.logger.Debug("Criando variante.", map[string]interface{}{"parent": parent.SKU, "sku": variant.SKU})

	if err := productservice.ValidateProduct(variant); err != nil {
		s.logger.Warn("Variante rejeitada na validação.", map[string]interface{}{"sku": variant.SKU, "error": err.Error()})
		metrics.VariantFailures.WithLabelValues(operation).Inc()
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		created, err = s.persist(ctx, store, parent, variant, attrs)
		return err
	})
	if err != nil {
		metrics.VariantFailures.WithLabelValues(operation).Inc()
		s.logger.Error(fmt.Sprintf("Falha ao criar variante %s; transação desfeita.", variant.SKU), err)
		var appErr apperror.AppError
		if apperror.As(err, &appErr) {
			return domain.Product{}, err
		}
		return domain.Product{}, apperror.NewInternalError(fmt.Sprintf("falha ao criar variante %s", variant.SKU), err)
	}

	metrics.VariantsCreated.Inc()
	s.logger.Info("Variante criada.", map[string]interface{}{"id": created.ID, "sku": created.SKU, "parent": parent.SKU})
	return created, nil
}

func (s *Service) persist(ctx context.Context, store domain.Store, parent, variant domain.Product, attrs []domain.Attribute) (domain.Product, error) {
	// O pai é relido dentro da transação: pode ter sido alterado desde que o chamador o carregou.
	parent, err := store.Products.FindByID(ctx, parent.ID)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := productservice.Register(ctx, store, variant, parent.SKU, s.minSegments)
	if err != nil {
		return domain.Product{}, err
	}

	for _, attr := range attrs {
		slug := domain.AttributeSlug(attr.Type, attr.Value)
		if _, err := productservice.AttachTag(ctx, store, created.ID, domain.GroupAttributes, slug, domain.AttributeTagTitle(attr.Type, attr.Value)); err != nil {
			return domain.Product{}, err
		}
	}

	if err := productservice.InheritCategories(ctx, store, parent, created); err != nil {
		return domain.Product{}, err
	}

	systemTags, err := store.Tags.TagsFor(ctx, parent.ID, domain.GroupSystem)
	if err != nil {
		return domain.Product{}, err
	}
	for _, tag := range systemTags {
		if !hasAnyPrefix(tag.Slug, inheritedSystemPrefixes) {
			continue
		}
		if err := store.Tags.Relate(ctx, created.ID, tag.ID); err != nil {
			return domain.Product{}, err
		}
	}

	return created, nil
}

// CreateVariantMatrix cria uma variante por combinação do produto cartesiano de options,
// na ordem das listas (o primeiro tipo é o laço mais externo). Cada combinação roda na sua
// própria transação; as que falham são registradas e devolvidas num PartialFailureError
// junto com as variantes criadas.
func (s *Service) CreateVariantMatrix(ctx context.Context, parent domain.Product, options []domain.OptionSet, modifiers domain.PriceModifiers) ([]domain.Product, error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}

	combos := combinations(options)
	s.logger.Info("Gerando matriz de variantes.", map[string]interface{}{"parent": parent.SKU, "combinations": len(combos)})

	created := make([]domain.Product, 0, len(combos))
	var failed []apperror.FailedItem
	for _, combo := range combos {
		var overrides Overrides
		if delta := priceDelta(combo, modifiers); !delta.IsZero() {
			price := parent.Price.Add(delta)
			overrides.Price = &price
		}

		variant, err := s.createVariant(ctx, parent, combo, overrides, "matrix")
		if err != nil {
			key := variantSKU(parent.SKU, combo)
			s.logger.Warn("Combinação ignorada na matriz de variantes.", map[string]interface{}{"sku": key, "error": err.Error()})
			failed = append(failed, apperror.FailedItem{Key: key, Err: err})
			continue
		}
		created = append(created, variant)
	}

	if len(failed) > 0 {
		return created, apperror.NewPartialFailureError(
			fmt.Sprintf("%d de %d variantes não foram criadas", len(failed), len(combos)), failed)
	}
	return created, nil
}

func buildVariant(parent domain.Product, attrs []domain.Attribute, o Overrides) domain.Product {
	values := make([]string, len(attrs))
	for i, attr := range attrs {
		values[i] = domain.UpperFirst(attr.Value)
	}

	custom := make(map[string]string, len(parent.CustomAttributes)+len(attrs))
	for k, v := range parent.CustomAttributes {
		custom[k] = v
	}
	for _, attr := range attrs {
		custom[attr.Type] = attr.Value
	}

	zero := 0
	variant := domain.Product{
		SKU:              variantSKU(parent.SKU, attrs),
		Title:            parent.Title + " - " + strings.Join(values, " / "),
		Description:      parent.Description,
		Price:            parent.Price,
		Weight:           parent.Weight,
		WeightUnit:       parent.WeightUnit,
		Stock:            &zero,
		TrackStock:       parent.TrackStock,
		Status:           domain.StatusActive,
		IsDigital:        parent.IsDigital,
		CustomAttributes: custom,
		Media:            copyMedia(parent.Media),
	}
	variant.Slug = domain.Slugify(variant.Title)

	if o.Price != nil {
		variant.Price = *o.Price
	}
	if o.Weight != nil {
		variant.Weight = *o.Weight
	}
	if o.Stock != nil {
		stock := *o.Stock
		variant.Stock = &stock
	}
	if o.Media != nil {
		variant.Media = copyMedia(o.Media)
	}
	return variant
}

// variantSKU: SKU do pai seguido de -<VALOR> para cada atributo, na ordem dada.
func variantSKU(parentSKU string, attrs []domain.Attribute) string {
	var b strings.Builder
	b.WriteString(parentSKU)
	for _, attr := range attrs {
		b.WriteString("-")
		b.WriteString(strings.ToUpper(attr.Value))
	}
	return b.String()
}

func priceDelta(combo []domain.Attribute, modifiers domain.PriceModifiers) decimal.Decimal {
	delta := decimal.Zero
	for _, attr := range combo {
		if d, ok := modifiers[attr.Type][attr.Value]; ok {
			delta = delta.Add(d)
		}
	}
	return delta
}

// combinations gera o produto cartesiano com o primeiro OptionSet variando mais devagar.
func combinations(options []domain.OptionSet) [][]domain.Attribute {
	combos := [][]domain.Attribute{{}}
	for _, set := range options {
		next := make([][]domain.Attribute, 0, len(combos)*len(set.Values))
		for _, prefix := range combos {
			for _, value := range set.Values {
				combo := make([]domain.Attribute, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, domain.Attribute{Type: set.Type, Value: value}))
			}
		}
		combos = next
	}
	return combos
}

func validateAttributes(attrs []domain.Attribute) error {
	if len(attrs) == 0 {
		return apperror.NewValidationError("A variante precisa de ao menos um atributo.")
	}
	seen := map[string]bool{}
	for _, attr := range attrs {
		if err := validateType(attr.Type); err != nil {
			return err
		}
		if strings.TrimSpace(attr.Value) == "" {
			return apperror.NewValidationError(fmt.Sprintf("O atributo %s está sem valor.", attr.Type))
		}
		key := strings.ToLower(attr.Type)
		if seen[key] {
			return apperror.NewValidationError(fmt.Sprintf("Atributo %s repetido.", attr.Type))
		}
		seen[key] = true
	}
	return nil
}

func validateOptions(options []domain.OptionSet) error {
	if len(options) == 0 {
		return apperror.NewValidationError("Informe ao menos um conjunto de opções.")
	}
	seen := map[string]bool{}
	for _, set := range options {
		if err := validateType(set.Type); err != nil {
			return err
		}
		if len(set.Values) == 0 {
			return apperror.NewValidationError(fmt.Sprintf("O atributo %s não tem valores.", set.Type))
		}
		key := strings.ToLower(set.Type)
		if seen[key] {
			return apperror.NewValidationError(fmt.Sprintf("Atributo %s repetido.", set.Type))
		}
		seen[key] = true
	}
	return nil
}

// validateType: o tipo vai antes do primeiro '-' no slug, então não pode contê-lo.
func validateType(attrType string) error {
	if strings.TrimSpace(attrType) == "" {
		return apperror.NewValidationError("O tipo do atributo é obrigatório.")
	}
	if strings.Contains(attrType, "-") {
		return apperror.NewValidationError(fmt.Sprintf("O tipo de atributo %s não pode conter '-'.", attrType))
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func copyMedia(in map[domain.MediaSlot][]string) map[domain.MediaSlot][]string {
	if in == nil {
		return nil
	}
	out := make(map[domain.MediaSlot][]string, len(in))
	for slot, ids := range in {
		out[slot] = append([]string(nil), ids...)
	}
	return out
}
