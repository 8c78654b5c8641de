// Package attributeservice deriva os atributos de variante (cor, tamanho...) das tags
// do grupo attributes e responde às consultas do seletor de variantes.
package attributeservice

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/hierarchyservice"
)

// VariantGroup agrupa as variantes que carregam um tipo de atributo.
type VariantGroup struct {
	Type     string           `json:"type"`
	Variants []domain.Product `json:"variants"`
}

// OptionValues lista os valores disponíveis de um tipo, na ordem em que aparecem.
type OptionValues struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Service implementa o índice de atributos.
type Service struct {
	store     domain.Store
	hierarchy *hierarchyservice.Service
	logger    logger.Logger
}

// NewService cria o serviço de atributos.
func NewService(store domain.Store, hierarchy *hierarchyservice.Service, log logger.Logger) *Service {
	return &Service{store: store, hierarchy: hierarchy, logger: log}
}

// AttributesOf lê as tags de atributo do produto, ordenadas por tipo.
// Slugs que não seguem <tipo>-<valor> são ignorados.
func (s *Service) AttributesOf(ctx context.Context, p domain.Product) ([]domain.Attribute, error) {
	tags, err := s.store.Tags.TagsFor(ctx, p.ID, domain.GroupAttributes)
	if err != nil {
		return nil, err
	}

	attrs := make([]domain.Attribute, 0, len(tags))
	for _, tag := range tags {
		attrType, value, ok := domain.ParseAttributeSlug(tag.Slug)
		if !ok {
			s.logger.Warn("Tag de atributo com slug malformado.", map[string]interface{}{"slug": tag.Slug, "sku": p.SKU})
			continue
		}
		attrs = append(attrs, domain.Attribute{Type: attrType, Value: value})
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Type < attrs[j].Type })
	return attrs, nil
}

// GroupedVariants coloca cada variante direta sob cada tipo de atributo que ela carrega.
// Os grupos aparecem na ordem em que o tipo foi visto pela primeira vez.
func (s *Service) GroupedVariants(ctx context.Context, main domain.Product) ([]VariantGroup, error) {
	variants, err := s.hierarchy.DirectVariantsOf(ctx, main)
	if err != nil {
		return nil, err
	}

	var groups []VariantGroup
	index := map[string]int{}
	for _, variant := range variants {
		attrs, err := s.AttributesOf(ctx, variant)
		if err != nil {
			return nil, err
		}
		for _, attr := range attrs {
			i, ok := index[attr.Type]
			if !ok {
				i = len(groups)
				index[attr.Type] = i
				groups = append(groups, VariantGroup{Type: attr.Type})
			}
			groups[i].Variants = append(groups[i].Variants, variant)
		}
	}
	if groups == nil {
		groups = []VariantGroup{}
	}
	return groups, nil
}

// AvailableOptions é como GroupedVariants, mas só com variantes em estoque e valores sem repetição.
func (s *Service) AvailableOptions(ctx context.Context, main domain.Product) ([]OptionValues, error) {
	variants, err := s.hierarchy.DirectVariantsOf(ctx, main)
	if err != nil {
		return nil, err
	}

	var options []OptionValues
	index := map[string]int{}
	seen := map[string]map[string]bool{}
	for _, variant := range variants {
		if !variant.IsInStock() {
			continue
		}
		attrs, err := s.AttributesOf(ctx, variant)
		if err != nil {
			return nil, err
		}
		for _, attr := range attrs {
			i, ok := index[attr.Type]
			if !ok {
				i = len(options)
				index[attr.Type] = i
				options = append(options, OptionValues{Type: attr.Type})
				seen[attr.Type] = map[string]bool{}
			}
			if seen[attr.Type][attr.Value] {
				continue
			}
			seen[attr.Type][attr.Value] = true
			options[i].Values = append(options[i].Values, attr.Value)
		}
	}
	if options == nil {
		options = []OptionValues{}
	}
	return options, nil
}

// FindVariant procura, entre as variantes diretas de main, a que carrega todas as tags de
// atributo pedidas (E lógico). Uma tag que nem existe significa que nenhuma variante casa.
func (s *Service) FindVariant(ctx context.Context, main domain.Product, attrs []domain.Attribute) (domain.Product, bool, error) {
	if len(attrs) == 0 {
		return domain.Product{}, false, apperror.NewValidationError("Informe ao menos um atributo.")
	}

	parentTag, found, err := s.store.Tags.Find(ctx, domain.GroupHierarchy, domain.ParentSlug(main.SKU))
	if err != nil || !found {
		return domain.Product{}, false, err
	}
	ids, err := s.store.Tags.ProductsRelatedTo(ctx, parentTag.ID)
	if err != nil {
		return domain.Product{}, false, err
	}
	candidates := toSet(ids)

	for _, attr := range attrs {
		tag, found, err := s.store.Tags.Find(ctx, domain.GroupAttributes, domain.AttributeSlug(attr.Type, attr.Value))
		if err != nil {
			return domain.Product{}, false, err
		}
		if !found {
			return domain.Product{}, false, nil
		}
		holders, err := s.store.Tags.ProductsRelatedTo(ctx, tag.ID)
		if err != nil {
			return domain.Product{}, false, err
		}
		candidates = intersect(candidates, toSet(holders))
		if len(candidates) == 0 {
			return domain.Product{}, false, nil
		}
	}

	// ids já está em ordem de criação; a primeira candidata restante vence.
	for _, id := range ids {
		if candidates[id] {
			product, err := s.store.Products.FindByID(ctx, id)
			if err != nil {
				return domain.Product{}, false, err
			}
			return product, true, nil
		}
	}
	return domain.Product{}, false, nil
}

// VariantLabel: título do produto principal sem alteração; para variantes, título seguido
// dos pares "Tipo: Valor" ordenados por tipo, entre parênteses.
func (s *Service) VariantLabel(ctx context.Context, p domain.Product) (string, error) {
	isMain, err := s.hierarchy.IsMainProduct(ctx, p)
	if err != nil {
		return "", err
	}
	if isMain {
		return p.Title, nil
	}

	attrs, err := s.AttributesOf(ctx, p)
	if err != nil {
		return "", err
	}
	if len(attrs) == 0 {
		return p.Title, nil
	}

	pairs := make([]string, len(attrs))
	for i, attr := range attrs {
		pairs[i] = domain.AttributeTagTitle(attr.Type, attr.Value)
	}
	return p.Title + " (" + strings.Join(pairs, ", ") + ")", nil
}

// VariantURI: shop/products/<slug> para o principal; variantes usam o slug do principal
// com os atributos na query string.
func (s *Service) VariantURI(ctx context.Context, p domain.Product) (string, error) {
	main, err := s.hierarchy.MainProductOf(ctx, p)
	if err != nil {
		return "", err
	}
	uri := "shop/products/" + main.Slug
	if main.ID == p.ID {
		return uri, nil
	}

	attrs, err := s.AttributesOf(ctx, p)
	if err != nil {
		return "", err
	}
	if len(attrs) == 0 {
		return uri, nil
	}
	params := url.Values{}
	for _, attr := range attrs {
		params.Set(attr.Type, attr.Value)
	}
	return uri + "?" + params.Encode(), nil
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
