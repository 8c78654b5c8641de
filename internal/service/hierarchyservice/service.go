// Package hierarchyservice deriva a hierarquia produto principal / variante a partir
// das tags parent-<SKU> do grupo hierarchy.
//
// Referências de pai são strings, então nada no armazenamento impede ciclos. Todas as
// caminhadas aqui são iterativas, limitadas por profundidade e com conjunto de visitados.
package hierarchyservice

import (
	"context"
	"fmt"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/metrics"
)

// DefaultMaxDepth limita a subida até o produto principal.
const DefaultMaxDepth = 32

// Service implementa as consultas de hierarquia sobre um domain.Store.
type Service struct {
	store    domain.Store
	logger   logger.Logger
	maxDepth int
}

// NewService cria o serviço. maxDepth <= 0 usa DefaultMaxDepth.
func NewService(store domain.Store, log logger.Logger, maxDepth int) *Service {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Service{store: store, logger: log, maxDepth: maxDepth}
}

// WithStore devolve o mesmo serviço operando sobre outro Store (e.g. o de uma transação).
func (s *Service) WithStore(store domain.Store) *Service {
	return &Service{store: store, logger: s.logger, maxDepth: s.maxDepth}
}

// ParentSKU lê a tag parent-* do produto. Mais de uma tag é estado inválido e vira
// AmbiguousHierarchyError em vez de escolher uma delas.
func (s *Service) ParentSKU(ctx context.Context, p domain.Product) (string, bool, error) {
	tags, err := s.store.Tags.TagsFor(ctx, p.ID, domain.GroupHierarchy)
	if err != nil {
		return "", false, err
	}

	var parents []string
	for _, tag := range tags {
		if sku, ok := domain.ParentSKUFromSlug(tag.Slug); ok {
			parents = append(parents, sku)
		}
	}

	switch len(parents) {
	case 0:
		return "", false, nil
	case 1:
		return parents[0], true, nil
	default:
		s.logger.Warn("Produto com mais de uma tag de pai.", map[string]interface{}{
			"sku":     p.SKU,
			"parents": parents,
		})
		return "", false, apperror.NewAmbiguousHierarchyError(p.SKU, parents)
	}
}

// IsMainProduct: verdadeiro se o produto não tem tag parent-*.
func (s *Service) IsMainProduct(ctx context.Context, p domain.Product) (bool, error) {
	_, hasParent, err := s.ParentSKU(ctx, p)
	if err != nil {
		return false, err
	}
	return !hasParent, nil
}

// IsVariant é sempre o complemento de IsMainProduct.
func (s *Service) IsVariant(ctx context.Context, p domain.Product) (bool, error) {
	isMain, err := s.IsMainProduct(ctx, p)
	if err != nil {
		return false, err
	}
	return !isMain, nil
}

// ParentProduct carrega o pai direto. Pai referenciado mas inexistente resulta em (zero, false, nil).
func (s *Service) ParentProduct(ctx context.Context, p domain.Product) (domain.Product, bool, error) {
	parentSKU, ok, err := s.ParentSKU(ctx, p)
	if err != nil || !ok {
		return domain.Product{}, false, err
	}

	parent, err := s.store.Products.FindBySKU(ctx, parentSKU)
	if apperror.IsNotFound(err) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	return parent, true, nil
}

// MainProductOf sobe pela hierarquia até um produto sem pai.
// Revisitar um SKU ou passar de maxDepth saltos resulta em CycleDetectedError.
func (s *Service) MainProductOf(ctx context.Context, p domain.Product) (domain.Product, error) {
	current := p
	visited := map[string]bool{p.SKU: true}

	for depth := 0; ; depth++ {
		parentSKU, ok, err := s.ParentSKU(ctx, current)
		if err != nil {
			return domain.Product{}, err
		}
		if !ok {
			return current, nil
		}

		if visited[parentSKU] || depth >= s.maxDepth {
			metrics.HierarchyCycles.Inc()
			s.logger.Warn("Ciclo detectado ao subir a hierarquia.", map[string]interface{}{
				"sku":   p.SKU,
				"at":    current.SKU,
				"depth": depth,
			})
			return domain.Product{}, apperror.NewCycleDetectedError(p.SKU, depth)
		}
		visited[parentSKU] = true

		parent, err := s.store.Products.FindBySKU(ctx, parentSKU)
		if apperror.IsNotFound(err) {
			return domain.Product{}, apperror.NewNotFoundError(
				fmt.Sprintf("Produto pai %s referenciado por %s não existe.", parentSKU, current.SKU))
		}
		if err != nil {
			return domain.Product{}, err
		}
		current = parent
	}
}

// DirectVariantsOf devolve os produtos relacionados à tag parent-<p.SKU>, em ordem de criação.
func (s *Service) DirectVariantsOf(ctx context.Context, p domain.Product) ([]domain.Product, error) {
	tag, found, err := s.store.Tags.Find(ctx, domain.GroupHierarchy, domain.ParentSlug(p.SKU))
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.Product{}, nil
	}

	ids, err := s.store.Tags.ProductsRelatedTo(ctx, tag.ID)
	if err != nil {
		return nil, err
	}
	return s.store.Products.FindByIDs(ctx, ids)
}

// AllDescendants percorre em largura todas as variantes abaixo de p.
// SKUs já visitados (inclusive o próprio p) não são expandidos de novo.
func (s *Service) AllDescendants(ctx context.Context, p domain.Product) ([]domain.Product, error) {
	visited := map[string]bool{p.SKU: true}
	queue := []domain.Product{p}
	descendants := []domain.Product{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.DirectVariantsOf(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child.SKU] {
				continue
			}
			visited[child.SKU] = true
			descendants = append(descendants, child)
			queue = append(queue, child)
		}
	}
	return descendants, nil
}

// DetectParentSKU procura um pai pelo prefixo do SKU: remove segmentos finais separados
// por '-' enquanto restarem mais de minSegments e devolve o primeiro prefixo que já existe
// como produto, do mais específico para o menos específico.
//
// É uma heurística. Dois SKUs sem relação que compartilham um prefixo longo serão ligados
// por engano, e um pai com menos de minSegments segmentos nunca é encontrado.
func DetectParentSKU(ctx context.Context, products domain.ProductRepository, sku string, minSegments int) (string, bool, error) {
	segments := strings.Split(sku, "-")
	for n := len(segments) - 1; n >= minSegments && n > 0; n-- {
		candidate := strings.Join(segments[:n], "-")
		_, err := products.FindBySKU(ctx, candidate)
		if err == nil {
			return candidate, true, nil
		}
		if !apperror.IsNotFound(err) {
			return "", false, err
		}
	}
	return "", false, nil
}
