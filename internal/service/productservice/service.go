package productservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/hierarchyservice"
)

// DefaultParentMinSegments é o número mínimo de segmentos de SKU que a detecção de pai testa.
const DefaultParentMinSegments = 3

// Service concentra o ciclo de vida do produto e as tags que não são de variante
// (categorias, sistema, internas e relações entre produtos).
type Service struct {
	uow         domain.UnitOfWork
	store       domain.Store
	hierarchy   *hierarchyservice.Service
	logger      logger.Logger
	minSegments int
}

// NewService cria e retorna uma nova instância do Serviço de Produto.
func NewService(uow domain.UnitOfWork, store domain.Store, hierarchy *hierarchyservice.Service, log logger.Logger, minSegments int) *Service {
	if minSegments <= 0 {
		minSegments = DefaultParentMinSegments
	}
	return &Service{
		uow:         uow,
		store:       store,
		hierarchy:   hierarchy,
		logger:      log,
		minSegments: minSegments,
	}
}

// --- Cadastro ---

// CreateProduct valida e grava o produto numa única transação junto com a tag sku-<SKU>
// e, se houver, a tag do pai. parentSKU vazio ativa a detecção pelo prefixo do SKU.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product, parentSKU string) (domain.Product, error) {
	s.logger.Debug("Iniciando criação de produto.", map[string]interface{}{"sku": product.SKU})

	product.ID = ""
	if product.Status == "" {
		product.Status = domain.StatusActive
	}
	if product.Slug == "" {
		product.Slug = domain.Slugify(product.Title)
	}
	if err := ValidateProduct(product); err != nil {
		s.logger.Warn("Produto rejeitado na validação.", map[string]interface{}{"sku": product.SKU, "error": err.Error()})
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		created, err = Register(ctx, store, product, parentSKU, s.minSegments)
		return err
	})
	if err != nil {
		return domain.Product{}, wrapStoreError("Falha ao criar produto.", err)
	}

	s.logger.Info("Produto criado com sucesso.", map[string]interface{}{"id": created.ID, "sku": created.SKU})
	return created, nil
}

// Register grava o produto e suas tags de identidade usando store, que deve pertencer a
// uma transação aberta pelo chamador:
//  1. SKU duplicado resulta em ConflictError antes de qualquer escrita;
//  2. o registro é criado e a tag sku-<SKU> relacionada;
//  3. parentSKU explícito (ou o detectado pelo prefixo) vira a tag parent-<SKU>.
func Register(ctx context.Context, store domain.Store, product domain.Product, parentSKU string, minSegments int) (domain.Product, error) {
	if _, err := store.Products.FindBySKU(ctx, product.SKU); err == nil {
		return domain.Product{}, apperror.NewConflictError(fmt.Sprintf("SKU %s já está em uso.", product.SKU))
	} else if !apperror.IsNotFound(err) {
		return domain.Product{}, err
	}

	if parentSKU == product.SKU {
		return domain.Product{}, apperror.NewValidationError("Um produto não pode ser pai de si mesmo.")
	}
	if parentSKU != "" {
		if _, err := store.Products.FindBySKU(ctx, parentSKU); err != nil {
			if apperror.IsNotFound(err) {
				return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("Produto pai %s não existe.", parentSKU))
			}
			return domain.Product{}, err
		}
	}

	created, err := store.Products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	if _, err := AttachTag(ctx, store, created.ID, domain.GroupSKU, domain.SKUSlug(created.SKU), created.SKU); err != nil {
		return domain.Product{}, err
	}

	if parentSKU == "" {
		detected, found, err := hierarchyservice.DetectParentSKU(ctx, store.Products, created.SKU, minSegments)
		if err != nil {
			return domain.Product{}, err
		}
		if found {
			parentSKU = detected
		}
	}
	if parentSKU != "" {
		if _, err := AttachTag(ctx, store, created.ID, domain.GroupHierarchy, domain.ParentSlug(parentSKU), domain.ParentTagTitle(parentSKU)); err != nil {
			return domain.Product{}, err
		}
	}

	return created, nil
}

// AttachTag garante a tag (grupo, slug) e a relaciona ao produto.
func AttachTag(ctx context.Context, store domain.Store, productID string, group domain.TagGroup, slug, title string) (domain.Tag, error) {
	tag, err := store.Tags.FindOrCreate(ctx, group, slug, title)
	if err != nil {
		return domain.Tag{}, err
	}
	if err := store.Tags.Relate(ctx, productID, tag.ID); err != nil {
		return domain.Tag{}, err
	}
	return tag, nil
}

// InheritCategories relaciona a to todas as tags de categoria de from.
func InheritCategories(ctx context.Context, store domain.Store, from, to domain.Product) error {
	tags, err := store.Tags.TagsFor(ctx, from.ID, domain.GroupCategories)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if err := store.Tags.Relate(ctx, to.ID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateProduct regrava os campos editáveis. O SKU é imutável.
func (s *Service) UpdateProduct(ctx context.Context, id string, changes domain.Product) (domain.Product, error) {
	current, err := s.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if changes.SKU != "" && changes.SKU != current.SKU {
		return domain.Product{}, apperror.NewValidationError("O SKU não pode ser alterado.")
	}

	changes.ID = current.ID
	changes.SKU = current.SKU
	changes.CreatedAt = current.CreatedAt
	if changes.Status == "" {
		changes.Status = current.Status
	}
	if changes.Slug == "" {
		changes.Slug = current.Slug
	}
	if err := ValidateProduct(changes); err != nil {
		return domain.Product{}, err
	}

	updated, err := s.store.Products.Update(ctx, changes)
	if err != nil {
		return domain.Product{}, wrapStoreError("Falha ao atualizar produto.", err)
	}

	s.logger.Info("Produto atualizado.", map[string]interface{}{"id": updated.ID, "sku": updated.SKU})
	return updated, nil
}

// --- Leitura ---

// GetProductByID valida o formato do ID antes de consultar o repositório.
func (s *Service) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	// 1. Validação de Formato (Business Logic)
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}

	product, err := s.store.Products.FindByID(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não foi encontrado.", id))
		}
		// Para qualquer outro erro (DB falhou, conexão perdida - 500), propagamos o erro de infraestrutura.
		return domain.Product{}, err
	}
	return product, nil
}

// GetProductBySKU busca pelo SKU.
func (s *Service) GetProductBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if strings.TrimSpace(sku) == "" {
		return domain.Product{}, apperror.NewValidationError("O SKU é obrigatório.")
	}
	return s.store.Products.FindBySKU(ctx, sku)
}

// --- Categorias ---

// AddToCategory relaciona o produto a cada nível do caminho ("apparel/t-shirts" gera
// category-apparel e category-apparel-t-shirts). As variantes diretas de um produto
// principal herdam as categorias na mesma transação.
func (s *Service) AddToCategory(ctx context.Context, product domain.Product, path string) error {
	segments := splitCategoryPath(path)
	if len(segments) == 0 {
		return apperror.NewValidationError("O caminho da categoria é obrigatório.")
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		for i := range segments {
			partial := strings.Join(segments[:i+1], "/")
			if _, err := AttachTag(ctx, store, product.ID, domain.GroupCategories, domain.CategorySlug(partial), domain.CategoryTitle(partial)); err != nil {
				return err
			}
		}

		hierarchy := s.hierarchy.WithStore(store)
		isMain, err := hierarchy.IsMainProduct(ctx, product)
		if err != nil || !isMain {
			return err
		}
		variants, err := hierarchy.DirectVariantsOf(ctx, product)
		if err != nil {
			return err
		}
		for _, variant := range variants {
			if err := InheritCategories(ctx, store, product, variant); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapStoreError("Falha ao adicionar categoria.", err)
	}

	s.logger.Info("Produto adicionado à categoria.", map[string]interface{}{"sku": product.SKU, "category": path})
	return nil
}

// CategoriesOf lista as tags de categoria do produto.
func (s *Service) CategoriesOf(ctx context.Context, product domain.Product) ([]domain.Tag, error) {
	return s.store.Tags.TagsFor(ctx, product.ID, domain.GroupCategories)
}

func splitCategoryPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		seg = strings.ToLower(strings.TrimSpace(seg))
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// --- Tags de sistema e internas ---

// AddSystemTag relaciona a tag de sistema ao produto, criando-a se necessário.
func (s *Service) AddSystemTag(ctx context.Context, product domain.Product, slug string) error {
	if slug == "" {
		return apperror.NewValidationError("O slug da tag é obrigatório.")
	}
	_, err := AttachTag(ctx, s.store, product.ID, domain.GroupSystem, slug, domain.SystemTagTitle(slug))
	return err
}

// RemoveSystemTag desfaz a relação; tag inexistente não é erro.
func (s *Service) RemoveSystemTag(ctx context.Context, product domain.Product, slug string) error {
	tag, found, err := s.store.Tags.Find(ctx, domain.GroupSystem, slug)
	if err != nil || !found {
		return err
	}
	return s.store.Tags.Unrelate(ctx, product.ID, tag.ID)
}

// HasSystemTag informa se o produto tem a tag de sistema slug.
func (s *Service) HasSystemTag(ctx context.Context, product domain.Product, slug string) (bool, error) {
	tags, err := s.SystemTags(ctx, product)
	if err != nil {
		return false, err
	}
	for _, tag := range tags {
		if tag.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// SystemTags lista as tags do grupo system.
func (s *Service) SystemTags(ctx context.Context, product domain.Product) ([]domain.Tag, error) {
	return s.store.Tags.TagsFor(ctx, product.ID, domain.GroupSystem)
}

// AddInternalTag marca o produto com uma tag de fluxo interno (e.g. status-needs-review).
func (s *Service) AddInternalTag(ctx context.Context, product domain.Product, slug string) error {
	if slug == "" {
		return apperror.NewValidationError("O slug da tag é obrigatório.")
	}
	_, err := AttachTag(ctx, s.store, product.ID, domain.GroupInternal, slug, domain.SystemTagTitle(slug))
	return err
}

// InternalTags lista as tags do grupo internal.
func (s *Service) InternalTags(ctx context.Context, product domain.Product) ([]domain.Tag, error) {
	return s.store.Tags.TagsFor(ctx, product.ID, domain.GroupInternal)
}

// --- Relações entre produtos ---

// RelateProducts registra target como cross-sell, upsell ou bundle-with de source.
func (s *Service) RelateProducts(ctx context.Context, source domain.Product, relationType string, target domain.Product) error {
	if !domain.ValidRelationType(relationType) {
		return apperror.NewValidationError(fmt.Sprintf("Tipo de relação inválido: %s.", relationType))
	}
	if source.ID == target.ID {
		return apperror.NewValidationError("Um produto não pode se relacionar consigo mesmo.")
	}
	slug := domain.RelationSlug(relationType, target.ID)
	_, err := AttachTag(ctx, s.store, source.ID, domain.GroupRelations, slug, domain.SystemTagTitle(relationType)+": "+target.SKU)
	return err
}

// RelatedProducts resolve as tags de relação do tipo pedido. Alvos removidos são ignorados.
func (s *Service) RelatedProducts(ctx context.Context, source domain.Product, relationType string) ([]domain.Product, error) {
	if !domain.ValidRelationType(relationType) {
		return nil, apperror.NewValidationError(fmt.Sprintf("Tipo de relação inválido: %s.", relationType))
	}

	tags, err := s.store.Tags.TagsFor(ctx, source.ID, domain.GroupRelations)
	if err != nil {
		return nil, err
	}

	prefix := relationType + "-"
	related := []domain.Product{}
	for _, tag := range tags {
		if !strings.HasPrefix(tag.Slug, prefix) {
			continue
		}
		target, err := s.store.Products.FindByID(ctx, strings.TrimPrefix(tag.Slug, prefix))
		if apperror.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		related = append(related, target)
	}
	return related, nil
}

// --- Estoque ---

// TotalStock: nil se o estoque não é controlado; para produto principal soma o próprio
// estoque (nulo conta como zero) ao de cada variante direta com estoque definido.
func (s *Service) TotalStock(ctx context.Context, product domain.Product) (*int, error) {
	if !product.TrackStock {
		return nil, nil
	}

	isMain, err := s.hierarchy.IsMainProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	if !isMain {
		return product.Stock, nil
	}

	total := 0
	if product.Stock != nil {
		total = *product.Stock
	}
	variants, err := s.hierarchy.DirectVariantsOf(ctx, product)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.Stock != nil {
			total += *v.Stock
		}
	}
	return &total, nil
}

// wrapStoreError preserva erros de aplicação e encapsula o resto como InternalError.
func wrapStoreError(msg string, err error) error {
	var appErr apperror.AppError
	if apperror.As(err, &appErr) {
		return err
	}
	return apperror.NewInternalError(msg, err)
}
