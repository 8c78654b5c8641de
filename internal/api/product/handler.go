package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/middleware"
	"gocatalog/internal/service/attributeservice"
	"gocatalog/internal/service/queryservice"
	"gocatalog/internal/service/variantservice"

	"github.com/go-chi/chi/v5"
)

// ProductService define o contrato que o Handler espera da camada de Serviço.
type ProductService interface {
	CreateProduct(ctx context.Context, p domain.Product, parentSKU string) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, changes domain.Product) (domain.Product, error)
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
	AddToCategory(ctx context.Context, p domain.Product, path string) error
	CategoriesOf(ctx context.Context, p domain.Product) ([]domain.Tag, error)
	TotalStock(ctx context.Context, p domain.Product) (*int, error)
}

// HierarchyService expõe as leituras da árvore de variantes.
type HierarchyService interface {
	ParentSKU(ctx context.Context, p domain.Product) (string, bool, error)
	MainProductOf(ctx context.Context, p domain.Product) (domain.Product, error)
	DirectVariantsOf(ctx context.Context, p domain.Product) ([]domain.Product, error)
	AllDescendants(ctx context.Context, p domain.Product) ([]domain.Product, error)
}

// AttributeService expõe o índice de atributos.
type AttributeService interface {
	AttributesOf(ctx context.Context, p domain.Product) ([]domain.Attribute, error)
	GroupedVariants(ctx context.Context, main domain.Product) ([]attributeservice.VariantGroup, error)
	AvailableOptions(ctx context.Context, main domain.Product) ([]attributeservice.OptionValues, error)
	FindVariant(ctx context.Context, main domain.Product, attrs []domain.Attribute) (domain.Product, bool, error)
	VariantLabel(ctx context.Context, p domain.Product) (string, error)
	VariantURI(ctx context.Context, p domain.Product) (string, error)
}

// VariantService gera variantes.
type VariantService interface {
	CreateVariant(ctx context.Context, parent domain.Product, attrs []domain.Attribute, overrides variantservice.Overrides) (domain.Product, error)
	CreateVariantMatrix(ctx context.Context, parent domain.Product, options []domain.OptionSet, modifiers domain.PriceModifiers) ([]domain.Product, error)
}

// QueryService cria consultas compostas.
type QueryService interface {
	Query() *queryservice.Query
}

// Handler agrupa todos os métodos de Handler do produto.
type Handler struct {
	Service    ProductService
	Hierarchy  HierarchyService
	Attributes AttributeService
	Variants   VariantService
	Queries    QueryService
	Logger     logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando os Services e o Logger.
func NewHandler(svc ProductService, hierarchy HierarchyService, attributes AttributeService, variants VariantService, queries QueryService, log logger.Logger) *Handler {
	return &Handler{
		Service:    svc,
		Hierarchy:  hierarchy,
		Attributes: attributes,
		Variants:   variants,
		Queries:    queries,
		Logger:     log,
	}
}

// --- Funções Auxiliares ---

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)

		h.Logger.Info("Requisição concluída com sucesso", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": successStatus,
		})

		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
			}
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		var internalErr *apperror.InternalError
		if errors.As(err, &internalErr) {
			// Loga a causa raiz (e.g. o erro do driver SQL), que não vai para o cliente.
			h.Logger.Error("ERRO CRÍTICO (500):", internalErr)
		} else {
			h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
		}
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// decodeBody lê o JSON do corpo; campos desconhecidos são rejeitados.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.NewValidationError("Payload inválido. Verifique o formato JSON.")
	}
	return nil
}

// loadProduct busca o produto do parâmetro {id} da rota.
func (h *Handler) loadProduct(r *http.Request) (domain.Product, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return domain.Product{}, apperror.NewValidationError("ID do produto é obrigatório.")
	}
	return h.Service.GetProductByID(r.Context(), id)
}

func (h *Handler) logActor(r *http.Request, action string) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		h.Logger.Warn("Operação de escrita sem claims no contexto.", map[string]interface{}{"action": action})
		return
	}
	h.Logger.Info("Operação de escrita solicitada.", map[string]interface{}{
		"action":  action,
		"subject": claims.Subject,
		"role":    claims.Role,
	})
}

// --- Handlers de Produto ---

type createProductRequest struct {
	domain.Product
	ParentSKU string `json:"parent_sku,omitempty"`
}

// CreateProductHandler lida com a requisição POST /v1/products.
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	h.logActor(r, "create-product")

	var req createProductRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}

	created, err := h.Service.CreateProduct(r.Context(), req.Product, req.ParentSKU)
	h.handleServiceResponse(w, r, created, err, http.StatusCreated)
}

// GetProductByIDHandler lida com a requisição GET /v1/products/{id}.
func (h *Handler) GetProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	ctx := r.Context()
	categories, err := h.Service.CategoriesOf(ctx, p)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	totalStock, err := h.Service.TotalStock(ctx, p)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	label, err := h.Attributes.VariantLabel(ctx, p)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	resp := productResponse{Product: p, Label: label, TotalStock: totalStock, InStock: p.IsInStock(), Categories: categories}
	if img, ok := p.PrimaryImage(); ok {
		resp.PrimaryImage = img
	}
	h.handleServiceResponse(w, r, resp, nil, http.StatusOK)
}

type productResponse struct {
	domain.Product
	Label        string       `json:"label"`
	TotalStock   *int         `json:"total_stock"`
	InStock      bool         `json:"in_stock"`
	PrimaryImage string       `json:"primary_image,omitempty"`
	Categories   []domain.Tag `json:"categories"`
}

// UpdateProductHandler lida com a requisição PUT /v1/products/{id}.
func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	h.logActor(r, "update-product")

	var changes domain.Product
	if err := decodeBody(r, &changes); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}

	updated, err := h.Service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), changes)
	h.handleServiceResponse(w, r, updated, err, http.StatusOK)
}

// AddCategoryHandler lida com a requisição POST /v1/products/{id}/categories.
func (h *Handler) AddCategoryHandler(w http.ResponseWriter, r *http.Request) {
	h.logActor(r, "add-category")

	var req struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}

	p, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	if err := h.Service.AddToCategory(r.Context(), p, req.Path); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	categories, err := h.Service.CategoriesOf(r.Context(), p)
	h.handleServiceResponse(w, r, categories, err, http.StatusOK)
}
