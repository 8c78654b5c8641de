package product

import (
	"errors"
	"net/http"
	"sort"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/service/attributeservice"
	"gocatalog/internal/service/variantservice"
)

type hierarchyResponse struct {
	ParentSKU   string           `json:"parent_sku,omitempty"`
	IsMain      bool             `json:"is_main_product"`
	MainProduct domain.Product   `json:"main_product"`
	Variants    []domain.Product `json:"variants"`
	Descendants []domain.Product `json:"descendants"`
}

// HierarchyHandler lida com a requisição GET /v1/products/{id}/hierarchy.
func (h *Handler) HierarchyHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	ctx := r.Context()
	var resp hierarchyResponse
	parentSKU, hasParent, err := h.Hierarchy.ParentSKU(ctx, p)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	resp.ParentSKU, resp.IsMain = parentSKU, !hasParent

	if resp.MainProduct, err = h.Hierarchy.MainProductOf(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	if resp.Variants, err = h.Hierarchy.DirectVariantsOf(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	if resp.Descendants, err = h.Hierarchy.AllDescendants(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, resp, nil, http.StatusOK)
}

type attributesResponse struct {
	Attributes []domain.Attribute              `json:"attributes"`
	Groups     []attributeservice.VariantGroup `json:"variant_groups"`
	Label      string                          `json:"label"`
	URI        string                          `json:"uri"`
}

// AttributesHandler lida com a requisição GET /v1/products/{id}/attributes.
func (h *Handler) AttributesHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	ctx := r.Context()
	var resp attributesResponse
	if resp.Attributes, err = h.Attributes.AttributesOf(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	if resp.Groups, err = h.Attributes.GroupedVariants(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	if resp.Label, err = h.Attributes.VariantLabel(ctx, p); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	resp.URI, err = h.Attributes.VariantURI(ctx, p)
	h.handleServiceResponse(w, r, resp, err, http.StatusOK)
}

// OptionsHandler lida com a requisição GET /v1/products/{id}/options.
func (h *Handler) OptionsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	options, err := h.Attributes.AvailableOptions(r.Context(), p)
	h.handleServiceResponse(w, r, options, err, http.StatusOK)
}

// FindVariantHandler lida com a requisição POST /v1/products/{id}/variants/find.
// O corpo é um mapa tipo -> valor, e.g. {"attributes": {"color": "red", "size": "xl"}}.
func (h *Handler) FindVariantHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attributes map[string]string `json:"attributes"`
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

	attrs := make([]domain.Attribute, 0, len(req.Attributes))
	for t, v := range req.Attributes {
		attrs = append(attrs, domain.Attribute{Type: t, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Type < attrs[j].Type })

	variant, found, err := h.Attributes.FindVariant(r.Context(), p, attrs)
	if err == nil && !found {
		err = apperror.NewNotFoundError("Nenhuma variante com esses atributos.")
	}
	h.handleServiceResponse(w, r, variant, err, http.StatusOK)
}

type createVariantRequest struct {
	Attributes []domain.Attribute       `json:"attributes"`
	Overrides  variantservice.Overrides `json:"overrides"`
}

// CreateVariantHandler lida com a requisição POST /v1/products/{id}/variants.
// Os atributos chegam como lista porque a ordem define o SKU.
func (h *Handler) CreateVariantHandler(w http.ResponseWriter, r *http.Request) {
	h.logActor(r, "create-variant")

	var req createVariantRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}

	parent, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	variant, err := h.Variants.CreateVariant(r.Context(), parent, req.Attributes, req.Overrides)
	h.handleServiceResponse(w, r, variant, err, http.StatusCreated)
}

type matrixRequest struct {
	Options        []domain.OptionSet    `json:"options"`
	PriceModifiers domain.PriceModifiers `json:"price_modifiers"`
}

type failedCombination struct {
	SKU     string `json:"sku"`
	Message string `json:"message"`
}

type matrixResponse struct {
	Created []domain.Product    `json:"created"`
	Failed  []failedCombination `json:"failed,omitempty"`
}

// CreateVariantMatrixHandler lida com a requisição POST /v1/products/{id}/variant-matrix.
// Se parte das combinações falhar, responde 207 com as criadas e as que falharam.
func (h *Handler) CreateVariantMatrixHandler(w http.ResponseWriter, r *http.Request) {
	h.logActor(r, "create-variant-matrix")

	var req matrixRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}

	parent, err := h.loadProduct(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	created, err := h.Variants.CreateVariantMatrix(r.Context(), parent, req.Options, req.PriceModifiers)
	var partial *apperror.PartialFailureError
	if errors.As(err, &partial) {
		resp := matrixResponse{Created: created}
		for _, item := range partial.Failed {
			_, _, message := apperror.MapToHTTPStatus(item.Err)
			resp.Failed = append(resp.Failed, failedCombination{SKU: item.Key, Message: message})
		}
		h.Logger.Warn("Matriz de variantes concluída com falhas.", map[string]interface{}{"sku": parent.SKU, "failed": len(resp.Failed)})
		h.handleServiceResponse(w, r, resp, nil, partial.HTTPStatus())
		return
	}
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusCreated)
		return
	}
	h.handleServiceResponse(w, r, matrixResponse{Created: created}, nil, http.StatusCreated)
}
