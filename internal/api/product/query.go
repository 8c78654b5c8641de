package product

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/service/queryservice"

	"github.com/shopspring/decimal"
)

// ListProductsHandler lida com a requisição GET /v1/products.
//
// Filtros aceitos na query string: sku, price_min, price_max, in_stock, track_stock,
// allow_backorder, status, main, variant, parent_sku, attribute=<tipo>:<valor> (repetível, E),
// category=<caminho> (repetível, OU), order_by, desc, limit, offset.
func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := h.buildQuery(r.URL.Query())
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	products, err := q.All(r.Context())
	h.handleServiceResponse(w, r, products, err, http.StatusOK)
}

func (h *Handler) buildQuery(values url.Values) (*queryservice.Query, error) {
	q := h.Queries.Query()

	if sku := values.Get("sku"); sku != "" {
		q.SKU(sku)
	}
	if status := values.Get("status"); status != "" {
		q.Status(domain.ProductStatus(status))
	}
	if parent := values.Get("parent_sku"); parent != "" {
		q.ParentSKU(parent)
	}

	for key, apply := range map[string]func(decimal.Decimal) *queryservice.Query{
		"price_min": q.PriceMin,
		"price_max": q.PriceMax,
	} {
		if raw := values.Get(key); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, apperror.NewValidationError(fmt.Sprintf("%s deve ser um número.", key))
			}
			apply(d)
		}
	}

	for key, apply := range map[string]func(bool) *queryservice.Query{
		"in_stock":        q.InStock,
		"track_stock":     q.TrackStock,
		"allow_backorder": q.AllowBackorder,
		"main":            q.IsMainProduct,
		"variant":         q.IsVariant,
	} {
		if raw := values.Get(key); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, apperror.NewValidationError(fmt.Sprintf("%s deve ser true ou false.", key))
			}
			apply(b)
		}
	}

	for _, raw := range values["attribute"] {
		attrType, value, ok := strings.Cut(raw, ":")
		if !ok || attrType == "" || value == "" {
			return nil, apperror.NewValidationError(fmt.Sprintf("Atributo %q deve ter o formato tipo:valor.", raw))
		}
		q.Attributes(domain.Attribute{Type: attrType, Value: value})
	}
	if categories := values["category"]; len(categories) > 0 {
		q.Categories(categories...)
	}

	if order := values.Get("order_by"); order != "" {
		q.OrderBy(domain.ProductOrder(order))
	}
	if desc, _ := strconv.ParseBool(values.Get("desc")); desc {
		q.Desc()
	}
	for key, apply := range map[string]func(int) *queryservice.Query{
		"limit":  q.Limit,
		"offset": q.Offset,
	} {
		if raw := values.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, apperror.NewValidationError(fmt.Sprintf("%s deve ser um inteiro.", key))
			}
			apply(n)
		}
	}

	return q, nil
}
