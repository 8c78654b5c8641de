package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// StockService define o contrato que o Handler espera da camada de Serviço.
type StockService interface {
	AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error)
}

// Handler agrupa todos os métodos de Handler de estoque.
type Handler struct {
	Service  StockService
	Logger   logger.Logger
	validate *validator.Validate
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc StockService, log logger.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Logger:   log,
		validate: validator.New(),
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
			}
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.ErrorResponse{Code: status, Category: category, Message: message})
}

// AdjustStockHandler lida com a requisição POST /v1/products/{id}/stock.
func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("O ajuste de estoque (delta) não pode ser zero."), http.StatusBadRequest)
		return
	}

	fields := map[string]interface{}{"product_id": chi.URLParam(r, "id"), "delta": req.Delta}
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok {
		fields["subject"] = claims.Subject
	}
	h.Logger.Info("Ajuste de estoque solicitado.", fields)

	product, err := h.Service.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	h.handleServiceResponse(w, r, product, err, http.StatusOK)
}
