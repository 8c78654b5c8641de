package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError é a interface central para todos os erros customizados do catálogo.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION", "NOT_FOUND", "INTERNAL")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// ConflictError representa um conflito na regra de negócio (e.g., SKU duplicado).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito.
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// UnauthorizedError representa falha de autenticação/autorização.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um erro de autorização.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// --- Erros da Hierarquia de Variantes ---

// CycleDetectedError indica que a subida pela hierarquia excedeu o limite de profundidade
// ou revisitou um SKU. Referências de pai por string admitem ciclos.
type CycleDetectedError struct {
	SKU   string
	Depth int
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("Ciclo detectado na hierarquia a partir do SKU %s (profundidade %d).", e.SKU, e.Depth)
}
func (e *CycleDetectedError) Category() string { return "CYCLE_DETECTED" }
func (e *CycleDetectedError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *CycleDetectedError) Unwrap() error    { return nil }

// NewCycleDetectedError cria um erro de ciclo na hierarquia.
func NewCycleDetectedError(sku string, depth int) AppError {
	return &CycleDetectedError{SKU: sku, Depth: depth}
}

// AmbiguousHierarchyError indica um produto com mais de uma tag parent-*.
type AmbiguousHierarchyError struct {
	SKU        string
	ParentSKUs []string
}

func (e *AmbiguousHierarchyError) Error() string {
	return fmt.Sprintf("Produto %s possui múltiplos pais: %s.", e.SKU, strings.Join(e.ParentSKUs, ", "))
}
func (e *AmbiguousHierarchyError) Category() string { return "AMBIGUOUS_HIERARCHY" }
func (e *AmbiguousHierarchyError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *AmbiguousHierarchyError) Unwrap() error    { return nil }

// NewAmbiguousHierarchyError cria um erro de hierarquia ambígua.
func NewAmbiguousHierarchyError(sku string, parents []string) AppError {
	return &AmbiguousHierarchyError{SKU: sku, ParentSKUs: parents}
}

// FailedItem descreve um item de um lote que não pôde ser processado.
type FailedItem struct {
	Key string `json:"key"`
	Err error  `json:"-"`
}

// PartialFailureError acompanha o resultado de um lote em que alguns itens falharam.
// Os itens bem-sucedidos continuam sendo retornados pelo chamador.
type PartialFailureError struct {
	Msg    string
	Failed []FailedItem
}

func (e *PartialFailureError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		keys = append(keys, fmt.Sprintf("%s (%v)", f.Key, f.Err))
	}
	return fmt.Sprintf("Falha parcial: %s: %s", e.Msg, strings.Join(keys, "; "))
}
func (e *PartialFailureError) Category() string { return "PARTIAL_FAILURE" }
func (e *PartialFailureError) HTTPStatus() int  { return http.StatusMultiStatus } // 207
func (e *PartialFailureError) Unwrap() error    { return nil }

// NewPartialFailureError cria um erro de falha parcial de lote.
func NewPartialFailureError(msg string, failed []FailedItem) *PartialFailureError {
	return &PartialFailureError{Msg: msg, Failed: failed}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Erro Interno: %s", e.Msg)
	}
	return fmt.Sprintf("Erro Interno: %s: %v", e.Msg, e.Err)
}
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB)", msg), err)
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e corpo de resposta.
func MapToHTTPStatus(err error) (int, string, string) {
	var appErr AppError
	if As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado: tratar como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
