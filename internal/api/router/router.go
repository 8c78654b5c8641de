package router

import (
	"net/http"
	"time"

	"gocatalog/internal/api/product"
	"gocatalog/internal/api/stock"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/metrics"
	"gocatalog/internal/pkg/middleware"
	"gocatalog/internal/pkg/token"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Options ajusta os middlewares globais.
type Options struct {
	// CacheClient nil desliga o rate limit (e.g. STORAGE_DRIVER=memory sem Redis).
	CacheClient     cache.Client
	RateLimit       int
	RateLimitWindow time.Duration
	Logger          logger.Logger
}

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(productHandler *product.Handler, stockHandler *stock.Handler, tokenSvc middleware.TokenService, opts Options) http.Handler {
	r := chi.NewRouter()

	// --- 1. Middlewares globais ---
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	if opts.CacheClient != nil && opts.RateLimit > 0 {
		r.Use(middleware.RateLimiter(opts.CacheClient, opts.RateLimit, opts.RateLimitWindow, opts.Logger))
	}

	// --- 2. Health check e métricas ---
	r.Get("/ping", PingHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// --- 3. Rotas do Módulo de Produtos (v1) ---
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	canWrite := middleware.PermissionMiddleware(token.RoleAdmin, token.RoleEditor)

	r.Route("/v1/products", func(r chi.Router) {
		r.Get("/", productHandler.ListProductsHandler)
		r.Get("/{id}", productHandler.GetProductByIDHandler)
		r.Get("/{id}/hierarchy", productHandler.HierarchyHandler)
		r.Get("/{id}/attributes", productHandler.AttributesHandler)
		r.Get("/{id}/options", productHandler.OptionsHandler)
		r.Post("/{id}/variants/find", productHandler.FindVariantHandler)

		// Escrita exige token com papel admin ou catalog-editor.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, canWrite)
			r.Post("/", productHandler.CreateProductHandler)
			r.Put("/{id}", productHandler.UpdateProductHandler)
			r.Post("/{id}/variants", productHandler.CreateVariantHandler)
			r.Post("/{id}/variant-matrix", productHandler.CreateVariantMatrixHandler)
			r.Post("/{id}/categories", productHandler.AddCategoryHandler)
			r.Post("/{id}/stock", stockHandler.AdjustStockHandler)
		})
	})

	return r
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
