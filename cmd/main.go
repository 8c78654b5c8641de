package main

import (
	"context"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Infraestrutura e utilitários
	"gocatalog/config"
	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/token"

	// Camadas do catálogo para Injeção de Dependências
	"gocatalog/internal/api/product"
	"gocatalog/internal/api/router"
	"gocatalog/internal/api/stock"
	"gocatalog/internal/repository/memstore"
	"gocatalog/internal/repository/productrepo"
	"gocatalog/internal/repository/tagrepo"
	"gocatalog/internal/repository/txstore"
	"gocatalog/internal/service/attributeservice"
	"gocatalog/internal/service/hierarchyservice"
	"gocatalog/internal/service/productservice"
	"gocatalog/internal/service/queryservice"
	"gocatalog/internal/service/stockservice"
	"gocatalog/internal/service/variantservice"
)

// storage agrupa o que os serviços precisam do armazenamento escolhido.
type storage struct {
	uow     domain.UnitOfWork
	repos   domain.Store
	stock   domain.StockStore
	cache   cache.Client
	closers []io.Closer
}

func main() {
	stdlog.Println("⚡ Inicializando serviço GoCatalog...")
	// As variáveis essenciais podem vir do ambiente do sistema (ex: Docker), então .env é opcional.
	if err := godotenv.Load(); err != nil {
		stdlog.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", map[string]interface{}{"env": cfg.Environment, "storage": cfg.StorageDriver})

	// 1. Armazenamento
	st := openStorage(cfg, log)
	defer func() {
		for _, c := range st.closers {
			if err := c.Close(); err != nil {
				log.Error("Falha ao fechar recurso.", err)
			}
		}
	}()

	// 2. Injeção de dependências: Repository -> Service -> Handler
	hierarchySvc := hierarchyservice.NewService(st.repos, log, cfg.HierarchyMaxDepth)
	productSvc := productservice.NewService(st.uow, st.repos, hierarchySvc, log, cfg.SKUParentMinSegments)
	attributeSvc := attributeservice.NewService(st.repos, hierarchySvc, log)
	variantSvc := variantservice.NewService(st.uow, log, cfg.SKUParentMinSegments)
	querySvc := queryservice.NewService(st.repos, log)
	stockSvc := stockservice.NewService(st.stock, log)
	log.Debug("Serviços do catálogo inicializados.", nil)

	productHandler := product.NewHandler(productSvc, hierarchySvc, attributeSvc, variantSvc, querySvc, log)
	stockHandler := stock.NewHandler(stockSvc, log)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)

	// 3. Roteador e servidor
	r := router.NewRouter(productHandler, stockHandler, tokenSvc, router.Options{
		CacheClient:     st.cache,
		RateLimit:       cfg.RateLimitMaxRequests,
		RateLimitWindow: cfg.RateLimitPeriod,
		Logger:          log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // a matriz de variantes faz várias transações
		IdleTimeout:  60 * time.Second,
	}

	// 4. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor GoCatalog ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}

// openStorage monta o armazenamento do STORAGE_DRIVER: memória (sem Redis) ou PostgreSQL + Redis.
func openStorage(cfg *config.Config, log logger.Logger) storage {
	if cfg.StorageDriver == config.DriverMemory {
		mem := memstore.New()
		log.Warn("Usando armazenamento em memória; os dados se perdem ao reiniciar.", nil)
		return storage{uow: mem, repos: mem.Repositories(), stock: mem.Stock()}
	}

	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	st := storage{closers: []io.Closer{db}}

	// O cache é opcional: sem Redis o repositório lê direto do banco e o rate limit fica desligado.
	redisClient := cache.NewRedisClient(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		log.Warn("Redis indisponível; seguindo sem cache.", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		redisClient.Close()
	} else {
		log.Info("Conexão Redis estabelecida.", nil)
		st.cache = redisClient
		st.closers = append(st.closers, redisClient)
	}

	productRepo := productrepo.NewProductRepository(db, st.cache, cfg.DBTimeout, cfg.CacheTTL, log)
	tagRepo := tagrepo.NewTagRepository(db, cfg.DBTimeout)
	uow := txstore.New(db, productRepo, tagRepo)
	st.uow, st.repos, st.stock = uow, uow.Repositories(), productRepo
	return st
}
