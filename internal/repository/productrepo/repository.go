package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/errors"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Define a chave de cache para produtos.
const productCacheKey = "product:%s"

const productColumns = `id, sku, title, slug, description, price, compare_price, weight, weight_unit,
	stock, track_stock, allow_backorder, status, is_digital, custom_attributes, price_tiers, media,
	created_at, updated_at`

// ProductRepository implementa a interface domain.ProductRepository.
// Ela contém as conexões necessárias para acessar dados.
type ProductRepository struct {
	DB        database.DBTX // *sql.DB fora de transação, *sql.Tx dentro
	Cache     cache.Client  // Cliente para operações de cache (Redis); pode ser nil
	DBTimeout time.Duration
	CacheTTL  time.Duration
	Logger    logger.Logger
	inTx      bool
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewProductRepository(db database.DBTX, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		Logger:    log,
	}
}

// WithTx devolve uma cópia do repositório que executa na transação tx.
// Dentro da transação o cache não é lido nem populado, só invalidado.
func (r *ProductRepository) WithTx(tx database.DBTX) *ProductRepository {
	clone := *r
	clone.DB = tx
	clone.inTx = true
	return &clone
}

// Create persiste um novo produto. SKU duplicado vira ConflictError.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	custom, tiers, media, err := encodeJSONColumns(product)
	if err != nil {
		return domain.Product{}, errors.NewInternalError("falha ao serializar colunas JSON do produto", err)
	}

	const productSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err = r.DB.ExecContext(ctxTimeout, productSQL,
		product.ID,
		product.SKU,
		product.Title,
		product.Slug,
		product.Description,
		product.Price,
		nullDecimal(product.ComparePrice),
		product.Weight,
		product.WeightUnit,
		nullInt(product.Stock),
		product.TrackStock,
		product.AllowBackorder,
		string(product.Status),
		product.IsDigital,
		custom,
		tiers,
		media,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Product{}, errors.NewConflictError(fmt.Sprintf("SKU %s já está em uso.", product.SKU))
		}
		return domain.Product{}, errors.NewDBError("failed to insert product", err)
	}

	return product, nil
}

// Update regrava os campos mutáveis. O SKU não participa do UPDATE.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	product.UpdatedAt = time.Now().UTC()

	custom, tiers, media, err := encodeJSONColumns(product)
	if err != nil {
		return domain.Product{}, errors.NewInternalError("falha ao serializar colunas JSON do produto", err)
	}

	const updateSQL = `UPDATE products SET
			title = $2, slug = $3, description = $4, price = $5, compare_price = $6, weight = $7,
			weight_unit = $8, stock = $9, track_stock = $10, allow_backorder = $11, status = $12,
			is_digital = $13, custom_attributes = $14, price_tiers = $15, media = $16, updated_at = $17
		WHERE id = $1
		RETURNING created_at`

	err = r.DB.QueryRowContext(ctxTimeout, updateSQL,
		product.ID,
		product.Title,
		product.Slug,
		product.Description,
		product.Price,
		nullDecimal(product.ComparePrice),
		product.Weight,
		product.WeightUnit,
		nullInt(product.Stock),
		product.TrackStock,
		product.AllowBackorder,
		string(product.Status),
		product.IsDigital,
		custom,
		tiers,
		media,
		product.UpdatedAt,
	).Scan(&product.CreatedAt)

	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", product.ID))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("failed to update product", err)
	}

	r.invalidate(ctx, product.ID)
	return product, nil
}

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productCacheKey, id)

	// --- Cache-Aside (READ) ---
	if r.cacheEnabled() {
		cachedData, err := r.Cache.Get(ctxTimeout, key)
		if err == nil {
			var product domain.Product
			if json.Unmarshal([]byte(cachedData), &product) == nil {
				metrics.CacheHits.WithLabelValues("product").Inc()
				return product, nil
			}
			r.Logger.Warn("Entrada de cache de produto corrompida; lendo do DB.", map[string]interface{}{"key": key})
		} else if err != cache.ErrCacheMiss {
			// Falha real de cache (ex: conexão perdida): registramos e seguimos para o DB.
			r.Logger.Warn("Falha ao ler do cache Redis.", map[string]interface{}{"key": key, "error": err.Error()})
		}
		metrics.CacheMisses.WithLabelValues("product").Inc()
	}

	row := r.DB.QueryRowContext(ctxTimeout, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)

	// Tratamento do erro de busca (crucial para o 404)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto no DB", err)
	}

	// --- Cache-Aside (WRITE) ---
	if r.cacheEnabled() {
		if productJSON, marshalErr := json.Marshal(product); marshalErr == nil {
			if setErr := r.Cache.Set(ctxTimeout, key, productJSON, r.CacheTTL); setErr != nil {
				r.Logger.Warn("Falha ao gravar produto no cache.", map[string]interface{}{"key": key, "error": setErr.Error()})
			}
		}
	}

	return product, nil
}

// FindBySKU busca direto no DB (o SKU não é chave de cache).
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	row := r.DB.QueryRowContext(ctxTimeout, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com SKU %s não existe na base de dados.", sku))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto por SKU no DB", err)
	}
	return product, nil
}

// FindByIDs carrega os produtos existentes entre ids, em ordem de criação.
// IDs inexistentes são simplesmente omitidos.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) ORDER BY created_at, sku`
	return r.query(ctxTimeout, query, pq.Array(ids))
}

// Find aplica os filtros de coluna de ProductCriteria numa única consulta.
func (r *ProductRepository) Find(ctx context.Context, c domain.ProductCriteria) ([]domain.Product, error) {
	if c.RestrictToIDs && len(c.OnlyIDs) == 0 {
		return []domain.Product{}, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query, args := buildFindQuery(c)
	return r.query(ctxTimeout, query, args...)
}

func buildFindQuery(c domain.ProductCriteria) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if c.RestrictToIDs {
		add("id = ANY($%d::uuid[])", pq.Array(c.OnlyIDs))
	}
	if len(c.ExcludeIDs) > 0 {
		add("NOT (id = ANY($%d::uuid[]))", pq.Array(c.ExcludeIDs))
	}
	if c.SKU != "" {
		add("sku = $%d", c.SKU)
	}
	if c.MinPrice != nil {
		add("price >= $%d", *c.MinPrice)
	}
	if c.MaxPrice != nil {
		add("price <= $%d", *c.MaxPrice)
	}
	if c.InStock != nil {
		// Os dois predicados são expressos separadamente, como em domain.Product.
		if *c.InStock {
			where = append(where, "(NOT track_stock OR COALESCE(stock, 0) > 0 OR allow_backorder)")
		} else {
			where = append(where, "(track_stock AND COALESCE(stock, 0) <= 0 AND NOT allow_backorder)")
		}
	}
	if c.TrackStock != nil {
		add("track_stock = $%d", *c.TrackStock)
	}
	if c.AllowBackorder != nil {
		add("allow_backorder = $%d", *c.AllowBackorder)
	}
	if c.Status != "" {
		add("status = $%d", string(c.Status))
	}

	var b strings.Builder
	b.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	dir := "ASC"
	if c.Descending {
		dir = "DESC"
	}
	switch c.OrderBy {
	case domain.OrderByPrice:
		b.WriteString(" ORDER BY price " + dir + ", created_at, sku")
	case domain.OrderByStock:
		b.WriteString(" ORDER BY COALESCE(stock, 0) " + dir + ", created_at, sku")
	case domain.OrderBySKU:
		b.WriteString(" ORDER BY sku " + dir)
	default:
		b.WriteString(" ORDER BY created_at " + dir + ", sku " + dir)
	}

	if c.Limit > 0 {
		args = append(args, c.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		b.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}
	return b.String(), args
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Product, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDBError("Falha ao consultar produtos no DB", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler produto do DB", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar produtos do DB", err)
	}
	return products, nil
}

func (r *ProductRepository) cacheEnabled() bool {
	return r.Cache != nil && !r.inTx
}

// invalidate remove a entrada de cache, inclusive dentro de transação.
func (r *ProductRepository) invalidate(ctx context.Context, id string) {
	if r.Cache == nil {
		return
	}
	key := fmt.Sprintf(productCacheKey, id)
	if err := r.Cache.Delete(ctx, key); err != nil {
		r.Logger.Warn("Falha ao invalidar cache de produto.", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p            domain.Product
		comparePrice decimal.NullDecimal
		stock        sql.NullInt64
		status       string
		custom       []byte
		tiers        []byte
		media        []byte
	)

	// Mapeamento dos campos do DB para a struct domain.Product
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Title,
		&p.Slug,
		&p.Description,
		&p.Price,
		&comparePrice,
		&p.Weight,
		&p.WeightUnit,
		&stock,
		&p.TrackStock,
		&p.AllowBackorder,
		&status,
		&p.IsDigital,
		&custom,
		&tiers,
		&media,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}

	p.Status = domain.ProductStatus(status)
	if comparePrice.Valid {
		cp := comparePrice.Decimal
		p.ComparePrice = &cp
	}
	if stock.Valid {
		s := int(stock.Int64)
		p.Stock = &s
	}
	if err := decodeJSONColumns(&p, custom, tiers, media); err != nil {
		return domain.Product{}, fmt.Errorf("colunas JSON inválidas para o produto %s: %w", p.ID, err)
	}
	return p, nil
}

func encodeJSONColumns(p domain.Product) (custom, tiers, media []byte, err error) {
	attrs := p.CustomAttributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	if custom, err = json.Marshal(attrs); err != nil {
		return nil, nil, nil, err
	}

	priceTiers := p.PriceTiers
	if priceTiers == nil {
		priceTiers = []domain.PriceTier{}
	}
	if tiers, err = json.Marshal(priceTiers); err != nil {
		return nil, nil, nil, err
	}

	slots := p.Media
	if slots == nil {
		slots = map[domain.MediaSlot][]string{}
	}
	if media, err = json.Marshal(slots); err != nil {
		return nil, nil, nil, err
	}
	return custom, tiers, media, nil
}

func decodeJSONColumns(p *domain.Product, custom, tiers, media []byte) error {
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &p.CustomAttributes); err != nil {
			return err
		}
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &p.PriceTiers); err != nil {
			return err
		}
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &p.Media); err != nil {
			return err
		}
	}
	if len(p.CustomAttributes) == 0 {
		p.CustomAttributes = nil
	}
	if len(p.PriceTiers) == 0 {
		p.PriceTiers = nil
	}
	if len(p.Media) == 0 {
		p.Media = nil
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
