// Package tagrepo persiste tags e a relação produto-tag no PostgreSQL.
package tagrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/errors"
	"gocatalog/internal/pkg/database"

	"github.com/google/uuid"
)

// TagRepository implementa domain.TagStore.
type TagRepository struct {
	DB        database.DBTX
	DBTimeout time.Duration
}

// NewTagRepository cria o repositório de tags.
func NewTagRepository(db database.DBTX, dbTimeout time.Duration) *TagRepository {
	return &TagRepository{DB: db, DBTimeout: dbTimeout}
}

// WithTx devolve uma cópia do repositório ligada à transação tx.
func (r *TagRepository) WithTx(tx database.DBTX) *TagRepository {
	return &TagRepository{DB: tx, DBTimeout: r.DBTimeout}
}

// FindOrCreate insere a tag ignorando conflito em (tag_group, slug) e relê a linha vencedora.
// O SELECT é um comando separado, então em READ COMMITTED enxerga a linha de quem inseriu primeiro.
func (r *TagRepository) FindOrCreate(ctx context.Context, group domain.TagGroup, slug, title string) (domain.Tag, error) {
	if !group.Valid() {
		return domain.Tag{}, errors.NewValidationError(fmt.Sprintf("Grupo de tags desconhecido: %s.", group))
	}
	if slug == "" {
		return domain.Tag{}, errors.NewValidationError("O slug da tag é obrigatório.")
	}
	if title == "" {
		title = slug
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const insertSQL = `INSERT INTO tags (id, tag_group, slug, title, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tag_group, slug) DO NOTHING`

	if _, err := r.DB.ExecContext(ctxTimeout, insertSQL, uuid.New().String(), string(group), slug, title, time.Now().UTC()); err != nil {
		return domain.Tag{}, errors.NewDBError("failed to insert tag", err)
	}

	tag, found, err := r.find(ctxTimeout, group, slug)
	if err != nil {
		return domain.Tag{}, err
	}
	if !found {
		return domain.Tag{}, errors.NewInternalError(fmt.Sprintf("tag %s/%s não encontrada após inserção", group, slug), nil)
	}
	return tag, nil
}

// Find busca a tag por (grupo, slug). Ausência não é erro.
func (r *TagRepository) Find(ctx context.Context, group domain.TagGroup, slug string) (domain.Tag, bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()
	return r.find(ctxTimeout, group, slug)
}

func (r *TagRepository) find(ctx context.Context, group domain.TagGroup, slug string) (domain.Tag, bool, error) {
	const selectSQL = `SELECT id, tag_group, slug, title, created_at FROM tags WHERE tag_group = $1 AND slug = $2`

	tag, err := scanTag(r.DB.QueryRowContext(ctx, selectSQL, string(group), slug))
	if err == sql.ErrNoRows {
		return domain.Tag{}, false, nil
	}
	if err != nil {
		return domain.Tag{}, false, errors.NewDBError("Falha ao buscar tag no DB", err)
	}
	return tag, true, nil
}

// Relate associa produto e tag; repetir a chamada não tem efeito.
func (r *TagRepository) Relate(ctx context.Context, productID, tagID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const relateSQL = `INSERT INTO product_tags (product_id, tag_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, tag_id) DO NOTHING`

	_, err := r.DB.ExecContext(ctxTimeout, relateSQL, productID, tagID, time.Now().UTC())
	if database.IsForeignKeyViolation(err) || database.IsInvalidInput(err) {
		return errors.NewNotFoundError(fmt.Sprintf("Produto %s ou tag %s não existe.", productID, tagID))
	}
	if err != nil {
		return errors.NewDBError("failed to relate product and tag", err)
	}
	return nil
}

// Unrelate remove a associação, se existir.
func (r *TagRepository) Unrelate(ctx context.Context, productID, tagID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctxTimeout, `DELETE FROM product_tags WHERE product_id = $1 AND tag_id = $2`, productID, tagID)
	if err != nil {
		return errors.NewDBError("failed to unrelate product and tag", err)
	}
	return nil
}

// TagsFor lista as tags do produto no grupo informado (grupo vazio = todos), ordenadas por slug.
func (r *TagRepository) TagsFor(ctx context.Context, productID string, group domain.TagGroup) ([]domain.Tag, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT t.id, t.tag_group, t.slug, t.title, t.created_at
		FROM tags t
		JOIN product_tags pt ON pt.tag_id = t.id
		WHERE pt.product_id = $1`
	args := []interface{}{productID}
	if group != "" {
		query += ` AND t.tag_group = $2`
		args = append(args, string(group))
	}
	query += ` ORDER BY t.slug`

	return r.queryTags(ctxTimeout, query, args...)
}

// ProductsRelatedTo devolve os IDs dos produtos com a tag, em ordem de criação do produto.
func (r *TagRepository) ProductsRelatedTo(ctx context.Context, tagID string) ([]string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `SELECT p.id
		FROM product_tags pt
		JOIN products p ON p.id = pt.product_id
		WHERE pt.tag_id = $1
		ORDER BY p.created_at, p.sku`

	rows, err := r.DB.QueryContext(ctxTimeout, query, tagID)
	if err != nil {
		return nil, errors.NewDBError("Falha ao listar produtos da tag", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewDBError("Falha ao ler produto da tag", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar produtos da tag", err)
	}
	return ids, nil
}

// TagsWithSlugPrefix lista as tags do grupo cujo slug começa com prefix.
func (r *TagRepository) TagsWithSlugPrefix(ctx context.Context, group domain.TagGroup, prefix string) ([]domain.Tag, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `SELECT id, tag_group, slug, title, created_at
		FROM tags
		WHERE tag_group = $1 AND slug LIKE $2 ESCAPE '\'
		ORDER BY slug`

	return r.queryTags(ctxTimeout, query, string(group), escapeLike(prefix)+"%")
}

func (r *TagRepository) queryTags(ctx context.Context, query string, args ...interface{}) ([]domain.Tag, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDBError("Falha ao consultar tags", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler tag", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar tags", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTag(row rowScanner) (domain.Tag, error) {
	var (
		tag   domain.Tag
		group string
	)
	if err := row.Scan(&tag.ID, &group, &tag.Slug, &tag.Title, &tag.CreatedAt); err != nil {
		return domain.Tag{}, err
	}
	tag.Group = domain.TagGroup(group)
	return tag, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
