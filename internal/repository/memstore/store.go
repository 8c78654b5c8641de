// Package memstore implementa os contratos de persistência do catálogo em memória.
//
// É usado nos testes de comportamento dos serviços e pelo driver STORAGE_DRIVER=memory.
// As mesmas restrições de unicidade do PostgreSQL são aplicadas: SKU único e (grupo, slug) único.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/errors"

	"github.com/google/uuid"
)

type tagKey struct {
	group domain.TagGroup
	slug  string
}

type state struct {
	products    map[string]domain.Product
	seq         map[string]int64 // ordem de inserção, desempate de created_at
	skuIndex    map[string]string
	tags        map[string]domain.Tag
	tagIndex    map[tagKey]string
	productTags map[string]map[string]struct{} // produto -> tags
	tagProducts map[string]map[string]struct{} // tag -> produtos
	nextSeq     int64
}

func newState() *state {
	return &state{
		products:    make(map[string]domain.Product),
		seq:         make(map[string]int64),
		skuIndex:    make(map[string]string),
		tags:        make(map[string]domain.Tag),
		tagIndex:    make(map[tagKey]string),
		productTags: make(map[string]map[string]struct{}),
		tagProducts: make(map[string]map[string]struct{}),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextSeq = s.nextSeq
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.skuIndex {
		c.skuIndex[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.tagIndex {
		c.tagIndex[k] = v
	}
	for k, set := range s.productTags {
		c.productTags[k] = copySet(set)
	}
	for k, set := range s.tagProducts {
		c.tagProducts[k] = copySet(set)
	}
	return c
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// Store guarda o estado sob um mutex. Cada chamada fora de transação é atômica;
// WithinTx serializa a transação inteira e só publica o estado ao final.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New cria um Store vazio.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// Repositories devolve o par de repositórios que opera fora de transação.
func (s *Store) Repositories() domain.Store {
	return domain.Store{Products: productRepo{s}, Tags: tagRepo{s}}
}

// Stock expõe os ajustes atômicos de estoque; cada ajuste detém o mutex do Store.
func (s *Store) Stock() domain.StockStore {
	return productRepo{s}
}

// WithinTx executa fn sobre uma cópia do estado; se fn retornar erro, a cópia é descartada.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	v := &view{st: draft, now: s.now}
	if err := fn(ctx, domain.Store{Products: productView{v}, Tags: tagView{v}}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

// view opera sem travas sobre um estado específico; quem chama já detém o mutex.
type view struct {
	st  *state
	now func() time.Time
}

func (s *Store) locked(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.state, now: s.now})
}

// --- Produtos ---

func (v *view) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if _, exists := v.st.skuIndex[p.SKU]; exists {
		return domain.Product{}, errors.NewConflictError(fmt.Sprintf("SKU %s já está em uso.", p.SKU))
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := v.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	v.st.nextSeq++
	v.st.products[p.ID] = cloneProduct(p)
	v.st.seq[p.ID] = v.st.nextSeq
	v.st.skuIndex[p.SKU] = p.ID
	return cloneProduct(p), nil
}

func (v *view) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	current, ok := v.st.products[p.ID]
	if !ok {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe.", p.ID))
	}
	if current.SKU != p.SKU {
		return domain.Product{}, errors.NewValidationError("O SKU não pode ser alterado.")
	}
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = v.now().UTC()
	v.st.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

// cloneProduct copia os campos de referência do produto. O estado só guarda cópias,
// e quem lê recebe outra: alterar o resultado nunca atinge o Store sem passar pelo mutex.
func cloneProduct(p domain.Product) domain.Product {
	if p.Stock != nil {
		stock := *p.Stock
		p.Stock = &stock
	}
	if p.ComparePrice != nil {
		price := *p.ComparePrice
		p.ComparePrice = &price
	}
	if p.CustomAttributes != nil {
		attrs := make(map[string]string, len(p.CustomAttributes))
		for k, v := range p.CustomAttributes {
			attrs[k] = v
		}
		p.CustomAttributes = attrs
	}
	if p.PriceTiers != nil {
		p.PriceTiers = append([]domain.PriceTier(nil), p.PriceTiers...)
	}
	if p.Media != nil {
		media := make(map[domain.MediaSlot][]string, len(p.Media))
		for slot, ids := range p.Media {
			media[slot] = append([]string(nil), ids...)
		}
		p.Media = media
	}
	return p
}

func (v *view) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := v.st.products[id]
	if !ok {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe.", id))
	}
	if !p.TrackStock {
		return domain.Product{}, errors.NewValidationError("O produto não controla estoque.")
	}
	next := stockOf(p) + delta
	if next > domain.MaxStock {
		return domain.Product{}, errors.NewValidationError(fmt.Sprintf("O estoque resultante excede o limite de %d.", domain.MaxStock))
	}
	if next < 0 {
		return domain.Product{}, errors.NewConflictError(fmt.Sprintf("Estoque insuficiente: disponível %d, ajuste %d.", stockOf(p), delta))
	}
	p.Stock = &next
	p.UpdatedAt = v.now().UTC()
	v.st.products[id] = p
	return cloneProduct(p), nil
}

func (v *view) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := v.st.products[id]
	if !ok {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe.", id))
	}
	return cloneProduct(p), nil
}

func (v *view) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	id, ok := v.st.skuIndex[sku]
	if !ok {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com SKU %s não existe.", sku))
	}
	return cloneProduct(v.st.products[id]), nil
}

func (v *view) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := v.st.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	v.sortByCreation(out)
	return out, nil
}

func (v *view) findProducts(ctx context.Context, c domain.ProductCriteria) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var only map[string]bool
	if c.RestrictToIDs {
		only = make(map[string]bool, len(c.OnlyIDs))
		for _, id := range c.OnlyIDs {
			only[id] = true
		}
	}
	exclude := make(map[string]bool, len(c.ExcludeIDs))
	for _, id := range c.ExcludeIDs {
		exclude[id] = true
	}

	var out []domain.Product
	for id, p := range v.st.products {
		if only != nil && !only[id] {
			continue
		}
		if exclude[id] || !matches(p, c) {
			continue
		}
		out = append(out, cloneProduct(p))
	}

	v.sortByCreation(out)
	if c.OrderBy != domain.OrderByCreated {
		sort.SliceStable(out, func(i, j int) bool {
			cmp := compareBy(out[i], out[j], c.OrderBy)
			if c.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	} else if c.Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	if c.Offset > 0 {
		if c.Offset >= len(out) {
			return []domain.Product{}, nil
		}
		out = out[c.Offset:]
	}
	if c.Limit > 0 && c.Limit < len(out) {
		out = out[:c.Limit]
	}
	if out == nil {
		out = []domain.Product{}
	}
	return out, nil
}

func matches(p domain.Product, c domain.ProductCriteria) bool {
	if c.SKU != "" && p.SKU != c.SKU {
		return false
	}
	if c.MinPrice != nil && p.Price.LessThan(*c.MinPrice) {
		return false
	}
	if c.MaxPrice != nil && p.Price.GreaterThan(*c.MaxPrice) {
		return false
	}
	if c.InStock != nil {
		if *c.InStock && !p.IsInStock() {
			return false
		}
		if !*c.InStock && !p.IsOutOfStock() {
			return false
		}
	}
	if c.TrackStock != nil && p.TrackStock != *c.TrackStock {
		return false
	}
	if c.AllowBackorder != nil && p.AllowBackorder != *c.AllowBackorder {
		return false
	}
	if c.Status != "" && p.Status != c.Status {
		return false
	}
	return true
}

func compareBy(a, b domain.Product, order domain.ProductOrder) int {
	switch order {
	case domain.OrderByPrice:
		return a.Price.Cmp(b.Price)
	case domain.OrderByStock:
		sa, sb := stockOf(a), stockOf(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	case domain.OrderBySKU:
		return strings.Compare(a.SKU, b.SKU)
	}
	return 0
}

func stockOf(p domain.Product) int {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}

// sortByCreation ordena por created_at e, em empate, pela ordem de inserção.
func (v *view) sortByCreation(ps []domain.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return v.st.seq[ps[i].ID] < v.st.seq[ps[j].ID]
	})
}

// --- Tags ---

func (v *view) FindOrCreate(ctx context.Context, group domain.TagGroup, slug, title string) (domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tag{}, err
	}
	if !group.Valid() {
		return domain.Tag{}, errors.NewValidationError(fmt.Sprintf("Grupo de tags desconhecido: %s.", group))
	}
	if slug == "" {
		return domain.Tag{}, errors.NewValidationError("O slug da tag é obrigatório.")
	}
	key := tagKey{group: group, slug: slug}
	if id, ok := v.st.tagIndex[key]; ok {
		return v.st.tags[id], nil
	}
	if title == "" {
		title = slug
	}
	tag := domain.Tag{
		ID:        uuid.New().String(),
		Group:     group,
		Slug:      slug,
		Title:     title,
		CreatedAt: v.now().UTC(),
	}
	v.st.tags[tag.ID] = tag
	v.st.tagIndex[key] = tag.ID
	return tag, nil
}

func (v *view) findTag(ctx context.Context, group domain.TagGroup, slug string) (domain.Tag, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tag{}, false, err
	}
	id, ok := v.st.tagIndex[tagKey{group: group, slug: slug}]
	if !ok {
		return domain.Tag{}, false, nil
	}
	return v.st.tags[id], true, nil
}

func (v *view) Relate(ctx context.Context, productID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := v.st.products[productID]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe.", productID))
	}
	if _, ok := v.st.tags[tagID]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("Tag com ID %s não existe.", tagID))
	}
	if v.st.productTags[productID] == nil {
		v.st.productTags[productID] = make(map[string]struct{})
	}
	if v.st.tagProducts[tagID] == nil {
		v.st.tagProducts[tagID] = make(map[string]struct{})
	}
	v.st.productTags[productID][tagID] = struct{}{}
	v.st.tagProducts[tagID][productID] = struct{}{}
	return nil
}

func (v *view) Unrelate(ctx context.Context, productID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(v.st.productTags[productID], tagID)
	delete(v.st.tagProducts[tagID], productID)
	return nil
}

func (v *view) TagsFor(ctx context.Context, productID string, group domain.TagGroup) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Tag{}
	for tagID := range v.st.productTags[productID] {
		tag := v.st.tags[tagID]
		if group == "" || tag.Group == group {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (v *view) ProductsRelatedTo(ctx context.Context, tagID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps := make([]domain.Product, 0, len(v.st.tagProducts[tagID]))
	for productID := range v.st.tagProducts[tagID] {
		ps = append(ps, v.st.products[productID])
	}
	v.sortByCreation(ps)

	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids, nil
}

func (v *view) TagsWithSlugPrefix(ctx context.Context, group domain.TagGroup, prefix string) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Tag{}
	for _, tag := range v.st.tags {
		if tag.Group == group && strings.HasPrefix(tag.Slug, prefix) {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
