package memstore

import (
	"context"

	"gocatalog/internal/domain"
)

// productView e tagView expõem um view (já travado pelo chamador) nos contratos do domínio.
type productView struct{ v *view }

func (p productView) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	return p.v.Create(ctx, product)
}
func (p productView) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	return p.v.Update(ctx, product)
}
func (p productView) FindByID(ctx context.Context, id string) (domain.Product, error) {
	return p.v.FindByID(ctx, id)
}
func (p productView) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	return p.v.FindBySKU(ctx, sku)
}
func (p productView) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	return p.v.FindByIDs(ctx, ids)
}
func (p productView) Find(ctx context.Context, c domain.ProductCriteria) ([]domain.Product, error) {
	return p.v.findProducts(ctx, c)
}

type tagView struct{ v *view }

func (t tagView) FindOrCreate(ctx context.Context, group domain.TagGroup, slug, title string) (domain.Tag, error) {
	return t.v.FindOrCreate(ctx, group, slug, title)
}
func (t tagView) Find(ctx context.Context, group domain.TagGroup, slug string) (domain.Tag, bool, error) {
	return t.v.findTag(ctx, group, slug)
}
func (t tagView) Relate(ctx context.Context, productID, tagID string) error {
	return t.v.Relate(ctx, productID, tagID)
}
func (t tagView) Unrelate(ctx context.Context, productID, tagID string) error {
	return t.v.Unrelate(ctx, productID, tagID)
}
func (t tagView) TagsFor(ctx context.Context, productID string, group domain.TagGroup) ([]domain.Tag, error) {
	return t.v.TagsFor(ctx, productID, group)
}
func (t tagView) ProductsRelatedTo(ctx context.Context, tagID string) ([]string, error) {
	return t.v.ProductsRelatedTo(ctx, tagID)
}
func (t tagView) TagsWithSlugPrefix(ctx context.Context, group domain.TagGroup, prefix string) ([]domain.Tag, error) {
	return t.v.TagsWithSlugPrefix(ctx, group, prefix)
}

// productRepo e tagRepo travam o Store a cada chamada (uso fora de transação).
type productRepo struct{ s *Store }

func (r productRepo) Create(ctx context.Context, product domain.Product) (out domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.Create(ctx, product); return err })
	return out, err
}
func (r productRepo) Update(ctx context.Context, product domain.Product) (out domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.Update(ctx, product); return err })
	return out, err
}
func (r productRepo) FindByID(ctx context.Context, id string) (out domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.FindByID(ctx, id); return err })
	return out, err
}
func (r productRepo) FindBySKU(ctx context.Context, sku string) (out domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.FindBySKU(ctx, sku); return err })
	return out, err
}
func (r productRepo) FindByIDs(ctx context.Context, ids []string) (out []domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.FindByIDs(ctx, ids); return err })
	return out, err
}
func (r productRepo) Find(ctx context.Context, c domain.ProductCriteria) (out []domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.findProducts(ctx, c); return err })
	return out, err
}

func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) (out domain.Product, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.AdjustStock(ctx, id, delta); return err })
	return out, err
}

type tagRepo struct{ s *Store }

func (r tagRepo) FindOrCreate(ctx context.Context, group domain.TagGroup, slug, title string) (out domain.Tag, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.FindOrCreate(ctx, group, slug, title); return err })
	return out, err
}
func (r tagRepo) Find(ctx context.Context, group domain.TagGroup, slug string) (out domain.Tag, found bool, err error) {
	err = r.s.locked(func(v *view) error { out, found, err = v.findTag(ctx, group, slug); return err })
	return out, found, err
}
func (r tagRepo) Relate(ctx context.Context, productID, tagID string) error {
	return r.s.locked(func(v *view) error { return v.Relate(ctx, productID, tagID) })
}
func (r tagRepo) Unrelate(ctx context.Context, productID, tagID string) error {
	return r.s.locked(func(v *view) error { return v.Unrelate(ctx, productID, tagID) })
}
func (r tagRepo) TagsFor(ctx context.Context, productID string, group domain.TagGroup) (out []domain.Tag, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.TagsFor(ctx, productID, group); return err })
	return out, err
}
func (r tagRepo) ProductsRelatedTo(ctx context.Context, tagID string) (out []string, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.ProductsRelatedTo(ctx, tagID); return err })
	return out, err
}
func (r tagRepo) TagsWithSlugPrefix(ctx context.Context, group domain.TagGroup, prefix string) (out []domain.Tag, err error) {
	err = r.s.locked(func(v *view) error { out, err = v.TagsWithSlugPrefix(ctx, group, prefix); return err })
	return out, err
}
