package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus é o ciclo de vida comercial de um produto.
type ProductStatus string

const (
	StatusActive       ProductStatus = "active"
	StatusInactive     ProductStatus = "inactive"
	StatusDiscontinued ProductStatus = "discontinued"
)

// MediaSlot identifica um conjunto de assets associado ao produto (imagens, vídeo, AR).
type MediaSlot string

const (
	MediaPrimary   MediaSlot = "primary"
	MediaFront     MediaSlot = "front"
	MediaBack      MediaSlot = "back"
	MediaSide      MediaSlot = "side"
	MediaDetail    MediaSlot = "detail"
	MediaLifestyle MediaSlot = "lifestyle"
	MediaSizeChart MediaSlot = "size-chart"
	MediaVideo     MediaSlot = "video"
	MediaARModel   MediaSlot = "ar-model"
)

// PriceTier define o preço unitário aplicado a partir de uma quantidade mínima.
type PriceTier struct {
	MinQuantity int             `json:"min_quantity" validate:"min=1"`
	Price       decimal.Decimal `json:"price" validate:"min=0"`
}

// Product representa o item do catálogo (produto principal ou variante).
// A hierarquia e os atributos não ficam aqui: são derivados das tags.
type Product struct {
	ID               string                 `json:"id"`
	SKU              string                 `json:"sku" validate:"required,max=100"` // Stock Keeping Unit, único e imutável
	Title            string                 `json:"title" validate:"required,max=255"`
	Slug             string                 `json:"slug"`
	Description      string                 `json:"description"`
	Price            decimal.Decimal        `json:"price" validate:"min=0"`
	ComparePrice     *decimal.Decimal       `json:"compare_price,omitempty" validate:"omitempty,min=0"`
	Weight           decimal.Decimal        `json:"weight" validate:"min=0"`
	WeightUnit       string                 `json:"weight_unit"`
	Stock            *int                   `json:"stock" validate:"omitempty,min=0"` // nil = estoque não controlado
	TrackStock       bool                   `json:"track_stock"`
	AllowBackorder   bool                   `json:"allow_backorder"`
	Status           ProductStatus          `json:"status" validate:"required,oneof=active inactive discontinued"`
	IsDigital        bool                   `json:"is_digital"`
	CustomAttributes map[string]string      `json:"custom_attributes,omitempty"`
	PriceTiers       []PriceTier            `json:"price_tiers,omitempty" validate:"dive"`
	Media            map[MediaSlot][]string `json:"media,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// IsInStock: (¬trackStock) ∨ (stock > 0) ∨ allowBackorder.
func (p Product) IsInStock() bool {
	if !p.TrackStock {
		return true
	}
	return p.stockLevel() > 0 || p.AllowBackorder
}

// IsOutOfStock é escrito como predicado próprio (trackStock ∧ stock ≤ 0 ∧ ¬allowBackorder),
// espelhando o filtro SQL. Os testes garantem que continua complementar a IsInStock.
func (p Product) IsOutOfStock() bool {
	return p.TrackStock && p.stockLevel() <= 0 && !p.AllowBackorder
}

// stockLevel trata estoque nulo como zero.
func (p Product) stockLevel() int {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}

// FinalPrice aplica a faixa de preço de maior quantidade mínima atingida.
func (p Product) FinalPrice(quantity int) decimal.Decimal {
	tiers := make([]PriceTier, len(p.PriceTiers))
	copy(tiers, p.PriceTiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinQuantity < tiers[j].MinQuantity })

	price := p.Price
	for _, tier := range tiers {
		if quantity >= tier.MinQuantity {
			price = tier.Price
		}
	}
	return price
}

// PrimaryImage devolve o asset principal: primary, depois front[0], depois o primeiro de back/side/detail/lifestyle.
func (p Product) PrimaryImage() (string, bool) {
	for _, slot := range []MediaSlot{MediaPrimary, MediaFront, MediaBack, MediaSide, MediaDetail, MediaLifestyle} {
		if ids := p.Media[slot]; len(ids) > 0 {
			return ids[0], true
		}
	}
	return "", false
}

// HoverImage devolve a imagem de hover dos cards: back[0], front[1] ou side[0].
func (p Product) HoverImage() (string, bool) {
	if ids := p.Media[MediaBack]; len(ids) > 0 {
		return ids[0], true
	}
	if ids := p.Media[MediaFront]; len(ids) > 1 {
		return ids[1], true
	}
	if ids := p.Media[MediaSide]; len(ids) > 0 {
		return ids[0], true
	}
	return "", false
}

// MediaFor devolve os assets de um slot.
func (p Product) MediaFor(slot MediaSlot) []string {
	return p.Media[slot]
}

// Attribute é um par (dimensão, valor) que distingue uma variante, e.g. color=red.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// OptionSet lista os valores possíveis de uma dimensão para a geração da matriz de variantes.
type OptionSet struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// PriceModifiers mapeia dimensão -> valor -> delta de preço.
type PriceModifiers map[string]map[string]decimal.Decimal

// ProductOrder define a coluna de ordenação de consultas.
type ProductOrder string

const (
	OrderByCreated ProductOrder = ""
	OrderByPrice   ProductOrder = "price"
	OrderByStock   ProductOrder = "stock"
	OrderBySKU     ProductOrder = "sku"
)

// ProductCriteria são os filtros de coluna que o repositório sabe aplicar.
// Filtros mediados por tags chegam aqui já resolvidos em conjuntos de IDs.
type ProductCriteria struct {
	// RestrictToIDs limita o resultado a OnlyIDs; lista vazia = nenhum resultado.
	RestrictToIDs  bool
	OnlyIDs        []string
	ExcludeIDs     []string
	SKU            string
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	InStock        *bool
	TrackStock     *bool
	AllowBackorder *bool
	Status         ProductStatus
	OrderBy        ProductOrder
	Descending     bool
	Limit          int
	Offset         int
}

// Slugify gera um slug de URL: minúsculas, e qualquer sequência fora de [a-z0-9] vira um único '-'.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
