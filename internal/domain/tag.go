package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TagGroup particiona as tags por finalidade.
type TagGroup string

const (
	GroupSKU        TagGroup = "sku"
	GroupHierarchy  TagGroup = "hierarchy"
	GroupAttributes TagGroup = "attributes"
	GroupCategories TagGroup = "categories"
	GroupSystem     TagGroup = "system"
	GroupInternal   TagGroup = "internal"
	GroupRelations  TagGroup = "relations"
)

// Valid informa se o grupo pertence ao conjunto fechado usado pelo catálogo.
func (g TagGroup) Valid() bool {
	switch g {
	case GroupSKU, GroupHierarchy, GroupAttributes, GroupCategories, GroupSystem, GroupInternal, GroupRelations:
		return true
	}
	return false
}

// Tag é identificada por (Group, Slug).
type Tag struct {
	ID        string    `json:"id"`
	Group     TagGroup  `json:"group"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	SKUSlugPrefix      = "sku-"
	ParentSlugPrefix   = "parent-"
	CategorySlugPrefix = "category-"
)

// Tipos de relação entre produtos codificados no grupo relations.
const (
	RelationCrossSell  = "cross-sell"
	RelationUpsell     = "upsell"
	RelationBundleWith = "bundle-with"
)

// SKUSlug: sku-<SKU>.
func SKUSlug(sku string) string { return SKUSlugPrefix + sku }

// ParentSlug: parent-<SKU do pai>.
func ParentSlug(parentSKU string) string { return ParentSlugPrefix + parentSKU }

// ParentSKUFromSlug remove o prefixo parent-.
func ParentSKUFromSlug(slug string) (string, bool) {
	if !strings.HasPrefix(slug, ParentSlugPrefix) {
		return "", false
	}
	return strings.TrimPrefix(slug, ParentSlugPrefix), true
}

// AttributeSlug: <tipo>-<valor>, sempre em minúsculas.
func AttributeSlug(attrType, value string) string {
	return strings.ToLower(attrType) + "-" + strings.ToLower(value)
}

// ParseAttributeSlug divide o slug no primeiro '-'.
func ParseAttributeSlug(slug string) (attrType, value string, ok bool) {
	parts := strings.SplitN(slug, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// CategorySlug: category-<caminho com '/' trocado por '-'>.
func CategorySlug(path string) string {
	return CategorySlugPrefix + strings.ReplaceAll(strings.Trim(path, "/"), "/", "-")
}

// RelationSlug: <tipo>-<id do produto alvo>.
func RelationSlug(relationType, targetID string) string {
	return relationType + "-" + targetID
}

// ValidRelationType restringe os tipos de relação conhecidos.
func ValidRelationType(relationType string) bool {
	switch relationType {
	case RelationCrossSell, RelationUpsell, RelationBundleWith:
		return true
	}
	return false
}

// TitleCase coloca em maiúscula a primeira letra de cada palavra, sem rebaixar as demais.
// Um Caser guarda estado, por isso é criado a cada chamada.
func TitleCase(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// UpperFirst coloca em maiúscula apenas a primeira letra: "light blue" vira "Light blue".
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + s[size:]
}

// ParentTagTitle: "Parent: <SKU>".
func ParentTagTitle(parentSKU string) string {
	return "Parent: " + parentSKU
}

// AttributeTagTitle: "Color: Light blue".
func AttributeTagTitle(attrType, value string) string {
	return UpperFirst(attrType) + ": " + UpperFirst(value)
}

// CategoryTitle: "apparel/t-shirts" vira "Apparel / T Shirts".
func CategoryTitle(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = TitleCase(strings.ReplaceAll(seg, "-", " "))
	}
	return strings.Join(segments, " / ")
}

// SystemTagTitle: "price-tier-wholesale" vira "Price tier wholesale".
func SystemTagTitle(slug string) string {
	return UpperFirst(strings.ReplaceAll(slug, "-", " "))
}
