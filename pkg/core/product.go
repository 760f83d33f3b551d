package core

// Product represents a single product as returned by the search backend.
// The engine never mutates products; they flow from the backend response
// straight into the result list and the view layer.
type Product struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Handle         string         `json:"handle,omitempty"`
	URL            string         `json:"url,omitempty"`
	ImageURL       string         `json:"image_url,omitempty"`
	Vendor         string         `json:"vendor,omitempty"`
	Price          float64        `json:"price"`
	CompareAtPrice float64        `json:"compare_at_price,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Available      bool           `json:"available"`
	Featured       bool           `json:"featured,omitempty"`
	OnSale         bool           `json:"insale,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Dimension identifies one filterable facet dimension. Values match the
// filter keys the search backend understands.
type Dimension string

const (
	DimCategories  Dimension = "categories"
	DimBrands      Dimension = "brands"
	DimColors      Dimension = "colors"
	DimSizes       Dimension = "sizes"
	DimTags        Dimension = "tags"
	DimStockStatus Dimension = "stockStatus"
	DimFeatured    Dimension = "featuredProducts"
	DimSale        Dimension = "saleStatus"
)

// SetDimensions returns every set-valued filter dimension in canonical
// order. Price range is handled separately and is not part of this list.
func SetDimensions() []Dimension {
	return []Dimension{
		DimCategories,
		DimBrands,
		DimColors,
		DimSizes,
		DimTags,
		DimStockStatus,
		DimFeatured,
		DimSale,
	}
}

// ParseDimension maps a wire-level dimension name to its Dimension. The
// second return is false for unknown names.
func ParseDimension(name string) (Dimension, bool) {
	for _, dim := range SetDimensions() {
		if string(dim) == name {
			return dim, true
		}
	}
	return "", false
}

// BooleanDimensions are the dimensions whose facet buckets carry boolean
// keys on the wire (1/0, "true"/"false").
func BooleanDimensions() []Dimension {
	return []Dimension{DimFeatured, DimSale}
}

// StaticCountDimensions are the dimensions whose displayed facet counts
// always come from the global (unfiltered) count map, even while other
// dimensions show reactive counts.
func StaticCountDimensions() []Dimension {
	return []Dimension{DimStockStatus, DimFeatured, DimSale}
}

// IsStaticCountDimension reports whether dim displays global counts only.
func IsStaticCountDimension(dim Dimension) bool {
	for _, d := range StaticCountDimensions() {
		if d == dim {
			return true
		}
	}
	return false
}
