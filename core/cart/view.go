package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
)

// VariantDetails is the live variant metadata attached to a line for
// display.
type VariantDetails struct {
	Options map[string]string `json:"options"`
	Stock   int               `json:"stock"`
}

type ItemView struct {
	Item
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	ProductImage   string          `json:"productImage,omitempty"`
	VariantDetails *VariantDetails `json:"variantDetails,omitempty"`
}

type View struct {
	Cart
	Items []ItemView `json:"items"`
}

// NewView enriches cart lines with live catalog metadata: current
// display name, first image, variant options and stock. Lookups that
// fail leave the stored snapshot in place; a cart read never depends
// on the catalog being up.
func NewView(ctx context.Context, cat catalog.Getter, c Cart) View {
	views := make([]ItemView, 0, len(c.Items))
	for _, it := range c.Items {
		iv := ItemView{Item: it, TotalPrice: it.LinePrice()}

		if !isComboSummary(it.ProductID) {
			if p, err := cat.Lookup(ctx, it.ProductID); err == nil {
				if p.Name != "" {
					iv.ProductName = p.Name
				}
				iv.ProductImage = p.ImageURL()
				if v, ok := p.Variant(it.SKU); ok {
					iv.VariantDetails = &VariantDetails{Options: v.Options, Stock: v.Stock}
				}
			}
		}

		views = append(views, iv)
	}

	return View{Cart: c, Items: views}
}
