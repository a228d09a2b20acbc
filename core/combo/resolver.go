package combo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
	"github.com/veciapp/marketplace/validate"
)

var (
	ErrSelectionRequired = errors.New("a variant sku must be selected for this product")
	ErrInvalidSelection  = errors.New("invalid sku selection")
)

// Line is one cart line produced by expanding a combo. Children carry
// a zero price; the single summary line carries the combo's fixed
// price for the whole bundle.
type Line struct {
	ProductID       string
	ProductName     string
	SKU             string
	Quantity        int
	Price           decimal.Decimal
	SelectedOptions map[string]string
	ComboID         string
	ComboInstanceID string
}

// Resolve expands the combo into its cart lines for the requested
// quantity, validating every component against the live catalog before
// returning. Any unresolvable component aborts the whole expansion.
// All lines share one freshly generated instance id; the summary line
// comes last.
func Resolve(ctx context.Context, cat catalog.Getter, cmb Combo, comps []Component, quantity int, skus map[string]string) ([]Line, error) {
	instanceID := validate.GenerateID()

	lines := make([]Line, 0, len(comps)+1)
	for _, comp := range comps {
		p, err := cat.Lookup(ctx, comp.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolving combo component[%s]: %w", comp.ProductID, err)
		}

		var (
			sku     string
			options map[string]string
		)

		if p.HasVariants() {
			sku = skus[comp.ProductID]
			if sku == "" {
				return nil, fmt.Errorf("%w: product %q", ErrSelectionRequired, p.Name)
			}
			v, ok := p.Variant(sku)
			if !ok {
				return nil, fmt.Errorf("%w: sku[%s] for product %q", ErrInvalidSelection, sku, p.Name)
			}
			options = v.Options
		} else {
			sku = p.SKU
			options = map[string]string{}
		}

		lines = append(lines, Line{
			ProductID:       comp.ProductID,
			ProductName:     fmt.Sprintf("%s - %s", cmb.Name, p.Name),
			SKU:             sku,
			Quantity:        comp.Quantity * quantity,
			Price:           decimal.Zero,
			SelectedOptions: options,
			ComboID:         cmb.ID,
			ComboInstanceID: instanceID,
		})
	}

	lines = append(lines, Line{
		ProductID:       SummaryProductID(cmb.ID),
		ProductName:     cmb.Name,
		SKU:             SummarySKU(cmb.ID, instanceID),
		Quantity:        quantity,
		Price:           cmb.Price,
		SelectedOptions: map[string]string{},
		ComboID:         cmb.ID,
		ComboInstanceID: instanceID,
	})

	return lines, nil
}

// SummaryProductID is the synthetic product id of a combo summary
// line. It never resolves in the catalog, which is what makes display
// recomputes fall back to the stored combo price.
func SummaryProductID(comboID string) string {
	return "combo-" + comboID
}

// SummarySKU encodes the combo and instance so summary SKUs never
// collide across instances in the same cart.
func SummarySKU(comboID, instanceID string) string {
	return fmt.Sprintf("COMBO-%s-%s", comboID, instanceID)
}
