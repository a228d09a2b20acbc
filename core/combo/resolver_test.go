package combo

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
)

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) Lookup(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func TestResolve(t *testing.T) {
	cat := fakeCatalog{
		"p-burger": {
			Name: "Burger",
			Variants: []catalog.Variant{
				{SKU: "BURGER-DOUBLE", Stock: 20, Options: map[string]string{"Size": "Double"}},
			},
		},
		"p-soda": {Name: "Soda", SKU: "SODA-350", Stock: 50},
	}

	cmb := Combo{ID: "c1", StoreID: "s1", Name: "Lunch Deal", Price: decimal.NewFromInt(15)}
	comps := []Component{
		{ComboID: "c1", ProductID: "p-burger", SKU: "", Quantity: 3},
		{ComboID: "c1", ProductID: "p-soda", SKU: "SODA-350", Quantity: 1},
	}

	lines, err := Resolve(context.Background(), cat, cmb, comps, 2, map[string]string{"p-burger": "BURGER-DOUBLE"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	burger := lines[0]
	if burger.Quantity != 6 {
		t.Errorf("burger child quantity = %d, want 6", burger.Quantity)
	}
	if !burger.Price.IsZero() {
		t.Errorf("child line should be zero priced, got %s", burger.Price)
	}
	if burger.ProductName != "Lunch Deal - Burger" {
		t.Errorf("child name = %q", burger.ProductName)
	}
	if burger.SelectedOptions["Size"] != "Double" {
		t.Errorf("child options = %v, want variant options", burger.SelectedOptions)
	}

	summary := lines[2]
	if summary.Quantity != 2 {
		t.Errorf("summary quantity = %d, want 2", summary.Quantity)
	}
	if !summary.Price.Equal(decimal.NewFromInt(15)) {
		t.Errorf("summary price = %s, want 15", summary.Price)
	}
	if summary.ProductID != "combo-c1" {
		t.Errorf("summary product id = %q", summary.ProductID)
	}

	instance := summary.ComboInstanceID
	if instance == "" {
		t.Fatal("summary has no instance id")
	}
	for i, ln := range lines {
		if ln.ComboInstanceID != instance {
			t.Errorf("line %d instance = %q, want %q", i, ln.ComboInstanceID, instance)
		}
	}

	if summary.SKU != SummarySKU("c1", instance) {
		t.Errorf("summary sku = %q", summary.SKU)
	}
}

func TestResolveSelectionRequired(t *testing.T) {
	cat := fakeCatalog{
		"p-shirt": {
			Name: "Shirt",
			Variants: []catalog.Variant{
				{SKU: "SHIRT-M", Options: map[string]string{"Size": "M"}},
			},
		},
	}

	cmb := Combo{ID: "c1", Name: "Outfit", Price: decimal.NewFromInt(30)}
	comps := []Component{{ComboID: "c1", ProductID: "p-shirt", Quantity: 1}}

	_, err := Resolve(context.Background(), cat, cmb, comps, 1, nil)
	if !errors.Is(err, ErrSelectionRequired) {
		t.Fatalf("got %v, want ErrSelectionRequired", err)
	}

	_, err = Resolve(context.Background(), cat, cmb, comps, 1, map[string]string{"p-shirt": "SHIRT-XXL"})
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("got %v, want ErrInvalidSelection", err)
	}
}

func TestResolveMissingComponentAborts(t *testing.T) {
	cat := fakeCatalog{}

	cmb := Combo{ID: "c1", Name: "Deal", Price: decimal.NewFromInt(10)}
	comps := []Component{{ComboID: "c1", ProductID: "p-gone", Quantity: 2}}

	lines, err := Resolve(context.Background(), cat, cmb, comps, 1, nil)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("got %v, want catalog.ErrNotFound", err)
	}
	if lines != nil {
		t.Fatal("no lines should be produced on failure")
	}
}
