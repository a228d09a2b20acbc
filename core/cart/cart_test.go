package cart

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/veciapp/marketplace/catalog"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func instance(id string) sql.NullString {
	return sql.NullString{String: id, Valid: true}
}

func TestTotals(t *testing.T) {
	live := map[string]catalog.Product{
		// discounted in the catalog: stored line price 8, base 10
		"p1": {Price: 10, SKU: "P1"},
		// variant product, base variant price 25
		"p2": {Variants: []catalog.Variant{{SKU: "P2-M", Price: 25}}},
	}
	look := func(id string) (catalog.Product, error) {
		p, ok := live[id]
		if !ok {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return p, nil
	}

	comboRef := sql.NullString{String: "c1", Valid: true}
	items := []Item{
		{ProductID: "p1", SKU: "P1", Quantity: 2, Price: money("8.00")},
		{ProductID: "p2", SKU: "P2-M", Quantity: 1, Price: money("20.00")},
		// combo child: paid through the summary line, excluded from total
		{ProductID: "p1", SKU: "P1", Quantity: 3, Price: decimal.Zero, ComboID: comboRef, ComboInstanceID: instance("i1")},
		// combo summary: synthetic id never resolves, falls back to stored price
		{ProductID: "combo-c1", SKU: "COMBO-c1-i1", Quantity: 1, Price: money("30.00"), ComboID: comboRef, ComboInstanceID: instance("i1")},
	}

	subtotal, total := Totals(items, look)

	// 8*2 + 20*1 + 0*3 + 30*1
	if want := money("66.00"); !subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", subtotal, want)
	}
	// 10*2 + 25*1 + 30*1, children skipped
	if want := money("75.00"); !total.Equal(want) {
		t.Errorf("total = %s, want %s", total, want)
	}
}

func TestTotalsCatalogDown(t *testing.T) {
	look := func(id string) (catalog.Product, error) {
		return catalog.Product{}, catalog.ErrUnavailable
	}

	items := []Item{
		{ProductID: "p1", SKU: "P1", Quantity: 2, Price: money("8.00")},
	}

	subtotal, total := Totals(items, look)

	if want := money("16.00"); !subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", subtotal, want)
	}
	// fallback: stored price stands in for the catalog base price
	if want := money("16.00"); !total.Equal(want) {
		t.Errorf("total = %s, want %s", total, want)
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		child, oldSum, newSum, want int
	}{
		{6, 2, 5, 15},
		{6, 2, 1, 3},
		{3, 1, 4, 12},
		{5, 2, 3, 6}, // floor division drops the remainder
		{4, 0, 2, 4}, // degenerate old quantity leaves the child alone
	}

	for _, tt := range tests {
		if got := Rescale(tt.child, tt.oldSum, tt.newSum); got != tt.want {
			t.Errorf("Rescale(%d, %d, %d) = %d, want %d", tt.child, tt.oldSum, tt.newSum, got, tt.want)
		}
	}
}

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) Lookup(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func TestCheckRescaleStock(t *testing.T) {
	group := []Item{
		{ID: "child-1", ProductID: "p-burger", SKU: "BURGER-DOUBLE", Quantity: 2, ComboInstanceID: instance("i1")},
		{ID: "child-2", ProductID: "p-soda", SKU: "SODA-350", Quantity: 2, ComboInstanceID: instance("i1")},
		{ID: "summary", ProductID: "combo-c1", SKU: "COMBO-c1-i1", Quantity: 1, ComboInstanceID: instance("i1")},
	}

	tests := []struct {
		name    string
		cat     fakeCatalog
		newQty  int
		wantErr error
	}{
		{
			name: "all children within stock",
			cat: fakeCatalog{
				"p-burger": {Name: "Burger", Variants: []catalog.Variant{{SKU: "BURGER-DOUBLE", Stock: 6}}},
				"p-soda":   {Name: "Soda", SKU: "SODA-350", Stock: 6},
			},
			newQty: 3,
		},
		{
			name: "one child over stock rejects the whole rescale",
			cat: fakeCatalog{
				"p-burger": {Name: "Burger", Variants: []catalog.Variant{{SKU: "BURGER-DOUBLE", Stock: 6}}},
				"p-soda":   {Name: "Soda", SKU: "SODA-350", Stock: 5},
			},
			newQty:  3,
			wantErr: ErrInsufficientStock,
		},
		{
			name: "unresolvable component aborts",
			cat: fakeCatalog{
				"p-burger": {Name: "Burger", Variants: []catalog.Variant{{SKU: "BURGER-DOUBLE", Stock: 6}}},
			},
			newQty:  3,
			wantErr: catalog.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRescaleStock(context.Background(), tt.cat, group, "summary", 1, tt.newQty)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkRescaleStock() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindLine(t *testing.T) {
	items := []Item{
		{ID: "a", SKU: "SKU-1"},
		{ID: "b", SKU: "SKU-2", ComboInstanceID: instance("i1")},
		{ID: "c", SKU: "SKU-2", ComboInstanceID: instance("i2")},
	}

	got, err := findLine(items, "SKU-1", "")
	if err != nil {
		t.Fatalf("findLine standalone: %v", err)
	}
	if got.ID != "a" {
		t.Errorf("got item %q, want a", got.ID)
	}

	if _, err := findLine(items, "SKU-2", ""); !errors.Is(err, ErrMultipleMatches) {
		t.Errorf("ambiguous sku: got %v, want ErrMultipleMatches", err)
	}

	got, err = findLine(items, "SKU-2", "i2")
	if err != nil {
		t.Fatalf("findLine with instance: %v", err)
	}
	if got.ID != "c" {
		t.Errorf("got item %q, want c", got.ID)
	}

	if _, err := findLine(items, "SKU-9", ""); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("missing sku: got %v, want ErrItemNotFound", err)
	}
}

func TestOptionsEqual(t *testing.T) {
	tests := []struct {
		name  string
		a     Options
		b     map[string]string
		equal bool
	}{
		{"both empty", Options{}, map[string]string{}, true},
		{"nil vs empty", nil, map[string]string{}, true},
		{"same pairs", Options{"Size": "M", "Color": "Black"}, map[string]string{"Color": "Black", "Size": "M"}, true},
		{"different value", Options{"Size": "M"}, map[string]string{"Size": "L"}, false},
		{"extra key", Options{"Size": "M"}, map[string]string{"Size": "M", "Color": "Red"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal = %v, want %v (diff %s)", got, tt.equal, cmp.Diff(map[string]string(tt.a), tt.b))
			}
		})
	}
}

func TestTargetQuantity(t *testing.T) {
	tests := []struct {
		action  string
		current int
		set     int
		want    int
	}{
		{ActionIncrement, 2, 0, 3},
		{ActionDecrement, 2, 0, 1},
		{ActionSet, 2, 7, 7},
		{ActionSet, 2, 0, 0},
	}

	for _, tt := range tests {
		got, err := targetQuantity(tt.current, QuantityUpdate{Action: tt.action, Quantity: tt.set})
		if err != nil {
			t.Fatalf("targetQuantity(%s): %v", tt.action, err)
		}
		if got != tt.want {
			t.Errorf("targetQuantity(%s, %d) = %d, want %d", tt.action, tt.current, got, tt.want)
		}
	}

	if _, err := targetQuantity(1, QuantityUpdate{Action: "bogus"}); err == nil {
		t.Fatal("unknown action should error")
	}
}
