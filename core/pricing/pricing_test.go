package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestEffective(t *testing.T) {
	today := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   Inputs
		want string
	}{
		{
			name: "no discount fields",
			in:   Inputs{BasePrice: decimal.NewFromInt(100)},
			want: "100",
		},
		{
			name: "percentage derives discounted price inside window",
			in: Inputs{
				BasePrice:          decimal.NewFromInt(100),
				DiscountPercentage: decimal.NewFromInt(20),
				DiscountStart:      date("2024-06-14"),
				DiscountEnd:        date("2024-06-16"),
			},
			want: "80",
		},
		{
			name: "window not yet started",
			in: Inputs{
				BasePrice:          decimal.NewFromInt(100),
				DiscountPercentage: decimal.NewFromInt(20),
				DiscountStart:      date("2024-06-16"),
				DiscountEnd:        date("2024-06-20"),
			},
			want: "100",
		},
		{
			name: "window already over",
			in: Inputs{
				BasePrice:          decimal.NewFromInt(100),
				DiscountedPrice:    decimal.NewFromInt(60),
				DiscountStart:      date("2024-06-01"),
				DiscountEnd:        date("2024-06-14"),
			},
			want: "100",
		},
		{
			name: "window boundaries are inclusive",
			in: Inputs{
				BasePrice:       decimal.NewFromInt(50),
				DiscountedPrice: decimal.NewFromInt(40),
				DiscountStart:   date("2024-06-15"),
				DiscountEnd:     date("2024-06-15"),
			},
			want: "40",
		},
		{
			name: "explicit discounted price wins over percentage",
			in: Inputs{
				BasePrice:          decimal.NewFromInt(100),
				DiscountedPrice:    decimal.NewFromInt(75),
				DiscountPercentage: decimal.NewFromInt(20),
				DiscountStart:      date("2024-06-14"),
				DiscountEnd:        date("2024-06-16"),
			},
			want: "75",
		},
		{
			name: "discounted price above base is ignored",
			in: Inputs{
				BasePrice:       decimal.NewFromInt(100),
				DiscountedPrice: decimal.NewFromInt(120),
				DiscountStart:   date("2024-06-14"),
				DiscountEnd:     date("2024-06-16"),
			},
			want: "100",
		},
		{
			name: "missing end date disables the window",
			in: Inputs{
				BasePrice:          decimal.NewFromInt(100),
				DiscountPercentage: decimal.NewFromInt(20),
				DiscountStart:      date("2024-06-14"),
			},
			want: "100",
		},
		{
			name: "derived price rounds half up",
			in: Inputs{
				BasePrice:          decimal.NewFromFloat(33.33),
				DiscountPercentage: decimal.NewFromInt(15),
				DiscountStart:      date("2024-06-14"),
				DiscountEnd:        date("2024-06-16"),
			},
			// 33.33 * 0.85 = 28.3305 -> 28.33
			want: "28.33",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Effective(tt.in, today)
			if got.String() != tt.want {
				t.Fatalf("Effective() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountQuantizes(t *testing.T) {
	if got := Amount(19.995); got.String() != "20" {
		t.Fatalf("Amount(19.995) = %s, want 20", got)
	}
	if got := Amount(10.004); got.String() != "10" {
		t.Fatalf("Amount(10.004) = %s, want 10", got)
	}
	if got := Amount(10.005); got.String() != "10.01" {
		t.Fatalf("Amount(10.005) = %s, want 10.01", got)
	}
}
