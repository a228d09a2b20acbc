package shipping

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestSelectZone(t *testing.T) {
	countryWide := Zone{ID: "z-country", Country: "Colombia"}
	cityWide := Zone{ID: "z-city", Country: "Colombia", City: ns("Bogotá")}
	barrio := Zone{ID: "z-barrio", Country: "Colombia", City: ns("Bogotá"), Neighborhood: ns("Chapinero")}

	zones := []Zone{countryWide, cityWide, barrio}

	tests := []struct {
		name    string
		loc     Location
		want    string
		wantErr error
	}{
		{
			name: "neighborhood beats city and country",
			loc:  Location{Country: "Colombia", City: "Bogotá", Neighborhood: "Chapinero"},
			want: "z-barrio",
		},
		{
			name: "city-level zone wins over country-level",
			loc:  Location{Country: "Colombia", City: "Bogotá", Neighborhood: "Usaquén"},
			want: "z-city",
		},
		{
			name: "country-wide fallback",
			loc:  Location{Country: "Colombia", City: "Medellín"},
			want: "z-country",
		},
		{
			name:    "no match at all",
			loc:     Location{Country: "Perú", City: "Lima"},
			wantErr: ErrNoZone,
		},
		{
			name:    "empty location",
			loc:     Location{},
			wantErr: ErrNoZone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, err := SelectZone(zones, tt.loc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectZone: %v", err)
			}
			if z.ID != tt.want {
				t.Errorf("picked zone %q, want %q", z.ID, tt.want)
			}
		})
	}
}

func TestSelectZoneCityNeverMatchesNarrowedZone(t *testing.T) {
	// A zone narrowed to a neighborhood must not catch buyers that only
	// match at city level.
	zones := []Zone{
		{ID: "z-barrio", Country: "Colombia", City: ns("Bogotá"), Neighborhood: ns("Chapinero")},
	}

	_, err := SelectZone(zones, Location{Country: "Colombia", City: "Bogotá"})
	if !errors.Is(err, ErrNoZone) {
		t.Fatalf("got %v, want ErrNoZone", err)
	}
}

func TestCost(t *testing.T) {
	m := Method{BaseCost: decimal.NewFromInt(10)}

	if got := Cost(m, MethodZone{}, false); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("no link: cost = %s, want 10", got)
	}

	unset := MethodZone{}
	if got := Cost(m, unset, true); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("link without custom cost: cost = %s, want 10", got)
	}

	custom := MethodZone{CustomCost: decimal.NewNullDecimal(decimal.NewFromInt(4))}
	if got := Cost(m, custom, true); !got.Equal(decimal.NewFromInt(4)) {
		t.Errorf("link with custom cost: cost = %s, want 4", got)
	}
}
