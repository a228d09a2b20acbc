// Package shipping holds store shipping zones and methods. A zone
// scopes a country, optionally narrowed to a city and then to a
// neighborhood; the most specific zone matching the buyer wins.
package shipping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrNoZone            = errors.New("no shipping zone found for your location")
	ErrMethodUnavailable = errors.New("shipping method is not available")
)

type Zone struct {
	ID           string         `json:"id" db:"zone_id"`
	StoreID      string         `json:"storeId" db:"store_id"`
	Country      string         `json:"country" db:"country"`
	City         sql.NullString `json:"city" db:"city"`
	Neighborhood sql.NullString `json:"neighborhood" db:"neighborhood"`
}

type Method struct {
	ID            string          `json:"id" db:"shipping_method_id"`
	StoreID       string          `json:"storeId" db:"store_id"`
	Name          string          `json:"name" db:"name"`
	BaseCost      decimal.Decimal `json:"baseCost" db:"base_cost"`
	EstimatedDays int             `json:"estimatedDays" db:"estimated_days"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// MethodZone customizes one method for one zone. A null custom cost
// means the method's base cost still applies.
type MethodZone struct {
	MethodID   string              `db:"shipping_method_id"`
	ZoneID     string              `db:"zone_id"`
	CustomCost decimal.NullDecimal `db:"custom_cost"`
	CustomDays sql.NullInt64       `db:"custom_days"`
}

// Location is the buyer's place of delivery as free-form names, the
// same vocabulary zones are defined in.
type Location struct {
	Country      string
	City         string
	Neighborhood string
}

func FetchZones(ctx context.Context, db sqlx.ExtContext, storeID string) ([]Zone, error) {
	const q = `SELECT * FROM shipping_zones WHERE store_id = $1`

	zones := []Zone{}
	if err := sqlx.SelectContext(ctx, db, &zones, q, storeID); err != nil {
		return nil, fmt.Errorf("fetching zones of store[%s]: %w", storeID, err)
	}

	return zones, nil
}

// SelectZone picks the most specific zone for the location:
// neighborhood match first, then a city-wide zone, then a country-wide
// zone. No match returns ErrNoZone.
func SelectZone(zones []Zone, loc Location) (Zone, error) {
	if loc.Neighborhood != "" {
		for _, z := range zones {
			if z.Neighborhood.Valid && z.Neighborhood.String == loc.Neighborhood {
				return z, nil
			}
		}
	}

	if loc.City != "" {
		for _, z := range zones {
			if z.City.Valid && z.City.String == loc.City && !z.Neighborhood.Valid {
				return z, nil
			}
		}
	}

	if loc.Country != "" {
		for _, z := range zones {
			if z.Country == loc.Country && !z.City.Valid && !z.Neighborhood.Valid {
				return z, nil
			}
		}
	}

	return Zone{}, ErrNoZone
}

// FetchActiveMethod resolves a shipping method only when it belongs to
// the store and is enabled.
func FetchActiveMethod(ctx context.Context, db sqlx.ExtContext, id, storeID string) (Method, error) {
	const q = `
	SELECT * FROM shipping_methods
	WHERE shipping_method_id = $1 AND store_id = $2 AND is_active`

	var m Method
	if err := sqlx.GetContext(ctx, db, &m, q, id, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Method{}, ErrMethodUnavailable
		}
		return Method{}, fmt.Errorf("fetching shipping method[%s]: %w", id, err)
	}

	return m, nil
}

// FetchMethodZone returns the (method, zone) customization when one
// exists.
func FetchMethodZone(ctx context.Context, db sqlx.ExtContext, methodID, zoneID string) (MethodZone, bool, error) {
	const q = `
	SELECT * FROM shipping_method_zones
	WHERE shipping_method_id = $1 AND zone_id = $2`

	var mz MethodZone
	if err := sqlx.GetContext(ctx, db, &mz, q, methodID, zoneID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MethodZone{}, false, nil
		}
		return MethodZone{}, false, fmt.Errorf("fetching method zone[%s/%s]: %w", methodID, zoneID, err)
	}

	return mz, true, nil
}

// Cost resolves the shipping cost: the zone override when set, the
// method base cost otherwise.
func Cost(m Method, mz MethodZone, linked bool) decimal.Decimal {
	if linked && mz.CustomCost.Valid {
		return mz.CustomCost.Decimal.Round(2)
	}
	return m.BaseCost.Round(2)
}
