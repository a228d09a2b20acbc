// Package catalog is the read-only gateway to the external product
// document store. Nothing here ever writes: stock is debited by the
// catalog's own management tools, not by this service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	// ErrNotFound reports an id that does not resolve to a product.
	// Synthetic ids (combo summary lines) fall in here too.
	ErrNotFound = errors.New("product not found")

	// ErrUnavailable reports a failed read against the document store.
	// Stock validation treats it as fatal; display paths fall back to
	// stored prices.
	ErrUnavailable = errors.New("catalog unavailable")
)

type Variant struct {
	SKU             string            `bson:"sku"`
	Price           float64           `bson:"price"`
	DiscountedPrice float64           `bson:"discounted_price"`
	Stock           int               `bson:"stock"`
	Options         map[string]string `bson:"options"`
}

type Media struct {
	Type string `bson:"type"`
	URL  string `bson:"url"`
}

type Product struct {
	ID                 primitive.ObjectID `bson:"_id"`
	StoreID            string             `bson:"store_id"`
	Name               string             `bson:"name"`
	SKU                string             `bson:"sku"`
	Price              float64            `bson:"price"`
	DiscountedPrice    float64            `bson:"discounted_price"`
	DiscountPercentage float64            `bson:"discount_percentage"`
	DiscountStart      *time.Time         `bson:"discount_start"`
	DiscountEnd        *time.Time         `bson:"discount_end"`
	Stock              int                `bson:"stock"`
	Variants           []Variant          `bson:"variants"`
	Media              []Media            `bson:"media"`
}

func (p Product) HasVariants() bool { return len(p.Variants) > 0 }

func (p Product) Variant(sku string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return Variant{}, false
}

// ImageURL returns the first image attached to the product, if any.
func (p Product) ImageURL() string {
	for _, m := range p.Media {
		if m.Type == "image" {
			return m.URL
		}
	}
	return ""
}

// Getter is the lookup contract consumed by the cart and checkout
// cores. Tests substitute an in-memory fake.
type Getter interface {
	Lookup(ctx context.Context, productID string) (Product, error)
}

type Gateway struct {
	products     *mongo.Collection
	queryTimeout time.Duration
}

func New(client *mongo.Client, database string, queryTimeout time.Duration) *Gateway {
	return &Gateway{
		products:     client.Database(database).Collection("products"),
		queryTimeout: queryTimeout,
	}
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("pinging catalog: %w", err)
	}

	return client, nil
}

func (g *Gateway) Lookup(ctx context.Context, productID string) (Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return Product{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	var p Product
	err = g.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return Product{}, ErrNotFound
	case err != nil:
		return Product{}, fmt.Errorf("%w: looking up product[%s]: %v", ErrUnavailable, productID, err)
	}

	return p, nil
}
