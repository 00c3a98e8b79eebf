package resource

import (
	"context"

	"github.com/ppoulin/vitrine/internal/catalog"
	"github.com/ppoulin/vitrine/internal/services/kiosk/cache"
	"github.com/ppoulin/vitrine/internal/services/kiosk/origin"
)

// ProductsHook serves the product collection cache-first and routes admin
// mutations through the origin.
type ProductsHook struct {
	*Hook[[]catalog.Product]
	client *origin.Client
}

// NewProductsHook creates the product hook bound to the shared cache and
// broadcast bus.
func NewProductsHook(store *cache.Store, client *origin.Client, bus *Broadcast[[]catalog.Product]) *ProductsHook {
	return &ProductsHook{
		Hook: NewHook(cache.PolicyProducts, store, Source[[]catalog.Product]{
			Fetch:        client.Products,
			LastModified: client.ProductsLastModified,
		}, bus),
		client: client,
	}
}

// Featured returns the featured subset of the current snapshot, ordered by
// display position.
func (p *ProductsHook) Featured() []catalog.Product {
	return catalog.FeaturedProducts(p.Snapshot().Data)
}

// Create adds a product. The featured cap is checked against the local
// snapshot before any network round trip, so a rejected write leaves both
// the origin and the persisted cache untouched.
func (p *ProductsHook) Create(ctx context.Context, input catalog.CreateProductInput) error {
	normalized, err := catalog.NormalizeCreateProductInput(input)
	if err != nil {
		return err
	}
	if normalized.Featured {
		if err := catalog.CheckFeaturedLimit(p.Snapshot().Data, ""); err != nil {
			return err
		}
	}

	// No optimistic insert: the row has no identity until the origin
	// assigns one.
	return p.Mutate(ctx, nil, func(ctx context.Context) ([]catalog.Product, error) {
		created, err := p.client.CreateProduct(ctx, normalized)
		if err != nil {
			return nil, err
		}
		return append(copyProducts(p.Snapshot().Data), created), nil
	})
}

// Update replaces a product. Toggling featured on is subject to the same
// local cap check as Create.
func (p *ProductsHook) Update(ctx context.Context, product catalog.Product) error {
	if err := catalog.ValidateProduct(product); err != nil {
		return err
	}
	if product.Featured {
		if err := catalog.CheckFeaturedLimit(p.Snapshot().Data, product.ID); err != nil {
			return err
		}
	}

	return p.Mutate(ctx,
		func(products []catalog.Product) []catalog.Product {
			return replaceProduct(products, product)
		},
		func(ctx context.Context) ([]catalog.Product, error) {
			updated, err := p.client.UpdateProduct(ctx, product)
			if err != nil {
				return nil, err
			}
			return replaceProduct(p.Snapshot().Data, updated), nil
		})
}

// Delete removes a product.
func (p *ProductsHook) Delete(ctx context.Context, productID string) error {
	return p.Mutate(ctx,
		func(products []catalog.Product) []catalog.Product {
			return removeProduct(products, productID)
		},
		func(ctx context.Context) ([]catalog.Product, error) {
			if err := p.client.DeleteProduct(ctx, productID); err != nil {
				return nil, err
			}
			return p.Snapshot().Data, nil
		})
}

func copyProducts(products []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, len(products))
	copy(out, products)
	return out
}

func replaceProduct(products []catalog.Product, updated catalog.Product) []catalog.Product {
	out := copyProducts(products)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = updated
			return out
		}
	}
	return append(out, updated)
}

func removeProduct(products []catalog.Product, productID string) []catalog.Product {
	out := make([]catalog.Product, 0, len(products))
	for _, product := range products {
		if product.ID != productID {
			out = append(out, product)
		}
	}
	return out
}
