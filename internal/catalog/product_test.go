package catalog

import (
	"testing"
	"time"

	"github.com/ppoulin/vitrine/internal/platform/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
}

func staticID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func TestCreateProductStampsIDAndTimestamps(t *testing.T) {
	t.Parallel()

	product, err := CreateProduct(CreateProductInput{
		Name:     "  Maple Syrup ",
		Price:    12.50,
		Category: CategoryGrocery,
	}, fixedNow, staticID("prod-1"))
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.ID != "prod-1" {
		t.Fatalf("id = %q", product.ID)
	}
	if product.Name != "Maple Syrup" {
		t.Fatalf("name = %q, want trimmed", product.Name)
	}
	if !product.CreatedAt.Equal(fixedNow()) || !product.UpdatedAt.Equal(fixedNow()) {
		t.Fatal("expected created/updated stamped with now")
	}
}

func TestCreateProductRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input CreateProductInput
		code  errors.Code
	}{
		{"empty name", CreateProductInput{Price: 1, Category: CategoryBakery}, errors.CodeProductNameEmpty},
		{"negative price", CreateProductInput{Name: "Rye", Price: -0.01, Category: CategoryBakery}, errors.CodeProductPriceNegative},
		{"unknown category", CreateProductInput{Name: "Rye", Price: 1, Category: "balloons"}, errors.CodeProductInvalidCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := CreateProduct(tc.input, fixedNow, staticID("x"))
			if !errors.IsCode(err, tc.code) {
				t.Fatalf("error = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestCheckFeaturedLimit(t *testing.T) {
	t.Parallel()

	products := make([]Product, 0, FeaturedLimit+1)
	for i := 0; i < FeaturedLimit; i++ {
		products = append(products, Product{ID: string(rune('a' + i)), Featured: true, Order: i})
	}
	products = append(products, Product{ID: "seventh"})

	if err := CheckFeaturedLimit(products, "seventh"); !errors.IsCode(err, errors.CodeProductFeaturedLimit) {
		t.Fatalf("error = %v, want featured limit code", err)
	}
	// Re-featuring an already featured product does not count itself twice.
	if err := CheckFeaturedLimit(products, "a"); err != nil {
		t.Fatalf("re-featuring existing product: %v", err)
	}
}

func TestFeaturedProductsSortedByOrder(t *testing.T) {
	t.Parallel()

	products := []Product{
		{ID: "1", Featured: true, Order: 3},
		{ID: "2", Featured: false, Order: 0},
		{ID: "3", Featured: true, Order: 1},
		{ID: "4", Featured: true, Order: 1},
	}
	featured := FeaturedProducts(products)
	if len(featured) != 3 {
		t.Fatalf("featured count = %d, want 3", len(featured))
	}
	if featured[0].ID != "3" || featured[1].ID != "4" || featured[2].ID != "1" {
		t.Fatalf("unexpected order: %s %s %s", featured[0].ID, featured[1].ID, featured[2].ID)
	}
}

func TestValidateProductRequiresID(t *testing.T) {
	t.Parallel()

	err := ValidateProduct(Product{Name: "Pen", Price: 1.5, Category: CategoryGrocery})
	if !errors.IsCode(err, errors.CodeProductIDEmpty) {
		t.Fatalf("error = %v, want empty id code", err)
	}
}
