// Package catalog defines the product and weekly flyer domain model.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/platform/errors"
	"github.com/ppoulin/vitrine/internal/platform/id"
)

// FeaturedLimit caps how many products may be featured at once.
const FeaturedLimit = 6

// Category identifies a product grouping shown on the storefront.
type Category string

const (
	CategoryUnspecified Category = ""
	CategoryGrocery     Category = "grocery"
	CategoryButcher     Category = "butcher"
	CategoryBakery      Category = "bakery"
	CategoryDeli        Category = "deli"
	CategorySeasonal    Category = "seasonal"
)

// Categories lists every valid product category.
func Categories() []Category {
	return []Category{CategoryGrocery, CategoryButcher, CategoryBakery, CategoryDeli, CategorySeasonal}
}

// ValidCategory reports whether value is a known category.
func ValidCategory(value Category) bool {
	switch value {
	case CategoryGrocery, CategoryButcher, CategoryBakery, CategoryDeli, CategorySeasonal:
		return true
	}
	return false
}

// Product represents one catalog entry.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Category    Category `json:"category"`
	Featured    bool     `json:"featured"`
	Order       int      `json:"order"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProductInput describes the fields needed to create a product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Image       string
	Category    Category
	Featured    bool
	Order       int
}

// CreateProduct validates input and builds a product with a generated ID.
func CreateProduct(input CreateProductInput, now func() time.Time, idGenerator func() (string, error)) (Product, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateProductInput(input)
	if err != nil {
		return Product{}, err
	}

	productID, err := idGenerator()
	if err != nil {
		return Product{}, fmt.Errorf("generate product id: %w", err)
	}

	createdAt := now().UTC()
	return Product{
		ID:          productID,
		Name:        normalized.Name,
		Description: normalized.Description,
		Price:       normalized.Price,
		Image:       normalized.Image,
		Category:    normalized.Category,
		Featured:    normalized.Featured,
		Order:       normalized.Order,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateProductInput trims and validates product input.
func NormalizeCreateProductInput(input CreateProductInput) (CreateProductInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	if input.Name == "" {
		return CreateProductInput{}, errors.New(errors.CodeProductNameEmpty, "product name is required")
	}
	if input.Price < 0 {
		return CreateProductInput{}, errors.WithMetadata(errors.CodeProductPriceNegative,
			"product price must not be negative",
			map[string]string{"price": strconv.FormatFloat(input.Price, 'f', -1, 64)})
	}
	if !ValidCategory(input.Category) {
		return CreateProductInput{}, errors.WithMetadata(errors.CodeProductInvalidCategory,
			"unknown product category",
			map[string]string{"category": string(input.Category)})
	}
	return input, nil
}

// ValidateProduct checks invariants on a fully-formed product.
func ValidateProduct(p Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New(errors.CodeProductIDEmpty, "product id is required")
	}
	_, err := NormalizeCreateProductInput(CreateProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Featured:    p.Featured,
		Order:       p.Order,
	})
	return err
}

// CheckFeaturedLimit verifies that marking productID as featured keeps the
// featured count within FeaturedLimit. products is the current collection.
func CheckFeaturedLimit(products []Product, productID string) error {
	count := 0
	for _, p := range products {
		if p.Featured && p.ID != productID {
			count++
		}
	}
	if count >= FeaturedLimit {
		return errors.WithMetadata(errors.CodeProductFeaturedLimit,
			"featured product limit reached",
			map[string]string{"limit": strconv.Itoa(FeaturedLimit)})
	}
	return nil
}

// FeaturedProducts returns featured products sorted by display order.
// The sort is stable so equal orders keep their relative position.
func FeaturedProducts(products []Product) []Product {
	var featured []Product
	for _, p := range products {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	sort.SliceStable(featured, func(i, j int) bool {
		return featured[i].Order < featured[j].Order
	})
	return featured
}
