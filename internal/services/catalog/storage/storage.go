// Package storage defines persistence contracts for catalog service state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ppoulin/vitrine/internal/catalog"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// ProductStore persists catalog products.
type ProductStore interface {
	CreateProduct(ctx context.Context, product catalog.Product) error
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	UpdateProduct(ctx context.Context, product catalog.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// ProductsLastModified reports the newest product update time. ok is
	// false when the catalog is empty.
	ProductsLastModified(ctx context.Context) (time.Time, bool, error)
}

// WeeklyPDFStore persists weekly flyer records.
type WeeklyPDFStore interface {
	CreateWeeklyPDF(ctx context.Context, pdf catalog.WeeklyPDF) error
	GetWeeklyPDF(ctx context.Context, id string) (catalog.WeeklyPDF, error)
	ListWeeklyPDFs(ctx context.Context) ([]catalog.WeeklyPDF, error)
	DeleteWeeklyPDF(ctx context.Context, id string) error
	// WeeklyPDFsLastModified reports the newest change to the flyer index.
	WeeklyPDFsLastModified(ctx context.Context) (time.Time, bool, error)
}
