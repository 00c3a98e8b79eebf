// Package sqlite provides a SQLite-backed catalog storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/catalog"
	sqlitemigrate "github.com/ppoulin/vitrine/internal/platform/storage/sqlitemigrate"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Meta keys for per-collection last-modified markers. Deletions must bump
// these too, so max(updated_at) alone is not enough.
const (
	metaProductsLastModified = "products_last_modified"
	metaPDFsLastModified     = "pdfs_last_modified"
)

// Store persists catalog state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateProduct inserts one product record.
func (s *Store) CreateProduct(ctx context.Context, product catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := catalog.ValidateProduct(product); err != nil {
		return err
	}

	createdAt := product.CreatedAt.UTC()
	updatedAt := product.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO products (
		   id, name, description, price, image, category, featured,
		   display_order, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Image,
		string(product.Category),
		boolToInt(product.Featured),
		product.Order,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create product: %w", err)
	}
	return s.touchMeta(ctx, metaProductsLastModified, updatedAt)
}

// GetProduct returns one product by ID.
func (s *Store) GetProduct(ctx context.Context, productID string) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, err
	}
	if s == nil || s.sqlDB == nil {
		return catalog.Product{}, fmt.Errorf("storage is not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return catalog.Product{}, fmt.Errorf("product id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, description, price, image, category, featured,
		        display_order, created_at, updated_at
		 FROM products WHERE id = ?`,
		productID,
	)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, storage.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns every product ordered by category then name.
func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, description, price, image, category, featured,
		        display_order, created_at, updated_at
		 FROM products ORDER BY category, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpdateProduct replaces a product record and bumps its updated_at.
func (s *Store) UpdateProduct(ctx context.Context, product catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := catalog.ValidateProduct(product); err != nil {
		return err
	}

	updatedAt := time.Now().UTC()
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE products SET
		   name = ?, description = ?, price = ?, image = ?, category = ?,
		   featured = ?, display_order = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Description,
		product.Price,
		product.Image,
		string(product.Category),
		boolToInt(product.Featured),
		product.Order,
		toMillis(updatedAt),
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return s.touchMeta(ctx, metaProductsLastModified, updatedAt)
}

// DeleteProduct removes a product record.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("product id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM products WHERE id = ?", productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return s.touchMeta(ctx, metaProductsLastModified, time.Now().UTC())
}

// ProductsLastModified reports the newest change to the product collection.
func (s *Store) ProductsLastModified(ctx context.Context) (time.Time, bool, error) {
	return s.lastModified(ctx, metaProductsLastModified)
}

// CreateWeeklyPDF inserts one flyer record.
func (s *Store) CreateWeeklyPDF(ctx context.Context, pdf catalog.WeeklyPDF) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(pdf.ID) == "" {
		return fmt.Errorf("pdf id is required")
	}

	uploadDate := pdf.UploadDate.UTC()
	if uploadDate.IsZero() {
		uploadDate = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO weekly_pdfs (id, name, url, upload_date, week, year)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pdf.ID,
		pdf.Name,
		pdf.URL,
		toMillis(uploadDate),
		pdf.Week,
		pdf.Year,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create weekly pdf: %w", err)
	}
	return s.touchMeta(ctx, metaPDFsLastModified, uploadDate)
}

// GetWeeklyPDF fetches a single flyer by ID.
func (s *Store) GetWeeklyPDF(ctx context.Context, pdfID string) (catalog.WeeklyPDF, error) {
	if err := ctx.Err(); err != nil {
		return catalog.WeeklyPDF{}, err
	}
	if s == nil || s.sqlDB == nil {
		return catalog.WeeklyPDF{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, url, upload_date, week, year
		 FROM weekly_pdfs WHERE id = ?`,
		strings.TrimSpace(pdfID),
	)
	var pdf catalog.WeeklyPDF
	var uploadDate int64
	if err := row.Scan(&pdf.ID, &pdf.Name, &pdf.URL, &uploadDate, &pdf.Week, &pdf.Year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.WeeklyPDF{}, storage.ErrNotFound
		}
		return catalog.WeeklyPDF{}, fmt.Errorf("get weekly pdf: %w", err)
	}
	pdf.UploadDate = fromMillis(uploadDate)
	return pdf, nil
}

// ListWeeklyPDFs returns every flyer ordered by upload date, newest first.
func (s *Store) ListWeeklyPDFs(ctx context.Context) ([]catalog.WeeklyPDF, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, url, upload_date, week, year
		 FROM weekly_pdfs ORDER BY upload_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list weekly pdfs: %w", err)
	}
	defer rows.Close()

	var pdfs []catalog.WeeklyPDF
	for rows.Next() {
		var pdf catalog.WeeklyPDF
		var uploadDate int64
		if err := rows.Scan(&pdf.ID, &pdf.Name, &pdf.URL, &uploadDate, &pdf.Week, &pdf.Year); err != nil {
			return nil, fmt.Errorf("scan weekly pdf: %w", err)
		}
		pdf.UploadDate = fromMillis(uploadDate)
		pdfs = append(pdfs, pdf)
	}
	return pdfs, rows.Err()
}

// DeleteWeeklyPDF removes a flyer record.
func (s *Store) DeleteWeeklyPDF(ctx context.Context, pdfID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	pdfID = strings.TrimSpace(pdfID)
	if pdfID == "" {
		return fmt.Errorf("pdf id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM weekly_pdfs WHERE id = ?", pdfID)
	if err != nil {
		return fmt.Errorf("delete weekly pdf: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete weekly pdf rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return s.touchMeta(ctx, metaPDFsLastModified, time.Now().UTC())
}

// WeeklyPDFsLastModified reports the newest change to the flyer index.
func (s *Store) WeeklyPDFsLastModified(ctx context.Context) (time.Time, bool, error) {
	return s.lastModified(ctx, metaPDFsLastModified)
}

func (s *Store) touchMeta(ctx context.Context, key string, at time.Time) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key,
		toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("touch meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) lastModified(ctx context.Context, key string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return time.Time{}, false, fmt.Errorf("storage is not configured")
	}

	var value int64
	err := s.sqlDB.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return fromMillis(value), true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var product catalog.Product
	var category string
	var featured int
	var createdAt, updatedAt int64
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Image,
		&category,
		&featured,
		&product.Order,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return catalog.Product{}, err
	}
	product.Category = catalog.Category(category)
	product.Featured = featured != 0
	product.CreatedAt = fromMillis(createdAt)
	product.UpdatedAt = fromMillis(updatedAt)
	return product, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ storage.ProductStore   = (*Store)(nil)
	_ storage.WeeklyPDFStore = (*Store)(nil)
)
