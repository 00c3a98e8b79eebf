// Package assets provides a filesystem-backed blob store for product images
// and weekly flyer PDFs.
package assets

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/platform/errors"
	"lukechampine.com/blake3"
)

// Kind routes a blob to its directory under the store root.
type Kind string

const (
	KindImage Kind = "images"
	KindPDF   Kind = "pdfs"
)

// etagBytes truncates the BLAKE3 digest used for HTTP ETags.
const etagBytes = 16

// Asset describes one stored blob.
type Asset struct {
	Name       string
	Kind       Kind
	Path       string
	ETag       string
	Size       int64
	ModifiedAt time.Time
}

// Store persists blobs on the local filesystem.
type Store struct {
	root string
}

// Open prepares an asset store rooted at the provided directory.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("asset root is required")
	}
	cleanRoot := filepath.Clean(root)
	for _, kind := range []Kind{KindImage, KindPDF} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create asset dir %s: %w", kind, err)
		}
	}
	return &Store{root: cleanRoot}, nil
}

// Put writes a blob and returns its descriptor. Existing blobs with the same
// name are replaced.
func (s *Store) Put(ctx context.Context, kind Kind, name string, r io.Reader) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	if s == nil {
		return Asset{}, fmt.Errorf("asset store is not configured")
	}
	name, err := sanitizeName(name)
	if err != nil {
		return Asset{}, err
	}

	path := filepath.Join(s.root, string(kind), name)
	tmp, err := os.CreateTemp(filepath.Join(s.root, string(kind)), ".upload-*")
	if err != nil {
		return Asset{}, fmt.Errorf("create temp asset: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := blake3.New(32, nil)
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		_ = tmp.Close()
		return Asset{}, fmt.Errorf("write asset %s: %w", name, err)
	}
	if size == 0 {
		_ = tmp.Close()
		return Asset{}, errors.New(errors.CodeAssetEmpty, "asset body is empty")
	}
	if err := tmp.Close(); err != nil {
		return Asset{}, fmt.Errorf("close temp asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Asset{}, fmt.Errorf("store asset %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, fmt.Errorf("stat asset %s: %w", name, err)
	}
	return Asset{
		Name:       name,
		Kind:       kind,
		Path:       path,
		ETag:       hex.EncodeToString(hasher.Sum(nil)[:etagBytes]),
		Size:       size,
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

// Get opens a blob for reading along with its descriptor.
func (s *Store) Get(ctx context.Context, kind Kind, name string) (io.ReadCloser, Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, Asset{}, err
	}
	if s == nil {
		return nil, Asset{}, fmt.Errorf("asset store is not configured")
	}
	name, err := sanitizeName(name)
	if err != nil {
		return nil, Asset{}, err
	}

	path := filepath.Join(s.root, string(kind), name)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Asset{}, errors.New(errors.CodeNotFound, "asset not found")
		}
		return nil, Asset{}, fmt.Errorf("open asset %s: %w", name, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, Asset{}, fmt.Errorf("stat asset %s: %w", name, err)
	}

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, file); err != nil {
		_ = file.Close()
		return nil, Asset{}, fmt.Errorf("checksum asset %s: %w", name, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, Asset{}, fmt.Errorf("rewind asset %s: %w", name, err)
	}

	return file, Asset{
		Name:       name,
		Kind:       kind,
		Path:       path,
		ETag:       hex.EncodeToString(hasher.Sum(nil)[:etagBytes]),
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(ctx context.Context, kind Kind, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("asset store is not configured")
	}
	name, err := sanitizeName(name)
	if err != nil {
		return err
	}

	path := filepath.Join(s.root, string(kind), name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete asset %s: %w", name, err)
	}
	return nil
}

// sanitizeName rejects path traversal and empty names.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("asset name is required")
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("asset name %q is not allowed", name)
	}
	return name, nil
}
