package rest

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/ppoulin/vitrine/internal/platform/errors"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage/assets"
)

// maxUploadBytes bounds asset upload size (images and weekly PDFs).
const maxUploadBytes = 32 << 20

type uploadResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	ETag string `json:"etag"`
	Size int64  `json:"size"`
}

func assetKind(value string) (assets.Kind, error) {
	switch assets.Kind(value) {
	case assets.KindImage:
		return assets.KindImage, nil
	case assets.KindPDF:
		return assets.KindPDF, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeAssetUnsupported,
		"unsupported asset kind", map[string]string{"kind": value})
}

func (h *Handler) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	kind, err := assetKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.URL.Query().Get("name")

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()

	asset, err := h.assets.Put(r.Context(), kind, name, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, uploadResponse{
		Name: asset.Name,
		URL:  "/assets/" + string(asset.Kind) + "/" + asset.Name,
		ETag: asset.ETag,
		Size: asset.Size,
	})
}

// removeAssetByURL deletes the blob referenced by a stored asset URL when
// its owning record goes away. Unrecognized or external URLs are left
// alone, and a failed delete only logs: the record removal already
// succeeded.
func (h *Handler) removeAssetByURL(ctx context.Context, url string) {
	rest, found := strings.CutPrefix(url, "/assets/")
	if !found {
		return
	}
	kindValue, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return
	}
	kind, err := assetKind(kindValue)
	if err != nil {
		return
	}
	if err := h.assets.Delete(ctx, kind, name); err != nil {
		log.Printf("delete asset %s: %v", url, err)
	}
}

func (h *Handler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	kind, err := assetKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	reader, asset, err := h.assets.Get(r.Context(), kind, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	etag := `"` + asset.ETag + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", asset.ModifiedAt.UTC().Format(http.TimeFormat))
	if kind == assets.KindPDF {
		w.Header().Set("Content-Type", "application/pdf")
	}
	if _, err := io.Copy(w, reader); err != nil {
		// Client went away mid-transfer; nothing to recover.
		return
	}
}
