package rest

import (
	"errors"
	"net/http"

	"github.com/ppoulin/vitrine/internal/catalog"
	apperrors "github.com/ppoulin/vitrine/internal/platform/errors"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage"
)

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Featured    bool    `json:"featured"`
	Order       int     `json:"order"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeData(w, http.StatusOK, products)
}

func (h *Handler) handleProductsLastModified(w http.ResponseWriter, r *http.Request) {
	at, ok, err := h.products.ProductsLastModified(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var resp lastModifiedResponse
	if ok {
		millis := at.UnixMilli()
		resp.LastModified = &millis
	}
	writeData(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	product, err := catalog.CreateProduct(catalog.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Category:    catalog.Category(req.Category),
		Featured:    req.Featured,
		Order:       req.Order,
	}, nil, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	if product.Featured {
		existing, err := h.products.ListProducts(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if err := catalog.CheckFeaturedLimit(existing, product.ID); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.products.CreateProduct(r.Context(), product); err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeData(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	existing, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}

	updated := existing
	updated.Name = req.Name
	updated.Description = req.Description
	updated.Price = req.Price
	updated.Image = req.Image
	updated.Category = catalog.Category(req.Category)
	updated.Featured = req.Featured
	updated.Order = req.Order
	if err := catalog.ValidateProduct(updated); err != nil {
		writeError(w, err)
		return
	}

	if updated.Featured && !existing.Featured {
		all, err := h.products.ListProducts(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if err := catalog.CheckFeaturedLimit(all, productID); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.products.UpdateProduct(r.Context(), updated); err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	refreshed, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeData(w, http.StatusOK, refreshed)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	product, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	if err := h.products.DeleteProduct(r.Context(), productID); err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	h.removeAssetByURL(r.Context(), product.Image)
	writeData(w, http.StatusOK, map[string]string{"id": productID})
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "record not found", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Wrap(apperrors.CodeAlreadyExists, "record already exists", err)
	default:
		return err
	}
}
