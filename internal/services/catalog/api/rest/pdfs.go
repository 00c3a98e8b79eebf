package rest

import (
	"net/http"

	"github.com/ppoulin/vitrine/internal/catalog"
)

type pdfRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Week int    `json:"week"`
	Year int    `json:"year"`
}

func (h *Handler) handleListPDFs(w http.ResponseWriter, r *http.Request) {
	pdfs, err := h.pdfs.ListWeeklyPDFs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if pdfs == nil {
		pdfs = []catalog.WeeklyPDF{}
	}
	writeData(w, http.StatusOK, pdfs)
}

func (h *Handler) handlePDFsLastModified(w http.ResponseWriter, r *http.Request) {
	at, ok, err := h.pdfs.WeeklyPDFsLastModified(r.Context())
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

func (h *Handler) handleCreatePDF(w http.ResponseWriter, r *http.Request) {
	var req pdfRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pdf, err := catalog.CreateWeeklyPDF(catalog.CreateWeeklyPDFInput{
		Name: req.Name,
		URL:  req.URL,
		Week: req.Week,
		Year: req.Year,
	}, nil, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.pdfs.CreateWeeklyPDF(r.Context(), pdf); err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeData(w, http.StatusCreated, pdf)
}

func (h *Handler) handleDeletePDF(w http.ResponseWriter, r *http.Request) {
	pdfID := r.PathValue("id")
	pdf, err := h.pdfs.GetWeeklyPDF(r.Context(), pdfID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	if err := h.pdfs.DeleteWeeklyPDF(r.Context(), pdfID); err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	h.removeAssetByURL(r.Context(), pdf.URL)
	writeData(w, http.StatusOK, map[string]string{"id": pdfID})
}
