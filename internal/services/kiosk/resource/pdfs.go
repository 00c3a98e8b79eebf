package resource

import (
	"context"

	"github.com/ppoulin/vitrine/internal/catalog"
	"github.com/ppoulin/vitrine/internal/services/kiosk/cache"
	"github.com/ppoulin/vitrine/internal/services/kiosk/origin"
)

// PDFsHook serves the weekly flyer index cache-first.
type PDFsHook struct {
	*Hook[[]catalog.WeeklyPDF]
	client *origin.Client
}

// NewPDFsHook creates the flyer hook bound to the shared cache and
// broadcast bus.
func NewPDFsHook(store *cache.Store, client *origin.Client, bus *Broadcast[[]catalog.WeeklyPDF]) *PDFsHook {
	return &PDFsHook{
		Hook: NewHook(cache.PolicyWeeklyPDFs, store, Source[[]catalog.WeeklyPDF]{
			Fetch:        client.WeeklyPDFs,
			LastModified: client.WeeklyPDFsLastModified,
		}, bus),
		client: client,
	}
}

// Latest returns the most recently uploaded flyer from the current
// snapshot. ok is false when the index is empty.
func (p *PDFsHook) Latest() (catalog.WeeklyPDF, bool) {
	return catalog.LatestWeeklyPDF(p.Snapshot().Data)
}

// Create registers a flyer.
func (p *PDFsHook) Create(ctx context.Context, input catalog.CreateWeeklyPDFInput) error {
	return p.Mutate(ctx, nil, func(ctx context.Context) ([]catalog.WeeklyPDF, error) {
		created, err := p.client.CreateWeeklyPDF(ctx, input)
		if err != nil {
			return nil, err
		}
		current := p.Snapshot().Data
		out := make([]catalog.WeeklyPDF, len(current), len(current)+1)
		copy(out, current)
		return append(out, created), nil
	})
}

// Delete removes a flyer.
func (p *PDFsHook) Delete(ctx context.Context, pdfID string) error {
	return p.Mutate(ctx,
		func(pdfs []catalog.WeeklyPDF) []catalog.WeeklyPDF {
			return removePDF(pdfs, pdfID)
		},
		func(ctx context.Context) ([]catalog.WeeklyPDF, error) {
			if err := p.client.DeleteWeeklyPDF(ctx, pdfID); err != nil {
				return nil, err
			}
			return p.Snapshot().Data, nil
		})
}

func removePDF(pdfs []catalog.WeeklyPDF, pdfID string) []catalog.WeeklyPDF {
	out := make([]catalog.WeeklyPDF, 0, len(pdfs))
	for _, pdf := range pdfs {
		if pdf.ID != pdfID {
			out = append(out, pdf)
		}
	}
	return out
}
