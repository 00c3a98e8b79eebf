package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/platform/errors"
	"github.com/ppoulin/vitrine/internal/platform/id"
)

// WeeklyPDF is one uploaded weekly flyer. Entries are immutable after
// creation except for deletion.
type WeeklyPDF struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
	Week       int       `json:"week"`
	Year       int       `json:"year"`
}

// CreateWeeklyPDFInput describes the fields needed to register a flyer.
type CreateWeeklyPDFInput struct {
	Name string
	URL  string
	Week int
	Year int
}

// CreateWeeklyPDF validates input and builds a flyer record stamped with the
// current upload time.
func CreateWeeklyPDF(input CreateWeeklyPDFInput, now func() time.Time, idGenerator func() (string, error)) (WeeklyPDF, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Name = strings.TrimSpace(input.Name)
	input.URL = strings.TrimSpace(input.URL)
	if input.Name == "" {
		return WeeklyPDF{}, errors.New(errors.CodePDFNameEmpty, "pdf name is required")
	}
	if input.URL == "" {
		return WeeklyPDF{}, errors.New(errors.CodePDFURLEmpty, "pdf url is required")
	}
	if input.Week < 1 || input.Week > 53 {
		return WeeklyPDF{}, errors.WithMetadata(errors.CodePDFInvalidWeek,
			"week must be between 1 and 53",
			map[string]string{"week": strconv.Itoa(input.Week)})
	}

	pdfID, err := idGenerator()
	if err != nil {
		return WeeklyPDF{}, fmt.Errorf("generate pdf id: %w", err)
	}

	return WeeklyPDF{
		ID:         pdfID,
		Name:       input.Name,
		URL:        input.URL,
		UploadDate: now().UTC(),
		Week:       input.Week,
		Year:       input.Year,
	}, nil
}

// LatestWeeklyPDF returns the flyer with the most recent upload date.
// "Latest" is derived, never tracked separately. ok is false when the
// collection is empty.
func LatestWeeklyPDF(pdfs []WeeklyPDF) (WeeklyPDF, bool) {
	if len(pdfs) == 0 {
		return WeeklyPDF{}, false
	}
	latest := pdfs[0]
	for _, p := range pdfs[1:] {
		if p.UploadDate.After(latest.UploadDate) {
			latest = p
		}
	}
	return latest, true
}
