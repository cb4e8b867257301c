package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of a deed date.
const DateLayout = "2006-01-02"

// Deed is a notarial document (akta) in a company's legal history.
type Deed struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"company_id"`
	Title      string    `json:"title" validate:"required,max=255"`
	Date       time.Time `json:"date" validate:"required"`
	NotaryName string    `json:"notary_name" validate:"max=255"`
	// DocumentLink points to the primary (PDF) artifact.
	DocumentLink string `json:"document_link" validate:"omitempty,url"`
	// RecapLink points to the spreadsheet recap artifact.
	RecapLink string    `json:"recap_link" validate:"omitempty,url"`
	Note      string    `json:"note" validate:"max=3000"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseDate parses a YYYY-MM-DD deed date as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// TruncateDate returns UTC midnight of the calendar date t has in its own zone.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CompareDeeds orders deeds most recent first. Equal dates fall back to the
// creation time, then to the id, so the order never depends on input order.
func CompareDeeds(a, b *Deed) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// SortDeeds sorts a deed history in place, most recent first.
func SortDeeds(deeds []*Deed) {
	slices.SortStableFunc(deeds, CompareDeeds)
}
