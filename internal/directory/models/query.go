package models

import "math"

// Any is the wire value that leaves a list filter unrestricted.
const Any = "ALL"

const (
	// DefaultPageSize is used when a list query leaves the page size unset.
	DefaultPageSize = 12
	// MaxPageSize bounds a single page.
	MaxPageSize = 100
)

// ListFilter restricts a company listing by exact attribute match.
// An empty value (or Any) leaves that attribute unrestricted.
type ListFilter struct {
	Type          CompanyType   `validate:"omitempty,oneof=ALL PT CV FIRMA YAYASAN"`
	ClientStatus  ClientStatus  `validate:"omitempty,oneof=ALL ACTIVE INACTIVE"`
	TaxIDStatus   TaxIDStatus   `validate:"omitempty,oneof=ALL ACTIVE NON_EFFECTIVE"`
	TaxableStatus TaxableStatus `validate:"omitempty,oneof=ALL TAXABLE NON_TAXABLE"`
}

// ListQuery describes one page of a filtered, searched company listing.
type ListQuery struct {
	// Page is zero-based.
	Page     int `validate:"gte=0"`
	PageSize int `validate:"gte=0,lte=100"`
	Filter   ListFilter
	// Search is matched case-insensitively against name and tax id.
	Search string `validate:"max=255"`
}

// Offset returns the number of rows skipped before this page.
func (q ListQuery) Offset() int {
	return q.Page * q.Limit()
}

// BeyondRange reports whether the page starts past any offset a store can
// address. Such a page is empty.
func (q ListQuery) BeyondRange() bool {
	return q.Page > math.MaxInt/q.Limit()-1
}

// Limit returns the effective page size.
func (q ListQuery) Limit() int {
	if q.PageSize <= 0 {
		return DefaultPageSize
	}
	return q.PageSize
}

// Restricts reports whether a filter value narrows the listing.
func Restricts[T ~string](v T) bool {
	return v != "" && string(v) != Any
}
