// Package models defines the core domain models of the company directory.
// It includes Company, CompanyUpdate, Deed and the enumerations used to
// classify a registered legal body.
package models

import (
	"time"

	"github.com/google/uuid"
)

// CompanyType represents the legal form of a company.
type CompanyType string

const (
	// TypePT is a limited liability company (Perseroan Terbatas).
	TypePT CompanyType = "PT"
	// TypeCV is a limited partnership (Commanditaire Vennootschap).
	TypeCV CompanyType = "CV"
	// TypeFirma is a general partnership.
	TypeFirma CompanyType = "FIRMA"
	// TypeYayasan is a foundation.
	TypeYayasan CompanyType = "YAYASAN"
)

// CompanyTypes lists every legal form in display order.
var CompanyTypes = []CompanyType{TypePT, TypeCV, TypeFirma, TypeYayasan}

// ClientStatus tells whether the company is a current client.
type ClientStatus string

const (
	ClientActive   ClientStatus = "ACTIVE"
	ClientInactive ClientStatus = "INACTIVE"
)

// TaxIDStatus is the registration state of the company's tax id.
type TaxIDStatus string

const (
	TaxIDActive       TaxIDStatus = "ACTIVE"
	TaxIDNonEffective TaxIDStatus = "NON_EFFECTIVE"
)

// TaxableStatus is the VAT status of the company (PKP or Non-PKP).
type TaxableStatus string

const (
	Taxable    TaxableStatus = "TAXABLE"
	NonTaxable TaxableStatus = "NON_TAXABLE"
)

// Company defines the domain model for a registered legal body.
type Company struct {
	// ID is the unique identifier for the company.
	ID uuid.UUID `json:"id"`
	// Name is the registered company name.
	Name string `json:"name" validate:"required,max=255"`
	// TaxID is the 16 digit NPWP, stored without separators.
	TaxID string `json:"tax_id" validate:"taxid"`
	// Type is the legal form.
	Type CompanyType `json:"type" validate:"oneof=PT CV FIRMA YAYASAN"`
	// Domicile is the current registered address, free text.
	Domicile string `json:"domicile" validate:"max=255"`
	// ClientStatus tells whether the company is an active client.
	ClientStatus ClientStatus `json:"client_status" validate:"oneof=ACTIVE INACTIVE"`
	// TaxIDStatus is the state of the NPWP registration.
	TaxIDStatus TaxIDStatus `json:"tax_id_status" validate:"oneof=ACTIVE NON_EFFECTIVE"`
	// TaxableStatus is the PKP status.
	TaxableStatus TaxableStatus `json:"taxable_status" validate:"oneof=TAXABLE NON_TAXABLE"`
	// Deeds is the deed history, most recent first.
	Deeds []*Deed `json:"deeds" validate:"-"`
	// CreatedAt records the timestamp when the company was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt records the timestamp when the company was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// LatestDeed returns the head of the deed history, or nil when there is none.
func (c *Company) LatestDeed() *Deed {
	if len(c.Deeds) == 0 {
		return nil
	}
	return c.Deeds[0]
}

// CompanyUpdate represents the fields that can be updated for a Company.
// Pointer types are used to allow partial updates; nil means untouched.
type CompanyUpdate struct {
	// ID is the unique identifier for the company to update.
	ID uuid.UUID `validate:"-"`

	Name          *string        `validate:"omitempty,min=1,max=255"`
	TaxID         *string        `validate:"omitempty,taxid"`
	Type          *CompanyType   `validate:"omitempty,oneof=PT CV FIRMA YAYASAN"`
	Domicile      *string        `validate:"omitempty,max=255"`
	ClientStatus  *ClientStatus  `validate:"omitempty,oneof=ACTIVE INACTIVE"`
	TaxIDStatus   *TaxIDStatus   `validate:"omitempty,oneof=ACTIVE NON_EFFECTIVE"`
	TaxableStatus *TaxableStatus `validate:"omitempty,oneof=TAXABLE NON_TAXABLE"`
}

// IsEmpty reports whether the update carries no attribute at all.
func (u *CompanyUpdate) IsEmpty() bool {
	return u.Name == nil &&
		u.TaxID == nil &&
		u.Type == nil &&
		u.Domicile == nil &&
		u.ClientStatus == nil &&
		u.TaxIDStatus == nil &&
		u.TaxableStatus == nil
}
