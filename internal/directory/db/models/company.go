// Package models contains the storage rows of the directory,
// configured to work using GORM as the ORM.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company represents a company row. TaxID holds the canonical 16 digit
// NPWP and carries the uniqueness constraint.
type Company struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"size:255;not null"`
	TaxID         string    `gorm:"size:16;not null;uniqueIndex"`
	Type          string    `gorm:"size:16;not null;index"`
	Domicile      string    `gorm:"size:255"`
	ClientStatus  string    `gorm:"size:16;not null;index"`
	TaxIDStatus   string    `gorm:"size:16;not null"`
	TaxableStatus string    `gorm:"size:16;not null"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
	Deeds         []Deed `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

func (Company) TableName() string {
	return "companies"
}

// Deed represents a deed row. It always references its owning company.
type Deed struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Title        string    `gorm:"size:255;not null"`
	Date         time.Time `gorm:"column:deed_date;not null;index"`
	NotaryName   string    `gorm:"size:255"`
	DocumentLink string    `gorm:"size:2048"`
	RecapLink    string    `gorm:"size:2048"`
	Note         string    `gorm:"size:3000"`
	CreatedAt    time.Time
}

func (Deed) TableName() string {
	return "deeds"
}
