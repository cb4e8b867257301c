package db

import (
	rows "github.com/gartstein/dexapp/internal/directory/db/models"
	"github.com/gartstein/dexapp/internal/directory/models"
)

// Rows never leave this package: every read goes through fromCompanyRow
// and every write through toCompanyRow / toDeedRow.

func toCompanyRow(c *models.Company) *rows.Company {
	return &rows.Company{
		ID:            c.ID,
		Name:          c.Name,
		TaxID:         c.TaxID,
		Type:          string(c.Type),
		Domicile:      c.Domicile,
		ClientStatus:  string(c.ClientStatus),
		TaxIDStatus:   string(c.TaxIDStatus),
		TaxableStatus: string(c.TaxableStatus),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromCompanyRow(r *rows.Company) *models.Company {
	c := &models.Company{
		ID:            r.ID,
		Name:          r.Name,
		TaxID:         r.TaxID,
		Type:          models.CompanyType(r.Type),
		Domicile:      r.Domicile,
		ClientStatus:  models.ClientStatus(r.ClientStatus),
		TaxIDStatus:   models.TaxIDStatus(r.TaxIDStatus),
		TaxableStatus: models.TaxableStatus(r.TaxableStatus),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Deeds:         make([]*models.Deed, 0, len(r.Deeds)),
	}
	for i := range r.Deeds {
		c.Deeds = append(c.Deeds, fromDeedRow(&r.Deeds[i]))
	}
	models.SortDeeds(c.Deeds)
	return c
}

func toDeedRow(d *models.Deed) *rows.Deed {
	return &rows.Deed{
		ID:           d.ID,
		CompanyID:    d.CompanyID,
		Title:        d.Title,
		Date:         models.TruncateDate(d.Date),
		NotaryName:   d.NotaryName,
		DocumentLink: d.DocumentLink,
		RecapLink:    d.RecapLink,
		Note:         d.Note,
		CreatedAt:    d.CreatedAt,
	}
}

// fromDeedRow reads the date back in UTC: pgx returns timestamptz in
// time.Local, and deed dates are stored as UTC midnight.
func fromDeedRow(r *rows.Deed) *models.Deed {
	return &models.Deed{
		ID:           r.ID,
		CompanyID:    r.CompanyID,
		Title:        r.Title,
		Date:         models.TruncateDate(r.Date.UTC()),
		NotaryName:   r.NotaryName,
		DocumentLink: r.DocumentLink,
		RecapLink:    r.RecapLink,
		Note:         r.Note,
		CreatedAt:    r.CreatedAt,
	}
}

// updateColumns turns a partial update into a column map holding only the
// attributes that were provided.
func updateColumns(u *models.CompanyUpdate) map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.TaxID != nil {
		cols["tax_id"] = *u.TaxID
	}
	if u.Type != nil {
		cols["type"] = string(*u.Type)
	}
	if u.Domicile != nil {
		cols["domicile"] = *u.Domicile
	}
	if u.ClientStatus != nil {
		cols["client_status"] = string(*u.ClientStatus)
	}
	if u.TaxIDStatus != nil {
		cols["tax_id_status"] = string(*u.TaxIDStatus)
	}
	if u.TaxableStatus != nil {
		cols["taxable_status"] = string(*u.TaxableStatus)
	}
	return cols
}
