package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	rows "github.com/gartstein/dexapp/internal/directory/db/models"
	e "github.com/gartstein/dexapp/internal/directory/errors"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/gartstein/dexapp/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// steppingClock hands out strictly increasing timestamps so that creation
// order is always observable in created_at.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// SetupTestDB initializes an in-memory SQLite database for testing.
func SetupTestDB(t *testing.T) *Repository {
	repo, err := NewRepository(&Config{
		Driver:       DriverSQLite,
		DSN:          "file::memory:?_foreign_keys=on",
		MaxOpenConns: 1,
		NowFunc:      steppingClock(),
	})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newCompany(name, taxID string) *models.Company {
	return &models.Company{
		ID:            uuid.New(),
		Name:          name,
		TaxID:         taxID,
		Type:          models.TypePT,
		Domicile:      "Jakarta",
		ClientStatus:  models.ClientActive,
		TaxIDStatus:   models.TaxIDActive,
		TaxableStatus: models.Taxable,
	}
}

func newDeed(companyID uuid.UUID, title, date string) *models.Deed {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return &models.Deed{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Title:      title,
		Date:       d,
		NotaryName: "Budi Santoso, S.H.",
	}
}

func taxID(n int) string {
	return fmt.Sprintf("%016d", n)
}

// TestCreateCompany tests the creation of a company record.
func TestCreateCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("PT Maju Jaya", "1111222233334444")
	err := repo.CreateCompany(ctx, company)
	assert.NoError(t, err, "CreateCompany should not return an error")
	assert.False(t, company.CreatedAt.IsZero(), "CreatedAt should be set by the store")

	retrieved, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err, "GetCompany should retrieve the created company")
	assert.Equal(t, company.Name, retrieved.Name)
	assert.Equal(t, company.TaxID, retrieved.TaxID)
	assert.Equal(t, models.TypePT, retrieved.Type)
	assert.Empty(t, retrieved.Deeds)
}

func TestCreateCompanyDuplicateTaxID(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCompany(ctx, newCompany("First", "1111222233334444")))

	err := repo.CreateCompany(ctx, newCompany("Second", "1111222233334444"))
	assert.ErrorIs(t, err, e.ErrConflict, "duplicate tax id should be a conflict")
}

// TestGetCompanyNotFound verifies error handling when the company does not exist.
func TestGetCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.GetCompany(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound, "GetCompany should return ErrNotFound for non-existent company")
	assert.NotErrorIs(t, err, e.ErrBackendUnavailable)
}

func TestCreateDeedOrdering(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("CV Sumber Rejeki", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company))

	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta Perubahan No. 3", "2024-01-01")))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta Perubahan No. 2", "2023-06-01")))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta Pendirian No. 1", "2020-01-10")))

	got, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, got.Deeds, 3)
	assert.Equal(t, "Akta Perubahan No. 3", got.Deeds[0].Title)
	assert.Equal(t, "Akta Perubahan No. 2", got.Deeds[1].Title)
	assert.Equal(t, "Akta Pendirian No. 1", got.Deeds[2].Title)
	for _, d := range got.Deeds {
		assert.Equal(t, company.ID, d.CompanyID)
	}
}

func TestCreateDeedSameDateIsStable(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("Yayasan Harapan", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "first", "2022-05-05")))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "second", "2022-05-05")))

	first, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	second, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)

	require.Len(t, first.Deeds, 2)
	assert.Equal(t, "second", first.Deeds[0].Title, "later insert wins a date tie")
	for i := range first.Deeds {
		assert.Equal(t, first.Deeds[i].ID, second.Deeds[i].ID)
	}
}

// Postgres timestamptz columns come back in time.Local; the calendar date
// must survive a zone west of UTC.
func TestDeedDateReadBackInLocalZone(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC-8", -8*60*60)
	t.Cleanup(func() { time.Local = local })

	repo, err := NewRepository(&Config{
		Driver:       DriverSQLite,
		DSN:          "file::memory:?_foreign_keys=on&_loc=auto",
		MaxOpenConns: 1,
		NowFunc:      steppingClock(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	company := newCompany("PT Zona Barat", "5555666677778888")
	require.NoError(t, repo.CreateCompany(ctx, company))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta Pendirian", "2020-01-10")))

	got, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, got.Deeds, 1)
	assert.Equal(t, "2020-01-10", got.Deeds[0].Date.Format(models.DateLayout))
	assert.Equal(t, time.UTC, got.Deeds[0].Date.Location())
}

func TestCreateDeedCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	err := repo.CreateDeed(context.Background(), newDeed(uuid.New(), "orphan", "2020-01-01"))
	assert.ErrorIs(t, err, e.ErrNotFound)
}

// TestUpdateCompany checks that only provided attributes change.
func TestUpdateCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("Old Name", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company), "CreateCompany should succeed")

	update := &models.CompanyUpdate{
		ID:           company.ID,
		Name:         utils.Ptr("New Name"),
		ClientStatus: utils.Ptr(models.ClientInactive),
	}
	require.NoError(t, repo.UpdateCompany(ctx, update))

	updated, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, models.ClientInactive, updated.ClientStatus)
	assert.Equal(t, company.TaxID, updated.TaxID, "tax id should be untouched")
	assert.Equal(t, company.Domicile, updated.Domicile, "domicile should be untouched")
	assert.True(t, updated.UpdatedAt.After(company.UpdatedAt))
}

func TestUpdateCompanyEmpty(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("Stable", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company))
	before, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCompany(ctx, &models.CompanyUpdate{ID: company.ID}))

	after, err := repo.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "empty update should leave the entity unchanged")

	err = repo.UpdateCompany(ctx, &models.CompanyUpdate{ID: uuid.New()})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestUpdateCompanyDuplicateTaxID(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	a := newCompany("A", "1111222233334444")
	b := newCompany("B", "5555666677778888")
	require.NoError(t, repo.CreateCompany(ctx, a))
	require.NoError(t, repo.CreateCompany(ctx, b))

	err := repo.UpdateCompany(ctx, &models.CompanyUpdate{ID: b.ID, TaxID: utils.Ptr(a.TaxID)})
	assert.ErrorIs(t, err, e.ErrConflict)

	got, err := repo.GetCompany(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "5555666677778888", got.TaxID)
}

// TestUpdateCompanyNotFound tests updating a non-existing company.
func TestUpdateCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	update := &models.CompanyUpdate{
		ID:   uuid.New(),
		Name: utils.Ptr("Non-existent"),
	}

	err := repo.UpdateCompany(context.Background(), update)
	assert.ErrorIs(t, err, e.ErrNotFound, "UpdateCompany should return ErrNotFound for missing company")
}

// TestDeleteCompany ensures the company and its deeds go together.
func TestDeleteCompany(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("To Be Deleted", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta 1", "2020-01-01")))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "Akta 2", "2021-01-01")))

	keep := newCompany("Keep", "5555666677778888")
	require.NoError(t, repo.CreateCompany(ctx, keep))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(keep.ID, "Akta Keep", "2021-01-01")))

	require.NoError(t, repo.DeleteCompany(ctx, company.ID))

	_, err := repo.GetCompany(ctx, company.ID)
	assert.ErrorIs(t, err, e.ErrNotFound, "Deleted company should not be found")

	var orphans int64
	require.NoError(t, repo.db.Model(&rows.Deed{}).Where("company_id = ?", company.ID).Count(&orphans).Error)
	assert.Zero(t, orphans, "deeds should be deleted with their company")

	kept, err := repo.GetCompany(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Deeds, 1)

	assert.ErrorIs(t, repo.DeleteCompany(ctx, company.ID), e.ErrNotFound, "second delete should report not found")
}

// TestDeleteCompanyNotFound checks behavior when trying to delete a non-existent company.
func TestDeleteCompanyNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	err := repo.DeleteCompany(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound, "DeleteCompany should return ErrNotFound for missing company")
}

func TestCompanyExistsByTaxID(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	exists, err := repo.CompanyExistsByTaxID(ctx, "1111222233334444")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.CreateCompany(ctx, newCompany("Existing", "1111222233334444")))

	exists, err = repo.CompanyExistsByTaxID(ctx, "1111222233334444")
	require.NoError(t, err)
	assert.True(t, exists)
}

func seedCompanies(t *testing.T, repo *Repository, n int) []*models.Company {
	t.Helper()
	types := models.CompanyTypes
	out := make([]*models.Company, 0, n)
	for i := 0; i < n; i++ {
		c := newCompany(fmt.Sprintf("Perusahaan %d", i), taxID(i+1))
		c.Type = types[i%len(types)]
		if i%2 == 1 {
			c.ClientStatus = models.ClientInactive
		}
		require.NoError(t, repo.CreateCompany(context.Background(), c))
		out = append(out, c)
	}
	return out
}

func TestListCompaniesNewestFirst(t *testing.T) {
	repo := SetupTestDB(t)
	seeded := seedCompanies(t, repo, 5)

	got, err := repo.ListCompanies(context.Background(), models.ListQuery{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, c := range got {
		assert.Equal(t, seeded[len(seeded)-1-i].ID, c.ID)
	}
}

func TestListCompaniesPagination(t *testing.T) {
	repo := SetupTestDB(t)
	seeded := seedCompanies(t, repo, 23)
	ctx := context.Background()

	var all []*models.Company
	for page := 0; ; page++ {
		got, err := repo.ListCompanies(ctx, models.ListQuery{Page: page, PageSize: 5})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 5)
		if len(got) == 0 {
			break
		}
		all = append(all, got...)
	}

	require.Len(t, all, len(seeded))
	seen := make(map[uuid.UUID]bool)
	for i, c := range all {
		assert.False(t, seen[c.ID], "company returned twice")
		seen[c.ID] = true
		assert.Equal(t, seeded[len(seeded)-1-i].ID, c.ID)
	}
}

func TestListCompaniesPageBeyondRange(t *testing.T) {
	repo := SetupTestDB(t)
	seedCompanies(t, repo, 1)

	got, err := repo.ListCompanies(context.Background(), models.ListQuery{Page: math.MaxInt/models.DefaultPageSize + 1})
	require.NoError(t, err)
	assert.Empty(t, got, "a page past the addressable range is empty, not page 0")
}

func TestListCompaniesFilters(t *testing.T) {
	repo := SetupTestDB(t)
	seedCompanies(t, repo, 8)
	ctx := context.Background()

	got, err := repo.ListCompanies(ctx, models.ListQuery{
		PageSize: 20,
		Filter:   models.ListFilter{Type: models.TypeCV},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, models.TypeCV, c.Type)
	}

	got, err = repo.ListCompanies(ctx, models.ListQuery{
		PageSize: 20,
		Filter:   models.ListFilter{Type: models.Any, ClientStatus: models.ClientInactive},
	})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = repo.ListCompanies(ctx, models.ListQuery{
		PageSize: 20,
		Filter: models.ListFilter{
			Type:          models.TypePT,
			ClientStatus:  models.ClientActive,
			TaxIDStatus:   models.TaxIDActive,
			TaxableStatus: models.Taxable,
		},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.ListCompanies(ctx, models.ListQuery{
		PageSize: 20,
		Filter:   models.ListFilter{TaxIDStatus: models.TaxIDNonEffective},
	})
	require.NoError(t, err)
	assert.Empty(t, got, "empty result is not an error")
}

func TestListCompaniesSearch(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	maju := newCompany("PT Maju Bersama", "1111222233334444")
	majuLower := newCompany("cv majulah", "5555666677778888")
	other := newCompany("Firma Lain", "9999000011112222")
	for _, c := range []*models.Company{maju, majuLower, other} {
		require.NoError(t, repo.CreateCompany(ctx, c))
	}

	got, err := repo.ListCompanies(ctx, models.ListQuery{PageSize: 10, Filter: models.ListFilter{Type: models.Any}, Search: "Maju"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, majuLower.ID, got[0].ID)
	assert.Equal(t, maju.ID, got[1].ID)

	got, err = repo.ListCompanies(ctx, models.ListQuery{PageSize: 10, Search: "0000.1111"})
	require.NoError(t, err)
	require.Len(t, got, 1, "separators in the query should be ignored for tax ids")
	assert.Equal(t, other.ID, got[0].ID)

	got, err = repo.ListCompanies(ctx, models.ListQuery{PageSize: 10, Search: "6666-7777"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, majuLower.ID, got[0].ID)

	got, err = repo.ListCompanies(ctx, models.ListQuery{PageSize: 10, Search: "100%"})
	require.NoError(t, err)
	assert.Empty(t, got, "LIKE wildcards in the term are literal")
}

func TestListCompaniesAttachesSortedDeeds(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	company := newCompany("PT Akta", "1111222233334444")
	require.NoError(t, repo.CreateCompany(ctx, company))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "old", "2019-03-01")))
	require.NoError(t, repo.CreateDeed(ctx, newDeed(company.ID, "new", "2023-03-01")))

	got, err := repo.ListCompanies(ctx, models.ListQuery{PageSize: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Deeds, 2)
	assert.Equal(t, "new", got[0].Deeds[0].Title)
}

// TestWithTransaction ensures transactions commit and roll back.
func TestWithTransaction(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	committed := newCompany("Transactional", "1111222233334444")
	err := repo.WithTransaction(ctx, func(txRepo *Repository) error {
		return txRepo.CreateCompany(ctx, committed)
	})
	require.NoError(t, err, "WithTransaction should execute successfully")

	exists, err := repo.CompanyExists(ctx, committed.ID)
	require.NoError(t, err)
	assert.True(t, exists, "Company should exist after transaction")

	rolledBack := newCompany("Rolled Back", "5555666677778888")
	boom := errors.New("deed insert failed")
	err = repo.WithTransaction(ctx, func(txRepo *Repository) error {
		if err := txRepo.CreateCompany(ctx, rolledBack); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, e.ErrBackendUnavailable)

	exists, err = repo.CompanyExists(ctx, rolledBack.ID)
	require.NoError(t, err)
	assert.False(t, exists, "Company should be rolled back")
}

func TestPing(t *testing.T) {
	repo := SetupTestDB(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestExec(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	c := newCompany("PT Bersih", "1000200030004000")
	require.NoError(t, repo.CreateCompany(ctx, c))
	require.NoError(t, repo.Exec(ctx, "DELETE FROM companies WHERE id = ?", c.ID))

	_, err := repo.GetCompany(ctx, c.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	assert.ErrorIs(t, repo.Exec(ctx, "SELECT * FROM no_such_table"), e.ErrBackendUnavailable)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), e.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrForeignKeyViolated), e.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), e.ErrConflict)
	assert.Equal(t, e.ErrNotFound, translateError(e.ErrNotFound))

	raw := errors.New("dial tcp: connection refused")
	err := translateError(raw)
	assert.ErrorIs(t, err, e.ErrBackendUnavailable)
	assert.ErrorIs(t, err, raw)

	err = translateError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, e.ErrBackendUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}

func TestConfigDialector(t *testing.T) {
	_, err := (&Config{Driver: "mysql"}).dialector()
	assert.Error(t, err)

	_, err = (&Config{Driver: DriverSQLite}).dialector()
	assert.Error(t, err, "sqlite needs an explicit DSN")

	d, err := (&Config{Host: "localhost", Port: 5432}).dialector()
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
