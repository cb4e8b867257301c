package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rows "github.com/gartstein/dexapp/internal/directory/db/models"
	e "github.com/gartstein/dexapp/internal/directory/errors"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// Driver selects the dialect: postgres (default) or sqlite.
	Driver string
	// DSN is used verbatim when set; otherwise a postgres DSN is built
	// from the connection fields below.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxOpenConns caps the pool. In-memory sqlite databases need 1.
	MaxOpenConns int
	// NowFunc overrides the clock used for CreatedAt/UpdatedAt.
	NowFunc func() time.Time
}

func (cfg *Config) dialector() (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite driver requires a DSN")
		}
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewRepository(cfg *Config) (*Repository, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	if cfg.NowFunc != nil {
		gormCfg.NowFunc = cfg.NowFunc
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.AutoMigrate(&rows.Company{}, &rows.Deed{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// ListCompanies returns one page of companies, newest first, with their
// deed histories attached.
func (r *Repository) ListCompanies(ctx context.Context, q models.ListQuery) ([]*models.Company, error) {
	if q.BeyondRange() {
		return []*models.Company{}, nil
	}

	tx := r.db.WithContext(ctx).Model(&rows.Company{})

	if models.Restricts(q.Filter.Type) {
		tx = tx.Where("type = ?", string(q.Filter.Type))
	}
	if models.Restricts(q.Filter.ClientStatus) {
		tx = tx.Where("client_status = ?", string(q.Filter.ClientStatus))
	}
	if models.Restricts(q.Filter.TaxIDStatus) {
		tx = tx.Where("tax_id_status = ?", string(q.Filter.TaxIDStatus))
	}
	if models.Restricts(q.Filter.TaxableStatus) {
		tx = tx.Where("taxable_status = ?", string(q.Filter.TaxableStatus))
	}

	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		namePattern := "%" + escapeLike(term) + "%"
		if digits := models.NormalizeTaxID(term); digits != "" {
			tx = tx.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR tax_id LIKE ? ESCAPE '\')`,
				namePattern, "%"+escapeLike(digits)+"%")
		} else {
			tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\'`, namePattern)
		}
	}

	var found []rows.Company
	result := tx.
		Preload("Deeds", orderDeeds).
		Order("created_at DESC").
		Order("id DESC").
		Offset(q.Offset()).
		Limit(q.Limit()).
		Find(&found)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}

	companies := make([]*models.Company, 0, len(found))
	for i := range found {
		companies = append(companies, fromCompanyRow(&found[i]))
	}
	return companies, nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	row := toCompanyRow(company)
	if err := r.db.WithContext(ctx).Omit("Deeds").Create(row).Error; err != nil {
		return translateError(err)
	}
	company.CreatedAt = row.CreatedAt
	company.UpdatedAt = row.UpdatedAt
	return nil
}

// CreateDeed inserts a deed for an existing company. The existence check and
// the insert share one transaction; the foreign key rejects the rest.
func (r *Repository) CreateDeed(ctx context.Context, deed *models.Deed) error {
	row := toDeedRow(deed)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner rows.Company
		if err := tx.Select("id").First(&owner, "id = ?", deed.CompanyID).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return translateError(err)
	}
	deed.Date = row.Date
	deed.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company rows.Company
	result := r.db.WithContext(ctx).Preload("Deeds", orderDeeds).First(&company, "id = ?", id)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return fromCompanyRow(&company), nil
}

// UpdateCompany writes only the provided attributes. An empty update touches
// nothing but still reports ErrNotFound for an unknown id.
func (r *Repository) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error {
	cols := updateColumns(update)
	if len(cols) == 0 {
		exists, err := r.CompanyExists(ctx, update.ID)
		if err != nil {
			return err
		}
		if !exists {
			return e.ErrNotFound
		}
		return nil
	}

	result := r.db.WithContext(ctx).Model(&rows.Company{}).
		Where("id = ?", update.ID).
		Updates(cols)

	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteCompany removes the company and its deeds in one transaction.
func (r *Repository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", id).Delete(&rows.Deed{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&rows.Company{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
	return translateError(err)
}

func (r *Repository) CompanyExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&rows.Company{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return count > 0, nil
}

// CompanyExistsByTaxID is a fast pre-check only; the unique index on
// tax_id stays the authority.
func (r *Repository) CompanyExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&rows.Company{}).
		Where("tax_id = ?", taxID).
		Limit(1).
		Count(&count)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return count > 0, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
	return translateError(err)
}

// Exec runs a raw statement. Used by maintenance tooling and test cleanup.
func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	return translateError(r.db.WithContext(ctx).Exec(query, params...).Error)
}

func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.db.DB()
	if err != nil {
		return translateError(err)
	}
	return translateError(db.PingContext(ctx))
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func orderDeeds(db *gorm.DB) *gorm.DB {
	return db.Order("deed_date DESC").Order("created_at DESC").Order("id ASC")
}

// translateError maps store errors onto the directory error kinds. Errors
// that already carry a kind pass through untouched.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, e.ErrNotFound),
		errors.Is(err, e.ErrConflict),
		errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrBackendUnavailable),
		errors.Is(err, e.ErrPartialFailure):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return e.ErrDuplicateTaxID
	default:
		return fmt.Errorf("%w: %w", e.ErrBackendUnavailable, err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
