// Package controller implements the core business logic (service layer)
// of the company directory: listing, lookups, partial updates, deed
// history appends, registration and cascading deletes.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gartstein/dexapp/internal/directory/db"
	e "github.com/gartstein/dexapp/internal/directory/errors"
	"github.com/gartstein/dexapp/internal/directory/events"
	"github.com/gartstein/dexapp/internal/directory/metrics"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// compensationTimeout bounds the cleanup after a failed registration. The
// cleanup outlives the caller's context.
const compensationTimeout = 10 * time.Second

type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company)
	ProduceDeed(deed *models.Deed)
}

// Repository defines the storage interface for companies and deeds.
type Repository interface {
	ListCompanies(ctx context.Context, q models.ListQuery) ([]*models.Company, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	CreateDeed(ctx context.Context, deed *models.Deed) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	CompanyExistsByTaxID(ctx context.Context, taxID string) (bool, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// DirectoryService is the only access path to company and deed state.
// It keeps no state of its own between calls.
type DirectoryService struct {
	repo     Repository
	producer EventProducer
	metrics  *metrics.Metrics
	validate *validator.Validate
	logger   *zap.Logger
}

// NewDirectoryService constructs a DirectoryService with a repository,
// an event producer, metrics and a logger.
func NewDirectoryService(repo Repository, producer EventProducer, m *metrics.Metrics, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		repo:     repo,
		producer: producer,
		metrics:  m,
		validate: newValidator(),
		logger:   logger.Named("directory_service"),
	}
}

// ListCompanies returns one page of companies, newest first, restricted by
// the query's filters and search term.
func (s *DirectoryService) ListCompanies(ctx context.Context, q models.ListQuery) ([]*models.Company, error) {
	q.Search = strings.TrimSpace(q.Search)
	if err := s.validate.Struct(q); err != nil {
		return nil, invalid(err)
	}

	companies, err := s.repo.ListCompanies(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// GetCompany retrieves a Company with its deed history. An unknown id
// yields ErrNotFound, never a backend error.
func (s *DirectoryService) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// CreateCompany adds a Company without any deed. This is the
// administrative correction path; registrations go through RegisterCompany.
func (s *DirectoryService) CreateCompany(ctx context.Context, company *models.Company) (*models.Company, error) {
	if err := s.prepareCompany(company); err != nil {
		return nil, err
	}
	if err := s.checkTaxIDFree(ctx, company.TaxID); err != nil {
		return nil, err
	}

	company.ID = uuid.New()
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		if errors.Is(err, e.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	company.Deeds = []*models.Deed{}

	s.metrics.IncrementCompaniesCreated()
	s.producer.Produce(events.CompanyCreated, company)
	return company, nil
}

// RegisterCompany creates a Company together with its founding deed in one
// store transaction. A duplicate tax id leaves nothing behind.
func (s *DirectoryService) RegisterCompany(ctx context.Context, company *models.Company, deed *models.Deed) (*models.Company, error) {
	if err := s.prepareCompany(company); err != nil {
		return nil, err
	}
	if err := s.prepareDeed(deed); err != nil {
		return nil, err
	}
	if err := s.checkTaxIDFree(ctx, company.TaxID); err != nil {
		return nil, err
	}

	company.ID = uuid.New()
	deed.ID = uuid.New()
	deed.CompanyID = company.ID

	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return err
		}
		return tx.CreateDeed(ctx, deed)
	})
	if err != nil {
		if errors.Is(err, e.ErrConflict) {
			return nil, err
		}
		return s.compensateRegistration(ctx, company.ID, err)
	}
	company.Deeds = []*models.Deed{deed}

	s.metrics.IncrementCompaniesCreated()
	s.producer.Produce(events.CompanyCreated, company)
	return company, nil
}

// compensateRegistration runs after a registration transaction reported a
// failure. The store may still hold the company (lost commit acknowledgement
// or a backend without transactions); a company without deeds is removed,
// and a PartialFailureError is returned when that cannot be confirmed.
func (s *DirectoryService) compensateRegistration(ctx context.Context, id uuid.UUID, cause error) (*models.Company, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	logger := s.logger.With(zap.String("company_id", id.String()), zap.NamedError("cause", cause))

	leftover, err := s.repo.GetCompany(ctx, id)
	switch {
	case errors.Is(err, e.ErrNotFound):
		return nil, fmt.Errorf("failed to register company: %w", cause)
	case err != nil:
		logger.Error("Cannot verify registration state", zap.Error(err))
		s.metrics.IncrementPartialFailures()
		return nil, &e.PartialFailureError{CompanyID: id, Err: errors.Join(cause, err)}
	case len(leftover.Deeds) > 0:
		logger.Warn("Registration committed despite reported failure")
		s.metrics.IncrementCompaniesCreated()
		s.producer.Produce(events.CompanyCreated, leftover)
		return leftover, nil
	}

	if err := s.repo.DeleteCompany(ctx, id); err != nil && !errors.Is(err, e.ErrNotFound) {
		logger.Error("Failed to remove company left without deeds", zap.Error(err))
		s.metrics.IncrementPartialFailures()
		return nil, &e.PartialFailureError{CompanyID: id, Err: errors.Join(cause, err)}
	}
	logger.Warn("Removed company left without deeds")
	return nil, fmt.Errorf("failed to register company: %w", cause)
}

// UpdateCompany applies the provided attributes and returns the stored
// result. An empty update changes nothing.
func (s *DirectoryService) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid company ID", e.ErrInvalidInput)
	}
	if update.TaxID != nil {
		normalized := models.NormalizeTaxID(*update.TaxID)
		update.TaxID = &normalized
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if err := s.validate.Struct(update); err != nil {
		return nil, invalid(err)
	}
	// omitempty also skips pointers to empty strings, which must never be written.
	if blank(update.Name) || blank(update.Type) || blank(update.ClientStatus) ||
		blank(update.TaxIDStatus) || blank(update.TaxableStatus) {
		return nil, fmt.Errorf("%w: provided attributes must not be empty", e.ErrInvalidInput)
	}
	if update.TaxID != nil && !models.IsTaxID(*update.TaxID) {
		return nil, fmt.Errorf("%w: tax id must have %d digits", e.ErrInvalidInput, models.TaxIDLength)
	}

	err := s.repo.UpdateCompany(ctx, update)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	updated, err := s.repo.GetCompany(ctx, update.ID)
	if err != nil {
		s.logger.Error("Failed to reload updated company",
			zap.Error(err),
			zap.String("company_id", update.ID.String()),
		)
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to reload company: %w", err)
	}
	if !update.IsEmpty() {
		s.producer.Produce(events.CompanyUpdated, updated)
	}
	return updated, nil
}

// AppendDeed adds a deed to an existing company's history. Ordering is a
// read-time property, so nothing else is rewritten.
func (s *DirectoryService) AppendDeed(ctx context.Context, companyID uuid.UUID, deed *models.Deed) (*models.Deed, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid company ID", e.ErrInvalidInput)
	}
	if err := s.prepareDeed(deed); err != nil {
		return nil, err
	}

	deed.ID = uuid.New()
	deed.CompanyID = companyID
	if err := s.repo.CreateDeed(ctx, deed); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to append deed: %w", err)
	}

	s.metrics.IncrementDeedsAppended()
	s.producer.ProduceDeed(deed)
	return deed, nil
}

// DeleteCompany removes a Company and its whole deed history. Deleting an
// unknown or already deleted id reports ErrNotFound.
func (s *DirectoryService) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCompany(ctx, id); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}

	s.metrics.IncrementCompaniesDeleted()
	s.producer.Produce(events.CompanyDeleted, &models.Company{ID: id})
	return nil
}

// prepareCompany normalizes user input, fills the registration form
// defaults and validates the result.
func (s *DirectoryService) prepareCompany(company *models.Company) error {
	if company == nil {
		return fmt.Errorf("%w: company data required", e.ErrInvalidInput)
	}
	company.Name = strings.TrimSpace(company.Name)
	company.Domicile = strings.TrimSpace(company.Domicile)
	company.TaxID = models.NormalizeTaxID(company.TaxID)
	if company.ClientStatus == "" {
		company.ClientStatus = models.ClientActive
	}
	if company.TaxIDStatus == "" {
		company.TaxIDStatus = models.TaxIDActive
	}
	if company.TaxableStatus == "" {
		company.TaxableStatus = models.NonTaxable
	}
	if err := s.validate.Struct(company); err != nil {
		return invalid(err)
	}
	return nil
}

func (s *DirectoryService) prepareDeed(deed *models.Deed) error {
	if deed == nil {
		return fmt.Errorf("%w: deed data required", e.ErrInvalidInput)
	}
	deed.Title = strings.TrimSpace(deed.Title)
	deed.NotaryName = strings.TrimSpace(deed.NotaryName)
	deed.DocumentLink = strings.TrimSpace(deed.DocumentLink)
	deed.RecapLink = strings.TrimSpace(deed.RecapLink)
	if !deed.Date.IsZero() {
		deed.Date = models.TruncateDate(deed.Date)
	}
	if err := s.validate.Struct(deed); err != nil {
		return invalid(err)
	}
	return nil
}

// checkTaxIDFree rejects a known duplicate early. The unique index remains
// the authority; a racing insert still fails there with ErrConflict.
func (s *DirectoryService) checkTaxIDFree(ctx context.Context, taxID string) error {
	exists, err := s.repo.CompanyExistsByTaxID(ctx, taxID)
	if err != nil {
		return fmt.Errorf("failed to check tax id: %w", err)
	}
	if exists {
		return e.ErrDuplicateTaxID
	}
	return nil
}
