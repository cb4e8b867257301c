package handlers

import (
	"context"

	"github.com/gartstein/dexapp/internal/directory/auth"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// DirectoryController defines the business logic interface
// that the gRPC/HTTP handlers will invoke.
type DirectoryController interface {
	ListCompanies(ctx context.Context, q models.ListQuery) ([]*models.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	CreateCompany(ctx context.Context, company *models.Company) (*models.Company, error)
	RegisterCompany(ctx context.Context, company *models.Company, deed *models.Deed) (*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error)
	AppendDeed(ctx context.Context, companyID uuid.UUID, deed *models.Deed) (*models.Deed, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error
}

// DirectoryHandler provides gRPC methods for directory operations,
// mapping requests to a DirectoryController.
type DirectoryHandler struct {
	service DirectoryController
	logger  *zap.Logger
}

var _ DirectoryServiceServer = (*DirectoryHandler)(nil)

// NewDirectoryHandler constructs a new DirectoryHandler with the given service and logger.
func NewDirectoryHandler(service DirectoryController, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

// ListCompanies returns one page of companies matching the filters and search term.
func (h *DirectoryHandler) ListCompanies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := structToListQuery(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	companies, err := h.service.ListCompanies(ctx, q)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return companiesToStruct(companies, q), nil
}

// GetCompany fetches a company and its deeds by ID.
func (h *DirectoryHandler) GetCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid company ID")
	}
	company, err := h.service.GetCompany(ctx, id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return wrap("company", companyToStruct(company)), nil
}

// CreateCompany creates a company. When the request carries an initial_deed
// the company and the deed are registered together.
func (h *DirectoryHandler) CreateCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, ok, err := structField(req, "company")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "company data required")
	}
	company, err := structToCompany(data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	deedData, withDeed, err := structField(req, "initial_deed")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var created *models.Company
	if withDeed {
		deed, err := structToDeed(deedData)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		created, err = h.service.RegisterCompany(ctx, company, deed)
		if err != nil {
			h.logger.Error("Register company failed", zap.Error(err))
			return nil, h.mapServiceError(err)
		}
	} else {
		created, err = h.service.CreateCompany(ctx, company)
		if err != nil {
			h.logger.Error("Create company failed", zap.Error(err))
			return nil, h.mapServiceError(err)
		}
	}
	h.logger.Info("Company created",
		zap.String("company_id", created.ID.String()),
		zap.Bool("with_deed", withDeed),
		zap.String("actor", auth.Subject(ctx)))
	return wrap("company", companyToStruct(created)), nil
}

// UpdateCompany applies the attributes present in the request to an existing company.
func (h *DirectoryHandler) UpdateCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid company ID")
	}
	data, ok, err := structField(req, "company")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		data = &structpb.Struct{}
	}
	update, err := structToUpdate(data, id)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	updated, err := h.service.UpdateCompany(ctx, update)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return wrap("company", companyToStruct(updated)), nil
}

// AppendDeed records a new deed for an existing company.
func (h *DirectoryHandler) AppendDeed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "company_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid company ID")
	}
	data, ok, err := structField(req, "deed")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "deed data required")
	}
	deed, err := structToDeed(data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	created, err := h.service.AppendDeed(ctx, id, deed)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return wrap("deed", deedToStruct(created)), nil
}

// DeleteCompany removes a company and all of its deeds.
func (h *DirectoryHandler) DeleteCompany(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id, err := idField(req, "id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid company ID")
	}
	if err := h.service.DeleteCompany(ctx, id); err != nil {
		return nil, h.mapServiceError(err)
	}
	h.logger.Info("Company deleted", zap.String("company_id", id.String()), zap.String("actor", auth.Subject(ctx)))
	return &emptypb.Empty{}, nil
}

func wrap(key string, s *structpb.Struct) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		key: structpb.NewStructValue(s),
	}}
}
