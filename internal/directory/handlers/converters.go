package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	e "github.com/gartstein/dexapp/internal/directory/errors"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/gartstein/dexapp/internal/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const errorDomain = "dexapp.directory"

// Output-only attributes are accepted in requests and ignored, so a client
// can send back what it fetched.
var readOnlyFields = map[string]bool{
	"id":               true,
	"company_id":       true,
	"tax_id_formatted": true,
	"created_at":       true,
	"updated_at":       true,
	"deeds":            true,
}

var companyFields = map[string]bool{
	"name":           true,
	"tax_id":         true,
	"type":           true,
	"domicile":       true,
	"client_status":  true,
	"tax_id_status":  true,
	"taxable_status": true,
}

var deedFields = map[string]bool{
	"title":         true,
	"date":          true,
	"notary_name":   true,
	"document_link": true,
	"recap_link":    true,
	"note":          true,
}

// Status labels used by the back office forms, accepted next to the
// canonical values.
var statusAliases = map[string]string{
	"AKTIF":       "ACTIVE",
	"NON_AKTIF":   "INACTIVE",
	"NON_EFEKTIF": "NON_EFFECTIVE",
	"PKP":         "TAXABLE",
	"NON_PKP":     "NON_TAXABLE",
}

func normalizeEnum(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, " ", "_")
	if alias, ok := statusAliases[v]; ok {
		return alias
	}
	return v
}

// companyToStruct converts a Company model into its wire representation.
func companyToStruct(c *models.Company) *structpb.Struct {
	deeds := make([]*structpb.Value, 0, len(c.Deeds))
	for _, d := range c.Deeds {
		deeds = append(deeds, structpb.NewStructValue(deedToStruct(d)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":               structpb.NewStringValue(c.ID.String()),
		"name":             structpb.NewStringValue(c.Name),
		"tax_id":           structpb.NewStringValue(c.TaxID),
		"tax_id_formatted": structpb.NewStringValue(models.FormatTaxID(c.TaxID)),
		"type":             structpb.NewStringValue(string(c.Type)),
		"domicile":         structpb.NewStringValue(c.Domicile),
		"client_status":    structpb.NewStringValue(string(c.ClientStatus)),
		"tax_id_status":    structpb.NewStringValue(string(c.TaxIDStatus)),
		"taxable_status":   structpb.NewStringValue(string(c.TaxableStatus)),
		"created_at":       structpb.NewStringValue(c.CreatedAt.UTC().Format(time.RFC3339)),
		"updated_at":       structpb.NewStringValue(c.UpdatedAt.UTC().Format(time.RFC3339)),
		"deeds":            structpb.NewListValue(&structpb.ListValue{Values: deeds}),
	}}
}

// deedToStruct converts a Deed model into its wire representation.
func deedToStruct(d *models.Deed) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":            structpb.NewStringValue(d.ID.String()),
		"company_id":    structpb.NewStringValue(d.CompanyID.String()),
		"title":         structpb.NewStringValue(d.Title),
		"date":          structpb.NewStringValue(d.Date.Format(models.DateLayout)),
		"notary_name":   structpb.NewStringValue(d.NotaryName),
		"document_link": structpb.NewStringValue(d.DocumentLink),
		"recap_link":    structpb.NewStringValue(d.RecapLink),
		"note":          structpb.NewStringValue(d.Note),
		"created_at":    structpb.NewStringValue(d.CreatedAt.UTC().Format(time.RFC3339)),
	}}
}

func companiesToStruct(companies []*models.Company, q models.ListQuery) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(companies))
	for _, c := range companies {
		values = append(values, structpb.NewStructValue(companyToStruct(c)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"companies": structpb.NewListValue(&structpb.ListValue{Values: values}),
		"page":      structpb.NewNumberValue(float64(q.Page)),
		"page_size": structpb.NewNumberValue(float64(q.Limit())),
	}}
}

// structToCompany converts a wire company into a Company model.
func structToCompany(s *structpb.Struct) (*models.Company, error) {
	if s == nil {
		return nil, errors.New("nil company data")
	}
	if err := checkFields(s, companyFields); err != nil {
		return nil, err
	}
	var c models.Company
	var err error
	if c.Name, _, err = stringField(s, "name"); err != nil {
		return nil, err
	}
	if c.TaxID, _, err = stringField(s, "tax_id"); err != nil {
		return nil, err
	}
	if c.Domicile, _, err = stringField(s, "domicile"); err != nil {
		return nil, err
	}
	var v string
	if v, _, err = enumField(s, "type"); err != nil {
		return nil, err
	}
	c.Type = models.CompanyType(v)
	if v, _, err = enumField(s, "client_status"); err != nil {
		return nil, err
	}
	c.ClientStatus = models.ClientStatus(v)
	if v, _, err = enumField(s, "tax_id_status"); err != nil {
		return nil, err
	}
	c.TaxIDStatus = models.TaxIDStatus(v)
	if v, _, err = enumField(s, "taxable_status"); err != nil {
		return nil, err
	}
	c.TaxableStatus = models.TaxableStatus(v)
	return &c, nil
}

// structToUpdate converts a wire company into a partial update: only keys
// present in s are set.
func structToUpdate(s *structpb.Struct, id uuid.UUID) (*models.CompanyUpdate, error) {
	if s == nil {
		return nil, errors.New("nil update data")
	}
	if err := checkFields(s, companyFields); err != nil {
		return nil, err
	}
	u := &models.CompanyUpdate{ID: id}

	strs := []struct {
		key string
		dst **string
	}{
		{"name", &u.Name},
		{"tax_id", &u.TaxID},
		{"domicile", &u.Domicile},
	}
	for _, f := range strs {
		v, ok, err := stringField(s, f.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*f.dst = utils.Ptr(v)
		}
	}

	if v, ok, err := enumField(s, "type"); err != nil {
		return nil, err
	} else if ok {
		u.Type = utils.Ptr(models.CompanyType(v))
	}
	if v, ok, err := enumField(s, "client_status"); err != nil {
		return nil, err
	} else if ok {
		u.ClientStatus = utils.Ptr(models.ClientStatus(v))
	}
	if v, ok, err := enumField(s, "tax_id_status"); err != nil {
		return nil, err
	} else if ok {
		u.TaxIDStatus = utils.Ptr(models.TaxIDStatus(v))
	}
	if v, ok, err := enumField(s, "taxable_status"); err != nil {
		return nil, err
	} else if ok {
		u.TaxableStatus = utils.Ptr(models.TaxableStatus(v))
	}
	return u, nil
}

// structToDeed converts a wire deed into a Deed model.
func structToDeed(s *structpb.Struct) (*models.Deed, error) {
	if s == nil {
		return nil, errors.New("nil deed data")
	}
	if err := checkFields(s, deedFields); err != nil {
		return nil, err
	}
	var d models.Deed
	var err error
	if d.Title, _, err = stringField(s, "title"); err != nil {
		return nil, err
	}
	date, ok, err := stringField(s, "date")
	if err != nil {
		return nil, err
	}
	if ok && date != "" {
		if d.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("date must be formatted %s", models.DateLayout)
		}
	}
	if d.NotaryName, _, err = stringField(s, "notary_name"); err != nil {
		return nil, err
	}
	if d.DocumentLink, _, err = stringField(s, "document_link"); err != nil {
		return nil, err
	}
	if d.RecapLink, _, err = stringField(s, "recap_link"); err != nil {
		return nil, err
	}
	if d.Note, _, err = stringField(s, "note"); err != nil {
		return nil, err
	}
	return &d, nil
}

// structToListQuery reads paging, filters and the search term.
func structToListQuery(s *structpb.Struct) (models.ListQuery, error) {
	var q models.ListQuery
	if s == nil {
		return q, nil
	}
	var err error
	if q.Page, _, err = intField(s, "page"); err != nil {
		return q, err
	}
	if q.PageSize, _, err = intField(s, "page_size"); err != nil {
		return q, err
	}
	if q.Search, _, err = stringField(s, "search"); err != nil {
		return q, err
	}
	var v string
	if v, _, err = enumField(s, "type"); err != nil {
		return q, err
	}
	q.Filter.Type = models.CompanyType(v)
	if v, _, err = enumField(s, "client_status"); err != nil {
		return q, err
	}
	q.Filter.ClientStatus = models.ClientStatus(v)
	if v, _, err = enumField(s, "tax_id_status"); err != nil {
		return q, err
	}
	q.Filter.TaxIDStatus = models.TaxIDStatus(v)
	if v, _, err = enumField(s, "taxable_status"); err != nil {
		return q, err
	}
	q.Filter.TaxableStatus = models.TaxableStatus(v)
	return q, nil
}

func idField(s *structpb.Struct, key string) (uuid.UUID, error) {
	v, _, err := stringField(s, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", strings.ReplaceAll(key, "_", " "))
	}
	return id, nil
}

func structField(s *structpb.Struct, key string) (*structpb.Struct, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false, nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, false, fmt.Errorf("%s must be an object", key)
	}
	return obj, true, nil
}

func stringField(s *structpb.Struct, key string) (string, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, true, nil
	case *structpb.Value_NullValue:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%s must be a string", key)
	}
}

func enumField(s *structpb.Struct, key string) (string, bool, error) {
	v, ok, err := stringField(s, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return normalizeEnum(v), true, nil
}

func intField(s *structpb.Struct, key string) (int, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), true, nil
	case *structpb.Value_NullValue:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
}

// checkFields rejects attributes that are neither writable nor output-only.
func checkFields(s *structpb.Struct, allowed map[string]bool) error {
	var unknown []string
	for key := range s.GetFields() {
		if !allowed[key] && !readOnlyFields[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
}

// mapServiceError maps domain or repository errors to appropriate gRPC status codes.
func (h *DirectoryHandler) mapServiceError(err error) error {
	var partial *e.PartialFailureError
	switch {
	case errors.As(err, &partial):
		h.logger.Error("Partial failure", zap.Error(err), zap.String("company_id", partial.CompanyID.String()))
		return withInfo(status.New(codes.Aborted, err.Error()),
			&errdetails.ErrorInfo{
				Reason:   "PARTIAL_FAILURE",
				Domain:   errorDomain,
				Metadata: map[string]string{"company_id": partial.CompanyID.String()},
			})
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrConflict):
		return withInfo(status.New(codes.AlreadyExists, "company with this tax id already exists; append a deed to it instead"),
			&errdetails.ErrorInfo{Reason: "DUPLICATE_TAX_ID", Domain: errorDomain})
	case errors.Is(err, e.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrBackendUnavailable):
		h.logger.Warn("Backend unavailable", zap.Error(err))
		return status.Error(codes.Unavailable, err.Error())
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, fmt.Sprintf("internal server error: %v", err))
	}
}

func withInfo(st *status.Status, info *errdetails.ErrorInfo) error {
	detailed, err := st.WithDetails(info)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
