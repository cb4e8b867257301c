package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// query parameters accepted by GET /v1/companies
var listParams = []string{"type", "client_status", "tax_id_status", "taxable_status", "search"}

type invoker func(ctx context.Context, client *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error)

type route struct {
	method     string
	pattern    string
	rpc        string
	status     int
	parseInput func(r *http.Request, params map[string]string, body *structpb.Struct) (*structpb.Struct, error)
	call       invoker
}

// NewGatewayMux builds the REST surface of the directory on top of a gRPC
// client connection. reg is exposed on /metrics when non-nil.
func NewGatewayMux(conn grpc.ClientConnInterface, reg prometheus.Gatherer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	client := NewDirectoryClient(conn)

	for _, rt := range routes() {
		if err := mux.HandlePath(rt.method, rt.pattern, forward(mux, client, rt)); err != nil {
			return nil, err
		}
	}
	if reg != nil {
		metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			metricsHandler.ServeHTTP(w, r)
		})
		if err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func routes() []route {
	return []route{
		{
			method:     http.MethodGet,
			pattern:    "/v1/companies",
			rpc:        "ListCompanies",
			parseInput: listInput,
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.ListCompanies(ctx, in, opts...)
			},
		},
		{
			method:     http.MethodGet,
			pattern:    "/v1/companies/{id}",
			rpc:        "GetCompany",
			parseInput: idInput("id"),
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.GetCompany(ctx, in, opts...)
			},
		},
		{
			method:     http.MethodPost,
			pattern:    "/v1/companies",
			rpc:        "CreateCompany",
			status:     http.StatusCreated,
			parseInput: createInput,
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.CreateCompany(ctx, in, opts...)
			},
		},
		{
			method:     http.MethodPatch,
			pattern:    "/v1/companies/{id}",
			rpc:        "UpdateCompany",
			parseInput: bodyInput("id", "id", "company"),
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.UpdateCompany(ctx, in, opts...)
			},
		},
		{
			method:     http.MethodPost,
			pattern:    "/v1/companies/{id}/deeds",
			rpc:        "AppendDeed",
			status:     http.StatusCreated,
			parseInput: bodyInput("id", "company_id", "deed"),
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.AppendDeed(ctx, in, opts...)
			},
		},
		{
			method:     http.MethodDelete,
			pattern:    "/v1/companies/{id}",
			rpc:        "DeleteCompany",
			parseInput: idInput("id"),
			call: func(ctx context.Context, c *DirectoryClient, in *structpb.Struct, opts ...grpc.CallOption) (proto.Message, error) {
				return c.DeleteCompany(ctx, in, opts...)
			},
		},
	}
}

// forward decodes the HTTP request, invokes the gRPC method and writes the
// response the way generated gateway handlers do.
func forward(mux *runtime.ServeMux, client *DirectoryClient, rt route) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		inbound, outbound := runtime.MarshalerForRequest(mux, r)

		annotated, err := runtime.AnnotateContext(ctx, mux, r, FullMethod(rt.rpc), runtime.WithHTTPPathPattern(rt.pattern))
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		var body *structpb.Struct
		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			body = &structpb.Struct{}
			if err := inbound.NewDecoder(r.Body).Decode(body); err != nil && !errors.Is(err, io.EOF) {
				runtime.HTTPError(annotated, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "invalid request body: %v", err))
				return
			}
		}

		in, err := rt.parseInput(r, params, body)
		if err != nil {
			runtime.HTTPError(annotated, mux, outbound, w, r, status.Error(codes.InvalidArgument, err.Error()))
			return
		}

		var md runtime.ServerMetadata
		resp, err := rt.call(annotated, client, in, grpc.Header(&md.HeaderMD), grpc.Trailer(&md.TrailerMD))
		annotated = runtime.NewServerMetadataContext(annotated, md)
		if err != nil {
			runtime.HTTPError(annotated, mux, outbound, w, r, err)
			return
		}

		var opts []func(context.Context, http.ResponseWriter, proto.Message) error
		if rt.status != 0 {
			opts = append(opts, func(_ context.Context, w http.ResponseWriter, _ proto.Message) error {
				w.WriteHeader(rt.status)
				return nil
			})
		}
		runtime.ForwardResponseMessage(annotated, mux, outbound, w, r, resp, opts...)
	}
}

func listInput(r *http.Request, _ map[string]string, _ *structpb.Struct) (*structpb.Struct, error) {
	q := r.URL.Query()
	fields := make(map[string]*structpb.Value)
	for _, key := range []string{"page", "page_size"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := parseInt(key, raw)
		if err != nil {
			return nil, err
		}
		fields[key] = structpb.NewNumberValue(float64(n))
	}
	for _, key := range listParams {
		if v := q.Get(key); v != "" {
			fields[key] = structpb.NewStringValue(v)
		}
	}
	return &structpb.Struct{Fields: fields}, nil
}

func idInput(param string) func(*http.Request, map[string]string, *structpb.Struct) (*structpb.Struct, error) {
	return func(_ *http.Request, params map[string]string, _ *structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{Fields: map[string]*structpb.Value{
			param: structpb.NewStringValue(params[param]),
		}}, nil
	}
}

// bodyInput nests the request body under key and adds the path parameter
// under idKey.
func bodyInput(param, idKey, key string) func(*http.Request, map[string]string, *structpb.Struct) (*structpb.Struct, error) {
	return func(_ *http.Request, params map[string]string, body *structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{Fields: map[string]*structpb.Value{
			idKey: structpb.NewStringValue(params[param]),
			key:   structpb.NewStructValue(body),
		}}, nil
	}
}

// createInput splits the optional initial_deed out of the company body.
func createInput(_ *http.Request, _ map[string]string, body *structpb.Struct) (*structpb.Struct, error) {
	if len(body.GetFields()) == 0 {
		return nil, errors.New("company data required")
	}
	company := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(body.GetFields()))}
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"company": structpb.NewStructValue(company),
	}}
	for key, v := range body.GetFields() {
		if key == "initial_deed" {
			in.Fields[key] = v
			continue
		}
		company.Fields[key] = v
	}
	return in, nil
}

func parseInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
