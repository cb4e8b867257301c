package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	createMethod = "/dexapp.directory.v1.DirectoryService/CreateCompany"
	getMethod    = "/dexapp.directory.v1.DirectoryService/GetCompany"
)

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tokenString
}

func TestAuthInterceptor(t *testing.T) {
	const (
		validSecret   = "test-secret"
		invalidSecret = "wrong-secret"
		userID        = "test-user"
	)

	generateToken := func(secret string, expiresAt time.Time) string {
		return signToken(t, jwt.MapClaims{
			"sub": userID,
			"exp": expiresAt.Unix(),
		}, secret)
	}

	tests := []struct {
		name        string
		fullMethod  string
		token       string
		wantError   bool
		expectedErr codes.Code
	}{
		{
			name:        "protected method valid token",
			fullMethod:  createMethod,
			token:       generateToken(validSecret, time.Now().Add(1*time.Hour)),
			wantError:   false,
			expectedErr: codes.OK,
		},
		{
			name:        "protected method invalid token",
			fullMethod:  createMethod,
			token:       generateToken(invalidSecret, time.Now().Add(1*time.Hour)),
			wantError:   true,
			expectedErr: codes.Unauthenticated,
		},
		{
			name:        "protected method expired token",
			fullMethod:  createMethod,
			token:       generateToken(validSecret, time.Now().Add(-1*time.Hour)),
			wantError:   true,
			expectedErr: codes.Unauthenticated,
		},
		{
			name:        "protected method missing metadata",
			fullMethod:  createMethod,
			wantError:   true,
			expectedErr: codes.Unauthenticated,
		},
		{
			name:        "unprotected method no token",
			fullMethod:  getMethod,
			wantError:   false,
			expectedErr: codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := NewAuthInterceptor(validSecret, createMethod)
			unaryInterceptor := interceptor.Unary()

			ctx := context.Background()
			if tt.token != "" {
				md := metadata.Pairs("authorization", "Bearer "+tt.token)
				ctx = metadata.NewIncomingContext(ctx, md)
			}

			handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
				if tt.fullMethod == createMethod && Subject(ctx) != userID {
					return nil, status.Error(codes.Unauthenticated, "claims not in context")
				}
				return "response", nil
			}

			info := &grpc.UnaryServerInfo{FullMethod: tt.fullMethod}
			resp, err := unaryInterceptor(ctx, nil, info, handler)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if status.Code(err) != tt.expectedErr {
					t.Errorf("expected error code %v, got %v", tt.expectedErr, status.Code(err))
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if resp != "response" {
					t.Error("handler response mismatch")
				}
			}
		})
	}
}

func TestExtractTokenFromMetadata(t *testing.T) {
	tests := []struct {
		name        string
		metadata    metadata.MD
		wantToken   string
		wantErrCode codes.Code
	}{
		{
			name:        "valid authorization header",
			metadata:    metadata.Pairs("authorization", "Bearer valid-token"),
			wantToken:   "valid-token",
			wantErrCode: codes.OK,
		},
		{
			name:        "missing authorization header",
			metadata:    metadata.MD{},
			wantErrCode: codes.Unauthenticated,
		},
		{
			name:        "malformed authorization header",
			metadata:    metadata.Pairs("authorization", "InvalidPrefix valid-token"),
			wantErrCode: codes.Unauthenticated,
		},
		{
			name:        "empty bearer token",
			metadata:    metadata.Pairs("authorization", "Bearer "),
			wantErrCode: codes.Unauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := extractTokenFromMetadata(tt.metadata)

			if tt.wantErrCode != codes.OK {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if status.Code(err) != tt.wantErrCode {
					t.Errorf("expected error code %v, got %v", tt.wantErrCode, status.Code(err))
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("expected token %q, got %q", tt.wantToken, token)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	const validSecret = "test-secret"
	validTokenString := signToken(t, jwt.MapClaims{
		"sub": "user123",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}, validSecret)

	tests := []struct {
		name        string
		tokenString string
		secret      string
		wantValid   bool
	}{
		{
			name:        "valid token",
			tokenString: validTokenString,
			secret:      validSecret,
			wantValid:   true,
		},
		{
			name:        "invalid signature",
			tokenString: validTokenString,
			secret:      "wrong-secret",
			wantValid:   false,
		},
		{
			name: "expired token",
			tokenString: signToken(t, jwt.MapClaims{
				"exp": time.Now().Add(-1 * time.Hour).Unix(),
			}, validSecret),
			secret:    validSecret,
			wantValid: false,
		},
		{
			name:        "token without expiry",
			tokenString: signToken(t, jwt.MapClaims{"sub": "user123"}, validSecret),
			secret:      validSecret,
			wantValid:   false,
		},
		{
			name:        "malformed token",
			tokenString: "invalid.token.string",
			secret:      validSecret,
			wantValid:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := validateToken(tt.tokenString, tt.secret)

			if tt.wantValid {
				if err != nil {
					t.Errorf("expected valid token, got error: %v", err)
				}
				if claims["sub"] != "user123" {
					t.Error("claims not properly parsed")
				}
			} else if err == nil {
				t.Error("expected invalid token, got no error")
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	tokenString, err := GenerateToken("auditor@dexapp.id", "test-secret", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := validateToken(tokenString, "test-secret")
	if err != nil {
		t.Fatalf("generated token rejected: %v", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		t.Fatalf("missing expiry: %v", err)
	}
	if d := time.Until(exp.Time); d < DefaultTokenTTL-time.Minute || d > DefaultTokenTTL {
		t.Errorf("unexpected ttl %v", d)
	}
	if Subject(context.WithValue(context.Background(), userContextKey, claims)) != "auditor@dexapp.id" {
		t.Error("subject not carried")
	}
}

func TestNewAuthInterceptor(t *testing.T) {
	secret := "test-secret"
	protectedMethods := []string{
		"/dexapp.directory.v1.DirectoryService/CreateCompany",
		"/dexapp.directory.v1.DirectoryService/UpdateCompany",
		"/dexapp.directory.v1.DirectoryService/DeleteCompany",
	}
	interceptor := NewAuthInterceptor(secret, protectedMethods...)

	if interceptor.jwtSecret != secret {
		t.Errorf("expected secret %q, got %q", secret, interceptor.jwtSecret)
	}
	for _, method := range protectedMethods {
		if !interceptor.protectedMethods[method] {
			t.Errorf("missing protected method: %s", method)
		}
	}
	if interceptor.protectedMethods[getMethod] {
		t.Error("read method must stay public")
	}
}
