package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const companiesPath = "/v1/companies"

// HTTPMiddleware rejects unauthenticated requests to the mutating REST routes
// and passes everything else through.
func HTTPMiddleware(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProtectedRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractTokenFromHeader(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	return bearerToken(authHeader)
}

// isProtectedRequest reports whether r creates, edits or deletes directory data.
func isProtectedRequest(r *http.Request) bool {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path != companiesPath && !strings.HasPrefix(path, companiesPath+"/") {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
