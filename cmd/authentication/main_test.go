package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTokenHandler(t *testing.T) {
	const secret = "test-secret"
	h := newTokenHandler(secret, zaptest.NewLogger(t))

	tests := []struct {
		name    string
		target  string
		wantSub string
	}{
		{"default user", "/token", defaultUser},
		{"named user", "/token?user=clerk", "clerk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp TokenResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims["sub"])
			assert.False(t, resp.ExpiresAt.IsZero())
		})
	}
}
