// This is a **mock authentication service**, designed to provide JWT tokens
// for the directory service, simulating user authentication.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/dexapp/internal/directory/auth"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"       // Default port for the authentication service
	defaultSecret = "jwt_secret" // Secret for signing JWT
	defaultUser   = "back-office"
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenHandler(secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			userID = defaultUser
		}

		token, err := auth.GenerateToken(userID, secret, auth.DefaultTokenTTL)
		if err != nil {
			logger.Error("failed to generate token", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		resp := TokenResponse{Token: token, ExpiresAt: time.Now().Add(auth.DefaultTokenTTL).UTC()}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode token", zap.Error(err))
		}
		logger.Info("token issued", zap.String("user", userID))
	}
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	port := envOr("AUTH_PORT", defaultPort)
	secret := envOr("JWT_SECRET", defaultSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", newTokenHandler(secret, logger))

	logger.Info("Authentication service running", zap.String("port", port))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("authentication service stopped", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
