package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Local dev plus the hosted app, admin console, and staging frontends.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://chamby.mx",
	"https://www.chamby.mx",
	"https://admin.chamby.mx",
	"https://staging.chamby.mx",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
