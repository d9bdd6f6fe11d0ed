package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"videotasks/api/auth"
)

const ClaimsKey contextKey = "claims"

// Auth requires a "Bearer <token>" Authorization header signed by tokens and
// stores the parsed claims in the request context.
func Auth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, r, "Cabecera de autenticacion es requerida")
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || scheme != "Bearer" {
				unauthorized(w, r, "Tipo de cabecera de autenticacion invalida")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w, r, "Token invalido")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":    "auth_error",
		"message":  message,
		"trace_id": GetTraceID(r.Context()),
	})
}
