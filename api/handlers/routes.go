package handlers

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"videotasks/api/auth"
	"videotasks/api/middleware"
)

type Handlers struct {
	Auth  *AuthHandler
	Task  *TaskHandler
	Video *VideoHandler
}

// Routes builds the API mux. Download stays public so the URLs embedded in
// task responses can be opened directly.
func Routes(h Handlers, tokens *auth.TokenIssuer, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	protected := middleware.Auth(tokens)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "OK"})
	})

	mux.HandleFunc("POST /api/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)

	mux.Handle("GET /api/tasks", protected(http.HandlerFunc(h.Task.List)))
	mux.Handle("POST /api/tasks", protected(http.HandlerFunc(h.Task.Upload)))
	mux.Handle("GET /api/tasks/{id}", protected(http.HandlerFunc(h.Task.Get)))
	mux.Handle("GET /api/tasks/{id}/status", protected(http.HandlerFunc(h.Task.Status)))
	mux.Handle("DELETE /api/tasks/{id}", protected(http.HandlerFunc(h.Task.Delete)))

	mux.Handle("GET /api/videos", protected(http.HandlerFunc(h.Video.List)))
	mux.HandleFunc("GET /api/videos/download/{id}", h.Video.Download)

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.TraceID(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.TraceIDHeader},
		ExposedHeaders:   []string{middleware.TraceIDHeader},
		AllowCredentials: false,
	}).Handler(handler)

	return handler
}
