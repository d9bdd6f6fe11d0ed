package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"videotasks/api/dto"
)

type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SignupResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
}

type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(h.logger, w, r, "Cuerpo de la solicitud invalido", err)
		return
	}

	resp, err := h.service.Signup(r.Context(), &req)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(h.logger, w, r, "Cuerpo de la solicitud invalido", err)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
