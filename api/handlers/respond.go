package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"videotasks/api/dto"
	"videotasks/api/kafka"
	"videotasks/api/middleware"
	"videotasks/api/repository"
	"videotasks/api/service"
	"videotasks/api/validation"
	"videotasks/events"
	"videotasks/storage"
)

type apiError struct {
	status  int
	code    string
	message string
}

func classify(err error) apiError {
	var (
		storageErr *storage.Error
		publishErr *kafka.PublishError
	)

	switch {
	case errors.Is(err, validation.ErrInvalid):
		return apiError{http.StatusBadRequest, "error_validation", err.Error()}
	case errors.Is(err, events.ErrValidation):
		return apiError{http.StatusBadRequest, "error_event", "Evento invalido"}
	case errors.Is(err, repository.ErrUserNotFound):
		return apiError{http.StatusNotFound, "error_user", "Usuario no encontrado"}
	case errors.Is(err, repository.ErrTaskNotFound):
		return apiError{http.StatusNotFound, "error_task", "Tarea no encontrada"}
	case errors.Is(err, repository.ErrVideoNotFound):
		return apiError{http.StatusNotFound, "error_video", "Video no encontrado"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return apiError{http.StatusForbidden, "error_auth", "Credenciales inválidas"}
	case errors.Is(err, service.ErrUserExists):
		return apiError{http.StatusBadRequest, "error_auth", "Usuario ya se encuentra registrado"}
	case errors.Is(err, service.ErrTaskNotDeletable):
		return apiError{http.StatusBadRequest, "error_task", "No se puede eliminar una tarea en procesamiento"}
	case errors.As(err, &storageErr):
		return apiError{http.StatusInternalServerError, "error_storage", "Error al acceder al almacenamiento de videos"}
	case errors.As(err, &publishErr):
		return apiError{http.StatusInternalServerError, "error_publish", "No fue posible encolar la tarea"}
	default:
		return apiError{http.StatusInternalServerError, "unexpected_error", "Error inesperado"}
	}
}

func handleError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetTraceID(r.Context())
	e := classify(err)

	if e.status >= http.StatusInternalServerError {
		logger.Error(e.message, zap.String("trace_id", traceID), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logger.Info(e.message, zap.String("trace_id", traceID), zap.String("path", r.URL.Path), zap.Error(err))
	}

	respondJSON(w, e.status, dto.ErrorResponse{
		Error:   e.code,
		Message: e.message,
		TraceID: traceID,
	})
}

func badRequest(logger *zap.Logger, w http.ResponseWriter, r *http.Request, message string, err error) {
	traceID := middleware.GetTraceID(r.Context())
	logger.Info(message, zap.String("trace_id", traceID), zap.Error(err))

	respondJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "error_request",
		Message: message,
		TraceID: traceID,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// listParams reads ?max=N&order=0|1. order other than 0 sorts newest first.
func listParams(r *http.Request) dto.ListParams {
	var p dto.ListParams
	if v, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil {
		p.Max = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("order")); err == nil && v != 0 {
		p.Desc = true
	}
	return p
}

func ownerID(r *http.Request) int64 {
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		return claims.ID
	}
	return 0
}
