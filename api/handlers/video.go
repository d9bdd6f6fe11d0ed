package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"videotasks/api/dto"
)

type VideoService interface {
	ListVideos(ctx context.Context, ownerID int64, params dto.ListParams) ([]dto.VideoResponse, error)
	Download(ctx context.Context, videoID int64) ([]byte, error)
}

type VideoHandler struct {
	service VideoService
	logger  *zap.Logger
}

func NewVideoHandler(service VideoService, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{service: service, logger: logger}
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListVideos(r.Context(), ownerID(r), listParams(r))
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(h.logger, w, r, "Identificador de video invalido", err)
		return
	}

	data, err := h.service.Download(r.Context(), id)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
