package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"videotasks/api/dto"
	"videotasks/api/middleware"
)

type TaskService interface {
	CreateTask(ctx context.Context, req *dto.CreateTaskRequest, body io.Reader) (*dto.CreateTaskResponse, error)
	ListTasks(ctx context.Context, ownerID int64, params dto.ListParams) ([]dto.TaskSummary, error)
	GetTask(ctx context.Context, ownerID, id int64) (*dto.TaskDetail, error)
	GetTaskStatus(ctx context.Context, ownerID, id int64) (*dto.TaskStatusResponse, error)
	DeleteTask(ctx context.Context, ownerID, id int64) (*dto.DeleteTaskResponse, error)
}

type TaskHandler struct {
	service     TaskService
	maxFileSize int64
	logger      *zap.Logger
}

func NewTaskHandler(service TaskService, maxFileSize int64, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:     service,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(h.logger, w, r, "No fue posible leer el formulario", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(h.logger, w, r, "El archivo es requerido", err)
		return
	}
	defer file.Close()

	req := &dto.CreateTaskRequest{
		OwnerID:  ownerID(r),
		Filename: header.Filename,
		Size:     header.Size,
	}

	resp, err := h.service.CreateTask(r.Context(), req, file)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.Int64("id", resp.ID),
		zap.String("task_id", resp.TaskID),
		zap.String("filename", header.Filename),
	)

	respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListTasks(r.Context(), ownerID(r), listParams(r))
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(h.logger, w, r, "Identificador de tarea invalido", err)
		return
	}

	resp, err := h.service.GetTask(r.Context(), ownerID(r), id)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(h.logger, w, r, "Identificador de tarea invalido", err)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), ownerID(r), id)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(h.logger, w, r, "Identificador de tarea invalido", err)
		return
	}

	resp, err := h.service.DeleteTask(r.Context(), ownerID(r), id)
	if err != nil {
		handleError(h.logger, w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
