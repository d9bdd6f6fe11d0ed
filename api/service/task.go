package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"videotasks/api/dto"
	"videotasks/api/kafka"
	"videotasks/api/repository"
	"videotasks/api/validation"
	"videotasks/events"
	"videotasks/models"
	"videotasks/storage"
)

const (
	defaultListMax = 10
	timeLayout     = time.RFC3339
)

// StatusCache holds terminal task statuses keyed by owner and task id.
type StatusCache interface {
	Get(ctx context.Context, ownerID, taskID int64) (models.TaskStatus, error)
	Set(ctx context.Context, ownerID, taskID int64, status models.TaskStatus) error
	Delete(ctx context.Context, ownerID, taskID int64) error
}

type TaskServiceConfig struct {
	Bucket         string
	BackendURL     string
	MaxFileSize    int64
	StorageTimeout time.Duration
	PublishTimeout time.Duration
}

type TaskService struct {
	repo      repository.Repository
	cache     StatusCache
	store     storage.Store
	publisher kafka.Publisher
	cfg       TaskServiceConfig
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewTaskService wires the create/publish half of the dispatcher. cache may
// be nil.
func NewTaskService(
	repo repository.Repository,
	cache StatusCache,
	store storage.Store,
	publisher kafka.Publisher,
	cfg TaskServiceConfig,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		repo:      repo,
		cache:     cache,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateTask stores the upload, commits the pending task and its source
// video, publishes a process_video event and only then marks the task
// uploaded. If the publish fails the task is left pending and the error is
// returned.
func (s *TaskService) CreateTask(ctx context.Context, req *dto.CreateTaskRequest, body io.Reader) (*dto.CreateTaskResponse, error) {
	user, err := s.repo.GetUserByID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	filename := validation.SanitizeFilename(req.Filename)
	if _, err := validation.VideoExtension(filename); err != nil {
		return nil, err
	}
	if err := validation.ValidateSize(req.Size, s.cfg.MaxFileSize); err != nil {
		return nil, err
	}

	taskUUID := s.newID()
	key := taskUUID + "/" + filename

	if err := s.put(ctx, key, body); err != nil {
		return nil, err
	}
	s.logger.Info("Video stored", zap.String("task_id", taskUUID), zap.String("key", key))

	video := &models.Video{
		UserID:     user.ID,
		Title:      models.VideoTitle(user.Username, s.now()),
		Filename:   filename,
		StorageKey: key,
	}
	task := &models.Task{
		TaskID: taskUUID,
		UserID: user.ID,
	}
	if err := s.repo.CreateTaskWithVideo(ctx, task, video); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.logger.Info("Task created", zap.Int64("id", task.ID), zap.String("task_id", task.TaskID))

	receipt, err := s.publish(ctx, events.ProcessVideo{VideoID: video.ID, TaskID: task.ID})
	if err != nil {
		s.logger.Error("Failed to publish task event, task left pending",
			zap.Int64("id", task.ID),
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("Task event published",
		zap.Int64("id", task.ID),
		zap.Int32("partition", receipt.Partition),
		zap.Int64("offset", receipt.Offset),
	)

	if err := s.repo.MarkUploaded(ctx, task.ID); err != nil {
		// The worker treats pending as dispatchable, so the event is still
		// processed. A rejected transition means it already finished.
		if errors.Is(err, repository.ErrTransitionRejected) {
			s.logger.Info("Task already advanced past pending", zap.Int64("id", task.ID))
		} else {
			s.logger.Warn("Failed to mark task uploaded", zap.Int64("id", task.ID), zap.Error(err))
		}
	}

	return &dto.CreateTaskResponse{
		ID:      task.ID,
		TaskID:  task.TaskID,
		Message: "Tarea creada exitosamente",
	}, nil
}

func (s *TaskService) ListTasks(ctx context.Context, ownerID int64, params dto.ListParams) ([]dto.TaskSummary, error) {
	if _, err := s.repo.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasks(ctx, ownerID, listMax(params.Max), params.Desc)
	if err != nil {
		return nil, err
	}

	out := make([]dto.TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, dto.TaskSummary{
			ID:               task.ID,
			TaskID:           task.TaskID,
			UserID:           task.UserID,
			OriginalVideoID:  task.OriginalVideoID,
			ProcessedVideoID: task.ProcessedVideoID,
			Status:           string(task.Status),
			CreatedAt:        task.CreatedAt.UTC().Format(timeLayout),
			UpdatedAt:        task.UpdatedAt.UTC().Format(timeLayout),
			IsActive:         task.IsActive,
		})
	}
	return out, nil
}

func (s *TaskService) GetTask(ctx context.Context, ownerID, id int64) (*dto.TaskDetail, error) {
	if _, err := s.repo.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	return &dto.TaskDetail{
		ID:             task.ID,
		TaskID:         task.TaskID,
		UserID:         task.UserID,
		OriginalVideo:  s.taskVideo(task.OriginalVideo),
		ProcessedVideo: s.taskVideo(task.ProcessedVideo),
		Status:         string(task.Status),
		CreatedAt:      task.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:      task.UpdatedAt.UTC().Format(timeLayout),
		IsActive:       task.IsActive,
	}, nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, ownerID, id int64) (*dto.TaskStatusResponse, error) {
	if s.cache != nil {
		if status, err := s.cache.Get(ctx, ownerID, id); err == nil {
			return &dto.TaskStatusResponse{ID: id, Status: string(status)}, nil
		}
	}

	task, err := s.repo.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ownerID, id, task.Status); err != nil {
			s.logger.Warn("Failed to cache task status", zap.Int64("id", id), zap.Error(err))
		}
	}

	return &dto.TaskStatusResponse{ID: task.ID, Status: string(task.Status)}, nil
}

// DeleteTask soft deletes a processed task. Tasks in any other status are
// kept so a retry is never orphaned.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id int64) (*dto.DeleteTaskResponse, error) {
	if _, err := s.repo.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !task.Status.Deletable() {
		return nil, ErrTaskNotDeletable
	}

	deleted, err := s.repo.DeactivateTask(ctx, task.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTransitionRejected) {
			return nil, ErrTaskNotDeletable
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, ownerID, id); err != nil {
			s.logger.Warn("Failed to evict task status", zap.Int64("id", id), zap.Error(err))
		}
	}

	return &dto.DeleteTaskResponse{
		Message:  "Tarea eliminada exitosamente",
		ID:       deleted.ID,
		TaskID:   deleted.TaskID,
		IsActive: deleted.IsActive,
	}, nil
}

func (s *TaskService) put(ctx context.Context, key string, body io.Reader) error {
	if s.cfg.StorageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StorageTimeout)
		defer cancel()
	}

	_, err := s.store.Put(ctx, s.cfg.Bucket, key, body)
	return err
}

func (s *TaskService) publish(ctx context.Context, ev events.Event) (kafka.Receipt, error) {
	if s.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PublishTimeout)
		defer cancel()
	}

	return s.publisher.Publish(ctx, ev)
}

func (s *TaskService) taskVideo(v *models.Video) *dto.TaskVideo {
	if v == nil {
		return nil
	}
	return &dto.TaskVideo{
		Title:    v.Title,
		UserID:   v.UserID,
		Filename: v.Filename,
		URL:      downloadURL(s.cfg.BackendURL, v.ID),
		Score:    v.Score,
	}
}

func downloadURL(backendURL string, videoID int64) string {
	return fmt.Sprintf("%s/api/videos/download/%d", backendURL, videoID)
}

func listMax(n int) int {
	if n <= 0 {
		return defaultListMax
	}
	return n
}
