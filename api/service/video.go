package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"videotasks/api/dto"
	"videotasks/api/repository"
	"videotasks/storage"
)

type VideoService struct {
	repo           repository.Repository
	store          storage.Store
	bucket         string
	backendURL     string
	storageTimeout time.Duration
	logger         *zap.Logger
}

func NewVideoService(repo repository.Repository, store storage.Store, cfg TaskServiceConfig, logger *zap.Logger) *VideoService {
	return &VideoService{
		repo:           repo,
		store:          store,
		bucket:         cfg.Bucket,
		backendURL:     cfg.BackendURL,
		storageTimeout: cfg.StorageTimeout,
		logger:         logger,
	}
}

// ListVideos returns the derived videos of every active processed task.
func (s *VideoService) ListVideos(ctx context.Context, ownerID int64, params dto.ListParams) ([]dto.VideoResponse, error) {
	if _, err := s.repo.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	videos, err := s.repo.ListProcessedVideos(ctx, listMax(params.Max), params.Desc)
	if err != nil {
		return nil, err
	}

	out := make([]dto.VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, dto.VideoResponse{
			ID:       v.ID,
			Title:    v.Title,
			UserID:   v.UserID,
			Filename: v.Filename,
			URL:      downloadURL(s.backendURL, v.ID),
			Score:    v.Score,
		})
	}
	return out, nil
}

func (s *VideoService) Download(ctx context.Context, videoID int64) ([]byte, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if s.storageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storageTimeout)
		defer cancel()
	}

	data, err := s.store.Get(ctx, s.bucket, video.StorageKey)
	if err != nil {
		s.logger.Error("Failed to download video", zap.Int64("video_id", videoID), zap.Error(err))
		return nil, err
	}
	return data, nil
}
