package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"videotasks/events"
	"videotasks/models"
	"videotasks/storage"
	"videotasks/worker/converter"
	"videotasks/worker/lease"
	"videotasks/worker/metrics"
	"videotasks/worker/repository"
)

// ErrPoisonMessage marks events that reference rows that do not exist.
// They can never succeed and are dropped.
var ErrPoisonMessage = errors.New("poison message")

var errTaskSettled = errors.New("task already settled")

type Transformer interface {
	Convert(ctx context.Context, inputPath, outputPath string) (converter.Plan, error)
}

type StatusCache interface {
	Set(ctx context.Context, ownerID, taskID int64, status models.TaskStatus) error
}

type ProcessorConfig struct {
	Bucket         string
	ScratchDir     string
	LeaseTTL       time.Duration
	StorageTimeout time.Duration
}

type Processor struct {
	repo      repository.Repository
	store     storage.Store
	converter Transformer
	locker    lease.Locker
	cache     StatusCache
	metrics   *metrics.Pipeline
	cfg       ProcessorConfig
	logger    *zap.Logger

	now func() time.Time
}

// NewProcessor builds the transform pipeline. cache may be nil.
func NewProcessor(
	repo repository.Repository,
	store storage.Store,
	conv Transformer,
	locker lease.Locker,
	cache StatusCache,
	m *metrics.Pipeline,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		repo:      repo,
		store:     store,
		converter: conv,
		locker:    locker,
		cache:     cache,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs the pipeline for one event. Transform failures are recorded
// as the failure status and not returned. Returned errors are poison
// messages or infrastructure errors while reading or recording state.
func (p *Processor) Process(ctx context.Context, ev events.ProcessVideo) error {
	logger := p.logger.With(zap.Int64("task", ev.TaskID), zap.Int64("video_id", ev.VideoID))
	logger.Info("Processing video")

	video, err := p.repo.GetVideo(ctx, ev.VideoID)
	if err != nil {
		return p.lookupError(ctx, err, repository.ErrVideoNotFound, "video", ev.VideoID)
	}
	task, err := p.repo.GetTask(ctx, ev.TaskID)
	if err != nil {
		return p.lookupError(ctx, err, repository.ErrTaskNotFound, "task", ev.TaskID)
	}
	if task.OriginalVideoID != video.ID {
		p.metrics.Record(ctx, metrics.OutcomePoison, 0)
		return fmt.Errorf("%w: video %d is not the source of task %d", ErrPoisonMessage, video.ID, task.ID)
	}
	logger = logger.With(zap.String("task_id", task.TaskID))

	if !task.Status.Dispatchable() {
		logger.Info("Task already finished, skipping", zap.String("status", string(task.Status)))
		p.metrics.Record(ctx, metrics.OutcomeSkipped, 0)
		return nil
	}

	owner, err := p.repo.GetUser(ctx, task.UserID)
	if err != nil {
		return p.lookupError(ctx, err, repository.ErrUserNotFound, "user", task.UserID)
	}

	release, ok, err := p.locker.Acquire(ctx, task.TaskID, p.cfg.LeaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("Task is being processed elsewhere, skipping")
		p.metrics.Record(ctx, metrics.OutcomeSkipped, 0)
		return nil
	}
	defer release()

	// Another consumer may have finished the task between the first read
	// and the lease.
	if settled, err := p.settled(ctx, task.ID); err != nil {
		return err
	} else if settled {
		logger.Info("Task finished while waiting for the lease, skipping")
		p.metrics.Record(ctx, metrics.OutcomeSkipped, 0)
		return nil
	}

	start := time.Now()
	derived, err := p.transform(ctx, logger, task, video, owner)
	elapsed := time.Since(start)
	if errors.Is(err, errTaskSettled) {
		logger.Info("Task finished by another consumer, discarding output")
		p.metrics.Record(ctx, metrics.OutcomeSkipped, elapsed)
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Processing interrupted, task left unchanged", zap.Error(err))
			return ctx.Err()
		}
		logger.Error("Error processing video", zap.Error(err))
		return p.fail(ctx, logger, task, elapsed)
	}

	if err := p.repo.CompleteTask(ctx, task.ID, derived); err != nil {
		if errors.Is(err, repository.ErrTransitionRejected) {
			logger.Info("Task finished by another consumer, discarding result")
			p.metrics.Record(ctx, metrics.OutcomeSkipped, elapsed)
			return nil
		}
		return fmt.Errorf("record processed task %d: %w", task.ID, err)
	}

	p.setStatus(ctx, logger, task, models.StatusProcessed)
	p.metrics.Record(ctx, metrics.OutcomeProcessed, elapsed)
	logger.Info("Video processed",
		zap.Int64("processed_video_id", derived.ID),
		zap.String("key", derived.StorageKey),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (p *Processor) transform(ctx context.Context, logger *zap.Logger, task *models.Task, video *models.Video, owner *models.User) (*models.Video, error) {
	workDir, err := os.MkdirTemp(p.cfg.ScratchDir, "task-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	logger.Info("Downloading video", zap.String("key", video.StorageKey))
	source, err := p.download(ctx, video.StorageKey)
	if err != nil {
		return nil, err
	}
	defer os.Remove(source)

	filename := "processed_" + video.Filename
	output := filepath.Join(workDir, filename)
	if _, err := p.converter.Convert(ctx, source, output); err != nil {
		return nil, err
	}

	// The lease may have expired during a long conversion. The derived key
	// is fixed per task, so never overwrite the blob of a finished task.
	if settled, err := p.settled(ctx, task.ID); err != nil {
		return nil, err
	} else if settled {
		return nil, errTaskSettled
	}

	key := task.TaskID + "/" + filename
	if err := p.upload(ctx, key, output); err != nil {
		return nil, err
	}
	logger.Info("Processed video stored", zap.String("key", key))

	return &models.Video{
		UserID:     owner.ID,
		Title:      models.VideoTitle(owner.Username, p.now()),
		Filename:   filename,
		StorageKey: key,
	}, nil
}

// settled reports whether the task has left pending/uploaded.
func (p *Processor) settled(ctx context.Context, taskID int64) (bool, error) {
	task, err := p.repo.GetTask(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("reload task %d: %w", taskID, err)
	}
	return !task.Status.Dispatchable(), nil
}

func (p *Processor) download(ctx context.Context, key string) (string, error) {
	ctx, cancel := p.storageContext(ctx)
	defer cancel()
	return p.store.GetToFile(ctx, p.cfg.Bucket, key)
}

func (p *Processor) upload(ctx context.Context, key, path string) error {
	ctx, cancel := p.storageContext(ctx)
	defer cancel()
	_, err := p.store.PutFile(ctx, p.cfg.Bucket, key, path)
	return err
}

func (p *Processor) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StorageTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.StorageTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Processor) fail(ctx context.Context, logger *zap.Logger, task *models.Task, elapsed time.Duration) error {
	if err := p.repo.FailTask(ctx, task.ID); err != nil {
		if errors.Is(err, repository.ErrTransitionRejected) {
			logger.Info("Task finished by another consumer, not marking failure")
			p.metrics.Record(ctx, metrics.OutcomeSkipped, elapsed)
			return nil
		}
		return fmt.Errorf("record failed task %d: %w", task.ID, err)
	}

	p.setStatus(ctx, logger, task, models.StatusFailure)
	p.metrics.Record(ctx, metrics.OutcomeFailure, elapsed)
	return nil
}

func (p *Processor) setStatus(ctx context.Context, logger *zap.Logger, task *models.Task, status models.TaskStatus) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, task.UserID, task.ID, status); err != nil {
		logger.Warn("Failed to cache task status", zap.Error(err))
	}
}

func (p *Processor) lookupError(ctx context.Context, err, notFound error, kind string, id int64) error {
	if errors.Is(err, notFound) {
		p.metrics.Record(ctx, metrics.OutcomePoison, 0)
		return fmt.Errorf("%w: %s %d not found", ErrPoisonMessage, kind, id)
	}
	return err
}
