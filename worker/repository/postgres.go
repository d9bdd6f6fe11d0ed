package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videotasks/models"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrVideoNotFound      = errors.New("video not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTransitionRejected = errors.New("task status transition rejected")
)

type Repository interface {
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// CompleteTask inserts the derived video and moves the task to processed
	// in one transaction. It returns ErrTransitionRejected, inserting
	// nothing, when the task already left pending/uploaded.
	CompleteTask(ctx context.Context, taskID int64, video *models.Video) error
	FailTask(ctx context.Context, taskID int64) error
}

// guardDispatchable must match models.TaskStatus.Dispatchable, which holds
// exactly for the statuses that CanTransition to processed and failure.
const guardDispatchable = `status IN ('pending', 'uploaded')`

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	var v models.Video
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, title, filename, url, score, is_active, created_at, updated_at
		FROM videos WHERE id = $1
	`, id).Scan(&v.ID, &v.UserID, &v.Title, &v.Filename, &v.StorageKey, &v.Score, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return &v, nil
}

func (r *PostgresRepo) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	err := r.db.QueryRow(ctx, `
		SELECT id, task_id, user_id, original_video_id, processed_video_id, status, is_active, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.TaskID, &t.UserID, &t.OriginalVideoID, &t.ProcessedVideoID, &t.Status, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

func (r *PostgresRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, email, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (r *PostgresRepo) CompleteTask(ctx context.Context, taskID int64, video *models.Video) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO videos (user_id, title, filename, url, score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, updated_at
	`, video.UserID, video.Title, video.Filename, video.StorageKey, video.Score,
	).Scan(&video.ID, &video.IsActive, &video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert processed video: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = 'processed', processed_video_id = $1, updated_at = GREATEST(updated_at, NOW())
		WHERE id = $2 AND `+guardDispatchable,
		video.ID, taskID,
	)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransitionRejected
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepo) FailTask(ctx context.Context, taskID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks
		SET status = 'failure', updated_at = GREATEST(updated_at, NOW())
		WHERE id = $1 AND `+guardDispatchable,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("fail task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransitionRejected
	}
	return nil
}
