package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"videotasks/api/database"
	"videotasks/models"
)

const (
	userColumns  = `id, username, email, password, is_active, created_at, updated_at`
	taskColumns  = `id, task_id, user_id, original_video_id, processed_video_id, status, is_active, created_at, updated_at`
	videoColumns = `id, user_id, title, filename, url, score, is_active, created_at, updated_at`

	uniqueViolation = "23505"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, is_active, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, user.Username, user.Email, user.Password).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PostgresRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active`
	return scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *PostgresRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) CreateTaskWithVideo(ctx context.Context, task *models.Task, video *models.Video) error {
	tx, err := r.db.Pool.Begin(ctx)
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
		return fmt.Errorf("insert video: %w", err)
	}

	task.OriginalVideoID = video.ID
	task.Status = models.StatusPending

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (task_id, user_id, original_video_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`, task.TaskID, task.UserID, task.OriginalVideoID, task.Status,
	).Scan(&task.ID, &task.IsActive, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	task.OriginalVideo = video
	return nil
}

func (r *PostgresRepo) GetTask(ctx context.Context, ownerID, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2 AND is_active`

	task, err := scanTask(r.db.Pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, err
	}
	if err := r.loadVideos(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *PostgresRepo) GetTaskByTaskID(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`
	return scanTask(r.db.Pool.QueryRow(ctx, query, taskID))
}

func (r *PostgresRepo) ListTasks(ctx context.Context, ownerID int64, limit int, desc bool) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND is_active ORDER BY id ` + direction(desc) + ` LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *PostgresRepo) MarkUploaded(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = GREATEST(updated_at, NOW())
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Pool.Exec(ctx, query, models.StatusUploaded, id, models.StatusPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransitionRejected
	}
	return nil
}

func (r *PostgresRepo) DeactivateTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET is_active = FALSE, updated_at = GREATEST(updated_at, NOW())
		WHERE id = $1 AND status = $2
		RETURNING ` + taskColumns

	task, err := scanTask(r.db.Pool.QueryRow(ctx, query, id, models.StatusProcessed))
	if errors.Is(err, ErrTaskNotFound) {
		return nil, ErrTransitionRejected
	}
	return task, err
}

func (r *PostgresRepo) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return scanVideo(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) ListProcessedVideos(ctx context.Context, limit int, desc bool) ([]models.Video, error) {
	query := `
		SELECT v.id, v.user_id, v.title, v.filename, v.url, v.score, v.is_active, v.created_at, v.updated_at
		FROM tasks t
		JOIN videos v ON v.id = t.processed_video_id
		WHERE t.is_active AND t.status = $1
		ORDER BY t.id ` + direction(desc) + `
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, models.StatusProcessed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

func (r *PostgresRepo) loadVideos(ctx context.Context, task *models.Task) error {
	original, err := r.GetVideo(ctx, task.OriginalVideoID)
	if err != nil {
		return fmt.Errorf("load original video: %w", err)
	}
	task.OriginalVideo = original

	if task.ProcessedVideoID != nil {
		processed, err := r.GetVideo(ctx, *task.ProcessedVideoID)
		if err != nil {
			return fmt.Errorf("load processed video: %w", err)
		}
		task.ProcessedVideo = processed
	}
	return nil
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.TaskID,
		&task.UserID,
		&task.OriginalVideoID,
		&task.ProcessedVideoID,
		&task.Status,
		&task.IsActive,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var video models.Video
	err := row.Scan(
		&video.ID,
		&video.UserID,
		&video.Title,
		&video.Filename,
		&video.StorageKey,
		&video.Score,
		&video.IsActive,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &video, nil
}
