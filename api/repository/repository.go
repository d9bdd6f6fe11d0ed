package repository

import (
	"context"
	"errors"

	"videotasks/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrTaskNotFound       = errors.New("task not found")
	ErrVideoNotFound      = errors.New("video not found")
	ErrTransitionRejected = errors.New("task status transition rejected")
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)

	// CreateTaskWithVideo stores the source video and its pending task in
	// one transaction. Both are committed when it returns nil.
	CreateTaskWithVideo(ctx context.Context, task *models.Task, video *models.Video) error
	GetTask(ctx context.Context, ownerID, id int64) (*models.Task, error)
	GetTaskByTaskID(ctx context.Context, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID int64, limit int, desc bool) ([]models.Task, error)
	MarkUploaded(ctx context.Context, id int64) error
	DeactivateTask(ctx context.Context, id int64) (*models.Task, error)

	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	ListProcessedVideos(ctx context.Context, limit int, desc bool) ([]models.Video, error)
}
