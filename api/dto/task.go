package dto

type CreateTaskRequest struct {
	OwnerID  int64
	Filename string
	Size     int64
}

type CreateTaskResponse struct {
	ID      int64  `json:"id"`
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type TaskSummary struct {
	ID               int64  `json:"id"`
	TaskID           string `json:"task_id"`
	UserID           int64  `json:"user_id"`
	OriginalVideoID  int64  `json:"original_video_id"`
	ProcessedVideoID *int64 `json:"processed_video_id"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	IsActive         bool   `json:"is_active"`
}

type TaskVideo struct {
	Title    string   `json:"title"`
	UserID   int64    `json:"user_id"`
	Filename string   `json:"filename"`
	URL      string   `json:"url"`
	Score    *float64 `json:"score"`
}

type TaskDetail struct {
	ID             int64      `json:"id"`
	TaskID         string     `json:"task_id"`
	UserID         int64      `json:"user_id"`
	OriginalVideo  *TaskVideo `json:"original_video"`
	ProcessedVideo *TaskVideo `json:"processed_video"`
	Status         string     `json:"status"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
	IsActive       bool       `json:"is_active"`
}

type TaskStatusResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type DeleteTaskResponse struct {
	Message  string `json:"message"`
	ID       int64  `json:"id"`
	TaskID   string `json:"task_id"`
	IsActive bool   `json:"is_active"`
}

type ListParams struct {
	Max  int
	Desc bool
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}
