package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusUploaded  TaskStatus = "uploaded"
	StatusProcessed TaskStatus = "processed"
	StatusFailure   TaskStatus = "failure"
)

// transitions lists the allowed forward moves. A consumer can observe the
// process_video event before the API has marked the task uploaded, so
// pending may jump straight to a terminal state.
var transitions = map[TaskStatus][]TaskStatus{
	StatusPending:  {StatusUploaded, StatusProcessed, StatusFailure},
	StatusUploaded: {StatusProcessed, StatusFailure},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUploaded, StatusProcessed, StatusFailure:
		return true
	default:
		return false
	}
}

func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TaskStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailure
}

// Dispatchable reports whether the transform pipeline may run for a task in
// this status.
func (s TaskStatus) Dispatchable() bool {
	return s == StatusPending || s == StatusUploaded
}

// Deletable reports whether a task in this status may be soft deleted.
func (s TaskStatus) Deletable() bool {
	return s == StatusProcessed
}

type Task struct {
	ID               int64
	TaskID           string
	UserID           int64
	OriginalVideoID  int64
	ProcessedVideoID *int64
	Status           TaskStatus
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time

	OriginalVideo  *Video
	ProcessedVideo *Video
}
