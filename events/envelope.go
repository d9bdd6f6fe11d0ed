// Package events defines the typed envelopes carried over the event channel.
//
// The wire format is a JSON object {"event_type": string, "data": object}.
// Event is a closed set: only types declared in this package implement it,
// so consumers switch over the concrete types exhaustively.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindDummy        Kind = "dummy_event"
	KindProcessVideo Kind = "process_video"
)

type Event interface {
	Kind() Kind
	validate() error
}

// ProcessVideo asks the worker to run the transform pipeline for a task.
// Both ids are surrogate database ids.
type ProcessVideo struct {
	VideoID int64 `json:"video_id"`
	TaskID  int64 `json:"task_id"`
}

func (ProcessVideo) Kind() Kind { return KindProcessVideo }

func (e ProcessVideo) validate() error {
	if e.VideoID <= 0 {
		return fmt.Errorf("%w: video_id must be positive", ErrMalformedEnvelope)
	}
	if e.TaskID <= 0 {
		return fmt.Errorf("%w: task_id must be positive", ErrMalformedEnvelope)
	}
	return nil
}

// Dummy is a connectivity probe; consumers only log it.
type Dummy struct {
	Data map[string]any
}

func (Dummy) Kind() Kind { return KindDummy }

func (Dummy) validate() error { return nil }

type Envelope struct {
	EventType Kind            `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

func Encode(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", ErrValidation)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	var payload any = e
	if d, ok := e.(Dummy); ok {
		payload = d.Data
		if d.Data == nil {
			payload = map[string]any{}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", e.Kind(), err)
	}

	return json.Marshal(Envelope{EventType: e.Kind(), Data: data})
}

func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: data must be an object", ErrMalformedEnvelope)
	}

	switch env.EventType {
	case KindProcessVideo:
		var fields struct {
			VideoID *int64 `json:"video_id"`
			TaskID  *int64 `json:"task_id"`
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if fields.VideoID == nil || fields.TaskID == nil {
			return nil, fmt.Errorf("%w: video_id and task_id are required", ErrMalformedEnvelope)
		}
		e := ProcessVideo{VideoID: *fields.VideoID, TaskID: *fields.TaskID}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return e, nil
	case KindDummy:
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return Dummy{Data: fields}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}
}
