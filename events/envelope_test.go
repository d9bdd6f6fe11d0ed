package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncode_ProcessVideoWireFormat(t *testing.T) {
	raw, err := Encode(ProcessVideo{VideoID: 7, TaskID: 3})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Failed to unmarshal envelope: %v", err)
	}
	if got["event_type"] != "process_video" {
		t.Errorf("Expected event_type process_video, got %v", got["event_type"])
	}
	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("Expected data object, got %T", got["data"])
	}
	if data["video_id"] != float64(7) || data["task_id"] != float64(3) {
		t.Errorf("Unexpected data %v", data)
	}
}

func TestEncode_RejectsInvalidPayload(t *testing.T) {
	_, err := Encode(ProcessVideo{VideoID: 0, TaskID: 1})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	_, err = Encode(nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected validation error for nil event, got %v", err)
	}
}

func TestDecode_ProcessVideo(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"process_video","data":{"video_id":12,"task_id":4,"extra":true}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	pv, ok := ev.(ProcessVideo)
	if !ok {
		t.Fatalf("Expected ProcessVideo, got %T", ev)
	}
	if pv.VideoID != 12 || pv.TaskID != 4 {
		t.Errorf("Unexpected payload %+v", pv)
	}
}

func TestDecode_Dummy(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"dummy_event","data":{"hello":"world"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	d, ok := ev.(Dummy)
	if !ok {
		t.Fatalf("Expected Dummy, got %T", ev)
	}
	if d.Data["hello"] != "world" {
		t.Errorf("Unexpected data %v", d.Data)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `not json`, ErrMalformedEnvelope},
		{"unknown type", `{"event_type":"resize_image","data":{}}`, ErrUnknownEventType},
		{"data not object", `{"event_type":"process_video","data":[1,2]}`, ErrMalformedEnvelope},
		{"missing data", `{"event_type":"process_video"}`, ErrMalformedEnvelope},
		{"missing task id", `{"event_type":"process_video","data":{"video_id":1}}`, ErrMalformedEnvelope},
		{"string id", `{"event_type":"process_video","data":{"video_id":"1","task_id":2}}`, ErrMalformedEnvelope},
		{"negative id", `{"event_type":"process_video","data":{"video_id":-1,"task_id":2}}`, ErrMalformedEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected error to wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestRoundTripThroughEncodeDecode(t *testing.T) {
	for _, ev := range []Event{ProcessVideo{VideoID: 1, TaskID: 2}, Dummy{}} {
		raw, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode %s failed: %v", ev.Kind(), err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode %s failed: %v", ev.Kind(), err)
		}
		if got.Kind() != ev.Kind() {
			t.Errorf("Expected kind %s, got %s", ev.Kind(), got.Kind())
		}
	}
}
