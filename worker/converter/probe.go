package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrNoVideoStream = errors.New("source has no video stream")

// Probe is the subset of ffprobe output the plan needs.
type Probe struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}
}

// ParseProbe reads `ffprobe -print_format json -show_streams -show_format`.
// The container duration wins over the stream duration when both exist.
func ParseProbe(data []byte) (Probe, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Probe{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var (
		p          Probe
		foundVideo bool
		streamDur  float64
	)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			p.Width, p.Height = s.Width, s.Height
			streamDur, _ = strconv.ParseFloat(s.Duration, 64)
		case "audio":
			p.HasAudio = true
		}
	}
	if !foundVideo || p.Width <= 0 || p.Height <= 0 {
		return Probe{}, ErrNoVideoStream
	}

	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		p.Duration = d
	} else {
		p.Duration = streamDur
	}
	if p.Duration <= 0 {
		return Probe{}, fmt.Errorf("source duration unknown")
	}
	return p, nil
}
