package converter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	audioSampleRate = 44100
	audioLayout     = "stereo"
)

// Plan is the resolved edit for one source: the trimmed and rescaled clip
// followed by the title card.
type Plan struct {
	Width        int
	Height       int
	ClipDuration float64
	CardDuration float64
	FPS          int
	ClipFadeOut  float64
	CardFadeIn   float64
	HasAudio     bool
}

// NewPlan trims the source to opts.MaxDuration and rescales it so the
// height becomes 9/16 of the source width, keeping the aspect ratio.
// Output dimensions are rounded down to even numbers for yuv420p.
func NewPlan(p Probe, opts Options) (Plan, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return Plan{}, ErrNoVideoStream
	}

	height := even(float64(p.Width) * 9 / 16)
	width := even(float64(p.Width) * float64(height) / float64(p.Height))

	clip := p.Duration
	if limit := opts.MaxDuration.Seconds(); limit > 0 && clip > limit {
		clip = limit
	}
	if clip <= 0 {
		return Plan{}, fmt.Errorf("clip duration must be positive, got %v", clip)
	}

	fadeOut := opts.ClipFadeOut.Seconds()
	if fadeOut > clip {
		fadeOut = clip
	}
	card := opts.CardDuration.Seconds()
	fadeIn := opts.CardFadeIn.Seconds()
	if fadeIn > card {
		fadeIn = card
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = 24
	}

	return Plan{
		Width:        width,
		Height:       height,
		ClipDuration: clip,
		CardDuration: card,
		FPS:          fps,
		ClipFadeOut:  fadeOut,
		CardFadeIn:   fadeIn,
		HasAudio:     p.HasAudio,
	}, nil
}

// Duration is the length of the rendered output.
func (p Plan) Duration() time.Duration {
	return time.Duration((p.ClipDuration + p.CardDuration) * float64(time.Second))
}

// FilterGraph builds the -filter_complex value. Input 0 is the source,
// input 1 the looped card image and, with audio, input 2 a silent track
// for the card.
func (p Plan) FilterGraph() string {
	size := fmt.Sprintf("%d:%d", p.Width, p.Height)
	fadeStart := p.ClipDuration - p.ClipFadeOut

	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]trim=duration=%s,setpts=PTS-STARTPTS,scale=%s,setsar=1,fps=%d,format=yuv420p", secs(p.ClipDuration), size, p.FPS)
	if p.ClipFadeOut > 0 {
		fmt.Fprintf(&b, ",fade=t=out:st=%s:d=%s", secs(fadeStart), secs(p.ClipFadeOut))
	}
	b.WriteString("[v0];")

	fmt.Fprintf(&b, "[1:v]scale=%s,setsar=1,fps=%d,format=yuv420p", size, p.FPS)
	if p.CardFadeIn > 0 {
		fmt.Fprintf(&b, ",fade=t=in:st=0:d=%s", secs(p.CardFadeIn))
	}
	b.WriteString("[v1];")

	if !p.HasAudio {
		b.WriteString("[v0][v1]concat=n=2:v=1:a=0[v]")
		return b.String()
	}

	format := fmt.Sprintf("aformat=sample_rates=%d:channel_layouts=%s", audioSampleRate, audioLayout)
	fmt.Fprintf(&b, "[0:a]atrim=duration=%s,asetpts=PTS-STARTPTS,%s", secs(p.ClipDuration), format)
	if p.ClipFadeOut > 0 {
		fmt.Fprintf(&b, ",afade=t=out:st=%s:d=%s", secs(fadeStart), secs(p.ClipFadeOut))
	}
	b.WriteString("[a0];")
	fmt.Fprintf(&b, "[2:a]atrim=duration=%s,%s[a1];", secs(p.CardDuration), format)
	b.WriteString("[v0][a0][v1][a1]concat=n=2:v=1:a=1[v][a]")
	return b.String()
}

// Args returns the full ffmpeg argument list.
func (p Plan) Args(inputPath, cardPath, outputPath string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-t", secs(p.ClipDuration), "-i", inputPath,
		"-loop", "1", "-framerate", strconv.Itoa(p.FPS), "-t", secs(p.CardDuration), "-i", cardPath,
	}
	if p.HasAudio {
		args = append(args,
			"-f", "lavfi", "-t", secs(p.CardDuration),
			"-i", fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", audioLayout, audioSampleRate),
		)
	}

	args = append(args, "-filter_complex", p.FilterGraph(), "-map", "[v]")
	if p.HasAudio {
		args = append(args, "-map", "[a]", "-c:a", "aac")
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(p.FPS),
		"-movflags", "+faststart",
		outputPath,
	)
	return args
}

func even(v float64) int {
	n := int(v) / 2 * 2
	if n < 2 {
		return 2
	}
	return n
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
