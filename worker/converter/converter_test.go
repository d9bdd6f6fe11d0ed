package converter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const probeJSON = `{
	"streams": [
		{"codec_type": "video", "width": 1280, "height": 720, "duration": "41.2"},
		{"codec_type": "audio", "duration": "41.0"}
	],
	"format": {"duration": "41.25"}
}`

func createTestLogo(t *testing.T, width, height int, path string) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test logo: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode test logo: %v", err)
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.LogoPath = filepath.Join(dir, "logo.png")
	opts.ScratchDir = dir
	createTestLogo(t, 16, 16, opts.LogoPath)
	return opts
}

func TestParseProbe(t *testing.T) {
	p, err := ParseProbe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("ParseProbe failed: %v", err)
	}
	if p.Width != 1280 || p.Height != 720 {
		t.Errorf("Unexpected size %dx%d", p.Width, p.Height)
	}
	if p.Duration != 41.25 {
		t.Errorf("Expected container duration 41.25, got %v", p.Duration)
	}
	if !p.HasAudio {
		t.Error("Expected audio to be detected")
	}
}

func TestParseProbe_StreamDurationFallback(t *testing.T) {
	p, err := ParseProbe([]byte(`{"streams":[{"codec_type":"video","width":640,"height":480,"duration":"5.5"}],"format":{}}`))
	if err != nil {
		t.Fatalf("ParseProbe failed: %v", err)
	}
	if p.Duration != 5.5 || p.HasAudio {
		t.Errorf("Unexpected probe %+v", p)
	}
}

func TestParseProbe_Errors(t *testing.T) {
	if _, err := ParseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`)); !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("Expected ErrNoVideoStream, got %v", err)
	}
	if _, err := ParseProbe([]byte(`not json`)); err == nil {
		t.Error("Expected decode error")
	}
	if _, err := ParseProbe([]byte(`{"streams":[{"codec_type":"video","width":2,"height":2}],"format":{}}`)); err == nil {
		t.Error("Expected unknown duration error")
	}
}

func TestNewPlan(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name       string
		probe      Probe
		wantWidth  int
		wantHeight int
		wantClip   float64
	}{
		{"widescreen long", Probe{Width: 1920, Height: 1080, Duration: 60}, 1920, 1080, 20},
		{"four by three short", Probe{Width: 640, Height: 480, Duration: 7.5}, 480, 360, 7.5},
		{"portrait", Probe{Width: 1080, Height: 1920, Duration: 20}, 340, 606, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan(tt.probe, opts)
			if err != nil {
				t.Fatalf("NewPlan failed: %v", err)
			}
			if plan.Width != tt.wantWidth || plan.Height != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, plan.Width, plan.Height)
			}
			if plan.ClipDuration != tt.wantClip {
				t.Errorf("Expected clip %v, got %v", tt.wantClip, plan.ClipDuration)
			}
			if plan.CardDuration != 3 || plan.FPS != 24 {
				t.Errorf("Unexpected card/fps %v/%d", plan.CardDuration, plan.FPS)
			}
			if plan.Width%2 != 0 || plan.Height%2 != 0 {
				t.Errorf("Expected even dimensions, got %dx%d", plan.Width, plan.Height)
			}
		})
	}
}

func TestNewPlan_ShortClipClampsFade(t *testing.T) {
	plan, err := NewPlan(Probe{Width: 320, Height: 240, Duration: 0.2}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	if plan.ClipFadeOut != 0.2 {
		t.Errorf("Expected fade clamped to clip length, got %v", plan.ClipFadeOut)
	}
}

func TestPlan_FilterGraphWithoutAudio(t *testing.T) {
	plan, _ := NewPlan(Probe{Width: 1920, Height: 1080, Duration: 30}, DefaultOptions())
	graph := plan.FilterGraph()

	for _, want := range []string{
		"trim=duration=20.000",
		"scale=1920:1080",
		"fps=24",
		"fade=t=out:st=19.500:d=0.500",
		"fade=t=in:st=0:d=1.000",
		"[v0][v1]concat=n=2:v=1:a=0[v]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("Expected graph to contain %q, got %s", want, graph)
		}
	}
	if strings.Contains(graph, "[0:a]") {
		t.Error("Expected no audio chain")
	}
}

func TestPlan_ArgsWithAudio(t *testing.T) {
	plan, _ := NewPlan(Probe{Width: 1280, Height: 720, Duration: 10, HasAudio: true}, DefaultOptions())
	args := strings.Join(plan.Args("in.mp4", "card.png", "out.mp4"), " ")

	for _, want := range []string{
		"-t 10.000 -i in.mp4",
		"-loop 1 -framerate 24 -t 3.000 -i card.png",
		"anullsrc=channel_layout=stereo:sample_rate=44100",
		"concat=n=2:v=1:a=1[v][a]",
		"-map [v] -map [a] -c:a aac",
		"-c:v libx264",
		"-pix_fmt yuv420p",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "out.mp4") {
		t.Errorf("Expected output path last, got %s", args)
	}
}

func TestConverter_RenderTitleCard(t *testing.T) {
	opts := testOptions(t)
	c := NewConverter(opts, zaptest.NewLogger(t))
	dst := filepath.Join(t.TempDir(), "card.png")

	if err := c.RenderTitleCard(64, 36, dst); err != nil {
		t.Fatalf("RenderTitleCard failed: %v", err)
	}

	file, err := os.Open(dst)
	if err != nil {
		t.Fatalf("Failed to open card: %v", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode card: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Fatalf("Expected 64x36, got %dx%d", b.Dx(), b.Dy())
	}

	if r, g, b, _ := img.At(0, 0).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("Expected black corner, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if r, g, _, _ := img.At(32, 18).RGBA(); r>>8 != 255 || g != 0 {
		t.Errorf("Expected logo at center, got r=%d g=%d", r>>8, g>>8)
	}
}

func TestConverter_RenderTitleCard_ShrinksLargeLogo(t *testing.T) {
	opts := testOptions(t)
	createTestLogo(t, 200, 200, opts.LogoPath)
	c := NewConverter(opts, zaptest.NewLogger(t))
	dst := filepath.Join(t.TempDir(), "card.png")

	if err := c.RenderTitleCard(32, 18, dst); err != nil {
		t.Fatalf("RenderTitleCard failed: %v", err)
	}

	file, _ := os.Open(dst)
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode card: %v", err)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0 {
		t.Error("Expected the shrunk logo to leave black borders")
	}
}

func TestConverter_RenderTitleCard_MissingLogo(t *testing.T) {
	opts := DefaultOptions()
	opts.LogoPath = filepath.Join(t.TempDir(), "missing.png")
	c := NewConverter(opts, zaptest.NewLogger(t))

	if err := c.RenderTitleCard(32, 18, filepath.Join(t.TempDir(), "card.png")); err == nil {
		t.Error("Expected error for missing logo")
	}
}

func TestConverter_Convert_RunsProbeThenFFmpeg(t *testing.T) {
	opts := testOptions(t)
	c := NewConverter(opts, zaptest.NewLogger(t))

	var calls []string
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name)
		switch name {
		case opts.FFprobePath:
			return []byte(probeJSON), nil
		case opts.FFmpegPath:
			cardPath := args[indexOf(args, "card.png")]
			if _, err := os.Stat(cardPath); err != nil {
				t.Errorf("Expected card to exist during render: %v", err)
			}
			return nil, os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
		}
		return nil, errors.New("unexpected tool")
	}

	out := filepath.Join(t.TempDir(), "processed_clip.mp4")
	plan, err := c.Convert(context.Background(), "clip.mp4", out)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if strings.Join(calls, ",") != opts.FFprobePath+","+opts.FFmpegPath {
		t.Errorf("Unexpected call order %v", calls)
	}
	if plan.Height != 720 || plan.ClipDuration != 20 || !plan.HasAudio {
		t.Errorf("Unexpected plan %+v", plan)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Expected output file: %v", err)
	}
}

func TestConverter_Convert_FailureRemovesOutput(t *testing.T) {
	opts := testOptions(t)
	c := NewConverter(opts, zaptest.NewLogger(t))
	out := filepath.Join(t.TempDir(), "processed_clip.mp4")

	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == opts.FFprobePath {
			return []byte(probeJSON), nil
		}
		os.WriteFile(out, []byte("partial"), 0o644)
		return nil, errors.New("encoder crashed")
	}

	if _, err := c.Convert(context.Background(), "clip.mp4", out); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Expected partial output to be removed")
	}
}

func TestConverter_Convert_FFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("Skipping test: ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("Skipping test: ffprobe not installed")
	}

	opts := testOptions(t)
	opts.CardDuration = time.Second
	c := NewConverter(opts, zaptest.NewLogger(t))

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	gen := exec.Command("ffmpeg", "-y", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=24:duration=2",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("Skipping test: cannot generate source video: %v %s", err, out)
	}

	dst := filepath.Join(dir, "processed_clip.mp4")
	if _, err := c.Convert(context.Background(), src, dst); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	probe, err := c.Probe(context.Background(), dst)
	if err != nil {
		t.Fatalf("Probe of output failed: %v", err)
	}
	if probe.Width != 240 || probe.Height != 180 {
		t.Errorf("Expected 240x180, got %dx%d", probe.Width, probe.Height)
	}
	if math.Abs(probe.Duration-3) > 0.5 {
		t.Errorf("Expected about 3s of output, got %v", probe.Duration)
	}
	if !probe.HasAudio {
		t.Error("Expected audio in output")
	}
}

func indexOf(args []string, suffix string) int {
	for i, a := range args {
		if strings.HasSuffix(a, suffix) {
			return i
		}
	}
	return -1
}
