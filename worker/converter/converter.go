package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

type Options struct {
	FFmpegPath   string
	FFprobePath  string
	LogoPath     string
	ScratchDir   string
	MaxDuration  time.Duration
	CardDuration time.Duration
	ClipFadeOut  time.Duration
	CardFadeIn   time.Duration
	FPS          int
}

func DefaultOptions() Options {
	return Options{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		LogoPath:     "statics/logo_256.png",
		MaxDuration:  20 * time.Second,
		CardDuration: 3 * time.Second,
		ClipFadeOut:  500 * time.Millisecond,
		CardFadeIn:   time.Second,
		FPS:          24,
	}
}

// runFunc executes an external tool and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Converter struct {
	opts   Options
	logger *zap.Logger
	run    runFunc
}

func NewConverter(opts Options, logger *zap.Logger) *Converter {
	return &Converter{
		opts:   opts,
		logger: logger,
		run:    execRun,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout := new(bytes.Buffer)
	errout := new(bytes.Buffer)
	cmd.Stdout = stdout
	cmd.Stderr = errout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("exec %s failed: %w, stderr: %s", filepath.Base(name), err, bytes.TrimSpace(errout.Bytes()))
	}
	return stdout.Bytes(), nil
}

func (c *Converter) Probe(ctx context.Context, path string) (Probe, error) {
	out, err := c.run(ctx, c.opts.FFprobePath, probeArgs(path)...)
	if err != nil {
		return Probe{}, err
	}
	return ParseProbe(out)
}

// RenderTitleCard writes a black PNG of width x height with the logo
// centered. A logo larger than the canvas is shrunk to fit.
func (c *Converter) RenderTitleCard(width, height int, dst string) error {
	canvas := imaging.New(width, height, color.Black)

	logo, err := imaging.Open(c.opts.LogoPath)
	if err != nil {
		c.logger.Error("Failed to open logo",
			zap.String("path", c.opts.LogoPath),
			zap.Error(err),
		)
		return fmt.Errorf("failed to open logo: %w", err)
	}

	var mark image.Image = logo
	if b := logo.Bounds(); b.Dx() > width || b.Dy() > height {
		mark = imaging.Fit(logo, width, height, imaging.Lanczos)
	}
	canvas = imaging.OverlayCenter(canvas, mark, 1.0)

	if err := imaging.Save(canvas, dst); err != nil {
		c.logger.Error("Failed to save title card",
			zap.String("path", dst),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save title card: %w", err)
	}
	return nil
}

// Convert renders inputPath into outputPath: trimmed, rescaled, faded out
// and followed by the title card. outputPath is removed on failure.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) (Plan, error) {
	c.logger.Info("Starting conversion",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
	)

	probe, err := c.Probe(ctx, inputPath)
	if err != nil {
		c.logger.Error("Failed to probe source", zap.String("path", inputPath), zap.Error(err))
		return Plan{}, fmt.Errorf("probe source: %w", err)
	}

	plan, err := NewPlan(probe, c.opts)
	if err != nil {
		return Plan{}, err
	}

	workDir, err := os.MkdirTemp(c.opts.ScratchDir, "card-*")
	if err != nil {
		return Plan{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	cardPath := filepath.Join(workDir, "card.png")
	if err := c.RenderTitleCard(plan.Width, plan.Height, cardPath); err != nil {
		return Plan{}, err
	}

	c.logger.Info("Rendering video",
		zap.Int("width", plan.Width),
		zap.Int("height", plan.Height),
		zap.Float64("clip_seconds", plan.ClipDuration),
		zap.Bool("audio", plan.HasAudio),
	)

	if _, err := c.run(ctx, c.opts.FFmpegPath, plan.Args(inputPath, cardPath, outputPath)...); err != nil {
		os.Remove(outputPath)
		c.logger.Error("Failed to render video", zap.String("output", outputPath), zap.Error(err))
		return Plan{}, err
	}

	c.logger.Info("Conversion completed",
		zap.String("output", outputPath),
		zap.Duration("duration", plan.Duration()),
	)

	return plan, nil
}
