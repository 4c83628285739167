package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gogpu/hips"
	"github.com/gogpu/hips/frames"
	"github.com/gogpu/hips/internal/softpaint"
	"github.com/gogpu/hips/projection"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <survey-url>",
		Short: "Render a survey to a PNG image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), cfg, args[0])
		},
	}
	f := cmd.Flags()
	f.Int("width", 1024, "image width in pixels")
	f.Int("height", 512, "image height in pixels")
	f.String("projection", "mollweide", "projection name")
	f.Float64("fov", 360, "horizontal field of view in degrees")
	f.Float64("ra", 0, "right ascension of the view center in degrees")
	f.Float64("dec", 0, "declination of the view center in degrees")
	f.StringP("output", "o", "hips.png", "output PNG file")
	f.Int("max-frames", 200, "maximum number of frames to wait for tiles")
	f.Int64("cache-mb", 256, "tile cache capacity in MiB")
	f.String("metrics", "", "write engine metrics in text format to this file")
	// Viper keys use underscores.
	f.SetNormalizeFunc(normalizeFlag)
	return cmd
}

func runRender(ctx context.Context, cfg Config, url string) error {
	log := cfg.logger()
	kind, err := projection.ParseKind(cfg.Projection)
	if err != nil {
		return err
	}
	proj, err := projection.New(kind, cfg.FOV*math.Pi/180, float64(cfg.Width), float64(cfg.Height))
	if err != nil {
		return err
	}

	var loaded, visible int
	client := newClient(cfg)
	defer client.Close()

	e := hips.NewEngine(client,
		hips.WithLogger(log),
		hips.WithWorkers(cfg.Workers),
		hips.WithCacheCapacity(cfg.CacheMB<<20),
		hips.WithProgress(hips.ProgressFunc(func(_, label string, n, total int) {
			log.Debug("progress", "survey", label, "loaded", n, "total", total)
			loaded, visible = n, total
		})),
	)
	defer e.Close()

	var surveyErr error
	s := e.NewSurvey(url, hips.WithErrorHandler(func(_ *hips.Survey, err error) {
		surveyErr = err
	}))

	obs := frames.NewStatic()
	obs.SetView(frames.LookAt(cfg.RA*math.Pi/180, cfg.Dec*math.Pi/180))

	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	painter := softpaint.New(img, proj)
	rc := &hips.RenderContext{
		Projection: proj,
		Observer:   obs,
		Painter:    painter,
	}

	var complete bool
	for frame := 0; frame < cfg.MaxFrames && !complete; frame++ {
		painter.Clear(color.Black)
		n, err := s.Render(rc)
		if err != nil {
			return err
		}
		e.EndFrame()
		if surveyErr != nil {
			return surveyErr
		}
		complete = n > 0 && loaded == visible
		if !complete {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.FrameDelay):
			}
		}
	}
	if !complete {
		log.Warn("rendering incomplete", "survey", s.Label(), "frames", cfg.MaxFrames)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := atomic.WriteFile(cfg.Output, &buf); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	log.Info("image written", "path", cfg.Output, "quads", painter.Quads)

	if cfg.Metrics != "" {
		return writeMetrics(log, e, cfg.Metrics)
	}
	return nil
}

func writeMetrics(log *slog.Logger, e *hips.Engine, path string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(hips.NewCollector(e)); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	log.Debug("metrics written", "path", path)
	return nil
}
