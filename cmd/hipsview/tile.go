package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"strconv"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/gogpu/hips"
)

func newTileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile <survey-url> <order> <pix>",
		Short: "Load a single tile and print its content",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			order, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid order %q", args[1])
			}
			pix, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid pix %q", args[2])
			}
			out, _ := cmd.Flags().GetString("output")
			return runTile(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], order, pix, out)
		},
	}
	cmd.Flags().StringP("output", "o", "", "write an image tile to this PNG file")
	return cmd
}

func runTile(ctx context.Context, w io.Writer, cfg Config, url string, order, pix int, out string) error {
	client := newClient(cfg)
	defer client.Close()
	e := hips.NewEngine(client, hips.WithLogger(cfg.logger()), hips.WithWorkers(0))
	defer e.Close()

	var surveyErr error
	s := e.NewSurvey(url, hips.WithErrorHandler(func(_ *hips.Survey, err error) {
		surveyErr = err
	}))

	var (
		payload hips.Payload
		code    int
	)
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	err := poll(ctx, 10*time.Millisecond, func() bool {
		if surveyErr != nil {
			return true
		}
		if !s.Update() {
			return false
		}
		payload, code = s.GetTile(order, pix, 0)
		return code != hips.StatusPending && code != hips.StatusTransient
	})
	switch {
	case surveyErr != nil:
		return surveyErr
	case err != nil:
		return fmt.Errorf("tile %d/%d: %w", order, pix, err)
	case code != hips.StatusOK:
		return fmt.Errorf("tile %d/%d: status %d", order, pix, code)
	}

	fmt.Fprintf(w, "survey\t%s\nframe\t%s\norders\t%d-%d\nurl\t%s\n",
		s.Label(), s.Frame(), s.MinOrder(), s.MaxOrder(), s.TileURL(order, pix))
	switch t := payload.(type) {
	case *hips.ImageTile:
		b := t.Image().Bounds()
		fmt.Fprintf(w, "image\t%dx%d\n", b.Dx(), b.Dy())
		if out != "" {
			var buf bytes.Buffer
			if err := png.Encode(&buf, t.Image()); err != nil {
				return err
			}
			return atomic.WriteFile(out, &buf)
		}
	case *hips.CatalogTile:
		fmt.Fprintf(w, "rows\t%d\n", t.Rows())
		for _, c := range t.Chunks {
			fmt.Fprintf(w, "chunk\t%s\t%d rows\t%d columns\n", c.Type, c.Table.Rows, len(c.Table.Columns))
		}
	}
	return nil
}
