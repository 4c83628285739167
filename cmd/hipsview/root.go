package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/hips/asset"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hipsview",
		Short:         "Render and inspect HiPS surveys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default .hipsview.toml)")
	root.PersistentFlags().Bool("verbose", false, "log debug messages")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().Int("workers", 4, "decode workers")

	root.AddCommand(newRenderCmd(), newListCmd(), newTileCmd())
	return root
}

func newClient(cfg Config) *asset.Client {
	return asset.NewClient(
		asset.WithLogger(cfg.logger()),
		asset.WithTimeout(cfg.Timeout),
		asset.WithDelay(2),
	)
}

// poll calls fn until it reports done or ctx expires.
func poll(ctx context.Context, every time.Duration, fn func() bool) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for !fn() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// fetchSync fetches url, waiting for the request to settle.
func fetchSync(ctx context.Context, f asset.Fetcher, url string) ([]byte, error) {
	var (
		data []byte
		code int
	)
	err := poll(ctx, 10*time.Millisecond, func() bool {
		data, code = f.Fetch(url, asset.UsedOnce)
		return code != asset.StatusPending && code != asset.StatusTransient
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if code != asset.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, code)
	}
	return data, nil
}
