package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bgricker/taptree/internal/filter"
	"github.com/bgricker/taptree/internal/metrics"
	"github.com/bgricker/taptree/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Discover, then keep the tree current as test files change",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	set, err := filter.NewSet(s.cfg.Watch, s.cfg.Ignore)
	if err != nil {
		return err
	}

	if err := s.discover(ctx); err != nil {
		// interrupted before the first tree was built
		return nil
	}
	if _, err := s.render(nil); err != nil {
		return err
	}
	s.warnings = nil

	w, err := watch.New(s.explorer, watch.Options{
		Roots:    s.roots,
		Filter:   set,
		Debounce: s.cfg.Debounce,
		Logger:   s.logger.New("component", "watch"),
		OnChange: func() {
			fmt.Fprintln(s.cmd.OutOrStdout())
			if _, err := s.render(nil); err != nil {
				s.logger.Error("Failed to render tree", "err", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if s.cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := metrics.Serve(gctx, s.cfg.MetricsAddr, s.logger.New("component", "metrics")); err != nil {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
