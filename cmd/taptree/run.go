package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/tree"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [path...]",
		Short: "Run every workspace, or the directories and files named by path",
		RunE:  runExecute,
	}
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	var run *report.Run
	if len(args) == 0 {
		// the run pass rebuilds each workspace tree itself
		run = s.explorer.RunWorkspaces(ctx, s.roots)
	} else {
		if err := s.discover(ctx); err != nil {
			return err
		}
		refs := make([]tree.Ref, 0, len(args))
		for _, arg := range args {
			ref, err := s.resolve(arg)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		run = s.explorer.Run(ctx, refs)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run canceled: %w", ctx.Err())
	}

	exit, err := s.render(run)
	if err != nil {
		return err
	}
	if exit != 0 {
		return errors.New("one or more tests failed")
	}
	return nil
}
