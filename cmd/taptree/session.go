package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/bgricker/taptree/internal/config"
	"github.com/bgricker/taptree/internal/discovery"
	"github.com/bgricker/taptree/internal/explorer"
	"github.com/bgricker/taptree/internal/logging"
	"github.com/bgricker/taptree/internal/output"
	"github.com/bgricker/taptree/internal/report"
	"github.com/bgricker/taptree/internal/runner"
	"github.com/bgricker/taptree/internal/tree"
	"github.com/bgricker/taptree/internal/version"
)

// session bundles what every subcommand needs: resolved config, workspace
// roots and an explorer wired to the test command.
type session struct {
	cmd      *cobra.Command
	cfg      config.Config
	cwd      string
	roots    []string
	logger   log.Logger
	explorer *explorer.Explorer
	warnings []string
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, cwd, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	roots, err := discovery.Workspaces(cwd, cfg.Workspaces)
	if err != nil {
		if errors.Is(err, discovery.ErrNoWorkspaces) {
			return nil, fmt.Errorf("no workspaces found; add a package.json or specify --workspace")
		}
		return nil, err
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, isTerminal(cmd.ErrOrStderr()))

	var stderr io.Writer
	if cfg.Verbose {
		stderr = cmd.ErrOrStderr()
	}
	r := runner.New(runner.Options{
		Command: cfg.Command,
		Stderr:  stderr,
		Verbose: cfg.Verbose,
		Logger:  logger.New("component", "runner"),
	})

	s := &session{
		cmd:    cmd,
		cfg:    cfg,
		cwd:    cwd,
		roots:  roots,
		logger: logger,
		explorer: explorer.New(r, explorer.Options{
			Suffix: cfg.Suffix,
			Logger: logger.New("component", "explorer"),
		}),
	}

	if cfg.Warn.VersionMismatchEnabled() {
		for _, root := range roots {
			if warn := version.NodeWarning(cmd.Context(), root, nil); warn != "" {
				s.warn("%s: %s", discovery.Rel(cwd, root), warn)
			}
		}
	}
	return s, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, cwd, nil
}

func (s *session) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// discover builds the tree for every root. Failed roots become warnings;
// only cancellation is returned.
func (s *session) discover(ctx context.Context) error {
	err := s.explorer.Discover(ctx, s.roots)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			s.warn("%s", line)
		}
	}
	return nil
}

// resolve maps a path relative to the working directory onto its tree node.
func (s *session) resolve(path string) (tree.Ref, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.cwd, path)
	}
	abs = filepath.Clean(abs)

	root, rel := "", ""
	for _, r := range s.roots {
		candidate, err := filepath.Rel(r, abs)
		if err != nil || candidate == ".." || strings.HasPrefix(candidate, ".."+string(filepath.Separator)) {
			continue
		}
		if len(r) > len(root) {
			root, rel = r, candidate
		}
	}
	if root == "" {
		return tree.NoRef, fmt.Errorf("path %q is outside every workspace", path)
	}

	rootRef, ok := s.explorer.RootRef(root)
	if !ok {
		return tree.NoRef, fmt.Errorf("workspace %q was not discovered", discovery.Rel(s.cwd, root))
	}
	if rel == "." {
		return rootRef, nil
	}
	ref, ok := s.explorer.Tree().Lookup(rootRef, strings.Split(filepath.ToSlash(rel), "/")...)
	if !ok {
		return tree.NoRef, fmt.Errorf("no test node matches %q", path)
	}
	if n, _ := s.explorer.Tree().Node(ref); !n.Runnable {
		return tree.NoRef, fmt.Errorf("%q names a %s; only directories and files can be run", path, n.Kind)
	}
	return ref, nil
}

// render writes the tree, and the results of run when it is non-nil, in the
// configured format. It returns the run's exit code.
func (s *session) render(run *report.Run) (int, error) {
	out := s.cmd.OutOrStdout()
	switch strings.ToLower(s.cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(out).WithColor(isTerminal(out))
		if err := renderer.RenderTree(s.explorer.Tree(), run); err != nil {
			return 0, err
		}
		exit := 0
		if run != nil {
			summary := run.End()
			if err := renderer.RenderResults(run, summary, s.cfg.Verbose); err != nil {
				return 0, err
			}
			exit = summary.ExitCode
		}
		for _, msg := range s.warnings {
			fmt.Fprintf(s.cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
		return exit, nil
	case config.FormatJSON:
		rep := output.NewReport(s.explorer.Tree(), run, s.warnings)
		if err := output.NewJSON(out).Render(rep); err != nil {
			return 0, err
		}
		if rep.Summary != nil {
			return rep.Summary.ExitCode, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported format %q", s.cfg.Format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
