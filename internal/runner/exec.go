package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/bgricker/taptree/internal/logging"
)

// DefaultCommand runs node-tap with the TAP reporter.
var DefaultCommand = []string{"npx", "tap", "--reporter=tap"}

// ErrLaunch matches every *LaunchError.
var ErrLaunch = errors.New("launch failed")

// LaunchError reports that the test command could not be started.
type LaunchError struct {
	Command string
	Dir     string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s in %s: %v", e.Command, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// ExitError reports a non-zero exit. node-tap exits non-zero whenever a test
// fails, so callers usually treat it as a normal completion.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// Options configure how the runner spawns the test command.
type Options struct {
	// Command is the argv prefix. The target file, if any, is appended.
	Command []string
	// Env overlays the process environment.
	Env       map[string]string
	Stderr    io.Writer
	Verbose   bool
	TailLines int
	// WaitDelay bounds how long output pipes may stay open after the process
	// exits or is killed.
	WaitDelay time.Duration
	Logger    log.Logger
}

// Invocation is one run target.
type Invocation struct {
	// Dir is the working directory.
	Dir string
	// File optionally limits the run to one test file, relative to Dir or
	// absolute. It is only passed on when it names a regular file.
	File string
}

// Runner spawns the test command and streams its stdout.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand
	}
	opts.Command = append([]string{}, opts.Command...)
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Runner{opts: opts}
}

// Run executes the command for inv, copying stdout into stdout until the
// process exits. A launch failure returns *LaunchError, a non-zero exit
// returns *ExitError, and cancellation kills the process and returns the
// context error.
func (r *Runner) Run(ctx context.Context, inv Invocation, stdout io.Writer) error {
	args := append([]string{}, r.opts.Command[1:]...)
	if file, ok := r.targetFile(inv); ok {
		args = append(args, file)
	}

	logger := r.opts.Logger.New("dir", inv.Dir)
	cmd := exec.CommandContext(ctx, r.opts.Command[0], args...)
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), r.opts.Env)
	cmd.WaitDelay = r.opts.WaitDelay

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return &LaunchError{Command: r.opts.Command[0], Dir: inv.Dir, Err: err}
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return &LaunchError{Command: r.opts.Command[0], Dir: inv.Dir, Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &LaunchError{Command: r.opts.Command[0], Dir: inv.Dir, Err: err}
	}
	logger.Debug("Started test command", "args", strings.Join(cmd.Args, " "), "pid", cmd.Process.Pid)

	// Descendants of a killed process can keep the pipes open.
	stop := context.AfterFunc(ctx, func() {
		_ = outPipe.Close()
		_ = errPipe.Close()
	})
	defer stop()

	var stderrBuf bytes.Buffer
	errSink := io.Writer(&stderrBuf)
	if r.opts.Verbose {
		errSink = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdout, outPipe)
		if err != nil {
			// keep draining so the process never blocks on a full pipe
			_, _ = io.Copy(io.Discard, outPipe)
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(errSink, errPipe)
		return err
	})
	pumpErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		logger.Debug("Test command canceled", "elapsed", time.Since(start))
		return fmt.Errorf("run canceled: %w", ctx.Err())
	}
	if pumpErr != nil && !errors.Is(pumpErr, os.ErrClosed) {
		return fmt.Errorf("stream output: %w", pumpErr)
	}

	code := exitCode(waitErr)
	logger.Debug("Test command exited", "code", code, "elapsed", time.Since(start))
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return fmt.Errorf("wait for %s: %w", r.opts.Command[0], waitErr)
		}
		return &ExitError{
			Code:   code,
			Stderr: tailLines(stripansi.Strip(stderrBuf.String()), r.opts.TailLines),
		}
	}
	return nil
}

func (r *Runner) targetFile(inv Invocation) (string, bool) {
	if inv.File == "" {
		return "", false
	}
	path := inv.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(inv.Dir, path)
	}
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		r.opts.Logger.Debug("Ignoring non-file target", "path", path, "err", err)
		return "", false
	}
	rel, err := filepath.Rel(inv.Dir, path)
	if err != nil {
		return path, true
	}
	return filepath.ToSlash(rel), true
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			key := kv[:idx]
			envMap[key] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
