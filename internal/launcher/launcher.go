// Package launcher starts registry applications as detached processes.
package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/harrylevesque/aviator/internal/metrics"
	"github.com/harrylevesque/aviator/internal/utils"
)

// Launcher starts executables without waiting for them.
type Launcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(logger *slog.Logger, m *metrics.Metrics) *Launcher {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Launcher{logger: logger, metrics: m}
}

// Run starts path with args and returns the new pid. A missing path is a
// NotFound error and nothing is started; any other failure to start is a
// LaunchFailure. The child runs in the directory containing path, in its
// own process group, and is reaped in the background without being tracked.
func (l *Launcher) Run(path, args string) (pid int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pid, err = 0, utils.New(utils.KindLaunch, fmt.Sprintf("panic starting %s: %v", path, r))
		}
		l.record(err)
	}()

	l.logger.Info("launcher: launching", "path", path, "args", args)

	// exec resolves a relative path against cmd.Dir, so pin it to the host's
	// working directory first.
	if abs, absErr := filepath.Abs(path); absErr == nil {
		path = abs
	}

	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return 0, utils.Wrap(utils.KindNotFound, "executable not found: "+path, statErr)
		}
		return 0, utils.Wrap(utils.KindLaunch, "stat "+path, statErr)
	}

	cmd := exec.Command(path, SplitArgs(args)...)
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		l.logger.Error("launcher: start failed", "path", path, "err", err)
		return 0, utils.Wrap(utils.KindLaunch, "start "+path, err)
	}

	pid = cmd.Process.Pid
	go func() {
		// Reap only; exit status is not tracked.
		_ = cmd.Wait()
	}()

	l.logger.Info("launcher: started", "path", path, "pid", pid)
	return pid, nil
}

func (l *Launcher) record(err error) {
	switch {
	case err == nil:
		l.metrics.Launch("success")
	case utils.KindOf(err) == utils.KindNotFound:
		l.metrics.Launch("not_found")
	default:
		l.metrics.Launch("error")
	}
}

// SplitArgs tokenizes args with shell-like quoting. '#' is an ordinary
// character. Malformed quoting falls back to splitting on whitespace rather
// than failing the launch.
func SplitArgs(args string) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	tokens, err := shellquote.Split(args)
	if err != nil {
		return strings.Fields(args)
	}
	return tokens
}
