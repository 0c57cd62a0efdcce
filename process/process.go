// Package process supervises a tool-server child process: it spawns the
// command with its stdio wired as byte streams, forwards stderr to the log
// line by line, and tears the process tree down on Stop.
package process

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dmora/toolbridge/internal/errfmt"
)

// Defaults applied by Start.
const (
	DefaultGracePeriod = 2 * time.Second
	stderrFlushTimeout = 250 * time.Millisecond
	maxStderrLine      = 1 << 20
)

// ErrNoCommand indicates Start was called without a command.
var ErrNoCommand = errors.New("process: no command configured")

// Config describes the child process.
type Config struct {
	// Command is the executable name or path. Names without a path separator
	// are resolved via PATH.
	Command string

	// Args are passed to the command.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env overlays the inherited environment: matching keys are replaced,
	// new keys are appended.
	Env map[string]string
}

// Handle is a running child process. Stdin and Stdout carry the protocol;
// stderr is consumed internally.
type Handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File
	log    *log.Entry

	group   errgroup.Group // stderr drain and exit wait
	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// Start spawns the command described by cfg.
func Start(cfg Config, logger *log.Entry) (*Handle, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNoCommand
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "process: resolve %q", cfg.Command)
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = MergeEnv(os.Environ(), cfg.Env)
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "process: stdin pipe")
	}
	// Stdout and stderr use our own pipes so cmd.Wait never closes the read
	// ends while the reader still has buffered frames to consume.
	outR, outW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, errors.Wrap(err, "process: stdout pipe")
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		closeAll(outR, outW)
		return nil, errors.Wrap(err, "process: stderr pipe")
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		closeAll(outR, outW, errR, errW)
		return nil, errors.Wrapf(err, "process: start %q", path)
	}
	closeAll(outW, errW)

	h := &Handle{
		cmd:    cmd,
		stdin:  stdin,
		stdout: outR,
		stderr: errR,
		log:    logger.WithField("pid", cmd.Process.Pid),
		exited: make(chan struct{}),
	}
	h.group.Go(h.drainStderr)
	h.group.Go(func() error {
		h.waitErr = cmd.Wait()
		close(h.exited)
		return nil
	})
	h.log.WithField("command", path).Info("tool server started")
	return h, nil
}

// Stdin returns the child's standard input.
func (h *Handle) Stdin() io.Writer { return h.stdin }

// Stdout returns the child's standard output.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Done returns a channel closed when the child has exited.
func (h *Handle) Done() <-chan struct{} { return h.exited }

// Exited reports whether the child has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// ExitErr returns the result of waiting on the child, or nil while it runs.
func (h *Handle) ExitErr() error {
	if !h.Exited() {
		return nil
	}
	return h.waitErr
}

// ExitCode returns the child's exit status once it has exited. Signal
// terminations report -1.
func (h *Handle) ExitCode() (int, bool) {
	if !h.Exited() {
		return 0, false
	}
	return h.cmd.ProcessState.ExitCode(), true
}

// CloseStdin closes the child's standard input, which well-behaved servers
// treat as a request to exit.
func (h *Handle) CloseStdin() error {
	if err := h.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return errors.Wrap(err, "process: close stdin")
	}
	return nil
}

// Stop tears the child down: close stdin, SIGTERM the process group, then
// SIGKILL once grace elapses, and finally release the pipes. Safe to call
// multiple times. The returned error aggregates secondary failures and is
// meant for logging only.
func (h *Handle) Stop(grace time.Duration) error {
	h.stopOnce.Do(func() {
		if grace <= 0 {
			grace = DefaultGracePeriod
		}
		var result *multierror.Error
		if err := h.CloseStdin(); err != nil {
			result = multierror.Append(result, err)
		}

		if !h.Exited() {
			if err := terminate(h.cmd.Process); err != nil {
				result = multierror.Append(result, errors.Wrap(err, "process: terminate"))
			}
			select {
			case <-h.exited:
			case <-time.After(grace):
				h.log.Warn("tool server ignored SIGTERM, killing")
				if err := kill(h.cmd.Process); err != nil {
					result = multierror.Append(result, errors.Wrap(err, "process: kill"))
				}
				select {
				case <-h.exited:
				case <-time.After(grace):
					result = multierror.Append(result, errors.New("process: child did not exit after kill"))
				}
			}
		}

		// Let the drain log what the child wrote before exiting. Grandchildren
		// may still hold the write ends, so the wait is bounded and the read
		// ends are closed regardless.
		drained := make(chan struct{})
		go func() {
			_ = h.group.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(stderrFlushTimeout):
		}
		for _, f := range []*os.File{h.stdout, h.stderr} {
			if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				result = multierror.Append(result, errors.Wrap(err, "process: close pipe"))
			}
		}
		h.stopErr = result.ErrorOrNil()
	})
	return h.stopErr
}

// drainStderr forwards each stderr line to the log. It keeps reading after
// an oversized line so the child never blocks on a full pipe.
func (h *Handle) drainStderr() error {
	logger := h.log.WithField("stream", "stderr")
	scanner := bufio.NewScanner(h.stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLine)
	for scanner.Scan() {
		if line := errfmt.Line(scanner.Text()); line != "" {
			logger.Warn(line)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.WithError(err).Debug("stderr scanner stopped, discarding remainder")
		_, _ = io.Copy(io.Discard, h.stderr)
	}
	return nil
}

// MergeEnv applies overlay on top of base ("KEY=VALUE" entries). Overlay keys
// replace matching base entries; new keys are appended in sorted order.
func MergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overlay[key]; replaced {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
