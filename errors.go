package toolbridge

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/dmora/toolbridge/frame"
	"github.com/dmora/toolbridge/jsonrpc"
)

// Sentinel errors for client operations.
var (
	// ErrStartup matches every *StartupError.
	ErrStartup = errors.New("toolbridge: startup failed")

	// ErrTimeout indicates a request deadline elapsed before its response.
	ErrTimeout = jsonrpc.ErrTimeout

	// ErrCancelled indicates the caller's context was cancelled before the
	// response arrived. The error also matches context.Canceled.
	ErrCancelled = jsonrpc.ErrCancelled

	// ErrToolNotFound indicates tool discovery found no matching tool.
	ErrToolNotFound = errors.New("toolbridge: no matching tool")

	// ErrInvalidToolName indicates CallTool was given an empty tool name.
	ErrInvalidToolName = errors.New("toolbridge: tool name is empty")

	// ErrClientDisposed indicates an operation after Close.
	ErrClientDisposed = errors.New("toolbridge: client disposed")

	// ErrProcessExited indicates the tool server is gone. The client does
	// not respawn it; create a new Client instead.
	ErrProcessExited = errors.New("toolbridge: tool server exited")
)

// RPCError is a well-formed error response from the tool server, with the
// remote code, message and data intact.
type RPCError = jsonrpc.RPCError

// TransportError reports a malformed or truncated frame.
type TransportError = frame.TransportError

// StartupError reports a failed start attempt: no command configured, spawn
// failure, or a failed initialize handshake. The next call retries.
type StartupError struct {
	Op  string
	Err error
}

func (e *StartupError) Error() string {
	return "toolbridge: start: " + e.Op + ": " + e.Err.Error()
}

func (e *StartupError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStartup) match any StartupError.
func (e *StartupError) Is(target error) bool { return target == ErrStartup }

// ExitError is returned once the tool server has exited. It matches
// ErrProcessExited and wraps the wait error so callers can errors.As to
// *exec.ExitError for OS-level detail.
//
// Code is the exit status, or -1 when the child was signal-killed or had not
// been reaped yet.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return "toolbridge: tool server exited: " + e.Err.Error()
	}
	return "toolbridge: tool server exited with status " + strconv.Itoa(e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProcessExited) match any ExitError.
func (e *ExitError) Is(target error) bool { return target == ErrProcessExited }

// ExitCode extracts the exit code from an error chain containing *ExitError.
// Returns (0, false) if the error does not contain an ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
