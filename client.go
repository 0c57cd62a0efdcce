package toolbridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmora/toolbridge/internal/metrics"
	"github.com/dmora/toolbridge/jsonrpc"
	"github.com/dmora/toolbridge/process"
)

const toolsCacheKey = "tools"

// Client talks JSON-RPC to one tool server child process.
//
// The child is spawned lazily by the first operation (or by Start) and
// lives until Close. A child that exits is not respawned: operations fail
// with ErrProcessExited and the caller creates a new Client.
//
// All methods are safe for concurrent use.
type Client struct {
	opts    Options
	id      string
	log     *log.Entry
	metrics *metrics.Metrics
	tools   *cache.Cache // nil when caching is disabled

	state atomic.Int32
	mu    sync.Mutex // serializes start and dispose
	sess  atomic.Pointer[session]

	startMu     sync.Mutex // guards cancelStart
	cancelStart context.CancelFunc
}

// session is one running child with its connection.
type session struct {
	proc       *process.Handle
	conn       *jsonrpc.Conn
	serverInfo Implementation
}

// New returns an unstarted Client.
func New(opts ...Option) *Client {
	o := ResolveOptions(opts...)
	id := uuid.NewString()
	c := &Client{
		opts:    o,
		id:      id,
		log:     o.Logger.WithField("client", id),
		metrics: metrics.New(o.Registerer),
	}
	if o.ToolCacheTTL > 0 {
		c.tools = cache.New(o.ToolCacheTTL, 2*o.ToolCacheTTL)
	}
	return c
}

// ID returns the identifier attached to this client's log entries.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Start spawns the tool server and completes the initialize handshake. It
// is idempotent and safe to call concurrently; only one child is ever
// spawned. A failed start leaves the client unstarted, so the next call
// retries.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

// ServerInfo returns the identity the server reported during the
// handshake, and false before a successful Start.
func (c *Client) ServerInfo() (Implementation, bool) {
	s := c.sess.Load()
	if s == nil {
		return Implementation{}, false
	}
	return s.serverInfo, true
}

// Close stops the reader, terminates the child and its process group, and
// releases the pipes. A start in progress is cancelled. Close is idempotent
// and never fails; teardown problems are logged.
func (c *Client) Close() error {
	if State(c.state.Swap(int32(StateDisposed))) == StateDisposed {
		return nil
	}
	c.startMu.Lock()
	if c.cancelStart != nil {
		c.cancelStart()
	}
	c.startMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.sess.Swap(nil); s != nil {
		c.teardown(s)
	}
	c.invalidateTools()
	c.log.Debug("client disposed")
	return nil
}

// --- Internal ---

// session returns the live session, starting the child on first use.
func (c *Client) session(ctx context.Context) (*session, error) {
	switch c.State() {
	case StateDisposed:
		return nil, ErrClientDisposed
	case StateReady:
		if s := c.sess.Load(); s != nil {
			return c.live(s)
		}
		return nil, ErrClientDisposed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case StateDisposed:
		return nil, ErrClientDisposed
	case StateReady:
		return c.live(c.sess.Load())
	}

	if !c.state.CompareAndSwap(int32(StateNotStarted), int32(StateStarting)) {
		return nil, ErrClientDisposed
	}
	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.setCancelStart(cancel)
	s, err := c.start(startCtx)
	c.setCancelStart(nil)
	c.metrics.ObserveStart(err)
	if err != nil {
		if !c.state.CompareAndSwap(int32(StateStarting), int32(StateNotStarted)) {
			return nil, errors.Wrap(ErrClientDisposed, err.Error())
		}
		c.log.WithError(err).Warn("tool server start failed")
		return nil, err
	}
	c.sess.Store(s)
	if !c.state.CompareAndSwap(int32(StateStarting), int32(StateReady)) {
		// Close ran during the handshake.
		c.sess.Store(nil)
		c.teardown(s)
		return nil, ErrClientDisposed
	}
	return s, nil
}

// setCancelStart publishes the cancel func of the start in progress. A
// client already disposed cancels it at once.
func (c *Client) setCancelStart(cancel context.CancelFunc) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.cancelStart = cancel
	if cancel != nil && c.State() == StateDisposed {
		cancel()
	}
}

func (c *Client) start(ctx context.Context) (*session, error) {
	proc, err := process.Start(process.Config{
		Command: c.opts.Command,
		Args:    c.opts.Args,
		Dir:     c.opts.WorkingDir,
		Env:     c.opts.Env,
	}, c.log)
	if err != nil {
		return nil, &StartupError{Op: "spawn", Err: err}
	}

	conn := jsonrpc.NewConn(proc.Stdout(), proc.Stdin(), jsonrpc.Options{
		RequestTimeout: c.opts.RequestTimeout,
		MaxFrameSize:   c.opts.MaxFrameSize,
		Logger:         c.log,
	})
	conn.OnNotification(MethodToolsListChanged, func(json.RawMessage) {
		c.log.Debug("tool list changed")
		c.invalidateTools()
	})
	go conn.ReadLoop()

	s := &session{proc: proc, conn: conn}
	var res initializeResult
	params := initializeParams{ClientInfo: c.opts.ClientInfo}
	if err := c.call(ctx, s, MethodInitialize, params, &res); err != nil {
		c.teardown(s)
		return nil, &StartupError{Op: "initialize", Err: err}
	}
	if res.ServerInfo == nil {
		c.teardown(s)
		return nil, &StartupError{Op: "initialize", Err: errors.New("result has no serverInfo")}
	}
	if err := conn.Notify(MethodInitialized, nil); err != nil {
		c.teardown(s)
		return nil, &StartupError{Op: "initialized", Err: err}
	}
	s.serverInfo = *res.ServerInfo

	c.log.WithFields(log.Fields{
		"server":  s.serverInfo.Name,
		"version": s.serverInfo.Version,
	}).Info("tool server ready")
	return s, nil
}

// live fails fast once the child or the reader is gone.
func (c *Client) live(s *session) (*session, error) {
	if s == nil {
		return nil, ErrClientDisposed
	}
	if s.proc.Exited() {
		return nil, exitError(s, nil)
	}
	select {
	case <-s.conn.Done():
		return nil, exitError(s, jsonrpc.ErrClosed)
	default:
	}
	return s, nil
}

// call issues one request and records its outcome.
func (c *Client) call(ctx context.Context, s *session, method string, params, result any) error {
	begin := time.Now()
	err := s.conn.Call(ctx, method, params, result)
	c.metrics.ObserveRequest(method, outcome(err), time.Since(begin))
	if err != nil && c.State() == StateDisposed {
		return errors.Wrap(ErrClientDisposed, err.Error())
	}
	if errors.Is(err, jsonrpc.ErrClosed) {
		return exitError(s, err)
	}
	return err
}

// teardown releases a session. Secondary failures are logged, not returned.
func (c *Client) teardown(s *session) {
	var result *multierror.Error

	s.conn.Close()
	if err := s.proc.CloseStdin(); err != nil {
		result = multierror.Append(result, err)
	}
	// A well-behaved server exits on stdin EOF, which ends the reader.
	s.conn.Wait(c.opts.ReaderJoinTimeout)
	if err := s.proc.Stop(c.opts.GracePeriod); err != nil {
		result = multierror.Append(result, err)
	}
	if !s.conn.Wait(c.opts.ReaderJoinTimeout) {
		result = multierror.Append(result, errors.New("reader did not exit"))
	}
	if n := s.conn.InFlight(); n > 0 {
		c.log.WithField("in_flight", n).Debug("abandoning in-flight requests")
	}
	if err := result.ErrorOrNil(); err != nil {
		c.log.WithError(err).Warn("tool server teardown incomplete")
		return
	}
	c.log.Debug("tool server stopped")
}

func (c *Client) invalidateTools() {
	if c.tools != nil {
		c.tools.Delete(toolsCacheKey)
	}
}

func exitError(s *session, cause error) error {
	code, ok := s.proc.ExitCode()
	if !ok {
		// The reader saw EOF before the child was reaped.
		return &ExitError{Code: -1, Err: cause}
	}
	err := s.proc.ExitErr()
	if err == nil {
		err = cause
	}
	return &ExitError{Code: code, Err: err}
}

func outcome(err error) string {
	var rpcErr *RPCError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &rpcErr):
		return metrics.OutcomeRPCError
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrCancelled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}
