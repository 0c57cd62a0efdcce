package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmora/toolbridge/frame"
	"github.com/dmora/toolbridge/internal/errfmt"
)

// Sentinel errors returned by Call.
var (
	// ErrTimeout indicates the request deadline elapsed before a response.
	ErrTimeout = errors.New("jsonrpc: request timed out")

	// ErrCancelled indicates the caller's context was cancelled first.
	ErrCancelled = errors.New("jsonrpc: request cancelled")

	// ErrClosed indicates the connection was closed or its reader ended.
	ErrClosed = errors.New("jsonrpc: connection closed")
)

// Options configures a Conn.
type Options struct {
	// RequestTimeout bounds every Call. Zero disables the per-request deadline.
	RequestTimeout time.Duration

	// MaxFrameSize is the largest frame body accepted from the peer.
	MaxFrameSize int

	// Logger receives reader diagnostics. Defaults to the standard logrus logger.
	Logger *log.Entry
}

// Conn is a JSON-RPC 2.0 client over Content-Length framed streams.
//
// Calls may be issued from any number of goroutines. Outbound frames are
// written under a single lock so bytes of two frames never interleave.
// Inbound frames are decoded by ReadLoop, which must run in exactly one
// goroutine and is the only path that resolves pending requests.
type Conn struct {
	mu sync.Mutex // guards w
	w  *frame.Writer
	r  *frame.Reader

	calls *Correlator

	timeout        time.Duration
	notifyHandlers map[string]func(json.RawMessage)
	log            *log.Entry

	loopStarted atomic.Bool
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// NewConn returns a Conn reading frames from r and writing frames to w.
// Start ReadLoop in a goroutine before issuing calls.
func NewConn(r io.Reader, w io.Writer, opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Conn{
		w:              frame.NewWriter(w),
		r:              frame.NewReader(r, opts.MaxFrameSize),
		calls:          NewCorrelator(),
		timeout:        opts.RequestTimeout,
		notifyHandlers: make(map[string]func(json.RawMessage)),
		log:            logger,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// OnNotification registers a handler for server notifications with the
// given method. Must be called before ReadLoop starts.
func (c *Conn) OnNotification(method string, h func(json.RawMessage)) {
	c.notifyHandlers[method] = h
}

// Call sends a request and waits for its response. On success the result is
// unmarshalled into result when result is non-nil.
//
// The wait ends with ErrTimeout when the request deadline passes and with
// ErrCancelled when ctx is done; neither affects other in-flight calls.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	resp, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if result != nil && len(resp) > 0 {
		if err := json.Unmarshal(resp, result); err != nil {
			return errors.Wrapf(err, "jsonrpc: unmarshal %s result", method)
		}
	}
	return nil
}

// CallRaw is Call without result decoding.
func (c *Conn) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed() {
		return nil, ErrClosed
	}

	id := c.calls.NextID()
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	p, err := c.calls.Register(id, deadline)
	if err != nil {
		return nil, err
	}

	req := &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
	if err := c.send(req); err != nil {
		c.calls.Fail(id, err)
		return nil, errors.Wrapf(err, "jsonrpc: send %s", method)
	}

	var timeoutC <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case out := <-p.Wait():
		return handleOutcome(out)
	case <-timeoutC:
		c.calls.Fail(id, errors.Wrapf(ErrTimeout, "%s (id %d) after %s", method, id, c.timeout))
	case <-ctx.Done():
		c.calls.Fail(id, cancelled(ctx, method, id))
	}
	// Whichever completion won the race has already delivered its outcome,
	// including a response that arrived just before the deadline.
	return handleOutcome(<-p.Wait())
}

// Notify sends a notification. No response is expected.
func (c *Conn) Notify(method string, params any) error {
	if c.closed() {
		return ErrClosed
	}
	if err := c.send(&Request{JSONRPC: Version, Method: method, Params: params}); err != nil {
		return errors.Wrapf(err, "jsonrpc: notify %s", method)
	}
	return nil
}

// ReadLoop decodes inbound frames until the stream ends or Close is called.
// Malformed frames are logged and skipped. Pending requests are left in
// place when the loop exits; they complete by timeout or cancellation.
func (c *Conn) ReadLoop() {
	if !c.loopStarted.CompareAndSwap(false, true) {
		return
	}
	defer close(c.done)

	for {
		if c.stopping() {
			return
		}
		var msg Message
		if err := c.r.ReadJSON(&msg); err != nil {
			if errors.Is(err, io.EOF) || c.stopping() {
				return
			}
			c.log.WithError(err).Warn("discarding malformed frame")
			continue
		}
		c.dispatch(&msg)
	}
}

// Close signals ReadLoop to stop at the next frame boundary. A read blocked
// on the stream only returns once the stream itself is closed.
func (c *Conn) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Wait blocks until ReadLoop exits or timeout elapses, and reports whether
// it exited.
func (c *Conn) Wait(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// InFlight returns the number of requests awaiting a response.
func (c *Conn) InFlight() int {
	return c.calls.Len()
}

// Done returns a channel closed when ReadLoop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// --- Internal ---

func (c *Conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteJSON(v)
}

func (c *Conn) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Conn) closed() bool {
	if c.stopping() {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// dispatch routes one inbound message.
func (c *Conn) dispatch(msg *Message) {
	switch {
	case msg.Method == "" && msg.HasID():
		id, ok := msg.NumericID()
		if !ok {
			c.log.WithField("id", string(msg.ID)).Debug("dropping response with non-numeric id")
			return
		}
		resp := &Response{ID: id, Result: msg.Result, Error: msg.Error}
		if !c.calls.Resolve(id, resp) {
			c.log.WithField("id", id).Debug("dropping response for unknown id")
		}
	case msg.Method != "" && msg.HasID():
		c.log.WithField("method", msg.Method).Debug("rejecting server request")
		reply := &errorReply{
			JSONRPC: Version,
			ID:      msg.ID,
			Error:   &ErrorObject{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method},
		}
		// Off the reader goroutine: a full stdin pipe must not stall dispatch.
		go func() {
			if err := c.send(reply); err != nil {
				c.log.WithError(err).Debug("failed to reject server request")
			}
		}()
	case msg.Method != "":
		if h, ok := c.notifyHandlers[msg.Method]; ok {
			h(msg.Params)
			return
		}
		c.log.WithField("method", msg.Method).Debug("ignoring notification")
	default:
		c.log.Debug("ignoring message without id or method")
	}
}

func handleOutcome(out Outcome) (json.RawMessage, error) {
	if out.Err != nil {
		return nil, out.Err
	}
	if e := out.Response.Error; e != nil {
		return nil, &RPCError{Code: e.Code, Message: errfmt.Truncate(e.Message), Data: e.Data}
	}
	return out.Response.Result, nil
}

// cancelled wraps both the sentinel and ctx.Err(). pkg/errors wraps a single
// cause, so this uses fmt.Errorf with two %w verbs.
func cancelled(ctx context.Context, method string, id int64) error {
	cause := ctx.Err()
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s (id %d): %w", ErrTimeout, method, id, cause)
	}
	return fmt.Errorf("%w: %s (id %d): %w", ErrCancelled, method, id, cause)
}
