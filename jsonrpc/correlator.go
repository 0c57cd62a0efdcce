package jsonrpc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Outcome is the single value delivered to a pending request.
type Outcome struct {
	Response *Response
	Err      error
}

// Pending is an in-flight request awaiting its outcome. The channel has
// capacity one and receives exactly one value.
type Pending struct {
	ID       int64
	Deadline time.Time

	ch chan Outcome
}

// Wait returns the channel that receives the request's outcome.
func (p *Pending) Wait() <-chan Outcome {
	return p.ch
}

// Correlator matches responses to pending requests by id.
//
// An entry is completed by whichever of Resolve and Fail removes it from the
// table first; every later attempt for the same id is a no-op.
type Correlator struct {
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]*Pending
}

// NewCorrelator returns an empty Correlator. Ids start at 1.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[int64]*Pending)}
}

// NextID returns a fresh id. Ids are strictly increasing and never reused.
func (c *Correlator) NextID() int64 {
	return c.nextID.Add(1)
}

// Register inserts a pending entry for id. It must be called before the
// request is written so a fast response cannot arrive ahead of its entry.
func (c *Correlator) Register(id int64, deadline time.Time) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pending[id]; exists {
		return nil, errors.Errorf("jsonrpc: id %d already pending", id)
	}
	p := &Pending{ID: id, Deadline: deadline, ch: make(chan Outcome, 1)}
	c.pending[id] = p
	return p, nil
}

// Resolve completes the entry for id with resp. It reports false when no
// entry exists: unknown id, already completed, or never registered.
func (c *Correlator) Resolve(id int64, resp *Response) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.ch <- Outcome{Response: resp}
	return true
}

// Fail completes the entry for id with err. It reports false when the entry
// was already completed.
func (c *Correlator) Fail(id int64, err error) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.ch <- Outcome{Err: err}
	return true
}

// Len returns the number of in-flight requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) take(id int64) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return p
}
