package stream

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"quantenginev1/internal/bus"
)

// State is the connection lifecycle state of a Client.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateError
	StateClosed
)

// Record is one desired-live subscription. The Frame is resent verbatim
// when the connection is re-established after a transport error.
type Record struct {
	Kind   string // channel kind, e.g. "kline", "depth"
	Symbol string
	Params string
	Frame  []byte
}

// Topic returns the record's routing key.
func (r Record) Topic() string {
	return r.Kind + ":" + r.Symbol + ":" + r.Params
}

// Options tunes the reconnect supervisor.
type Options struct {
	// ReconnectDelay is the fixed delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// ReplayJitter is the max per-entry delay between resubscribe
	// frames after a reconnect, avoiding a thundering herd.
	ReplayJitter time.Duration
	// MaxAttempts bounds consecutive failed reconnects. 0 retries forever.
	MaxAttempts int
	// InboundBuffer is the per-consumer buffer of the inbound fan-out.
	InboundBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.ReplayJitter <= 0 {
		o.ReplayJitter = 300 * time.Millisecond
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = 1024
	}
	return o
}

// Client multiplexes subscribe requests over one socket and recovers
// the logical session after transport failures: on error it reconnects
// after a fixed delay and replays every recorded subscription in the
// order it was originally issued.
//
// The outbound sink never drops: frames sent before the socket opens
// are buffered unbounded and flushed in submission order on open.
type Client struct {
	url     string
	factory Factory
	opts    Options

	mu           sync.Mutex
	sock         Socket
	state        State
	pending      [][]byte
	records      []Record
	attempts     int
	reconnecting bool
	closed       bool

	inbound *bus.FanOut[[]byte]

	// OnSessionOpen returns frames to transmit the moment the transport
	// opens, ahead of any buffered or replayed traffic. Venue adapters
	// use it for auth frames that must precede subscriptions.
	OnSessionOpen func() [][]byte

	// OnReconnect is an optional metrics hook fired per reconnect attempt.
	OnReconnect func()
}

// NewClient creates a Client for the given url and socket factory.
func NewClient(url string, factory Factory, opts Options) *Client {
	o := opts.withDefaults()
	return &Client{
		url:     url,
		factory: factory,
		opts:    o,
		state:   StateIdle,
		inbound: bus.New[[]byte](o.InboundBuffer),
	}
}

// Connect dials the socket. A first-dial failure is returned to the
// caller (startup misconfiguration should abort startup); failures
// after that are handled by the reconnect supervisor.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("stream: client closed")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if _, err := c.factory(c.url, c.handlers()); err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		return fmt.Errorf("stream: dial %s: %w", c.url, err)
	}
	return nil
}

func (c *Client) handlers() Handlers {
	return Handlers{
		OnOpen:    c.handleOpen,
		OnMessage: c.inbound.Publish,
		OnError:   c.handleError,
		OnClose:   c.handleClose,
	}
}

// Send enqueues payload on the outbound sink. Submission order is
// preserved; if the socket is not open yet the frame is buffered and
// flushed on open. Producers never block here.
func (c *Client) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(payload)
}

func (c *Client) sendLocked(payload []byte) {
	if c.closed {
		return
	}
	if c.state == StateOpen && len(c.pending) == 0 && c.sock != nil {
		if err := c.sock.Send(payload); err == nil {
			return
		}
		// Write failed mid-flight: keep the frame, the read side will
		// surface the error and trigger the supervisor.
	}
	c.pending = append(c.pending, payload)
}

// Subscribe sends the record's frame and remembers it for replay.
func (c *Client) Subscribe(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.sendLocked(rec.Frame)
	c.records = append(c.records, rec)
}

// Unsubscribe sends frame and prunes every record matching the topic,
// so it is not replayed after the next reconnect.
func (c *Client) Unsubscribe(topic string, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if frame != nil {
		c.sendLocked(frame)
	}
	kept := c.records[:0]
	for _, rec := range c.records {
		if rec.Topic() != topic {
			kept = append(kept, rec)
		}
	}
	c.records = kept
}

// Records returns a snapshot of the live subscription records.
func (c *Client) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Inbound returns a new consumer view of the shared inbound stream.
// All consumers observe the same messages in arrival order.
func (c *Client) Inbound() <-chan []byte {
	return c.inbound.Subscribe()
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) handleOpen(sock Socket) {
	var openFrames [][]byte
	if c.OnSessionOpen != nil {
		openFrames = c.OnSessionOpen()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sock.Close()
		return
	}
	reconnected := c.reconnecting
	c.sock = sock
	c.state = StateOpen
	c.attempts = 0
	c.reconnecting = false

	for _, f := range openFrames {
		sock.Send(f)
	}
	flushed := make(map[string]struct{}, len(c.pending))
	for _, f := range c.pending {
		sock.Send(f)
		flushed[string(f)] = struct{}{}
	}
	c.pending = nil

	// Subscriptions issued while disconnected are already in the pending
	// buffer just flushed; replaying those records too would send the
	// same subscribe frame twice on the fresh socket.
	var replay []Record
	if reconnected {
		for _, rec := range c.records {
			if _, ok := flushed[string(rec.Frame)]; ok {
				continue
			}
			replay = append(replay, rec)
		}
	}
	c.mu.Unlock()

	if len(replay) > 0 {
		go c.replay(replay)
	}
}

// replay resends subscription frames sequentially in original issue
// order, each delayed by a short jitter.
func (c *Client) replay(records []Record) {
	for _, rec := range records {
		time.Sleep(time.Duration(rand.Int63n(int64(c.opts.ReplayJitter) + 1)))
		log.Printf("[stream] replaying subscription %s", rec.Topic())
		c.Send(rec.Frame)
	}
}

func (c *Client) handleError(err error) {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	log.Printf("[stream] transport error: %v", err)
	c.state = StateError
	c.reconnecting = true
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
	c.mu.Unlock()

	go c.supervise()
}

// handleClose distinguishes deliberate closure from abnormal closure:
// a normal close (1000) completes the stream, anything else is routed
// through the reconnect supervisor.
func (c *Client) handleClose(code int, reason string) {
	if code == 1000 {
		log.Printf("[stream] connection completed normally")
		c.Close()
		return
	}
	c.handleError(fmt.Errorf("abnormal closure %d: %s", code, reason))
}

// supervise retries the connection after the fixed delay until it opens,
// MaxAttempts is exhausted, or the client is closed.
func (c *Client) supervise() {
	for {
		time.Sleep(c.opts.ReconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempt := c.attempts
		if c.opts.MaxAttempts > 0 && attempt > c.opts.MaxAttempts {
			log.Printf("[stream] giving up after %d reconnect attempts", c.opts.MaxAttempts)
			c.mu.Unlock()
			c.Close()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		if c.OnReconnect != nil {
			c.OnReconnect()
		}
		log.Printf("[stream] reconnect attempt %d to %s", attempt, c.url)

		if _, err := c.factory(c.url, c.handlers()); err != nil {
			log.Printf("[stream] reconnect failed: %v", err)
			c.mu.Lock()
			c.state = StateError
			c.mu.Unlock()
			continue
		}
		return
	}
}

// Close tears the client down: the socket is closed exactly once, the
// inbound fan-out completes, and no reconnect is attempted. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	c.inbound.Close()
}
