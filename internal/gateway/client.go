package gateway

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/pkg/meshcore"
)

const (
	// dialTimeout bounds a single connection attempt to the companion
	dialTimeout = 5 * time.Second

	// redialBackoff is how long calls fail fast after a dial failure
	// before the next attempt
	redialBackoff = 10 * time.Second

	// callQueueSize bounds queued calls. Poll and ping traffic together
	// never come close; hitting the bound means the companion link is
	// wedged and callers should fail instead of piling up.
	callQueueSize = 32
)

// call is one queued request/response exchange
type call struct {
	ctx     context.Context
	request []byte
	done    chan callResult
}

type callResult struct {
	payload []byte
	err     error
}

// Client talks to the MeshCore companion device over TCP. All outbound
// calls - scheduled polls and interactive pings alike - are funneled
// through a single worker goroutine in FIFO order, because the companion
// is a single-threaded, order-sensitive transport. Each call carries its
// own deadline so one slow repeater cannot stall an unrelated call forever.
type Client struct {
	mu   sync.RWMutex
	host string
	port int

	conn          net.Conn
	dialFailedAt  time.Time
	contacts      []meshcore.Contact

	calls chan *call
}

// NewClient creates a companion client for the given address. Run must
// be started before any call is issued.
func NewClient(host string, port int) *Client {
	return &Client{
		host:  host,
		port:  port,
		calls: make(chan *call, callQueueSize),
	}
}

// Reconfigure points the client at a new companion address. The current
// connection is closed; the next call redials. In-flight calls finish
// against the old address first.
func (c *Client) Reconfigure(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if host == c.host && port == c.port {
		return
	}

	log.Info().
		Str("host", host).
		Int("port", port).
		Msg("Companion address changed, reconnecting")

	c.host = host
	c.port = port
	c.dialFailedAt = time.Time{}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Run processes the call queue until ctx is cancelled. The in-flight
// call is allowed to finish or time out; the queue is then drained with
// failures so no caller is left hanging.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case queued := <-c.calls:
			payload, err := c.exchange(queued.ctx, queued.request)
			queued.done <- callResult{payload: payload, err: err}
		}
	}
}

// shutdown closes the connection and fails any queued calls
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	for {
		select {
		case queued := <-c.calls:
			queued.done <- callResult{err: ErrGatewayUnreachable}
		default:
			return
		}
	}
}

// roundTrip queues one request and waits for its reply
func (c *Client) roundTrip(ctx context.Context, request []byte) ([]byte, error) {
	queued := &call{
		ctx:     ctx,
		request: request,
		done:    make(chan callResult, 1),
	}

	select {
	case c.calls <- queued:
	default:
		return nil, fmt.Errorf("%w: call queue full", ErrGatewayUnreachable)
	}

	select {
	case result := <-queued.done:
		return result.payload, result.err
	case <-ctx.Done():
		// The worker still completes the exchange and writes into the
		// buffered done channel; the caller just stops waiting.
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrGatewayTimeout
		}
		return nil, ctx.Err()
	}
}

// exchange performs one write/read on the companion connection. Runs
// only on the worker goroutine.
func (c *Client) exchange(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return nil, ErrGatewayTimeout
		}
		return nil, err
	}

	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	conn.SetDeadline(deadline)

	if err := meshcore.WriteFrame(conn, request); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}

	payload, err := meshcore.ReadFrame(conn)
	if err != nil {
		c.dropConnection(conn)
		if netErr, isNet := err.(net.Error); isNet && netErr.Timeout() {
			return nil, ErrGatewayTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}

	return payload, nil
}

// connection returns the live connection, dialing if needed
func (c *Client) connection() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	if !c.dialFailedAt.IsZero() && time.Since(c.dialFailedAt) < redialBackoff {
		return nil, fmt.Errorf("%w: reconnect backoff active", ErrGatewayUnreachable)
	}

	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	log.Info().Str("addr", addr).Msg("Connecting to companion device")

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		c.dialFailedAt = time.Now()
		return nil, fmt.Errorf("%w: dial %s: %v", ErrGatewayUnreachable, addr, err)
	}

	log.Info().Str("addr", addr).Msg("Connected to companion device")
	c.dialFailedAt = time.Time{}
	c.conn = conn
	return conn, nil
}

// dropConnection closes a broken connection if it is still the current one
func (c *Client) dropConnection(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn.Close()
	if c.conn == conn {
		c.conn = nil
	}
}

// malformed logs a reply the protocol layer rejected, with the raw
// payload for diagnosis, and returns ErrMalformedReply
func malformed(what string, payload []byte, err error) error {
	log.Warn().
		Str("what", what).
		Str("payload", hex.EncodeToString(payload)).
		Err(err).
		Msg("Malformed companion reply")
	return fmt.Errorf("%w: %s", ErrMalformedReply, what)
}
