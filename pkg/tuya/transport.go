package tuya

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Transport is a resilient TCP stream to one device. While open it
// maintains at most one connection attempt in flight; on any lost
// connection it reconnects using the supplied Backoff. Frames are split on
// the wire suffix and handed to the Bus as DataReceived; outbound frames
// arrive as DataSent.
type Transport struct {
	name    string
	address string
	port    int
	backoff Backoff
	timeout time.Duration
	bus     *Bus
	logger  zerolog.Logger

	mu        sync.Mutex
	conn      net.Conn
	connected chan struct{} // closed and replaced on each (dis)connection
	closing   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTransport builds a Transport for one device. It does not connect until
// Start is called.
func NewTransport(name, address string, port int, backoff Backoff, timeout time.Duration, bus *Bus, logger zerolog.Logger) *Transport {
	t := &Transport{
		name:      name,
		address:   address,
		port:      port,
		backoff:   backoff,
		timeout:   timeout,
		bus:       bus,
		logger:    logger,
		connected: make(chan struct{}),
	}
	Register(bus, func(ctx context.Context, e DataSent) error {
		return t.write(ctx, e.Frame)
	})
	return t
}

// Start launches the connect/reconnect loop in the background and returns
// immediately; connection establishment and all reconnection happens
// asynchronously, reported via ConnectionEstablished/ConnectionClosed.
func (t *Transport) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx)
}

// Close tears down the current connection (if any) and stops reconnecting.
// It emits a final ConnectionClosed(nil) for a planned close.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closing = true
	conn := t.conn
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if t.done != nil {
		<-t.done
	}
	t.bus.Emit(context.Background(), ConnectionClosed{Err: nil})
	return nil
}

// write blocks until the connection is established, then writes frame.
// Writes are fire-and-forget at the socket level; IO errors surface
// asynchronously as ConnectionClosed once the reader loop observes them.
func (t *Transport) write(ctx context.Context, frame []byte) error {
	for {
		t.mu.Lock()
		closing := t.closing
		conn := t.conn
		ch := t.connected
		t.mu.Unlock()

		if closing {
			return ErrTransportClosed
		}
		if conn != nil {
			_, err := conn.Write(frame)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := t.connectOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn().Err(err).Str("device", t.name).Msg("could not connect, retrying")
			if t.backoff.Wait(ctx) != nil {
				return
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		ch := t.connected
		t.connected = make(chan struct{})
		close(ch)
		t.mu.Unlock()

		t.bus.Emit(ctx, ConnectionEstablished{})
		readErr := t.readLoop(ctx, conn)

		t.mu.Lock()
		t.conn = nil
		closing := t.closing
		t.mu.Unlock()
		conn.Close()

		if closing {
			return
		}
		t.bus.Emit(ctx, ConnectionClosed{Err: readErr})
	}
}

func (t *Transport) connectOnce(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: t.timeout}
	addr := net.JoinHostPort(t.address, strconv.Itoa(t.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop splits the incoming byte stream into wire frames on Separator
// and emits DataReceived for each. The backoff is reset only once a full
// frame is actually read: a TCP-open socket that never answers must not be
// treated as a live connection.
func (t *Transport) readLoop(ctx context.Context, conn net.Conn) error {
	r := bufio.NewReader(conn)
	for {
		frame, err := readFrame(r)
		if err != nil {
			return err
		}
		t.backoff.Reset()
		t.bus.Emit(ctx, DataReceived{Frame: frame})
	}
}

// readFrame accumulates bytes until it observes Separator, mirroring
// readuntil(separator) from the reference implementation.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if len(buf) >= len(Separator) && bytes.Equal(buf[len(buf)-len(Separator):], Separator) {
			return buf, nil
		}
	}
}
