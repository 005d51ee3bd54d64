// Package conn adapts a dcp.ControlBlock to a real net.PacketConn, driving
// its wheel.Wheel off the process wall clock and exposing a net.Conn-shaped
// Read/Write/Close/deadline API: a mutex-guarded wrapper around a
// lower-level handler that backs off and retries Read/Write against
// deadlines instead of blocking forever.
package conn

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/dcp-transport/dcp"
	"github.com/dcp-transport/dcp/wheel"
)

var (
	errDeadlineExceeded = os.ErrDeadlineExceeded
	errClosed           = errors.New("conn: use of closed connection")
)

const readBufSize = 2048

// levelTrace mirrors the core package's below-Debug verbosity level so a
// shared *slog.Logger produces consistent output across dcp and dcp/conn.
const levelTrace = slog.Level(-8)

type logger struct{ log *slog.Logger }

func (l logger) logAttrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.log == nil || !l.log.Enabled(context.Background(), level) {
		return
	}
	l.log.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l logger) trace(msg string, attrs ...slog.Attr) { l.logAttrs(levelTrace, msg, attrs...) }
func (l logger) debug(msg string, attrs ...slog.Attr) { l.logAttrs(slog.LevelDebug, msg, attrs...) }
func (l logger) warn(msg string, attrs ...slog.Attr)  { l.logAttrs(slog.LevelWarn, msg, attrs...) }

// Conn binds a dcp.ControlBlock to a net.PacketConn, pumping inbound
// datagrams and timer ticks off the wall clock so callers see an ordinary
// blocking Read/Write API. There is exactly one background reader
// goroutine per Conn; the ControlBlock itself is only ever touched while
// conn.mu is held, preserving its single-threaded contract.
type Conn struct {
	mu     sync.Mutex
	cb     *dcp.ControlBlock
	wheel  *wheel.Wheel
	pc     net.PacketConn
	remote net.Addr
	epoch  time.Time
	log    logger

	rdead time.Time
	wdead time.Time

	closed   bool
	closeErr error
	closeCh  chan struct{}
}

// Config bundles the knobs a caller may want when dialing or accepting a
// connection.
type Config struct {
	MTU               uint32
	CongestionControl string
	Logger            *slog.Logger
}

// newConvToken derives a conv/token pair from a fresh xid, giving each
// locally-originated connection process-wide-unique identifiers without a
// central counter.
func newConvToken() (conv, token uint32) {
	id := xid.New()
	b := id.Bytes()
	conv = binary.BigEndian.Uint32(b[0:4])
	token = binary.BigEndian.Uint32(b[4:8])
	return conv, token
}

// Dial opens a Conn to remote over pc, acting as the connection's
// originator: it picks a fresh conv/token pair and begins sending
// immediately on the first Write.
func Dial(pc net.PacketConn, remote net.Addr, cfg Config) (*Conn, error) {
	conv, token := newConvToken()
	return newConn(pc, remote, conv, token, cfg)
}

// Accept builds a Conn for a peer identified by conv/token already
// observed on the wire (typically read from the first datagram a listener
// received from remote), so both sides agree on the identifiers without a
// handshake.
func Accept(pc net.PacketConn, remote net.Addr, conv, token uint32, cfg Config) (*Conn, error) {
	return newConn(pc, remote, conv, token, cfg)
}

func newConn(pc net.PacketConn, remote net.Addr, conv, token uint32, cfg Config) (*Conn, error) {
	w := wheel.New()
	cb, err := dcp.Create(conv, token, w)
	if err != nil {
		return nil, err
	}
	if cfg.MTU != 0 {
		if err := cb.SetMTU(cfg.MTU); err != nil {
			return nil, err
		}
	}
	if cfg.CongestionControl != "" {
		if err := cb.SetCongestionControl(cfg.CongestionControl); err != nil {
			return nil, err
		}
	}
	c := &Conn{
		cb:      cb,
		wheel:   w,
		pc:      pc,
		remote:  remote,
		epoch:   time.Now(),
		log:     logger{log: cfg.Logger},
		closeCh: make(chan struct{}),
	}
	cb.SetLogger(cfg.Logger)
	cb.SetOutput(c.output)
	go c.readLoop()
	return c, nil
}

func (c *Conn) now() uint32 {
	return uint32(time.Since(c.epoch).Milliseconds())
}

// output is installed as the ControlBlock's OutputFunc; it is only ever
// called while c.mu is held (Send/Input/timer callbacks all run under the
// lock), so writing to pc here needs no additional synchronization.
func (c *Conn) output(datagram []byte) error {
	_, err := c.pc.WriteTo(datagram, c.remote)
	if err != nil {
		c.log.warn("conn: write failed", slog.String("err", err.Error()))
	}
	return err
}

// readLoop is the sole goroutine that calls ReadFrom on pc. It also drives
// the timer wheel: every inbound read and every poll interval advances the
// wheel to the current wall-clock millisecond, firing due retransmission,
// pacing and delayed-ACK callbacks exactly as if a caller were ticking
// them explicitly.
func (c *Conn) readLoop() {
	buf := make([]byte, readBufSize)
	for {
		c.pc.SetReadDeadline(time.Now().Add(wheelPollInterval))
		n, addr, err := c.pc.ReadFrom(buf)
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		now := c.now()
		if err == nil && sameAddr(addr, c.remote) {
			if ierr := c.cb.Input(buf[:n], now); ierr != nil {
				c.log.debug("conn: rejected datagram", slog.String("err", ierr.Error()))
			}
		}
		c.wheel.Run(now)
		c.mu.Unlock()
		if err != nil && !isTimeout(err) {
			c.mu.Lock()
			c.abort(err)
			c.mu.Unlock()
			return
		}
	}
}

// wheelPollInterval bounds how long readLoop can block without ticking the
// wheel when no datagrams arrive, so a lone RTO timer still fires on an
// otherwise idle connection.
const wheelPollInterval = time.Duration(wheel.Resolution) * time.Millisecond

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func sameAddr(a, b net.Addr) bool {
	return a != nil && b != nil && a.String() == b.String()
}

// Write enqueues b for reliable delivery, blocking until the ControlBlock
// has room to accept it or the write deadline passes.
func (c *Conn) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		c.mu.Lock()
		if c.closed {
			err := c.closeErr
			c.mu.Unlock()
			if err == nil {
				err = errClosed
			}
			return 0, err
		}
		if deadlineExceeded(c.wdead) {
			c.mu.Unlock()
			return 0, errDeadlineExceeded
		}
		err := c.cb.Send(b, c.now())
		c.mu.Unlock()
		switch {
		case err == nil:
			return len(b), nil
		case errors.Is(err, dcp.ErrWindowFull):
			time.Sleep(wheelPollInterval)
			continue
		default:
			return 0, err
		}
	}
}

// Read copies the next complete message into b, blocking until one is
// available or the read deadline passes.
func (c *Conn) Read(b []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.closed {
			err := c.closeErr
			c.mu.Unlock()
			if err == nil {
				err = errClosed
			}
			return 0, err
		}
		if deadlineExceeded(c.rdead) {
			c.mu.Unlock()
			return 0, errDeadlineExceeded
		}
		n, err := c.cb.Recv(b)
		c.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
		time.Sleep(wheelPollInterval)
	}
}

// Close releases the ControlBlock and stops the read loop. It does not
// close the underlying net.PacketConn, which the caller may be sharing
// across multiple Conns (e.g. a listener multiplexing by remote address).
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cb.Release()
	c.wheel.Release()
	close(c.closeCh)
	return nil
}

func (c *Conn) abort(err error) {
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	c.cb.Release()
	c.wheel.Release()
	close(c.closeCh)
}

// LocalAddr and RemoteAddr implement net.Conn.
func (c *Conn) LocalAddr() net.Addr  { return c.pc.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Stats returns a snapshot of the underlying ControlBlock's counters, for
// export via dcp/metrics or ad hoc logging.
func (c *Conn) Stats() dcp.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb.Stats()
}

// ControlBlock returns the ControlBlock backing this Conn, for callers that
// only need to read accessors (Stats, MTU, ...) or register it with
// dcp/metrics. It must not be driven (Send/Recv/Input) directly while the
// Conn's own read loop is running; use Configure to mutate it safely.
func (c *Conn) ControlBlock() *dcp.ControlBlock { return c.cb }

// Configure runs apply against the underlying ControlBlock while holding
// the lock the read loop itself uses, so a caller can safely install
// tunables (dcp/config.Tunables.Apply) at any point in the Conn's
// lifetime, not just before Dial/Accept returns.
func (c *Conn) Configure(apply func(*dcp.ControlBlock) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return apply(c.cb)
}

func deadlineExceeded(t time.Time) bool {
	return !t.IsZero() && time.Now().After(t)
}

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rdead = t
	c.wdead = t
	return nil
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rdead = t
	return nil
}

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wdead = t
	return nil
}
