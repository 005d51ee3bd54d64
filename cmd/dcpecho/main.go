// Command dcpecho is a minimal two-sided demo of the dcp transport: run it
// once with -listen to host an echo server, and once with -dial to send it
// a line of text and print back whatever comes over the reliable
// connection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dcp-transport/dcp/config"
	"github.com/dcp-transport/dcp/conn"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listenAddr = flag.String("listen", "", "UDP address to host an echo server on, e.g. :9000")
		dialAddr   = flag.String("dial", "", "UDP address of an echo server to dial")
		message    = flag.String("msg", "hello over dcp", "message to send when -dial is set")
		configPath = flag.String("config", "", "optional YAML file of dcp tunables (mtu, send_window, recv_window, congestion_control, no_cwnd)")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	tunables, err := loadTunables(*configPath)
	if err != nil {
		return err
	}

	switch {
	case *listenAddr != "":
		return serve(*listenAddr, tunables, log)
	case *dialAddr != "":
		return dial(*dialAddr, *message, tunables, log)
	default:
		flag.Usage()
		return errors.New("dcpecho: one of -listen or -dial is required")
	}
}

func loadTunables(path string) (config.Tunables, error) {
	if path == "" {
		return config.Tunables{}, nil
	}
	return config.Load(path)
}

// serve hosts a single echo connection, to the remote address that sent
// the first datagram on the UDP socket; the Conn's background reader
// goroutine ignores datagrams from any other source address.
func serve(addr string, tunables config.Tunables, log *slog.Logger) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer pc.Close()
	log.Info("dcpecho: listening", slog.String("addr", pc.LocalAddr().String()))

	ctx, cancel := signalContext()
	defer cancel()

	conv, token, remote, err := firstDatagramIdentity(ctx, pc)
	if err != nil {
		return err
	}

	c, err := conn.Accept(pc, remote, conv, token, conn.Config{Logger: log})
	if err != nil {
		return err
	}
	defer c.Close()
	applyTunables(tunables, c, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return echoLoop(ctx, c, log) })
	return g.Wait()
}

// firstDatagramIdentity blocks until the first inbound datagram arrives,
// extracting the conv_id the dialer chose so both sides agree on it
// without a separate handshake message.
func firstDatagramIdentity(ctx context.Context, pc net.PacketConn) (conv, token uint32, remote net.Addr, err error) {
	buf := make([]byte, 2048)
	type result struct {
		n    int
		addr net.Addr
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		n, addr, err := pc.ReadFrom(buf)
		resCh <- result{n, addr, err}
	}()
	select {
	case <-ctx.Done():
		return 0, 0, nil, ctx.Err()
	case res := <-resCh:
		if res.err != nil {
			return 0, 0, nil, res.err
		}
		if res.n < 4 {
			return 0, 0, nil, errors.New("dcpecho: first datagram too short to carry conv_id")
		}
		conv = uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		return conv, 0, res.addr, nil
	}
}

func echoLoop(ctx context.Context, c *conn.Conn, log *slog.Logger) error {
	buf := make([]byte, 2048)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := c.Read(buf)
		if err != nil {
			if isTimeoutLike(err) {
				continue
			}
			return err
		}
		log.Debug("dcpecho: echoing", slog.Int("bytes", n))
		if _, err := c.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func dial(addr, message string, tunables config.Tunables, log *slog.Logger) error {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	pc, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return err
	}
	defer pc.Close()

	c, err := conn.Dial(pc, remote, conn.Config{Logger: log})
	if err != nil {
		return err
	}
	defer c.Close()
	applyTunables(tunables, c, log)

	if _, err := c.Write([]byte(message)); err != nil {
		return err
	}

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 2048)
	n, err := c.Read(buf)
	if err != nil {
		return err
	}
	fmt.Println(string(buf[:n]))
	return nil
}

func applyTunables(t config.Tunables, c *conn.Conn, log *slog.Logger) {
	if err := c.Configure(t.Apply); err != nil {
		log.Warn("dcpecho: ignoring invalid tunable", slog.String("err", err.Error()))
	}
}

func isTimeoutLike(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
