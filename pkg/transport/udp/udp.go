// Package udp bridges the seeder's core message channel onto datagrams:
// every outbound message becomes one datagram to the routing core and
// every datagram from the core is delivered back to the seeder.
package udp

import (
    "context"
    "errors"
    "fmt"
    "net"
    "net/netip"
    "sync"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

// MaxDatagram bounds inbound datagrams; core messages are far smaller.
const MaxDatagram = 2048

type Options struct {
    // Bind is the local UDP address, e.g. "127.0.0.1:0".
    Bind string
    // Core is the routing core's UDP address (required).
    Core   string
    Logger *zap.Logger
}

// Bridge relays messages between a transport.CoreEndpoint and the core.
type Bridge struct {
    conn *net.UDPConn
    core netip.AddrPort
    log  *zap.Logger

    closeOnce sync.Once
    closeErr  error
}

// New opens the local socket.
func New(opts Options) (*Bridge, error) {
    if opts.Core == "" { return nil, errors.New("udp: empty core address") }
    core, err := net.ResolveUDPAddr("udp", opts.Core)
    if err != nil { return nil, fmt.Errorf("udp: resolve core %q: %w", opts.Core, err) }
    bind := opts.Bind
    if bind == "" { bind = ":0" }
    laddr, err := net.ResolveUDPAddr("udp", bind)
    if err != nil { return nil, fmt.Errorf("udp: resolve bind %q: %w", bind, err) }
    conn, err := net.ListenUDP("udp", laddr)
    if err != nil { return nil, err }
    ap := core.AddrPort()
    return &Bridge{conn: conn, core: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), log: opts.Logger}, nil
}

// Close releases the socket. Run calls it on return; calling it again is a
// no-op.
func (b *Bridge) Close() error {
    b.closeOnce.Do(func() { b.closeErr = b.conn.Close() })
    return b.closeErr
}

// Addr returns the local socket address.
func (b *Bridge) Addr() string { return b.conn.LocalAddr().String() }

// Run relays until ctx ends or the socket fails. It closes the socket on
// return.
func (b *Bridge) Run(ctx context.Context, ep transport.CoreEndpoint) error {
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        <-gctx.Done()
        return b.Close()
    })
    g.Go(func() error { return b.outbound(gctx, ep) })
    g.Go(func() error { return b.inbound(gctx, ep) })
    err := g.Wait()
    if ctx.Err() != nil { return nil }
    return err
}

func (b *Bridge) outbound(ctx context.Context, ep transport.CoreEndpoint) error {
    dst := net.UDPAddrFromAddrPort(b.core)
    for {
        select {
        case <-ctx.Done():
            return nil
        case msg := <-ep.CoreMessages():
            if _, err := b.conn.WriteToUDP(msg, dst); err != nil {
                if ctx.Err() != nil { return nil }
                logutil.Warnf(b.log, "udp: send to core %s: %v", b.core, err)
            }
        }
    }
}

func (b *Bridge) inbound(ctx context.Context, ep transport.CoreEndpoint) error {
    buf := make([]byte, MaxDatagram)
    for {
        n, from, err := b.conn.ReadFromUDPAddrPort(buf)
        if err != nil {
            if ctx.Err() != nil { return nil }
            return fmt.Errorf("udp: read: %w", err)
        }
        if netip.AddrPortFrom(from.Addr().Unmap(), from.Port()) != b.core {
            logutil.Debugf(b.log, "udp: dropping datagram from %s", from)
            continue
        }
        if err := ep.DeliverCoreMessage(buf[:n]); err != nil {
            logutil.Warnf(b.log, "udp: deliver core message: %v", err)
            obsmetrics.CoreMessages.WithLabelValues("bridge_dropped").Inc()
        }
    }
}

var _ transport.Transport = (*Bridge)(nil)
