// Command coresim stands in for a routing core during development. It
// answers peer census requests from a seeder's core bridge and, with
// -accept, treats every connect command as an established peering.
package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/peering"
)

func main() {
    var (
        bind   = flag.String("bind", "127.0.0.1:17948", "UDP bind host:port")
        accept = flag.Bool("accept", true, "report every connect command as a new peer")
        debug  = flag.Bool("debug", false, "debug logging")
    )
    flag.Parse()

    cfg := zap.NewDevelopmentConfig()
    cfg.DisableStacktrace = true
    if !*debug { cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel) }
    log, err := cfg.Build()
    if err != nil { fmt.Fprintln(os.Stderr, err); os.Exit(1) }
    defer func() { _ = log.Sync() }()

    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer cancel()

    conn, err := net.ListenPacket("udp", *bind)
    if err != nil { log.Fatal("listen", zap.Error(err)) }
    go func() { <-ctx.Done(); _ = conn.Close() }()
    log.Info("coresim listening", zap.String("addr", conn.LocalAddr().String()))

    c := &core{conn: conn, log: log, accept: *accept, peers: make(map[peering.PublicKey]coremsg.Node)}
    if err := c.serve(); err != nil && ctx.Err() == nil { log.Fatal("serve", zap.Error(err)) }
}

type core struct {
    conn   net.PacketConn
    log    *zap.Logger
    accept bool
    peers  map[peering.PublicKey]coremsg.Node
}

func (c *core) serve() error {
    buf := make([]byte, 2048)
    for {
        n, from, err := c.conn.ReadFrom(buf)
        if err != nil {
            if errors.Is(err, net.ErrClosed) { return nil }
            return err
        }
        c.handle(buf[:n], from)
    }
}

func (c *core) handle(msg []byte, from net.Addr) {
    typ, _, err := coremsg.Split(msg)
    if err != nil { c.log.Warn("bad message", zap.Error(err)); return }
    switch typ {
    case coremsg.TypePeersRequest:
        c.log.Debug("census", zap.Int("peers", len(c.peers)))
        for _, n := range c.peers { c.send(coremsg.MarshalPeerEvent(n, false), from) }
    case coremsg.TypeConnectPeer:
        cp, err := coremsg.UnmarshalConnectPeer(msg)
        if err != nil { c.log.Warn("bad connect command", zap.Error(err)); return }
        c.log.Info("connect", zap.Stringer("addr", cp.Addr()), zap.Stringer("key", cp.PublicKey))
        if !c.accept { return }
        n := coremsg.Node{IP: cp.IP, PublicKey: cp.PublicKey, Version: uint32(cp.Version)}
        c.peers[cp.PublicKey] = n
        c.send(coremsg.MarshalPeerEvent(n, false), from)
    default:
        c.log.Debug("ignored message", zap.Stringer("type", typ))
    }
}

func (c *core) send(msg []byte, to net.Addr) {
    if _, err := c.conn.WriteTo(msg, to); err != nil { c.log.Warn("send", zap.Error(err)) }
}
