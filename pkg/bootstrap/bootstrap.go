package bootstrap

import (
    "context"
    "crypto/tls"
    "fmt"
    "sync"
    "time"

    "github.com/benbjohnson/clock"
    "go.uber.org/multierr"
    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
    dDNS "github.com/amirimatin/go-meshseed/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-meshseed/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-meshseed/pkg/discovery/static"
    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    tracing "github.com/amirimatin/go-meshseed/pkg/observability/tracing"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    tlsx "github.com/amirimatin/go-meshseed/pkg/security/tlsconfig"
    "github.com/amirimatin/go-meshseed/pkg/seeder"
    "github.com/amirimatin/go-meshseed/pkg/storage/bolt"
    "github.com/amirimatin/go-meshseed/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-meshseed/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-meshseed/pkg/transport/httpjson"
    "github.com/amirimatin/go-meshseed/pkg/transport/udp"
)

// Config defines high-level inputs to assemble a seeder node with sensible
// defaults. Applications embed the seeder by providing this structure and
// calling Build/Run.
type Config struct {
    // PublicKey of this node, hex or base58 (required).
    PublicKey string

    // Seed source: "static" (default) reads SeedsCSV, "file" reads
    // SeedsFile or the SeedsEnv variable and is re-read every SeedsRefresh.
    SeedsKind    string
    SeedsCSV     string // "a.example,b.example:untrusted"
    SeedsFile    string
    SeedsEnv     string
    SeedsRefresh time.Duration

    // DNS resolver; empty DNSServers reads ResolvConf.
    DNSServers []string
    ResolvConf string
    DNSTimeout time.Duration

    // DataDir holds the seed registry; empty keeps it in memory.
    DataDir string

    // Management API (status/seeds/creds/metrics). Empty MgmtAddr disables it.
    MgmtAddr  string
    MgmtProto string // "http" (default) or "grpc"

    // TLS (optional) for management API
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Routing core datagram bridge. Empty CoreAddr leaves the core channel
    // to the embedding application.
    CoreAddr string
    CoreBind string

    // Seeder timing; zero keeps the seeder defaults.
    PeerTTL         time.Duration
    ConnectCooldown time.Duration
    DNSInterval     time.Duration
    CensusInterval  time.Duration
    CycleTimeout    time.Duration
    IdleWindow      time.Duration
    ErrorBackoff    time.Duration

    Trace bool
    Debug bool

    // Logger (optional). If nil, one is built with logutil.New(Debug).
    Logger *zap.Logger
    // Clock (optional), shared by the seeder and the seed refresh loop.
    Clock clock.Clock
}

// Node is an assembled seeder with its management server, core bridge and
// seed store.
type Node struct {
    Seeder *seeder.Seeder
    Server transport.RPCServer
    Client transport.RPCClient
    Bridge *udp.Bridge

    cfg    Config
    log    *zap.Logger
    store  *bolt.Store
    source discovery.SeedSource

    mu       sync.Mutex
    cancel   context.CancelFunc
    wg       sync.WaitGroup
    bridgeErr error
    traceOff func(context.Context) error
    closed   bool
}

// Build assembles a Node from Config without starting it.
func Build(cfg Config) (*Node, error) {
    if cfg.Logger == nil {
        l, err := logutil.New(cfg.Debug)
        if err != nil { return nil, err }
        cfg.Logger = l
    }
    if cfg.Clock == nil { cfg.Clock = clock.New() }
    key, err := peering.ParsePublicKey(cfg.PublicKey)
    if err != nil { return nil, fmt.Errorf("bootstrap: public key: %w", err) }

    // Seed source
    var src discovery.SeedSource
    switch cfg.SeedsKind {
    case "file":
        src = dFile.New(dFile.Options{Path: cfg.SeedsFile, Env: cfg.SeedsEnv, Refresh: cfg.SeedsRefresh})
    case "", "static":
        src = dStatic.New(dStatic.Parse(cfg.SeedsCSV)...)
    default:
        return nil, fmt.Errorf("bootstrap: unknown seed source %q", cfg.SeedsKind)
    }

    res := dDNS.New(dDNS.Options{Servers: cfg.DNSServers, ResolvConf: cfg.ResolvConf, Timeout: cfg.DNSTimeout})

    var store *bolt.Store
    if cfg.DataDir != "" {
        if store, err = bolt.Open(cfg.DataDir); err != nil { return nil, err }
    } else {
        store = bolt.NewMemory()
    }

    sd, err := seeder.New(seeder.Options{
        PublicKey:       key,
        Resolver:        res,
        Store:           store,
        Seeds:           src.Seeds(),
        Logger:          cfg.Logger,
        Clock:           cfg.Clock,
        PeerTTL:         cfg.PeerTTL,
        ConnectCooldown: cfg.ConnectCooldown,
        DNSInterval:     cfg.DNSInterval,
        CensusInterval:  cfg.CensusInterval,
        CycleTimeout:    cfg.CycleTimeout,
        IdleWindow:      cfg.IdleWindow,
        ErrorBackoff:    cfg.ErrorBackoff,
    })
    if err != nil { return nil, multierr.Append(err, store.Close()) }

    n := &Node{Seeder: sd, cfg: cfg, log: cfg.Logger, store: store, source: src}

    // Management API
    if cfg.MgmtAddr != "" {
        srv, cli, err := management(cfg)
        if err != nil { return nil, multierr.Append(err, store.Close()) }
        n.Server, n.Client = srv, cli
    }

    if cfg.CoreAddr != "" {
        br, err := udp.New(udp.Options{Bind: cfg.CoreBind, Core: cfg.CoreAddr, Logger: cfg.Logger})
        if err != nil { return nil, multierr.Append(err, store.Close()) }
        n.Bridge = br
    }
    return n, nil
}

func management(cfg Config) (transport.RPCServer, transport.RPCClient, error) {
    var srvTLS, cliTLS *tls.Config
    if cfg.TLSEnable {
        topts := tlsx.Options{Enable: true, CAFile: cfg.TLSCA, CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey, InsecureSkipVerify: cfg.TLSSkipVerify, ServerName: cfg.TLSServerName}
        // Hot-reload configs pick up replaced certificate files.
        var err error
        if srvTLS, err = topts.ServerHotReload(); err != nil { return nil, nil, err }
        if cliTLS, err = topts.ClientHotReload(); err != nil { return nil, nil, err }
    }
    switch cfg.MgmtProto {
    case "grpc":
        s := mgmtgrpc.NewServer(cfg.MgmtAddr)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        c := mgmtgrpc.NewClient(3 * time.Second)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return s, c, nil
    case "", "http":
        s := httpjson.NewServer(cfg.MgmtAddr, cfg.Logger)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        c := httpjson.NewClient(3 * time.Second)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return s, c, nil
    default:
        return nil, nil, fmt.Errorf("bootstrap: unknown management protocol %q", cfg.MgmtProto)
    }
}

// Start launches the seeder, the management server, the core bridge and,
// for file sources, the seed refresh loop.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.closed { return seeder.ErrStopped }
    if n.cancel != nil { return nil }
    if n.cfg.Trace {
        off, err := tracing.Setup(true)
        if err != nil {
            logutil.Warnf(n.log, "tracing setup error: %v", err)
        } else {
            n.traceOff = off
        }
    }
    rctx, cancel := context.WithCancel(ctx)
    n.cancel = cancel
    if err := n.Seeder.Start(rctx); err != nil { cancel(); return err }
    if n.Server != nil {
        if err := n.Server.Start(rctx, n.Seeder.Handlers()); err != nil { cancel(); return err }
        logutil.Infof(n.log, "management api listening on %s", n.Server.Addr())
    }
    if n.Bridge != nil {
        n.wg.Add(1)
        go func() {
            defer n.wg.Done()
            if err := n.Bridge.Run(rctx, n.Seeder); err != nil {
                logutil.Errorf(n.log, "core bridge stopped: %v", err)
                n.mu.Lock(); n.bridgeErr = err; n.mu.Unlock()
            }
        }()
        logutil.Infof(n.log, "core bridge %s -> %s", n.Bridge.Addr(), n.cfg.CoreAddr)
    }
    if n.cfg.SeedsKind == "file" {
        n.wg.Add(1)
        go func() { defer n.wg.Done(); n.refreshSeeds(rctx) }()
    }
    return nil
}

// refreshSeeds adds seeds that appear in the source after startup. Seeds
// dropped from the source stay registered until removed explicitly.
func (n *Node) refreshSeeds(ctx context.Context) {
    every := n.cfg.SeedsRefresh
    if every <= 0 { every = 5 * time.Second }
    t := n.cfg.Clock.Ticker(every)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            n.syncSeeds()
        }
    }
}

func (n *Node) syncSeeds() {
    have := make(map[string]bool)
    for _, e := range n.Seeder.ListDNSSeeds() { have[e.Name] = e.TrustSupernode }
    for _, e := range n.source.Seeds() {
        if trust, ok := have[e.Name]; ok && trust == e.TrustSupernode { continue }
        if err := n.Seeder.AddDNSSeed(e.Name, e.TrustSupernode); err != nil {
            logutil.Warnf(n.log, "add seed %s: %v", e.Name, err)
            continue
        }
        logutil.Infof(n.log, "seed %s picked up from source", e.Name)
    }
}

// Close stops every component and releases the store. It is idempotent.
func (n *Node) Close() error {
    n.mu.Lock()
    if n.closed { n.mu.Unlock(); return nil }
    n.closed = true
    cancel := n.cancel
    n.mu.Unlock()

    ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
    defer done()
    var err error
    if n.Server != nil && cancel != nil { err = multierr.Append(err, n.Server.Stop(ctx)) }
    err = multierr.Append(err, n.Seeder.Stop(ctx))
    if cancel != nil { cancel() }
    n.wg.Wait()
    if n.Bridge != nil { err = multierr.Append(err, n.Bridge.Close()) }
    if c, ok := n.Client.(interface{ Close() }); ok { c.Close() }
    n.mu.Lock()
    err = multierr.Append(err, n.bridgeErr)
    off := n.traceOff
    n.mu.Unlock()
    if off != nil { err = multierr.Append(err, off(ctx)) }
    err = multierr.Append(err, n.store.Close())
    return err
}

// Run builds and starts a Node. The caller is responsible for calling
// Close() when finished.
func Run(ctx context.Context, cfg Config) (*Node, error) {
    n, err := Build(cfg)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, multierr.Append(err, n.Close()) }
    return n, nil
}
