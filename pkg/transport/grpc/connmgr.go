package grpc

import (
    "context"
    "sync"
    "time"

    "github.com/benbjohnson/clock"
    "google.golang.org/grpc"

    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
)

// Dialer opens a client connection to target.
type Dialer func(ctx context.Context, target string) (*grpc.ClientConn, error)

// ConnManager caches gRPC client connections per address and closes the
// ones left unused for longer than the idle TTL.
type ConnManager struct {
    mu      sync.Mutex
    conns   map[string]*managedConn
    ttl     time.Duration
    dialer  Dialer
    clk     clock.Clock
    closing chan struct{}
    closed  bool
}

type managedConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    ref      int
}

// NewConnManager creates a manager with the given idle TTL and dialer.
func NewConnManager(ttl time.Duration, dialer Dialer) *ConnManager {
    return newConnManager(ttl, dialer, clock.New())
}

func newConnManager(ttl time.Duration, dialer Dialer, clk clock.Clock) *ConnManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &ConnManager{ttl: ttl, dialer: dialer, clk: clk, conns: make(map[string]*managedConn), closing: make(chan struct{})}
    go m.janitor()
    return m
}

// Get returns a connection for target and a release func to be called when done.
func (m *ConnManager) Get(ctx context.Context, target string) (*grpc.ClientConn, func(), error) {
    release := func() { m.release(target) }
    if cc, ok := m.acquire(target); ok {
        obsmetrics.GRPCConnReuse.Inc()
        return cc, release, nil
    }

    // Dial outside lock
    cc, err := m.dialer(ctx, target)
    if err != nil { return nil, func() {}, err }

    m.mu.Lock()
    if existing, ok := m.conns[target]; ok {
        // Lost a dial race: keep the cached one.
        existing.ref++
        existing.lastUsed = m.clk.Now()
        out := existing.cc
        m.mu.Unlock()
        _ = cc.Close()
        obsmetrics.GRPCConnReuse.Inc()
        return out, release, nil
    }
    m.conns[target] = &managedConn{cc: cc, lastUsed: m.clk.Now(), ref: 1}
    m.mu.Unlock()
    obsmetrics.GRPCConnDials.Inc()
    obsmetrics.GRPCConnActive.Inc()
    return cc, release, nil
}

func (m *ConnManager) acquire(target string) (*grpc.ClientConn, bool) {
    m.mu.Lock(); defer m.mu.Unlock()
    mc, ok := m.conns[target]
    if !ok { return nil, false }
    mc.ref++
    mc.lastUsed = m.clk.Now()
    return mc.cc, true
}

func (m *ConnManager) release(target string) {
    m.mu.Lock(); defer m.mu.Unlock()
    if mc, ok := m.conns[target]; ok {
        if mc.ref > 0 { mc.ref-- }
        mc.lastUsed = m.clk.Now()
    }
}

// Len returns the number of cached connections.
func (m *ConnManager) Len() int {
    m.mu.Lock(); defer m.mu.Unlock()
    return len(m.conns)
}

// Close closes all cached connections and stops the janitor.
func (m *ConnManager) Close() {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.closed { return }
    m.closed = true
    close(m.closing)
    for k, mc := range m.conns {
        _ = mc.cc.Close()
        obsmetrics.GRPCConnActive.Dec()
        delete(m.conns, k)
    }
}

// evictIdle closes unreferenced connections idle since before now-ttl and
// returns how many were closed.
func (m *ConnManager) evictIdle(now time.Time) int {
    cutoff := now.Add(-m.ttl)
    m.mu.Lock(); defer m.mu.Unlock()
    n := 0
    for addr, mc := range m.conns {
        if mc.ref == 0 && mc.lastUsed.Before(cutoff) {
            _ = mc.cc.Close()
            obsmetrics.GRPCConnEvictions.Inc()
            obsmetrics.GRPCConnActive.Dec()
            delete(m.conns, addr)
            n++
        }
    }
    return n
}

func (m *ConnManager) janitor() {
    ticker := m.clk.Ticker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.closing:
            return
        case now := <-ticker.C:
            m.evictIdle(now)
        }
    }
}
