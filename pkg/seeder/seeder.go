// Package seeder keeps a mesh node connected. It gathers candidate peers
// from DNS seeds and the supernode, decides which one to try next and hands
// connect commands to the routing core over a message channel.
package seeder

import (
    "fmt"
    "sync"

    "github.com/benbjohnson/clock"
    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
    "github.com/amirimatin/go-meshseed/pkg/state/seeds"
)

// Seeder is the discovery engine of a node. All exported methods are safe
// for concurrent use.
type Seeder struct {
    opts Options
    clk  clock.Clock
    log  *zap.Logger

    seeds     *seeds.Registry
    persistMu sync.Mutex

    // Supernode peers waiting for the next cycle.
    snode struct {
        mu    sync.Mutex
        peers []stampedPeer
    }
    self   selfPeering
    status statusTable

    // Owned by the control goroutine.
    pool pool

    inbox  chan []byte
    outbox chan []byte

    run struct {
        mu      sync.Mutex
        started bool
        closed  bool
        done    chan struct{}
        stopped chan struct{}
    }
}

// New constructs a Seeder from validated options and restores the saved
// seed registry when a store is configured. It starts nothing; call Start.
func New(opts Options) (*Seeder, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    opts = opts.withDefaults()
    s := &Seeder{
        opts:   opts,
        clk:    opts.Clock,
        log:    opts.Logger,
        seeds:  seeds.New(),
        pool:   newPool(),
        inbox:  make(chan []byte, opts.InboxSize),
        outbox: make(chan []byte, opts.OutboxSize),
    }
    if opts.Store != nil {
        buf, err := opts.Store.Load()
        if err != nil { return nil, fmt.Errorf("seeder: load seeds: %w", err) }
        if len(buf) > 0 {
            if err := s.seeds.Restore(buf); err != nil { return nil, fmt.Errorf("seeder: restore seeds: %w", err) }
        }
    }
    for _, e := range opts.Seeds {
        s.seeds.Add(e.Name, e.TrustSupernode)
    }
    return s, nil
}

// AddDNSSeed adds a seed or updates its supernode trust flag.
func (s *Seeder) AddDNSSeed(name string, trustSupernode bool) error {
    s.seeds.Add(name, trustSupernode)
    logutil.Infof(s.log, "dns seed %s added (trust supernode: %v)", name, trustSupernode)
    return s.persist()
}

// RemoveDNSSeed removes a seed and reports whether it was present.
func (s *Seeder) RemoveDNSSeed(name string) (bool, error) {
    if !s.seeds.Remove(name) { return false, nil }
    logutil.Infof(s.log, "dns seed %s removed", name)
    return true, s.persist()
}

// ListDNSSeeds returns a copy of the configured seeds in lookup order.
func (s *Seeder) ListDNSSeeds() []state.SeedEntry {
    return s.seeds.List()
}

func (s *Seeder) persist() error {
    obsmetrics.DNSSeeds.Set(float64(s.seeds.Len()))
    if s.opts.Store == nil { return nil }
    s.persistMu.Lock(); defer s.persistMu.Unlock()
    buf, err := s.seeds.Snapshot()
    if err != nil { return err }
    if err := s.opts.Store.Save(buf); err != nil { return fmt.Errorf("seeder: save seeds: %w", err) }
    return nil
}

// IngestSupernodePeers queues the peers of a supernode peering reply for
// the next cycle. A payload that does not decode is logged and dropped.
// It returns the number of peers queued.
func (s *Seeder) IngestSupernodePeers(payload []byte) int {
    rec, err := peering.DecodeBinary(payload)
    if err != nil {
        obsmetrics.SupernodePayloads.WithLabelValues("malformed").Inc()
        logutil.Warnf(s.log, "error decoding peering reply from supernode: %v", err)
        return 0
    }
    obsmetrics.SupernodePayloads.WithLabelValues("ok").Inc()
    now := s.clk.Now()
    s.snode.mu.Lock(); defer s.snode.mu.Unlock()
    for _, p := range rec.Peers {
        s.snode.peers = append(s.snode.peers, stampedPeer{peer: p, at: now})
    }
    return len(rec.Peers)
}

func (s *Seeder) drainSupernodePeers() []stampedPeer {
    s.snode.mu.Lock(); defer s.snode.mu.Unlock()
    out := s.snode.peers
    s.snode.peers = nil
    return out
}
