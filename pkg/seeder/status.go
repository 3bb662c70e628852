package seeder

import (
    "sync"
    "time"

    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

// Status is a point-in-time view of the seeder.
type Status struct {
    Seeds        []state.SeedEntry `json:"seeds"`
    Connected    int               `json:"connected"`
    Tried        int               `json:"tried"`
    Recommended  map[string]int    `json:"recommended"` // by seed name, "" is the supernode
    SupernodeKey string            `json:"supernodeKey,omitempty"`
    LinkAddrs    []string          `json:"linkAddrs,omitempty"`
    PublicPeer   bool              `json:"publicPeer"`
    Cycles       uint64            `json:"cycles"`
    LastCycle    time.Time         `json:"lastCycle"`
    LastError    string            `json:"lastError,omitempty"`
}

// statusTable mirrors the pool for readers outside the control goroutine.
type statusTable struct {
    mu          sync.Mutex
    connected   int
    tried       int
    recommended map[string]int
    supernode   *peering.PublicKey
    cycles      uint64
    lastCycle   time.Time
    lastErr     string
}

func (s *Seeder) publishPool() {
    p := &s.pool
    rec := make(map[string]int, len(p.recommended))
    for src, rps := range p.recommended { rec[src] = len(rps) }
    var sn *peering.PublicKey
    if p.supernode != nil { k := *p.supernode; sn = &k }

    s.status.mu.Lock()
    s.status.connected = len(p.connected)
    s.status.tried = len(p.tried)
    s.status.recommended = rec
    s.status.supernode = sn
    s.status.mu.Unlock()

    obsmetrics.ConnectedPeers.Set(float64(len(p.connected)))
    obsmetrics.TriedPeers.Set(float64(len(p.tried)))
    obsmetrics.RecommendedPeers.Reset()
    for src, n := range rec {
        label := src
        if label == supernodeSource { label = "supernode" }
        obsmetrics.RecommendedPeers.WithLabelValues(label).Set(float64(n))
    }
}

func (s *Seeder) recordCycle(err error, timedOut bool) {
    s.status.mu.Lock(); defer s.status.mu.Unlock()
    s.status.cycles++
    s.status.lastCycle = s.clk.Now()
    switch {
    case timedOut:
        s.status.lastErr = "cycle timed out"
    case err != nil:
        s.status.lastErr = err.Error()
    default:
        s.status.lastErr = ""
    }
}

// SupernodeKey returns the supernode key last recommended by a trusted seed.
func (s *Seeder) SupernodeKey() (peering.PublicKey, bool) {
    s.status.mu.Lock(); defer s.status.mu.Unlock()
    if s.status.supernode == nil { return peering.PublicKey{}, false }
    return *s.status.supernode, true
}

// Status returns a snapshot. Pool counts reflect the last cycle or inbound
// event; seeds and addresses are current.
func (s *Seeder) Status() Status {
    st := Status{Seeds: s.seeds.List()}
    s.self.mu.Lock()
    for _, a := range s.self.addrs() { st.LinkAddrs = append(st.LinkAddrs, a.String()) }
    st.PublicPeer = s.self.creds != nil
    s.self.mu.Unlock()

    s.status.mu.Lock(); defer s.status.mu.Unlock()
    st.Connected = s.status.connected
    st.Tried = s.status.tried
    st.Recommended = make(map[string]int, len(s.status.recommended))
    for k, v := range s.status.recommended { st.Recommended[k] = v }
    if s.status.supernode != nil { st.SupernodeKey = s.status.supernode.String() }
    st.Cycles = s.status.cycles
    st.LastCycle = s.status.lastCycle
    st.LastError = s.status.lastErr
    return st
}
