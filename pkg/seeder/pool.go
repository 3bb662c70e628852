package seeder

import (
    "sort"
    "time"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

// supernodeSource keys supernode recommendations in pool.recommended.
const supernodeSource = ""

const (
    supernodeTarget = 4
    fallbackTarget  = 2
)

type stampedPeer struct {
    peer peering.Peer
    at   time.Time
}

type connectedPeer struct {
    node coremsg.Node
    at   time.Time
}

// pool is the candidate state. It is owned by the control goroutine and
// never touched by other producers; they queue through locked tables on
// Seeder instead.
type pool struct {
    triedSeeds   map[string]struct{}
    connected    []connectedPeer
    recommended  map[string][]stampedPeer
    tried        []stampedPeer
    lastGetPeers time.Time
    lastDNSReq   time.Time
    supernode    *peering.PublicKey
}

func newPool() pool {
    return pool{triedSeeds: map[string]struct{}{}, recommended: map[string][]stampedPeer{}}
}

func due(last, now time.Time, every time.Duration) bool {
    return last.IsZero() || now.Sub(last) >= every
}

func (p *pool) recommend(source string, peers []stampedPeer) {
    if len(peers) == 0 { return }
    p.recommended[source] = append(p.recommended[source], peers...)
}

// prune drops every entry that is ttl or older.
func (p *pool) prune(now time.Time, ttl time.Duration) {
    fresh := func(t time.Time) bool { return now.Sub(t) < ttl }
    conn := p.connected[:0]
    for _, c := range p.connected {
        if fresh(c.at) { conn = append(conn, c) }
    }
    p.connected = conn
    p.tried = keepFresh(p.tried, fresh)
    for src, rps := range p.recommended {
        rps = keepFresh(rps, fresh)
        if len(rps) == 0 {
            delete(p.recommended, src)
        } else {
            p.recommended[src] = rps
        }
    }
}

func keepFresh(in []stampedPeer, fresh func(time.Time) bool) []stampedPeer {
    out := in[:0]
    for _, e := range in {
        if fresh(e.at) { out = append(out, e) }
    }
    return out
}

// peerEvent applies a present/gone notification from the core.
func (p *pool) peerEvent(ev coremsg.PeerEvent, now time.Time) {
    kept := p.connected[:0]
    for _, c := range p.connected {
        if c.node.PublicKey != ev.Node.PublicKey { kept = append(kept, c) }
    }
    p.connected = kept
    if !ev.Gone {
        p.connected = append(p.connected, connectedPeer{node: ev.Node, at: now})
    }
}

// nextSeed picks the first seed not yet looked up this round, starting a
// new round once every seed has been visited. Seeds removed from the
// registry are forgotten; seeds added mid-round join the current round.
func (p *pool) nextSeed(seeds []state.SeedEntry) (state.SeedEntry, bool) {
    if len(seeds) == 0 { return state.SeedEntry{}, false }
    known := make(map[string]struct{}, len(seeds))
    for _, sd := range seeds { known[sd.Name] = struct{}{} }
    for name := range p.triedSeeds {
        if _, ok := known[name]; !ok { delete(p.triedSeeds, name) }
    }
    for _, sd := range seeds {
        if _, ok := p.triedSeeds[sd.Name]; !ok {
            p.triedSeeds[sd.Name] = struct{}{}
            return sd, true
        }
    }
    clear(p.triedSeeds)
    p.triedSeeds[seeds[0].Name] = struct{}{}
    return seeds[0], true
}

func (p *pool) isConnected(k peering.PublicKey) bool {
    for _, c := range p.connected {
        if c.node.PublicKey == k { return true }
    }
    return false
}

func (p *pool) wasTried(k peering.PublicKey) bool {
    for _, t := range p.tried {
        if t.peer.PublicKey == k { return true }
    }
    return false
}

func (p *pool) lastAttempt() (time.Time, bool) {
    var last time.Time
    for _, t := range p.tried {
        if t.at.After(last) { last = t.at }
    }
    return last, !last.IsZero()
}

// sources returns the recommendation keys sorted, supernode first.
func (p *pool) sources() []string {
    out := make([]string, 0, len(p.recommended))
    for src := range p.recommended { out = append(out, src) }
    sort.Strings(out)
    return out
}

// candidate scans the recommendations of the sources accepted by keep.
// It returns the first peer that is neither connected nor recently tried,
// unless at least target distinct peers of that set are already connected.
func (p *pool) candidate(keep func(source string) bool, target int) (peering.Peer, bool) {
    connected := map[peering.PublicKey]struct{}{}
    var cand *peering.Peer
    for _, src := range p.sources() {
        if !keep(src) { continue }
        for i := range p.recommended[src] {
            rp := &p.recommended[src][i]
            k := rp.peer.PublicKey
            switch {
            case p.isConnected(k):
                connected[k] = struct{}{}
            case p.wasTried(k):
            case cand == nil:
                cand = &rp.peer
            }
        }
    }
    if cand == nil || len(connected) >= target { return peering.Peer{}, false }
    return *cand, true
}

// selectPeer chooses at most one peer to connect to. Nothing is chosen
// within cooldown of the last attempt. Supernode recommendations are
// preferred while fewer than four of them are connected; otherwise any
// source is used while fewer than two are connected.
func (p *pool) selectPeer(now time.Time, cooldown time.Duration) (peering.Peer, bool) {
    if last, ok := p.lastAttempt(); ok && now.Sub(last) < cooldown {
        return peering.Peer{}, false
    }
    if c, ok := p.candidate(func(src string) bool { return src == supernodeSource }, supernodeTarget); ok {
        return c, true
    }
    return p.candidate(func(string) bool { return true }, fallbackTarget)
}
