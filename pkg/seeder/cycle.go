package seeder

import (
    "context"
    "fmt"
    "strings"
    "time"

    "go.uber.org/multierr"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/discovery"
    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
    "github.com/amirimatin/go-meshseed/pkg/observability/tracing"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

// cycle runs one reconciliation pass: merge queued supernode peers, prune,
// ask the core for its peers, look up one DNS seed and send at most one
// connect command. A failed lookup does not stop the remaining steps; its
// error is returned once they have run.
func (s *Seeder) cycle(ctx context.Context) (err error) {
    ctx, span := tracing.Start(ctx, "seeder.cycle")
    defer func() { span.End(err) }()

    seeds := s.seeds.List()
    snode := s.drainSupernodePeers()
    now := s.clk.Now()
    logutil.Debugf(s.log, "seeder cycle")
    defer s.publishPool()

    p := &s.pool
    p.recommend(supernodeSource, snode)
    p.prune(now, s.opts.PeerTTL)

    if due(p.lastGetPeers, now, s.opts.CensusInterval) {
        logutil.Debugf(s.log, "requesting peers from core")
        if err := s.send(ctx, coremsg.PeersRequest()); err != nil { return err }
        p.lastGetPeers = now
        obsmetrics.CensusRequests.Inc()
    }

    var lookupErr error
    if due(p.lastDNSReq, now, s.opts.DNSInterval) {
        if seed, ok := p.nextSeed(seeds); ok {
            lookupErr = s.lookupSeed(ctx, seed, now)
        }
    }

    if peer, ok := p.selectPeer(now, s.opts.ConnectCooldown); ok {
        cp, err := coremsg.NewConnectPeer(peer)
        if err != nil { return multierr.Append(lookupErr, fmt.Errorf("seeder: connect %s: %w", peer, err)) }
        logutil.Debugf(s.log, "sending peer to connect %s", peer.Addr)
        if err := s.send(ctx, cp.Marshal()); err != nil { return multierr.Append(lookupErr, err) }
        p.tried = append(p.tried, stampedPeer{peer: peer, at: now})
        obsmetrics.ConnectCommands.Inc()
    }
    logutil.Debugf(s.log, "seeder cycle complete")
    return lookupErr
}

// lookupSeed resolves one seed and commits its peers. Nothing is locked
// while the resolver runs.
func (s *Seeder) lookupSeed(ctx context.Context, seed state.SeedEntry, now time.Time) (err error) {
    ctx, span := tracing.Start(ctx, "seeder.dns_lookup")
    span.SetAttr("seed", seed.Name)
    defer func() { span.End(err) }()

    logutil.Debugf(s.log, "trying seed %s", seed.Name)
    rec, err := s.resolveSeed(ctx, seed.Name)
    if err != nil {
        obsmetrics.DNSLookups.WithLabelValues("error").Inc()
        return err
    }
    obsmetrics.DNSLookups.WithLabelValues("ok").Inc()

    p := &s.pool
    if seed.TrustSupernode && rec.SupernodeKey != nil {
        k := *rec.SupernodeKey
        if p.supernode == nil || *p.supernode != k {
            logutil.Infof(s.log, "seed %s recommends supernode %s", seed.Name, k)
        }
        p.supernode = &k
    }
    peers := make([]stampedPeer, 0, len(rec.Peers))
    for _, rp := range rec.Peers {
        peers = append(peers, stampedPeer{peer: rp, at: now})
    }
    p.recommend(seed.Name, peers)
    p.lastDNSReq = now
    return nil
}

// resolveSeed decodes the first seed-format TXT record of name, falling
// back to the first record when none carries the seed prefix.
func (s *Seeder) resolveSeed(ctx context.Context, name string) (peering.SeedRecord, error) {
    txts, err := s.lookupTXT(ctx, name)
    if err != nil { return peering.SeedRecord{}, fmt.Errorf("seeder: failed dns lookup for %s: %w", name, err) }
    if len(txts) == 0 { return peering.SeedRecord{}, fmt.Errorf("seeder: failed dns lookup for %s: %w", name, discovery.ErrNoTXT) }
    txt := txts[0]
    for _, t := range txts {
        if strings.HasPrefix(t, peering.TXTPrefix) { txt = t; break }
    }
    rec, err := peering.DecodeTXT(txt)
    if err != nil { return peering.SeedRecord{}, fmt.Errorf("seeder: unable to decode seed TXT record for %s: %w", name, err) }
    return rec, nil
}

type txtResult struct {
    txts []string
    err  error
}

// lookupTXT returns when ctx ends even if the resolver ignores it. An
// abandoned lookup finishes into a buffered channel nobody reads.
func (s *Seeder) lookupTXT(ctx context.Context, name string) ([]string, error) {
    res := make(chan txtResult, 1)
    go func() {
        txts, err := s.opts.Resolver.LookupTXT(ctx, name)
        res <- txtResult{txts: txts, err: err}
    }()
    select {
    case r := <-res:
        return r.txts, r.err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// send queues a message for the core, giving up when ctx ends.
func (s *Seeder) send(ctx context.Context, msg []byte) error {
    select {
    case s.outbox <- msg:
        return nil
    case <-ctx.Done():
        return fmt.Errorf("seeder: core channel: %w", ctx.Err())
    }
}
