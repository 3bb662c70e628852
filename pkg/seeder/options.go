package seeder

import (
    "errors"
    "time"

    "github.com/benbjohnson/clock"
    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

const (
    DefaultPeerTTL         = 20 * time.Minute
    DefaultConnectCooldown = time.Minute
    DefaultDNSInterval     = time.Minute
    DefaultCensusInterval  = 3 * time.Minute
    DefaultCycleTimeout    = time.Minute
    DefaultIdleWindow      = 10 * time.Second
    DefaultErrorBackoff    = 3 * time.Second
    DefaultQueueSize       = 512
)

// Store persists the seed registry between restarts.
type Store interface {
    // Load returns nil, nil when nothing has been saved yet.
    Load() ([]byte, error)
    Save(buf []byte) error
}

// Options carries the dependencies and timing of a Seeder. Zero durations
// and sizes take the package defaults.
type Options struct {
    // PublicKey is this node's key, used when minting credentials.
    PublicKey peering.PublicKey
    // Resolver looks up seed TXT records (required).
    Resolver discovery.TXTResolver
    // Store is optional; when set, seed changes are saved to it and the
    // saved registry is restored by New.
    Store Store
    // Seeds are added to the registry at construction.
    Seeds  []state.SeedEntry
    Logger *zap.Logger
    // Clock defaults to the wall clock.
    Clock clock.Clock

    PeerTTL         time.Duration // retention of connected, tried and recommended peers
    ConnectCooldown time.Duration // minimum gap between two connect commands
    DNSInterval     time.Duration
    CensusInterval  time.Duration
    CycleTimeout    time.Duration
    IdleWindow      time.Duration // inbound message window between cycles
    ErrorBackoff    time.Duration

    InboxSize  int
    OutboxSize int
}

// Validate performs a minimal validation of Options. It is safe to call
// before New.
func (o Options) Validate() error {
    if o.Resolver == nil {
        return errors.New("seeder: nil Resolver")
    }
    if o.PublicKey.IsZero() {
        return errors.New("seeder: empty PublicKey")
    }
    for _, d := range []time.Duration{o.PeerTTL, o.ConnectCooldown, o.DNSInterval, o.CensusInterval, o.CycleTimeout, o.IdleWindow, o.ErrorBackoff} {
        if d < 0 { return errors.New("seeder: negative duration") }
    }
    if o.InboxSize < 0 || o.OutboxSize < 0 {
        return errors.New("seeder: negative queue size")
    }
    return nil
}

func (o Options) withDefaults() Options {
    def := func(d *time.Duration, v time.Duration) { if *d == 0 { *d = v } }
    def(&o.PeerTTL, DefaultPeerTTL)
    def(&o.ConnectCooldown, DefaultConnectCooldown)
    def(&o.DNSInterval, DefaultDNSInterval)
    def(&o.CensusInterval, DefaultCensusInterval)
    def(&o.CycleTimeout, DefaultCycleTimeout)
    def(&o.IdleWindow, DefaultIdleWindow)
    def(&o.ErrorBackoff, DefaultErrorBackoff)
    if o.InboxSize == 0 { o.InboxSize = DefaultQueueSize }
    if o.OutboxSize == 0 { o.OutboxSize = DefaultQueueSize }
    if o.Clock == nil { o.Clock = clock.New() }
    return o
}
