package seeder

import (
    "fmt"
    "net/netip"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testKey(b byte) peering.PublicKey {
    var k peering.PublicKey
    k[0], k[31] = b, b
    return k
}

func testPeer(b byte) peering.Peer {
    return peering.Peer{
        Addr:      netip.MustParseAddrPort(fmt.Sprintf("192.0.2.%d:%d", b, 1000+int(b))),
        PublicKey: testKey(b),
        Login:     uint16(b),
        Password:  [8]byte{b, 1, 2, 3},
        Version:   peering.CurrentProtocolVersion,
    }
}

func stamped(at time.Time, ids ...byte) []stampedPeer {
    var out []stampedPeer
    for _, id := range ids { out = append(out, stampedPeer{peer: testPeer(id), at: at}) }
    return out
}

func connect(p *pool, at time.Time, ids ...byte) {
    for _, id := range ids {
        p.peerEvent(coremsg.PeerEvent{Node: coremsg.Node{PublicKey: testKey(id)}}, at)
    }
}

func TestPruneDropsStaleEntries(t *testing.T) {
    p := newPool()
    old, fresh := t0.Add(-21*time.Minute), t0.Add(-5*time.Minute)
    p.recommend("", stamped(old, 1))
    p.recommend("seed.example", stamped(old, 2))
    p.recommend("seed.example", stamped(fresh, 3))
    p.tried = append(stamped(old, 4), stamped(fresh, 5)...)
    connect(&p, old, 6)
    connect(&p, fresh, 7)

    p.prune(t0, DefaultPeerTTL)

    require.NotContains(t, p.recommended, "")
    require.Len(t, p.recommended["seed.example"], 1)
    require.Len(t, p.tried, 1)
    require.Len(t, p.connected, 1)
    for _, rps := range p.recommended {
        for _, rp := range rps { require.Less(t, t0.Sub(rp.at), DefaultPeerTTL) }
    }
    for _, tp := range p.tried { require.Less(t, t0.Sub(tp.at), DefaultPeerTTL) }
    for _, c := range p.connected { require.Less(t, t0.Sub(c.at), DefaultPeerTTL) }

    // idempotent
    p.prune(t0, DefaultPeerTTL)
    require.Len(t, p.recommended["seed.example"], 1)
}

func TestSelectRespectsCooldown(t *testing.T) {
    p := newPool()
    p.recommend("seed.example", stamped(t0, 1, 2))
    p.tried = stamped(t0.Add(-30*time.Second), 1)

    _, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.False(t, ok, "attempt 30s ago must block a new connect")

    p.tried = stamped(t0.Add(-61*time.Second), 1)
    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok)
    require.Equal(t, testKey(2), got.PublicKey)
}

func TestSelectPrefersSupernode(t *testing.T) {
    p := newPool()
    p.recommend("a.example", stamped(t0, 1))
    p.recommend(supernodeSource, stamped(t0, 2))

    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok)
    require.Equal(t, testKey(2), got.PublicKey)
}

func TestSelectSupernodeTarget(t *testing.T) {
    p := newPool()
    p.recommend(supernodeSource, stamped(t0, 1, 2, 3, 9))
    p.recommend("a.example", stamped(t0, 10))
    connect(&p, t0, 1, 2, 3)

    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok, "three connected is below the supernode target")
    require.Equal(t, testKey(9), got.PublicKey)

    p.recommend(supernodeSource, stamped(t0, 4))
    connect(&p, t0, 4)
    _, ok = p.selectPeer(t0, DefaultConnectCooldown)
    require.False(t, ok, "four connected supernode peers saturate both passes")
}

func TestSelectFallbackTarget(t *testing.T) {
    p := newPool()
    p.recommend("a.example", stamped(t0, 1, 2, 3))
    connect(&p, t0, 1)

    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok)
    require.Equal(t, testKey(2), got.PublicKey)

    connect(&p, t0, 2)
    _, ok = p.selectPeer(t0, DefaultConnectCooldown)
    require.False(t, ok, "two connected peers meet the fallback target")
}

func TestSelectFallsBackWhenSupernodeExhausted(t *testing.T) {
    p := newPool()
    p.recommend(supernodeSource, stamped(t0, 1))
    p.recommend("a.example", stamped(t0, 2))
    p.tried = stamped(t0.Add(-10*time.Minute), 1)

    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok)
    require.Equal(t, testKey(2), got.PublicKey)
}

func TestSelectCountsDistinctKeys(t *testing.T) {
    p := newPool()
    p.recommend("a.example", stamped(t0, 1, 1, 3))
    p.recommend("b.example", stamped(t0, 1))
    connect(&p, t0, 1)

    got, ok := p.selectPeer(t0, DefaultConnectCooldown)
    require.True(t, ok, "one peer recommended three times is one connection")
    require.Equal(t, testKey(3), got.PublicKey)
}

func TestNextSeedRoundRobin(t *testing.T) {
    p := newPool()
    seeds := []state.SeedEntry{{Name: "A"}, {Name: "B"}, {Name: "C"}}
    var got []string
    for i := 0; i < 7; i++ {
        sd, ok := p.nextSeed(seeds)
        require.True(t, ok)
        got = append(got, sd.Name)
    }
    require.Equal(t, []string{"A", "B", "C", "A", "B", "C", "A"}, got)

    empty := newPool()
    _, ok := empty.nextSeed(nil)
    require.False(t, ok)
}

func TestNextSeedRegistryChanges(t *testing.T) {
    p := newPool()
    seeds := []state.SeedEntry{{Name: "A"}, {Name: "B"}}
    sd, _ := p.nextSeed(seeds)
    require.Equal(t, "A", sd.Name)

    // B removed, C added mid-round: C joins the current round.
    seeds = []state.SeedEntry{{Name: "A"}, {Name: "C"}}
    sd, _ = p.nextSeed(seeds)
    require.Equal(t, "C", sd.Name)
    sd, _ = p.nextSeed(seeds)
    require.Equal(t, "A", sd.Name)
    require.NotContains(t, p.triedSeeds, "B")
}

func TestPeerEventReplacesAndRemoves(t *testing.T) {
    p := newPool()
    connect(&p, t0, 1)
    connect(&p, t0.Add(time.Minute), 1)
    require.Len(t, p.connected, 1)
    require.Equal(t, t0.Add(time.Minute), p.connected[0].at)

    p.peerEvent(coremsg.PeerEvent{Node: coremsg.Node{PublicKey: testKey(1)}, Gone: true}, t0)
    require.Empty(t, p.connected)
}
