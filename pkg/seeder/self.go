package seeder

import (
    "encoding/binary"
    "encoding/hex"
    "net/netip"
    "sync"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    "github.com/amirimatin/go-meshseed/pkg/peering"
)

// placeholderAddr stands in for the address when only the peering line of
// our own credentials is needed.
var placeholderAddr = netip.AddrPortFrom(netip.AddrFrom4([4]byte{1, 1, 1, 1}), 1)

type publicCreds struct {
    login    uint16
    password uint64
    code     []byte
}

// selfPeering is this node's own public peering identity.
type selfPeering struct {
    mu    sync.Mutex
    v4    netip.AddrPort
    v6    netip.AddrPort
    creds *publicCreds
}

// HasLinkAddr reports whether an externally visible address is known.
func (s *Seeder) HasLinkAddr() bool {
    s.self.mu.Lock(); defer s.self.mu.Unlock()
    return s.self.v4.IsValid() || s.self.v6.IsValid()
}

// ReportLinkAddr records the address a peer observed us at. It returns true
// when the address is new or differs from the stored one, meaning the
// credentials should be posted again. Replies with a bad magic and
// addresses of other families are logged and ignored.
func (s *Seeder) ReportLinkAddr(r coremsg.LinkAddrReply) bool {
    if r.Magic != coremsg.ReplyMagic {
        logutil.Debugf(s.log, "link address reply with invalid magic %#x", r.Magic)
        return false
    }
    switch a := r.Addr.(type) {
    case coremsg.UDP4Addr:
        ap := netip.AddrPortFrom(a.AddrPort.Addr().Unmap(), a.AddrPort.Port())
        return s.updateAddr(&s.self.v4, ap, "IPv4")
    case coremsg.UDP6Addr:
        return s.updateAddr(&s.self.v6, a.AddrPort, "IPv6")
    case coremsg.OtherAddr:
        logutil.Debugf(s.log, "link address reply with other type: header: [%s]", hex.EncodeToString(a.Header))
    default:
        logutil.Debugf(s.log, "link address reply with unknown type %d", r.Family)
    }
    return false
}

func (s *Seeder) updateAddr(cur *netip.AddrPort, ap netip.AddrPort, family string) bool {
    s.self.mu.Lock(); defer s.self.mu.Unlock()
    if cur.IsValid() {
        if *cur == ap { return false }
        logutil.Debugf(s.log, "change of %s address: %s -> %s", family, *cur, ap)
    } else {
        logutil.Debugf(s.log, "got %s address: %s", family, ap)
    }
    *cur = ap
    return true
}

// LinkAddrs returns the known external addresses, IPv4 first.
func (s *Seeder) LinkAddrs() []netip.AddrPort {
    s.self.mu.Lock(); defer s.self.mu.Unlock()
    return s.self.addrs()
}

func (sp *selfPeering) addrs() []netip.AddrPort {
    var out []netip.AddrPort
    if sp.v4.IsValid() { out = append(out, sp.v4) }
    if sp.v6.IsValid() { out = append(out, sp.v6) }
    return out
}

// MintCredentials encodes the peering credentials to post to the supernode:
// one peer record per known address followed by the peer id code.
func (s *Seeder) MintCredentials() ([]byte, error) {
    s.self.mu.Lock(); defer s.self.mu.Unlock()
    c := s.self.creds
    if c == nil { return nil, ErrNoPassword }
    addrs := s.self.addrs()
    if len(addrs) == 0 { return nil, ErrNoAddress }
    var buf []byte
    for _, a := range addrs {
        buf = peering.AppendPeer(buf, s.ownPeer(a, c))
    }
    return peering.AppendPeerID(buf, c.code)
}

// RegisterPublicPeer stores the credentials under which this node accepts
// public peers, replacing earlier ones, and returns the matching peering
// line to add to the authorized passwords.
func (s *Seeder) RegisterPublicPeer(login uint16, password uint64, code []byte) (peering.PeeringLine, error) {
    if len(code) > 255 { return peering.PeeringLine{}, ErrCodeTooLong }
    c := &publicCreds{login: login, password: password, code: append([]byte(nil), code...)}
    s.self.mu.Lock()
    s.self.creds = c
    s.self.mu.Unlock()
    p := s.ownPeer(placeholderAddr, c)
    p.PublicKey = peering.PublicKey{}
    return p.Line(), nil
}

func (s *Seeder) ownPeer(addr netip.AddrPort, c *publicCreds) peering.Peer {
    var pw [8]byte
    binary.BigEndian.PutUint64(pw[:], c.password)
    return peering.Peer{
        Addr:      addr,
        PublicKey: s.opts.PublicKey,
        Login:     c.login,
        Password:  pw,
        Version:   peering.CurrentProtocolVersion,
    }
}
