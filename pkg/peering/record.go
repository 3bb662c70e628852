package peering

import (
    "encoding/binary"
    "errors"
    "fmt"
    "net/netip"
    "strings"

    "github.com/mr-tron/base58"
)

// Record tags of the binary seed encoding.
const (
    tagPeer4     byte = 0x01
    tagPeer6     byte = 0x02
    tagPeerID    byte = 0x03
    tagSupernode byte = 0x04
)

// TXTPrefix marks a seed TXT record of the current format.
const TXTPrefix = "ms1"

const peerTail = 2 + KeySize + 2 + 8 + 2 // port, key, login, password, version

var ErrMalformed = errors.New("peering: malformed seed record")

// SeedRecord is the decoded content of a DNS seed TXT record, a supernode
// peering reply or a set of minted credentials.
type SeedRecord struct {
    SupernodeKey *PublicKey
    Peers        []Peer
    PeerID       []byte
}

// AppendPeer encodes a single peer record onto buf.
func AppendPeer(buf []byte, p Peer) []byte {
    ip := p.Addr.Addr().Unmap()
    if ip.Is4() {
        a := ip.As4()
        buf = append(buf, tagPeer4)
        buf = append(buf, a[:]...)
    } else {
        a := ip.As16()
        buf = append(buf, tagPeer6)
        buf = append(buf, a[:]...)
    }
    buf = binary.BigEndian.AppendUint16(buf, p.Addr.Port())
    buf = append(buf, p.PublicKey[:]...)
    buf = binary.BigEndian.AppendUint16(buf, p.Login)
    buf = append(buf, p.Password[:]...)
    return binary.BigEndian.AppendUint16(buf, p.Version)
}

// AppendPeerID encodes an opaque identity code record.
func AppendPeerID(buf []byte, id []byte) ([]byte, error) {
    if len(id) > 255 { return nil, fmt.Errorf("peering: peer id too long (%d bytes)", len(id)) }
    buf = append(buf, tagPeerID, byte(len(id)))
    return append(buf, id...), nil
}

// AppendSupernode encodes a supernode key record.
func AppendSupernode(buf []byte, k PublicKey) []byte {
    buf = append(buf, tagSupernode)
    return append(buf, k[:]...)
}

// EncodeBinary serialises the record. Field order: supernode, peers, peer id.
func (r SeedRecord) EncodeBinary() ([]byte, error) {
    var buf []byte
    if r.SupernodeKey != nil { buf = AppendSupernode(buf, *r.SupernodeKey) }
    for _, p := range r.Peers { buf = AppendPeer(buf, p) }
    if r.PeerID != nil {
        var err error
        if buf, err = AppendPeerID(buf, r.PeerID); err != nil { return nil, err }
    }
    return buf, nil
}

// DecodeBinary parses a sequence of records. Unknown tags and truncated
// records fail the whole payload.
func DecodeBinary(b []byte) (SeedRecord, error) {
    var r SeedRecord
    for len(b) > 0 {
        tag := b[0]
        b = b[1:]
        switch tag {
        case tagPeer4, tagPeer6:
            n := 4
            if tag == tagPeer6 { n = 16 }
            if len(b) < n+peerTail { return SeedRecord{}, fmt.Errorf("%w: truncated peer", ErrMalformed) }
            var ip netip.Addr
            if n == 4 {
                ip = netip.AddrFrom4([4]byte(b[:4]))
            } else {
                ip = netip.AddrFrom16([16]byte(b[:16]))
            }
            b = b[n:]
            var p Peer
            p.Addr = netip.AddrPortFrom(ip, binary.BigEndian.Uint16(b))
            copy(p.PublicKey[:], b[2:2+KeySize])
            b = b[2+KeySize:]
            p.Login = binary.BigEndian.Uint16(b)
            copy(p.Password[:], b[2:10])
            p.Version = binary.BigEndian.Uint16(b[10:])
            b = b[12:]
            r.Peers = append(r.Peers, p)
        case tagPeerID:
            if len(b) < 1 || len(b) < 1+int(b[0]) { return SeedRecord{}, fmt.Errorf("%w: truncated peer id", ErrMalformed) }
            n := int(b[0])
            r.PeerID = append([]byte{}, b[1:1+n]...)
            b = b[1+n:]
        case tagSupernode:
            if len(b) < KeySize { return SeedRecord{}, fmt.Errorf("%w: truncated supernode key", ErrMalformed) }
            var k PublicKey
            copy(k[:], b[:KeySize])
            r.SupernodeKey = &k
            b = b[KeySize:]
        default:
            return SeedRecord{}, fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformed, tag)
        }
    }
    return r, nil
}

// EncodeTXT renders the record as TXT text.
func (r SeedRecord) EncodeTXT() (string, error) {
    b, err := r.EncodeBinary()
    if err != nil { return "", err }
    return TXTPrefix + base58.Encode(b), nil
}

// DecodeTXT parses TXT text produced by EncodeTXT.
func DecodeTXT(txt string) (SeedRecord, error) {
    txt = strings.TrimSpace(txt)
    if !strings.HasPrefix(txt, TXTPrefix) { return SeedRecord{}, fmt.Errorf("%w: missing %q prefix", ErrMalformed, TXTPrefix) }
    body := txt[len(TXTPrefix):]
    if body == "" { return SeedRecord{}, fmt.Errorf("%w: empty record", ErrMalformed) }
    b, err := base58.Decode(body)
    if err != nil { return SeedRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err) }
    return DecodeBinary(b)
}
