// Package coremsg encodes the messages exchanged between the seeder and the
// routing core. Every message starts with a 4-byte big-endian type tag.
package coremsg

import (
    "encoding/binary"
    "errors"
    "fmt"
    "net/netip"

    "github.com/amirimatin/go-meshseed/pkg/peering"
)

// Type is the message type tag.
type Type uint32

const (
    // Seeder -> core.
    TypePeersRequest Type = 519
    TypeConnectPeer  Type = 529

    // Core -> seeder.
    TypePeer     Type = 1027
    TypePeerGone Type = 1028
)

func (t Type) String() string {
    switch t {
    case TypePeersRequest:
        return "peers_request"
    case TypeConnectPeer:
        return "connect_peer"
    case TypePeer:
        return "peer"
    case TypePeerGone:
        return "peer_gone"
    default:
        return fmt.Sprintf("type(%d)", uint32(t))
    }
}

const (
    // ConnectPeerSize is the fixed payload size of a connect command.
    ConnectPeerSize = 16 + peering.KeySize + peering.MaxLoginLen + peering.MaxPasswordLen + 2 + 2 + 2
    // NodeSize is the fixed payload size of a peer notification.
    NodeSize = 16 + peering.KeySize + 8 + 4 + 4
)

var (
    ErrShort       = errors.New("coremsg: message too short")
    ErrUnknownType = errors.New("coremsg: unhandled message type")
)

// PeersRequest asks the core to replay its current peers.
func PeersRequest() []byte {
    return binary.BigEndian.AppendUint32(nil, uint32(TypePeersRequest))
}

// ConnectPeer is the command instructing the core to open a peering.
type ConnectPeer struct {
    IP        [16]byte
    PublicKey peering.PublicKey
    Login     [peering.MaxLoginLen]byte
    Password  [peering.MaxPasswordLen]byte
    Version   uint16
    Port      uint16
}

// NewConnectPeer builds the command for p. IPv4 addresses are carried in
// the IPv4-mapped form; the login and password come from p's peering line.
func NewConnectPeer(p peering.Peer) (ConnectPeer, error) {
    line := p.Line()
    if err := line.Validate(); err != nil { return ConnectPeer{}, err }
    cp := ConnectPeer{
        IP:        p.Addr.Addr().As16(),
        PublicKey: p.PublicKey,
        Version:   p.Version,
        Port:      p.Addr.Port(),
    }
    copy(cp.Login[:], line.Login)
    copy(cp.Password[:], line.Password)
    return cp, nil
}

// Addr returns the destination address, unmapping IPv4.
func (c ConnectPeer) Addr() netip.AddrPort {
    return netip.AddrPortFrom(netip.AddrFrom16(c.IP).Unmap(), c.Port)
}

// Marshal encodes the tagged message.
func (c ConnectPeer) Marshal() []byte {
    b := make([]byte, 0, 4+ConnectPeerSize)
    b = binary.BigEndian.AppendUint32(b, uint32(TypeConnectPeer))
    b = append(b, c.IP[:]...)
    b = append(b, c.PublicKey[:]...)
    b = append(b, c.Login[:]...)
    b = append(b, c.Password[:]...)
    b = binary.BigEndian.AppendUint16(b, c.Version)
    b = binary.BigEndian.AppendUint16(b, c.Port)
    return append(b, 0, 0)
}

// UnmarshalConnectPeer decodes a tagged connect command.
func UnmarshalConnectPeer(b []byte) (ConnectPeer, error) {
    var c ConnectPeer
    t, body, err := Split(b)
    if err != nil { return c, err }
    if t != TypeConnectPeer { return c, fmt.Errorf("%w: %s", ErrUnknownType, t) }
    if len(body) < ConnectPeerSize { return c, ErrShort }
    copy(c.IP[:], body[0:16])
    copy(c.PublicKey[:], body[16:48])
    copy(c.Login[:], body[48:64])
    copy(c.Password[:], body[64:88])
    c.Version = binary.BigEndian.Uint16(body[88:])
    c.Port = binary.BigEndian.Uint16(body[90:])
    return c, nil
}

// Split separates the type tag from the payload.
func Split(b []byte) (Type, []byte, error) {
    if len(b) < 4 { return 0, nil, ErrShort }
    return Type(binary.BigEndian.Uint32(b)), b[4:], nil
}

// Node is a peer identity reported by the core.
type Node struct {
    IP        [16]byte
    PublicKey peering.PublicKey
    Path      uint64
    Metric    uint32
    Version   uint32
}

// PeerEvent is a decoded peer present/gone notification.
type PeerEvent struct {
    Node Node
    Gone bool
}

// MarshalPeerEvent encodes a notification as the core sends it.
func MarshalPeerEvent(n Node, gone bool) []byte {
    t := TypePeer
    if gone { t = TypePeerGone }
    b := make([]byte, 0, 4+NodeSize)
    b = binary.BigEndian.AppendUint32(b, uint32(t))
    b = append(b, n.IP[:]...)
    b = append(b, n.PublicKey[:]...)
    b = binary.BigEndian.AppendUint64(b, n.Path)
    b = binary.BigEndian.AppendUint32(b, n.Metric)
    return binary.BigEndian.AppendUint32(b, n.Version)
}

// ParsePeerEvent decodes a peer notification. Any tag other than
// TypePeer/TypePeerGone yields ErrUnknownType.
func ParsePeerEvent(b []byte) (PeerEvent, error) {
    var ev PeerEvent
    t, body, err := Split(b)
    if err != nil { return ev, err }
    switch t {
    case TypePeer:
    case TypePeerGone:
        ev.Gone = true
    default:
        return ev, fmt.Errorf("%w: %s", ErrUnknownType, t)
    }
    if len(body) < NodeSize { return ev, ErrShort }
    copy(ev.Node.IP[:], body[0:16])
    copy(ev.Node.PublicKey[:], body[16:48])
    ev.Node.Path = binary.BigEndian.Uint64(body[48:])
    ev.Node.Metric = binary.BigEndian.Uint32(body[56:])
    ev.Node.Version = binary.BigEndian.Uint32(body[60:])
    return ev, nil
}
