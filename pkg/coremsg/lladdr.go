package coremsg

import (
    "encoding/binary"
    "net/netip"
)

// ReplyMagic tags a genuine link-layer address reply.
const ReplyMagic uint32 = 0x4c4c4144

// Address family tags of a link-layer address reply.
const (
    FamilyOther byte = 0
    FamilyUDP4  byte = 1
    FamilyUDP6  byte = 2
)

// LinkAddr is one of UDP4Addr, UDP6Addr or OtherAddr.
type LinkAddr interface {
    family() byte
}

// UDP4Addr is an externally visible IPv4 socket address.
type UDP4Addr struct{ AddrPort netip.AddrPort }

// UDP6Addr is an externally visible IPv6 socket address.
type UDP6Addr struct{ AddrPort netip.AddrPort }

// OtherAddr is an address of a family the seeder cannot advertise. It is a
// valid reply, not an error.
type OtherAddr struct{ Header []byte }

func (UDP4Addr) family() byte  { return FamilyUDP4 }
func (UDP6Addr) family() byte  { return FamilyUDP6 }
func (OtherAddr) family() byte { return FamilyOther }

// LinkAddrReply is the address a peer observed us at.
type LinkAddrReply struct {
    Magic  uint32
    Addr   LinkAddr
    // Family is set instead of Addr when the family tag is unknown.
    Family byte
}

// Marshal encodes the reply: magic, family, pad, port, address bytes.
func (r LinkAddrReply) Marshal() []byte {
    b := binary.BigEndian.AppendUint32(nil, r.Magic)
    switch a := r.Addr.(type) {
    case UDP4Addr:
        ip := a.AddrPort.Addr().Unmap().As4()
        b = append(b, FamilyUDP4, 0)
        b = binary.BigEndian.AppendUint16(b, a.AddrPort.Port())
        b = append(b, ip[:]...)
    case UDP6Addr:
        ip := a.AddrPort.Addr().As16()
        b = append(b, FamilyUDP6, 0)
        b = binary.BigEndian.AppendUint16(b, a.AddrPort.Port())
        b = append(b, ip[:]...)
    case OtherAddr:
        b = append(b, FamilyOther)
        b = append(b, a.Header...)
    }
    return b
}

// ParseLinkAddrReply decodes a reply. A reply whose magic is wrong, or
// whose family is unknown, is returned without an address so the caller
// can ignore it. Only a reply too short for its own layout is an error.
func ParseLinkAddrReply(b []byte) (LinkAddrReply, error) {
    var r LinkAddrReply
    if len(b) < 4 { return r, ErrShort }
    r.Magic = binary.BigEndian.Uint32(b)
    if r.Magic != ReplyMagic || len(b) < 5 { return r, nil }
    fam, body := b[4], b[5:]
    switch fam {
    case FamilyUDP4:
        if len(body) < 1+2+4 { return r, ErrShort }
        ip := netip.AddrFrom4([4]byte(body[3:7]))
        r.Addr = UDP4Addr{AddrPort: netip.AddrPortFrom(ip, binary.BigEndian.Uint16(body[1:]))}
    case FamilyUDP6:
        if len(body) < 1+2+16 { return r, ErrShort }
        ip := netip.AddrFrom16([16]byte(body[3:19]))
        r.Addr = UDP6Addr{AddrPort: netip.AddrPortFrom(ip, binary.BigEndian.Uint16(body[1:]))}
    case FamilyOther:
        r.Addr = OtherAddr{Header: append([]byte{}, body...)}
    default:
        r.Family = fam
    }
    return r, nil
}
