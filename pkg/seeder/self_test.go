package seeder

import (
    "encoding/binary"
    "net/netip"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/peering"
)

func udp4(s string) coremsg.LinkAddrReply {
    return coremsg.LinkAddrReply{Magic: coremsg.ReplyMagic, Addr: coremsg.UDP4Addr{AddrPort: netip.MustParseAddrPort(s)}}
}

func udp6(s string) coremsg.LinkAddrReply {
    return coremsg.LinkAddrReply{Magic: coremsg.ReplyMagic, Addr: coremsg.UDP6Addr{AddrPort: netip.MustParseAddrPort(s)}}
}

func TestReportLinkAddrDetectsChange(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver())
    require.False(t, s.HasLinkAddr())

    require.True(t, s.ReportLinkAddr(udp4("198.51.100.1:4000")))
    require.False(t, s.ReportLinkAddr(udp4("198.51.100.1:4000")), "same address twice is no change")
    require.True(t, s.ReportLinkAddr(udp4("198.51.100.2:4000")))
    require.True(t, s.ReportLinkAddr(udp4("198.51.100.2:4001")))
    require.True(t, s.HasLinkAddr())

    require.True(t, s.ReportLinkAddr(udp6("[2001:db8::1]:4000")))
    require.False(t, s.ReportLinkAddr(udp6("[2001:db8::1]:4000")))
    require.Equal(t, []netip.AddrPort{
        netip.MustParseAddrPort("198.51.100.2:4001"),
        netip.MustParseAddrPort("[2001:db8::1]:4000"),
    }, s.LinkAddrs())
}

func TestReportLinkAddrIgnoresUntrusted(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver())
    bad := udp4("198.51.100.1:4000")
    bad.Magic++
    require.False(t, s.ReportLinkAddr(bad))
    require.False(t, s.ReportLinkAddr(coremsg.LinkAddrReply{Magic: coremsg.ReplyMagic, Addr: coremsg.OtherAddr{Header: []byte{1, 2}}}))
    require.False(t, s.ReportLinkAddr(coremsg.LinkAddrReply{Magic: coremsg.ReplyMagic}))
    require.False(t, s.HasLinkAddr())
}

func TestMintCredentials(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver())

    _, err := s.MintCredentials()
    require.ErrorIs(t, err, ErrNoPassword)

    _, err = s.RegisterPublicPeer(12, 0x0102030405060708, []byte("code"))
    require.NoError(t, err)
    _, err = s.MintCredentials()
    require.ErrorIs(t, err, ErrNoAddress)

    s.ReportLinkAddr(udp6("[2001:db8::1]:4000"))
    s.ReportLinkAddr(udp4("198.51.100.1:4000"))
    buf, err := s.MintCredentials()
    require.NoError(t, err)

    rec, err := peering.DecodeBinary(buf)
    require.NoError(t, err)
    require.Len(t, rec.Peers, 2)
    require.Equal(t, []byte("code"), rec.PeerID)
    require.Equal(t, netip.MustParseAddrPort("198.51.100.1:4000"), rec.Peers[0].Addr)
    require.Equal(t, netip.MustParseAddrPort("[2001:db8::1]:4000"), rec.Peers[1].Addr)
    for _, p := range rec.Peers {
        require.Equal(t, testKey(0xAA), p.PublicKey)
        require.Equal(t, uint16(12), p.Login)
        require.Equal(t, uint64(0x0102030405060708), binary.BigEndian.Uint64(p.Password[:]))
        require.Equal(t, peering.CurrentProtocolVersion, p.Version)
    }
}

func TestRegisterPublicPeer(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver())
    line, err := s.RegisterPublicPeer(7, 42, nil)
    require.NoError(t, err)

    var pw [8]byte
    binary.BigEndian.PutUint64(pw[:], 42)
    require.Equal(t, peering.LineFor(7, pw), line)
    require.True(t, s.Status().PublicPeer)

    // The latest registration wins.
    line2, err := s.RegisterPublicPeer(8, 43, nil)
    require.NoError(t, err)
    require.NotEqual(t, line, line2)

    _, err = s.RegisterPublicPeer(1, 1, make([]byte, 256))
    require.ErrorIs(t, err, ErrCodeTooLong)
}
