//go:build integration

package bootstrap_test

import (
    "context"
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/json"
    "encoding/pem"
    "math/big"
    "net"
    "net/netip"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/miekg/dns"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/bootstrap"
    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/peering"
    "github.com/amirimatin/go-meshseed/pkg/seeder"
)

func serveTXT(t *testing.T, name, txt string) string {
    t.Helper()
    pc, err := net.ListenPacket("udp", "127.0.0.1:0")
    require.NoError(t, err)
    h := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
        m := new(dns.Msg)
        m.SetReply(req)
        if q := req.Question[0]; q.Name == dns.Fqdn(name) && q.Qtype == dns.TypeTXT {
            m.Answer = append(m.Answer, &dns.TXT{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60}, Txt: []string{txt}})
        } else {
            m.Rcode = dns.RcodeNameError
        }
        _ = w.WriteMsg(m)
    })
    started := make(chan struct{})
    srv := &dns.Server{PacketConn: pc, Handler: h, NotifyStartedFunc: func() { close(started) }}
    go func() { _ = srv.ActivateAndServe() }()
    <-started
    t.Cleanup(func() { _ = srv.Shutdown() })
    return pc.LocalAddr().String()
}

// selfSigned writes a certificate valid for 127.0.0.1 as server and client.
func selfSigned(t *testing.T, dir string) (string, string) {
    t.Helper()
    key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    require.NoError(t, err)
    tmpl := &x509.Certificate{
        SerialNumber:          big.NewInt(1),
        Subject:               pkix.Name{CommonName: "seeder"},
        NotBefore:             time.Now().Add(-time.Hour),
        NotAfter:              time.Now().Add(time.Hour),
        IsCA:                  true,
        BasicConstraintsValid: true,
        KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
    }
    der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
    require.NoError(t, err)
    kb, err := x509.MarshalECPrivateKey(key)
    require.NoError(t, err)
    cert, kf := filepath.Join(dir, "node.crt"), filepath.Join(dir, "node.key")
    require.NoError(t, os.WriteFile(cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
    require.NoError(t, os.WriteFile(kf, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: kb}), 0o600))
    return cert, kf
}

func TestSeederConnectsToDNSPeerOverGRPCWithTLS(t *testing.T) {
    var k peering.PublicKey
    k[0] = 7
    peer := peering.Peer{
        Addr:      netip.MustParseAddrPort("192.0.2.7:4007"),
        PublicKey: k,
        Login:     7,
        Password:  [8]byte{7},
        Version:   peering.CurrentProtocolVersion,
    }
    txt, err := peering.SeedRecord{Peers: []peering.Peer{peer}}.EncodeTXT()
    require.NoError(t, err)
    nameserver := serveTXT(t, "seed.example", txt)

    core, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
    require.NoError(t, err)
    defer core.Close()

    cert, key := selfSigned(t, t.TempDir())
    n, err := bootstrap.Run(context.Background(), bootstrap.Config{
        PublicKey:  strings.Repeat("cd", 32),
        SeedsCSV:   "seed.example:untrusted",
        DNSServers: []string{nameserver},
        MgmtAddr:   "127.0.0.1:0",
        MgmtProto:  "grpc",
        TLSEnable:  true,
        TLSCA:      cert,
        TLSCert:    cert,
        TLSKey:     key,
        CoreAddr:   core.LocalAddr().String(),
        CoreBind:   "127.0.0.1:0",
        IdleWindow: 20 * time.Millisecond,
        Logger:     zap.NewNop(),
    })
    require.NoError(t, err)
    defer n.Close()

    // The core sees a census request, then a connect command for the peer.
    require.NoError(t, core.SetReadDeadline(time.Now().Add(10*time.Second)))
    buf := make([]byte, 512)
    var cp coremsg.ConnectPeer
    for {
        m, _, err := core.ReadFromUDP(buf)
        require.NoError(t, err)
        if typ, _, _ := coremsg.Split(buf[:m]); typ != coremsg.TypeConnectPeer { continue }
        cp, err = coremsg.UnmarshalConnectPeer(buf[:m])
        require.NoError(t, err)
        break
    }
    require.Equal(t, peer.Addr, cp.Addr())
    require.Equal(t, k, cp.PublicKey)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    raw, err := n.Client.GetStatus(ctx, n.Server.Addr())
    require.NoError(t, err)
    var st seeder.Status
    require.NoError(t, json.Unmarshal(raw, &st))
    require.Equal(t, 1, st.Tried)

    // No link address has been reported yet.
    creds, err := n.Client.GetCreds(ctx, n.Server.Addr())
    require.Error(t, err)
    require.Empty(t, creds.Data)
}
