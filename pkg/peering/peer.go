package peering

import (
    "encoding/hex"
    "errors"
    "fmt"
    "net/netip"

    "github.com/mr-tron/base58"
)

// CurrentProtocolVersion is the mesh protocol version advertised in peer
// records minted by this node.
const CurrentProtocolVersion uint16 = 22

// KeySize is the length of a node public key.
const KeySize = 32

// PublicKey identifies a node on the mesh.
type PublicKey [KeySize]byte

// String renders the key in base58 (same alphabet as node IDs in logs).
func (k PublicKey) String() string { return base58.Encode(k[:]) }

// Hex renders the key as lowercase hex, the form accepted on the command line.
func (k PublicKey) Hex() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether the key is all zeros.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// ParsePublicKey accepts either 64 hex characters or a base58 string.
func ParsePublicKey(s string) (PublicKey, error) {
    var k PublicKey
    if len(s) == 2*KeySize {
        if b, err := hex.DecodeString(s); err == nil {
            copy(k[:], b)
            return k, nil
        }
    }
    b, err := base58.Decode(s)
    if err != nil { return k, fmt.Errorf("peering: invalid public key %q: %w", s, err) }
    if len(b) != KeySize { return k, fmt.Errorf("peering: public key must be %d bytes, got %d", KeySize, len(b)) }
    copy(k[:], b)
    return k, nil
}

// Peer is a candidate peer as published by a DNS seed or the supernode.
// Values are treated as immutable once decoded.
type Peer struct {
    Addr      netip.AddrPort
    PublicKey PublicKey
    Login     uint16
    Password  [8]byte
    Version   uint16
}

// PeeringLine is the human readable login/password pair a node configures
// to accept connections from public peers.
type PeeringLine struct {
    Login    string `json:"login"`
    Password string `json:"password"`
}

const (
    // MaxLoginLen and MaxPasswordLen are the field widths of a connect command.
    MaxLoginLen    = 16
    MaxPasswordLen = 24
)

var ErrLineTooLong = errors.New("peering: peering line exceeds field width")

// Line derives the peering line for p. Both fields only depend on the login
// number and password so the result is stable across addresses.
func (p Peer) Line() PeeringLine {
    return LineFor(p.Login, p.Password)
}

// LineFor derives a peering line from a login number and raw password.
func LineFor(login uint16, password [8]byte) PeeringLine {
    return PeeringLine{
        Login:    fmt.Sprintf("peer%05d", login),
        Password: base58.Encode(password[:]),
    }
}

// Validate checks that the line fits the fixed-width connect command fields.
func (l PeeringLine) Validate() error {
    if len(l.Login) > MaxLoginLen || len(l.Password) > MaxPasswordLen { return ErrLineTooLong }
    return nil
}

func (p Peer) String() string {
    return fmt.Sprintf("%s/%s", p.Addr, p.PublicKey)
}
