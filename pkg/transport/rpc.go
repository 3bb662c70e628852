package transport

import (
    "context"
    "errors"

    "github.com/amirimatin/go-meshseed/pkg/state"
)

// StatusFunc returns a JSON-encoded status payload for management /status.
// Using []byte avoids import cycles on seeder types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// SeedRequest names a DNS seed to add or remove.
type SeedRequest struct {
    Name  string `json:"name"`
    Trust bool   `json:"trust,omitempty"`
}

// SeedResponse carries the registry after the operation.
type SeedResponse struct {
    Removed bool              `json:"removed,omitempty"`
    Seeds   []state.SeedEntry `json:"seeds"`
    Error   string            `json:"error,omitempty"`
}

type ListSeedsFunc func(ctx context.Context) (SeedResponse, error)
type SeedFunc func(ctx context.Context, req SeedRequest) (SeedResponse, error)

// CredsResponse holds minted peering credentials ready to post upstream.
type CredsResponse struct {
    Data  []byte `json:"data,omitempty"`
    Error string `json:"error,omitempty"`
}

type CredsFunc func(ctx context.Context) (CredsResponse, error)

// PublicPeerRequest opts this node in as a public peer.
type PublicPeerRequest struct {
    Login    uint16 `json:"login"`
    Password uint64 `json:"password"`
    Code     []byte `json:"code,omitempty"`
}

// PublicPeerResponse is the peering line to authorize.
type PublicPeerResponse struct {
    Login    string `json:"login,omitempty"`
    Password string `json:"password,omitempty"`
    Error    string `json:"error,omitempty"`
}

type PublicPeerFunc func(ctx context.Context, req PublicPeerRequest) (PublicPeerResponse, error)

// PayloadRequest carries a binary payload received from elsewhere: a
// supernode peering reply or a link address reply.
type PayloadRequest struct {
    Data []byte `json:"data"`
}

// PayloadResponse reports how many peers were queued.
type PayloadResponse struct {
    Accepted int    `json:"accepted"`
    Error    string `json:"error,omitempty"`
}

type PayloadFunc func(ctx context.Context, req PayloadRequest) (PayloadResponse, error)

// LinkAddrResponse reports whether our external address changed.
type LinkAddrResponse struct {
    Changed bool   `json:"changed"`
    Error   string `json:"error,omitempty"`
}

type LinkAddrFunc func(ctx context.Context, req PayloadRequest) (LinkAddrResponse, error)

// Handlers backs the management endpoints. A nil handler makes its
// endpoint report "not supported".
type Handlers struct {
    Status         StatusFunc
    ListSeeds      ListSeedsFunc
    AddSeed        SeedFunc
    RemoveSeed     SeedFunc
    Creds          CredsFunc
    PublicPeer     PublicPeerFunc
    SupernodePeers PayloadFunc
    LinkAddr       LinkAddrFunc
}

var ErrNotSupported = errors.New("transport: not supported")

// RPCServer exposes the management endpoints of a running seeder.
type RPCServer interface {
    Start(ctx context.Context, h Handlers) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient calls the management endpoints of a seeder at addr using the
// chosen protocol (HTTP/JSON or gRPC JSON codec).
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    ListSeeds(ctx context.Context, addr string) (SeedResponse, error)
    AddSeed(ctx context.Context, addr string, req SeedRequest) (SeedResponse, error)
    RemoveSeed(ctx context.Context, addr string, req SeedRequest) (SeedResponse, error)
    GetCreds(ctx context.Context, addr string) (CredsResponse, error)
    PostPublicPeer(ctx context.Context, addr string, req PublicPeerRequest) (PublicPeerResponse, error)
    PostSupernodePeers(ctx context.Context, addr string, req PayloadRequest) (PayloadResponse, error)
    PostLinkAddr(ctx context.Context, addr string, req PayloadRequest) (LinkAddrResponse, error)
}
