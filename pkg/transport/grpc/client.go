package grpc

import (
    "context"
    "crypto/tls"
    "errors"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-meshseed/pkg/transport"
)

type Client struct {
    timeout time.Duration
    tlsCfg  *tls.Config

    once sync.Once
    cm   *ConnManager
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    return &Client{timeout: timeout}
}

// UseTLS sets TLS config for the client.
func (c *Client) UseTLS(cfg *tls.Config) *Client { c.tlsCfg = cfg; return c }

func (c *Client) dialCtx(ctx context.Context, target string) (*grpc.ClientConn, error) {
    // Use JSON codec and set content subtype accordingly.
    opts := []grpc.DialOption{
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
        grpc.WithBlock(),
    }
    if c.tlsCfg != nil {
        opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.tlsCfg)))
    } else {
        opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
    }
    return grpc.DialContext(ctx, target, opts...)
}

// getConn returns a managed connection, creating the manager on first use.
func (c *Client) getConn(ctx context.Context, addr string) (*grpc.ClientConn, func(), error) {
    c.once.Do(func() { c.cm = NewConnManager(30*time.Second, c.dialCtx) })
    return c.cm.Get(ctx, addr)
}

// Close releases cached connections.
func (c *Client) Close() {
    if c.cm != nil { c.cm.Close() }
}

func invoke[T any](c *Client, ctx context.Context, addr, method string, in any, errOf func(*T) string) (T, error) {
    var out T
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    cc, rel, err := c.getConn(cctx, addr)
    if err != nil { return out, err }
    defer rel()
    if err := cc.Invoke(cctx, "/"+serviceName+"/"+method, in, &out); err != nil { return out, err }
    if msg := errOf(&out); msg != "" { return out, errors.New(msg) }
    return out, nil
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    out, err := invoke(c, ctx, addr, "GetStatus", &empty{}, func(*statusBlob) string { return "" })
    return out.Data, err
}

func seedErr(r *transport.SeedResponse) string { return r.Error }

func (c *Client) ListSeeds(ctx context.Context, addr string) (transport.SeedResponse, error) {
    return invoke(c, ctx, addr, "ListSeeds", &empty{}, seedErr)
}

func (c *Client) AddSeed(ctx context.Context, addr string, req transport.SeedRequest) (transport.SeedResponse, error) {
    return invoke(c, ctx, addr, "AddSeed", &req, seedErr)
}

func (c *Client) RemoveSeed(ctx context.Context, addr string, req transport.SeedRequest) (transport.SeedResponse, error) {
    return invoke(c, ctx, addr, "RemoveSeed", &req, seedErr)
}

func (c *Client) GetCreds(ctx context.Context, addr string) (transport.CredsResponse, error) {
    return invoke(c, ctx, addr, "GetCreds", &empty{}, func(r *transport.CredsResponse) string { return r.Error })
}

func (c *Client) PostPublicPeer(ctx context.Context, addr string, req transport.PublicPeerRequest) (transport.PublicPeerResponse, error) {
    return invoke(c, ctx, addr, "PublicPeer", &req, func(r *transport.PublicPeerResponse) string { return r.Error })
}

func (c *Client) PostSupernodePeers(ctx context.Context, addr string, req transport.PayloadRequest) (transport.PayloadResponse, error) {
    return invoke(c, ctx, addr, "SupernodePeers", &req, func(r *transport.PayloadResponse) string { return r.Error })
}

func (c *Client) PostLinkAddr(ctx context.Context, addr string, req transport.PayloadRequest) (transport.LinkAddrResponse, error) {
    return invoke(c, ctx, addr, "LinkAddr", &req, func(r *transport.LinkAddrResponse) string { return r.Error })
}

var _ transport.RPCClient = (*Client)(nil)
