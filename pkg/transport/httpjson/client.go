package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-meshseed/pkg/transport"
)

// Client is a thin HTTP client for the management API. It supports optional
// TLS configuration and simple retry with backoff for robustness.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
    attempts  int
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr, attempts: 3}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

// errPermanent marks a reply that a retry cannot fix.
type errPermanent struct{ error }

func (e errPermanent) Unwrap() error { return e.error }

// do performs the request with up to c.attempts tries. Network errors and
// 5xx replies are retried with exponential backoff; 4xx replies are not.
func (c *Client) do(ctx context.Context, method, url string, in any) ([]byte, error) {
    var body []byte
    if in != nil {
        var err error
        if body, err = json.Marshal(in); err != nil { return nil, err }
    }
    var (
        lastBody []byte
        lastErr  error
    )
    for attempt := 0; attempt < c.attempts; attempt++ {
        b, err := c.once(ctx, method, url, body)
        if err == nil { return b, nil }
        lastBody, lastErr = b, err
        var perm errPermanent
        if errors.As(err, &perm) { return b, perm.error }
        // backoff unless context is done
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return lastBody, lastErr
}

func (c *Client) once(ctx context.Context, method, url string, body []byte) ([]byte, error) {
    var rd io.Reader
    if body != nil { rd = bytes.NewReader(body) }
    req, err := http.NewRequestWithContext(ctx, method, url, rd)
    if err != nil { return nil, errPermanent{err} }
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, err }
    switch {
    case resp.StatusCode == http.StatusOK:
        return b, nil
    case resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented:
        return b, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
    default:
        return b, errPermanent{fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))}
    }
}

// call decodes a JSON reply into out. An in-band error field wins over the
// HTTP status text.
func call[T any](c *Client, ctx context.Context, method, url string, in any, errOf func(T) string) (T, error) {
    var out T
    b, err := c.do(ctx, method, url, in)
    if len(b) > 0 { _ = json.Unmarshal(b, &out) }
    if msg := errOf(out); msg != "" { return out, errors.New(msg) }
    return out, err
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    return c.do(ctx, http.MethodGet, c.url(addr, "/status"), nil)
}

func seedErr(r transport.SeedResponse) string { return r.Error }

func (c *Client) ListSeeds(ctx context.Context, addr string) (transport.SeedResponse, error) {
    return call(c, ctx, http.MethodGet, c.url(addr, "/seeds"), nil, seedErr)
}

func (c *Client) AddSeed(ctx context.Context, addr string, req transport.SeedRequest) (transport.SeedResponse, error) {
    return call(c, ctx, http.MethodPost, c.url(addr, "/seeds/add"), req, seedErr)
}

func (c *Client) RemoveSeed(ctx context.Context, addr string, req transport.SeedRequest) (transport.SeedResponse, error) {
    return call(c, ctx, http.MethodPost, c.url(addr, "/seeds/remove"), req, seedErr)
}

func (c *Client) GetCreds(ctx context.Context, addr string) (transport.CredsResponse, error) {
    return call(c, ctx, http.MethodGet, c.url(addr, "/creds"), nil, func(r transport.CredsResponse) string { return r.Error })
}

func (c *Client) PostPublicPeer(ctx context.Context, addr string, req transport.PublicPeerRequest) (transport.PublicPeerResponse, error) {
    return call(c, ctx, http.MethodPost, c.url(addr, "/publicpeer"), req, func(r transport.PublicPeerResponse) string { return r.Error })
}

func (c *Client) PostSupernodePeers(ctx context.Context, addr string, req transport.PayloadRequest) (transport.PayloadResponse, error) {
    return call(c, ctx, http.MethodPost, c.url(addr, "/snodepeers"), req, func(r transport.PayloadResponse) string { return r.Error })
}

func (c *Client) PostLinkAddr(ctx context.Context, addr string, req transport.PayloadRequest) (transport.LinkAddrResponse, error) {
    return call(c, ctx, http.MethodPost, c.url(addr, "/lladdr"), req, func(r transport.LinkAddrResponse) string { return r.Error })
}

var _ transport.RPCClient = (*Client)(nil)
