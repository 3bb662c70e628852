package httpjson

import (
    "context"
    "errors"
    "io"
    "net/http"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-meshseed/pkg/state"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

func startServer(t *testing.T, h transport.Handlers) string {
    t.Helper()
    ctx, cancel := context.WithCancel(context.Background())
    t.Cleanup(cancel)
    srv := NewServer("127.0.0.1:0", nil)
    require.NoError(t, srv.Start(ctx, h))
    t.Cleanup(func() { _ = srv.Stop(context.Background()) })
    return srv.Addr()
}

func TestManagementRoundTrip(t *testing.T) {
    var linkCalls atomic.Int32
    addr := startServer(t, transport.Handlers{
        Status: func(context.Context) ([]byte, error) { return []byte(`{"tried":2}`), nil },
        ListSeeds: func(context.Context) (transport.SeedResponse, error) {
            return transport.SeedResponse{Seeds: []state.SeedEntry{{Name: "a.example"}}}, nil
        },
        RemoveSeed: func(_ context.Context, req transport.SeedRequest) (transport.SeedResponse, error) {
            return transport.SeedResponse{Removed: req.Name == "a.example"}, nil
        },
        PublicPeer: func(_ context.Context, req transport.PublicPeerRequest) (transport.PublicPeerResponse, error) {
            return transport.PublicPeerResponse{Login: "peer00007", Password: "pw"}, nil
        },
        LinkAddr: func(_ context.Context, req transport.PayloadRequest) (transport.LinkAddrResponse, error) {
            linkCalls.Add(1)
            return transport.LinkAddrResponse{Changed: len(req.Data) > 0}, nil
        },
    })
    cli := NewClient(2 * time.Second)
    ctx := context.Background()

    st, err := cli.GetStatus(ctx, addr)
    require.NoError(t, err)
    require.JSONEq(t, `{"tried":2}`, string(st))

    seeds, err := cli.ListSeeds(ctx, addr)
    require.NoError(t, err)
    require.Equal(t, []state.SeedEntry{{Name: "a.example"}}, seeds.Seeds)

    rm, err := cli.RemoveSeed(ctx, addr, transport.SeedRequest{Name: "a.example"})
    require.NoError(t, err)
    require.True(t, rm.Removed)

    line, err := cli.PostPublicPeer(ctx, addr, transport.PublicPeerRequest{Login: 7, Password: 1})
    require.NoError(t, err)
    require.Equal(t, "peer00007", line.Login)

    ll, err := cli.PostLinkAddr(ctx, addr, transport.PayloadRequest{Data: []byte{1}})
    require.NoError(t, err)
    require.True(t, ll.Changed)
    require.Equal(t, int32(1), linkCalls.Load())

    // Unwired endpoints answer 501 and are not retried.
    _, err = cli.AddSeed(ctx, addr, transport.SeedRequest{Name: "b.example"})
    require.ErrorContains(t, err, "501")
}

func TestHandlerErrorIsReportedInBand(t *testing.T) {
    var calls atomic.Int32
    addr := startServer(t, transport.Handlers{
        Creds: func(context.Context) (transport.CredsResponse, error) {
            calls.Add(1)
            return transport.CredsResponse{}, errors.New("seeder: no IPv4 or IPv6 address known")
        },
    })
    cli := NewClient(2 * time.Second)
    _, err := cli.GetCreds(context.Background(), addr)
    require.EqualError(t, err, "seeder: no IPv4 or IPv6 address known")
    require.Equal(t, int32(3), calls.Load(), "server errors are retried")
}

func TestHealthzAndMethodCheck(t *testing.T) {
    addr := startServer(t, transport.Handlers{})
    resp, err := http.Get("http://" + addr + "/healthz")
    require.NoError(t, err)
    b, _ := io.ReadAll(resp.Body)
    resp.Body.Close()
    require.Equal(t, "ok", string(b))

    resp, err = http.Post("http://"+addr+"/seeds", "application/json", nil)
    require.NoError(t, err)
    resp.Body.Close()
    require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
