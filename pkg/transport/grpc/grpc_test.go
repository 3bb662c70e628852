package grpc

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/stretchr/testify/require"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    "go.opentelemetry.io/otel/sdk/trace/tracetest"
    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials/insecure"

    "github.com/amirimatin/go-meshseed/pkg/observability/tracing"
    "github.com/amirimatin/go-meshseed/pkg/state"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

func testHandlers() transport.Handlers {
    seeds := []state.SeedEntry{{Name: "a.example", TrustSupernode: true}}
    return transport.Handlers{
        Status:    func(context.Context) ([]byte, error) { return []byte(`{"connected":1}`), nil },
        ListSeeds: func(context.Context) (transport.SeedResponse, error) { return transport.SeedResponse{Seeds: seeds}, nil },
        AddSeed: func(_ context.Context, req transport.SeedRequest) (transport.SeedResponse, error) {
            return transport.SeedResponse{Seeds: append(seeds, state.SeedEntry{Name: req.Name, TrustSupernode: req.Trust})}, nil
        },
        Creds: func(context.Context) (transport.CredsResponse, error) {
            return transport.CredsResponse{}, errors.New("seeder: no public peering password set")
        },
        SupernodePeers: func(_ context.Context, req transport.PayloadRequest) (transport.PayloadResponse, error) {
            return transport.PayloadResponse{Accepted: len(req.Data)}, nil
        },
    }
}

func TestManagementRoundTrip(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    srv := NewServer("127.0.0.1:0")
    require.NoError(t, srv.Start(ctx, testHandlers()))
    defer srv.Stop(context.Background())

    cli := NewClient(3 * time.Second)
    defer cli.Close()
    addr := srv.Addr()

    st, err := cli.GetStatus(ctx, addr)
    require.NoError(t, err)
    require.JSONEq(t, `{"connected":1}`, string(st))

    seeds, err := cli.AddSeed(ctx, addr, transport.SeedRequest{Name: "b.example"})
    require.NoError(t, err)
    require.Len(t, seeds.Seeds, 2)

    res, err := cli.PostSupernodePeers(ctx, addr, transport.PayloadRequest{Data: []byte{1, 2, 3}})
    require.NoError(t, err)
    require.Equal(t, 3, res.Accepted)

    _, err = cli.GetCreds(ctx, addr)
    require.ErrorContains(t, err, "no public peering password")

    _, err = cli.RemoveSeed(ctx, addr, transport.SeedRequest{Name: "a.example"})
    require.ErrorContains(t, err, "not supported")

    require.Equal(t, 1, cli.cm.Len(), "calls share one cached connection")
}

func TestConnManagerEvictsIdle(t *testing.T) {
    mock := clock.NewMock()
    dial := func(ctx context.Context, target string) (*grpc.ClientConn, error) {
        return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
    }
    m := newConnManager(time.Minute, dial, mock)
    defer m.Close()

    _, rel, err := m.Get(context.Background(), "passthrough:///a")
    require.NoError(t, err)
    _, relB, err := m.Get(context.Background(), "passthrough:///b")
    require.NoError(t, err)
    rel()

    require.Zero(t, m.evictIdle(mock.Now().Add(30*time.Second)))
    require.Equal(t, 1, m.evictIdle(mock.Now().Add(2*time.Minute)), "only the released connection is evicted")
    require.Equal(t, 1, m.Len())
    relB()
}

func TestHandlersStartSpans(t *testing.T) {
    sr := tracetest.NewSpanRecorder()
    tracing.Install(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
    t.Cleanup(func() { _, _ = tracing.Setup(false) })

    h := testHandlers()
    h.LinkAddr = func(context.Context, transport.PayloadRequest) (transport.LinkAddrResponse, error) {
        return transport.LinkAddrResponse{Changed: true}, nil
    }
    m := &mgmtImpl{h: h}
    ctx := context.Background()
    _, err := m.SupernodePeers(ctx, &transport.PayloadRequest{Data: []byte{1}})
    require.NoError(t, err)
    out, err := m.LinkAddr(ctx, nil)
    require.NoError(t, err)
    require.True(t, out.Changed)

    var names []string
    for _, s := range sr.Ended() { names = append(names, s.Name()) }
    require.Equal(t, []string{"grpc.snodepeers", "grpc.lladdr"}, names)
}
