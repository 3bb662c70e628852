package grpc

import (
    "context"
    "crypto/tls"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-meshseed/pkg/observability/tracing"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

const serviceName = "meshseed.v1.Management"

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    tlsCfg *tls.Config

    mu  sync.Mutex
    lis net.Listener
    srv *grpc.Server
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type statusBlob struct{ Data []byte `json:"data"` }

// managementServer defines the methods we expose.
type managementServer interface {
    GetStatus(ctx context.Context, in *empty) (*statusBlob, error)
    ListSeeds(ctx context.Context, in *empty) (*transport.SeedResponse, error)
    AddSeed(ctx context.Context, in *transport.SeedRequest) (*transport.SeedResponse, error)
    RemoveSeed(ctx context.Context, in *transport.SeedRequest) (*transport.SeedResponse, error)
    GetCreds(ctx context.Context, in *empty) (*transport.CredsResponse, error)
    PublicPeer(ctx context.Context, in *transport.PublicPeerRequest) (*transport.PublicPeerResponse, error)
    SupernodePeers(ctx context.Context, in *transport.PayloadRequest) (*transport.PayloadResponse, error)
    LinkAddr(ctx context.Context, in *transport.PayloadRequest) (*transport.LinkAddrResponse, error)
}

type mgmtImpl struct{ h transport.Handlers }

const notSupported = "not supported"

func (m *mgmtImpl) GetStatus(ctx context.Context, _ *empty) (*statusBlob, error) {
    if m.h.Status == nil { return nil, transport.ErrNotSupported }
    ctx, end := tracing.StartSpan(ctx, "grpc.status")
    defer end()
    b, err := m.h.Status(ctx)
    if err != nil { return nil, err }
    return &statusBlob{Data: b}, nil
}

func (m *mgmtImpl) ListSeeds(ctx context.Context, _ *empty) (*transport.SeedResponse, error) {
    if m.h.ListSeeds == nil { return &transport.SeedResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.seeds")
    defer end()
    out, err := m.h.ListSeeds(ctx)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) seedOp(ctx context.Context, name string, fn transport.SeedFunc, in *transport.SeedRequest) (*transport.SeedResponse, error) {
    if in == nil { in = &transport.SeedRequest{} }
    if fn == nil { return &transport.SeedResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, name)
    defer end()
    out, err := fn(ctx, *in)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) AddSeed(ctx context.Context, in *transport.SeedRequest) (*transport.SeedResponse, error) {
    return m.seedOp(ctx, "grpc.seeds.add", m.h.AddSeed, in)
}

func (m *mgmtImpl) RemoveSeed(ctx context.Context, in *transport.SeedRequest) (*transport.SeedResponse, error) {
    return m.seedOp(ctx, "grpc.seeds.remove", m.h.RemoveSeed, in)
}

func (m *mgmtImpl) GetCreds(ctx context.Context, _ *empty) (*transport.CredsResponse, error) {
    if m.h.Creds == nil { return &transport.CredsResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.creds")
    defer end()
    out, err := m.h.Creds(ctx)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) PublicPeer(ctx context.Context, in *transport.PublicPeerRequest) (*transport.PublicPeerResponse, error) {
    if in == nil { in = &transport.PublicPeerRequest{} }
    if m.h.PublicPeer == nil { return &transport.PublicPeerResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.publicpeer")
    defer end()
    out, err := m.h.PublicPeer(ctx, *in)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) SupernodePeers(ctx context.Context, in *transport.PayloadRequest) (*transport.PayloadResponse, error) {
    if in == nil { in = &transport.PayloadRequest{} }
    if m.h.SupernodePeers == nil { return &transport.PayloadResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.snodepeers")
    defer end()
    out, err := m.h.SupernodePeers(ctx, *in)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) LinkAddr(ctx context.Context, in *transport.PayloadRequest) (*transport.LinkAddrResponse, error) {
    if in == nil { in = &transport.PayloadRequest{} }
    if m.h.LinkAddr == nil { return &transport.LinkAddrResponse{Error: notSupported}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.lladdr")
    defer end()
    out, err := m.h.LinkAddr(ctx, *in)
    if err != nil { out.Error = err.Error() }
    return &out, nil
}

// unary builds a hand-written method descriptor, no codegen required.
func unary[Req any](method string, call func(managementServer, context.Context, *Req) (any, error)) grpc.MethodDesc {
    full := "/" + serviceName + "/" + method
    return grpc.MethodDesc{
        MethodName: method,
        Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
            in := new(Req)
            if err := dec(in); err != nil { return nil, err }
            if interceptor == nil { return call(srv.(managementServer), ctx, in) }
            info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
            handler := func(ctx context.Context, req interface{}) (interface{}, error) {
                return call(srv.(managementServer), ctx, req.(*Req))
            }
            return interceptor(ctx, in, info, handler)
        },
    }
}

var _Management_serviceDesc = grpc.ServiceDesc{
    ServiceName: serviceName,
    HandlerType: (*managementServer)(nil),
    Methods: []grpc.MethodDesc{
        unary("GetStatus", func(s managementServer, ctx context.Context, in *empty) (any, error) { return s.GetStatus(ctx, in) }),
        unary("ListSeeds", func(s managementServer, ctx context.Context, in *empty) (any, error) { return s.ListSeeds(ctx, in) }),
        unary("AddSeed", func(s managementServer, ctx context.Context, in *transport.SeedRequest) (any, error) { return s.AddSeed(ctx, in) }),
        unary("RemoveSeed", func(s managementServer, ctx context.Context, in *transport.SeedRequest) (any, error) { return s.RemoveSeed(ctx, in) }),
        unary("GetCreds", func(s managementServer, ctx context.Context, in *empty) (any, error) { return s.GetCreds(ctx, in) }),
        unary("PublicPeer", func(s managementServer, ctx context.Context, in *transport.PublicPeerRequest) (any, error) { return s.PublicPeer(ctx, in) }),
        unary("SupernodePeers", func(s managementServer, ctx context.Context, in *transport.PayloadRequest) (any, error) { return s.SupernodePeers(ctx, in) }),
        unary("LinkAddr", func(s managementServer, ctx context.Context, in *transport.PayloadRequest) (any, error) { return s.LinkAddr(ctx, in) }),
    },
}

func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    healthSrv := health.NewServer()
    healthpb.RegisterHealthServer(srv, healthSrv)
    srv.RegisterService(&_Management_serviceDesc, &mgmtImpl{h: h})

    s.mu.Lock()
    s.lis, s.srv = lis, srv
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.Stop(c)
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

// Stop stops gracefully, forcing the stop when ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
