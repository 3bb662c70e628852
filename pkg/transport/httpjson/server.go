package httpjson

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    "github.com/amirimatin/go-meshseed/pkg/observability/tracing"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

// Server is a minimal HTTP server exposing the seeder management endpoints
// plus metrics and healthz. It is intended for local operators and tooling.
type Server struct {
    bind   string
    logger *zap.Logger
    tlsCfg *tls.Config

    mu  sync.Mutex
    srv *http.Server
    ln  net.Listener
}

// NewServer binds to the given TCP address (e.g., "127.0.0.1:17950").
func NewServer(bind string, logger *zap.Logger) *Server {
    return &Server{bind: bind, logger: logger}
}

// UseTLS enables TLS for the HTTP server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// handle registers a JSON endpoint. A nil call answers 501; a call error
// answers 500 with the response body still encoded.
func handle[Req, Resp any](mux *http.ServeMux, path, method string, call func(context.Context, Req) (Resp, error), setErr func(*Resp, error)) {
    mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
        if r.Method != method { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if call == nil { http.Error(w, fmt.Sprintf("%s not supported", path), http.StatusNotImplemented); return }
        var req Req
        if method == http.MethodPost {
            if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
                http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
                return
            }
        }
        ctx, span := tracing.Start(r.Context(), "http"+path)
        resp, err := call(ctx, req)
        span.End(err)
        w.Header().Set("Content-Type", "application/json")
        if err != nil {
            setErr(&resp, err)
            w.WriteHeader(http.StatusInternalServerError)
        }
        _ = json.NewEncoder(w).Encode(resp)
    })
}

// Start launches the HTTP server and registers handlers backed by h. The
// server is shut down when the context is canceled.
func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    mux := http.NewServeMux()
    mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if h.Status == nil { http.Error(w, "status not supported", http.StatusNotImplemented); return }
        ctx, end := tracing.StartSpan(r.Context(), "http.status")
        defer end()
        data, err := h.Status(ctx)
        if err != nil { http.Error(w, fmt.Sprintf("status error: %v", err), http.StatusInternalServerError); return }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write(data)
    })
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.Handle("/metrics", promhttp.Handler())

    seedErr := func(r *transport.SeedResponse, err error) { r.Error = err.Error() }
    var list func(context.Context, struct{}) (transport.SeedResponse, error)
    if h.ListSeeds != nil {
        list = func(ctx context.Context, _ struct{}) (transport.SeedResponse, error) { return h.ListSeeds(ctx) }
    }
    handle(mux, "/seeds", http.MethodGet, list, seedErr)
    handle(mux, "/seeds/add", http.MethodPost, h.AddSeed, seedErr)
    handle(mux, "/seeds/remove", http.MethodPost, h.RemoveSeed, seedErr)

    var creds func(context.Context, struct{}) (transport.CredsResponse, error)
    if h.Creds != nil {
        creds = func(ctx context.Context, _ struct{}) (transport.CredsResponse, error) { return h.Creds(ctx) }
    }
    handle(mux, "/creds", http.MethodGet, creds, func(r *transport.CredsResponse, err error) { r.Error = err.Error() })
    handle(mux, "/publicpeer", http.MethodPost, h.PublicPeer, func(r *transport.PublicPeerResponse, err error) { r.Error = err.Error() })
    handle(mux, "/snodepeers", http.MethodPost, h.SupernodePeers, func(r *transport.PayloadResponse, err error) { r.Error = err.Error() })
    handle(mux, "/lladdr", http.MethodPost, h.LinkAddr, func(r *transport.LinkAddrResponse, err error) { r.Error = err.Error() })

    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil {
        ln = tls.NewListener(ln, s.tlsCfg)
    }
    srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
    s.mu.Lock()
    s.srv, s.ln = srv, ln
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
            logutil.Errorf(s.logger, "httpjson: server error: %v", err)
        }
    }()
    return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.ln != nil { return s.ln.Addr().String() }
    return s.bind
}

// Stop attempts a graceful shutdown with a short timeout.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}

var _ transport.RPCServer = (*Server)(nil)
