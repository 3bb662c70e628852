package dns

import (
    "context"
    "fmt"
    "net"
    "strings"
    "sync"
    "time"

    "github.com/miekg/dns"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
)

// Options configures the TXT resolver.
type Options struct {
    // Servers are host:port nameservers queried in order. When empty they
    // are read from ResolvConf.
    Servers []string

    // ResolvConf defaults to /etc/resolv.conf.
    ResolvConf string

    // Timeout bounds a single exchange; if zero, defaults to 5s.
    Timeout time.Duration
}

// Resolver looks up seed TXT records with github.com/miekg/dns, retrying
// over TCP when a UDP answer comes back truncated.
type Resolver struct {
    opts Options
    udp  *dns.Client
    tcp  *dns.Client

    mu      sync.Mutex
    servers []string
}

// New returns a resolver. Nameservers from resolv.conf are loaded lazily
// on first use so construction never touches the filesystem.
func New(opts Options) *Resolver {
    if opts.Timeout <= 0 { opts.Timeout = 5 * time.Second }
    if opts.ResolvConf == "" { opts.ResolvConf = "/etc/resolv.conf" }
    return &Resolver{
        opts:    opts,
        udp:     &dns.Client{Net: "udp", Timeout: opts.Timeout},
        tcp:     &dns.Client{Net: "tcp", Timeout: opts.Timeout},
        servers: append([]string(nil), opts.Servers...),
    }
}

func (r *Resolver) nameservers() ([]string, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    if len(r.servers) > 0 { return r.servers, nil }
    cc, err := dns.ClientConfigFromFile(r.opts.ResolvConf)
    if err != nil { return nil, fmt.Errorf("dns: read %s: %w", r.opts.ResolvConf, err) }
    for _, s := range cc.Servers {
        r.servers = append(r.servers, net.JoinHostPort(s, cc.Port))
    }
    if len(r.servers) == 0 { return nil, fmt.Errorf("dns: no nameservers in %s", r.opts.ResolvConf) }
    return r.servers, nil
}

// LookupTXT returns the TXT records of name, each record's strings joined.
// A name that does not exist or carries no TXT records yields
// discovery.ErrNoTXT.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
    servers, err := r.nameservers()
    if err != nil { return nil, err }
    m := new(dns.Msg)
    m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
    m.RecursionDesired = true

    var lastErr error
    for _, srv := range servers {
        in, _, err := r.udp.ExchangeContext(ctx, m, srv)
        if err == nil && in.Truncated {
            in, _, err = r.tcp.ExchangeContext(ctx, m, srv)
        }
        if err != nil {
            lastErr = fmt.Errorf("dns: query %s via %s: %w", name, srv, err)
            if ctx.Err() != nil { return nil, lastErr }
            continue
        }
        switch in.Rcode {
        case dns.RcodeSuccess:
        case dns.RcodeNameError:
            return nil, fmt.Errorf("%w for %s (NXDOMAIN)", discovery.ErrNoTXT, name)
        default:
            lastErr = fmt.Errorf("dns: query %s via %s: rcode %s", name, srv, dns.RcodeToString[in.Rcode])
            continue
        }
        var out []string
        for _, rr := range in.Answer {
            if t, ok := rr.(*dns.TXT); ok {
                out = append(out, strings.Join(t.Txt, ""))
            }
        }
        if len(out) == 0 { return nil, fmt.Errorf("%w for %s", discovery.ErrNoTXT, name) }
        return out, nil
    }
    return nil, lastErr
}

var _ discovery.TXTResolver = (*Resolver)(nil)
