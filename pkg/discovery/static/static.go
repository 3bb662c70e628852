package static

import (
    "context"
    "fmt"
    "strings"
    "sync"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

type staticSeeds struct {
    seeds []state.SeedEntry
}

func (s *staticSeeds) Seeds() []state.SeedEntry { return append([]state.SeedEntry(nil), s.seeds...) }

// New returns a SeedSource that always returns the given seeds.
func New(seeds ...state.SeedEntry) discovery.SeedSource {
    cleaned := make([]state.SeedEntry, 0, len(seeds))
    for _, v := range seeds {
        v.Name = strings.TrimSpace(v.Name)
        if v.Name != "" {
            cleaned = append(cleaned, v)
        }
    }
    return &staticSeeds{seeds: cleaned}
}

// Parse converts a comma-separated list into seeds. Each item is a name,
// optionally suffixed with ":trust" or ":untrusted"; the default is trusted.
func Parse(csv string) []state.SeedEntry {
    if csv == "" {
        return nil
    }
    parts := strings.Split(csv, ",")
    out := make([]state.SeedEntry, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, ParseEntry(p))
    }
    return out
}

// ParseEntry parses a single "name[:trust|:untrusted]" item.
func ParseEntry(s string) state.SeedEntry {
    name, flag, ok := strings.Cut(strings.TrimSpace(s), ":")
    e := state.SeedEntry{Name: strings.TrimSpace(name), TrustSupernode: true}
    if ok {
        switch strings.ToLower(strings.TrimSpace(flag)) {
        case "untrusted", "false", "no", "0":
            e.TrustSupernode = false
        }
    }
    return e
}

// Resolver is an in-memory TXTResolver, used for development and tests.
type Resolver struct {
    mu      sync.RWMutex
    records map[string][]string
    errs    map[string]error
}

func NewResolver() *Resolver {
    return &Resolver{records: make(map[string][]string), errs: make(map[string]error)}
}

// Set replaces the TXT records served for name.
func (r *Resolver) Set(name string, txt ...string) {
    r.mu.Lock(); defer r.mu.Unlock()
    delete(r.errs, name)
    r.records[name] = append([]string(nil), txt...)
}

// Fail makes lookups of name return err.
func (r *Resolver) Fail(name string, err error) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.errs[name] = err
}

func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    r.mu.RLock(); defer r.mu.RUnlock()
    if err := r.errs[name]; err != nil { return nil, err }
    txt := r.records[name]
    if len(txt) == 0 { return nil, fmt.Errorf("%w for %s", discovery.ErrNoTXT, name) }
    return append([]string(nil), txt...), nil
}

var _ discovery.TXTResolver = (*Resolver)(nil)
