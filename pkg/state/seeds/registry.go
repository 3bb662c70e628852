package seeds

import (
    "encoding/json"
    "fmt"
    "sync"

    base "github.com/amirimatin/go-meshseed/pkg/state"
)

// Registry is the ordered list of trusted DNS seeds. Names are unique;
// insertion order is the round-robin order used for lookups.
type Registry struct {
    mu      sync.Mutex
    entries []base.SeedEntry
}

func New() *Registry { return &Registry{} }

// Add inserts a seed or updates the trust flag of an existing one.
func (r *Registry) Add(name string, trustSupernode bool) {
    r.mu.Lock(); defer r.mu.Unlock()
    for i := range r.entries {
        if r.entries[i].Name == name {
            r.entries[i].TrustSupernode = trustSupernode
            return
        }
    }
    r.entries = append(r.entries, base.SeedEntry{Name: name, TrustSupernode: trustSupernode})
}

// Remove deletes a seed by name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
    r.mu.Lock(); defer r.mu.Unlock()
    kept := r.entries[:0]
    for _, e := range r.entries {
        if e.Name != name { kept = append(kept, e) }
    }
    removed := len(kept) < len(r.entries)
    r.entries = kept
    return removed
}

func (r *Registry) List() []base.SeedEntry {
    r.mu.Lock(); defer r.mu.Unlock()
    return append([]base.SeedEntry(nil), r.entries...)
}

func (r *Registry) Len() int {
    r.mu.Lock(); defer r.mu.Unlock()
    return len(r.entries)
}

// Snapshot encodes the registry as versioned JSON, preserving order.
func (r *Registry) Snapshot() ([]byte, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    return json.Marshal(struct{
        Version int              `json:"version"`
        Seeds   []base.SeedEntry `json:"seeds"`
    }{Version: 1, Seeds: append([]base.SeedEntry{}, r.entries...)})
}

func (r *Registry) Restore(buf []byte) error {
    var snapshot struct{
        Version int              `json:"version"`
        Seeds   []base.SeedEntry `json:"seeds"`
    }
    if err := json.Unmarshal(buf, &snapshot); err != nil {
        return err
    }
    if snapshot.Version != 1 { return fmt.Errorf("seeds: unsupported snapshot version %d", snapshot.Version) }
    r.mu.Lock(); defer r.mu.Unlock()
    r.entries = r.entries[:0]
    seen := make(map[string]int, len(snapshot.Seeds))
    for _, e := range snapshot.Seeds {
        if i, ok := seen[e.Name]; ok {
            r.entries[i] = e
            continue
        }
        seen[e.Name] = len(r.entries)
        r.entries = append(r.entries, e)
    }
    return nil
}

// Ensure interface satisfaction at compile-time.
var _ base.SeedState = (*Registry)(nil)
