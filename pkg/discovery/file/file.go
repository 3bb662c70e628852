package file

import (
    "bufio"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
    "github.com/amirimatin/go-meshseed/pkg/discovery/static"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

// Options configures file/ENV-based seed sources.
type Options struct {
    // Path to a file with one seed per line ("name [trust|untrusted]") or a
    // comma-separated list of "name[:untrusted]" items. Globs are accepted.
    Path string
    // Env overrides file when non-empty.
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
}

type impl struct {
    opts Options
    mu   sync.Mutex
    last time.Time
    mtime time.Time
    cache []state.SeedEntry
}

func New(opts Options) discovery.SeedSource { if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }; return &impl{opts: opts} }

func (i *impl) Seeds() []state.SeedEntry {
    i.mu.Lock(); defer i.mu.Unlock()
    // ENV takes precedence
    if v := strings.TrimSpace(os.Getenv(i.opts.Env)); i.opts.Env != "" && v != "" {
        return static.Parse(v)
    }
    if i.opts.Path == "" {
        return nil
    }
    stat, err := os.Stat(i.opts.Path)
    now := time.Now()
    if err == nil {
        if stat.ModTime().After(i.mtime) || now.Sub(i.last) >= i.opts.Refresh {
            i.cache = loadFile(i.opts.Path)
            i.last = now
            i.mtime = stat.ModTime()
        }
        return append([]state.SeedEntry(nil), i.cache...)
    }
    // try glob; files are merged in name order, first occurrence of a seed wins
    matches, _ := filepath.Glob(i.opts.Path)
    if len(matches) > 0 {
        sort.Strings(matches)
        var out []state.SeedEntry
        seen := make(map[string]struct{})
        for _, m := range matches {
            for _, s := range loadFile(m) {
                if _, ok := seen[s.Name]; ok { continue }
                seen[s.Name] = struct{}{}
                out = append(out, s)
            }
        }
        i.cache = out
        i.last = now
    }
    return append([]state.SeedEntry(nil), i.cache...)
}

// loadFile keeps file order, which becomes the lookup order of the seeds.
func loadFile(path string) []state.SeedEntry {
    f, err := os.Open(path)
    if err != nil { return nil }
    defer f.Close()
    var seeds []state.SeedEntry
    seen := make(map[string]int)
    add := func(e state.SeedEntry) {
        if e.Name == "" { return }
        if idx, ok := seen[e.Name]; ok { seeds[idx] = e; return }
        seen[e.Name] = len(seeds)
        seeds = append(seeds, e)
    }
    s := bufio.NewScanner(f)
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        if strings.Contains(line, ",") {
            for _, e := range static.Parse(line) { add(e) }
            continue
        }
        fields := strings.Fields(line)
        e := static.ParseEntry(fields[0])
        if len(fields) > 1 {
            e.TrustSupernode = static.ParseEntry("x:" + fields[1]).TrustSupernode
        }
        add(e)
    }
    if err := s.Err(); err != nil { return nil }
    return seeds
}
