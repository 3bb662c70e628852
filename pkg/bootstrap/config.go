package bootstrap

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/BurntSushi/toml"
)

// ErrNoConfig is returned by LoadFile for an empty path.
var ErrNoConfig = errors.New("bootstrap: empty config path")

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}

type fileConfig struct {
    PublicKey    string   `toml:"public_key"`
    Seeds        []string `toml:"seeds"`
    SeedsFile    string   `toml:"seeds_file"`
    SeedsEnv     string   `toml:"seeds_env"`
    SeedsRefresh string   `toml:"seeds_refresh"`
    DNSServers   []string `toml:"dns_servers"`
    ResolvConf   string   `toml:"resolv_conf"`
    DNSTimeout   string   `toml:"dns_timeout"`
    DataDir      string   `toml:"data_dir"`
    Debug        bool     `toml:"debug"`
    Trace        bool     `toml:"trace"`

    Management struct {
        Addr  string `toml:"addr"`
        Proto string `toml:"proto"`
    } `toml:"management"`

    TLS struct {
        Enable     bool   `toml:"enable"`
        CA         string `toml:"ca"`
        Cert       string `toml:"cert"`
        Key        string `toml:"key"`
        ServerName string `toml:"server_name"`
        SkipVerify bool   `toml:"skip_verify"`
    } `toml:"tls"`

    Core struct {
        Addr string `toml:"addr"`
        Bind string `toml:"bind"`
    } `toml:"core"`

    Timing struct {
        PeerTTL         string `toml:"peer_ttl"`
        ConnectCooldown string `toml:"connect_cooldown"`
        DNSInterval     string `toml:"dns_interval"`
        CensusInterval  string `toml:"census_interval"`
        CycleTimeout    string `toml:"cycle_timeout"`
        IdleWindow      string `toml:"idle_window"`
        ErrorBackoff    string `toml:"error_backoff"`
    } `toml:"timing"`
}

// LoadFile overlays the keys present in a TOML file onto cfg. Keys absent
// from the file leave cfg untouched, so flags can supply the defaults.
func LoadFile(path string, cfg *Config) error {
    if strings.TrimSpace(path) == "" { return ErrNoConfig }
    var raw fileConfig
    meta, err := toml.DecodeFile(path, &raw)
    if err != nil { return fmt.Errorf("load config: %w", err) }

    str := func(key, v string, dst *string) {
        if meta.IsDefined(key) { *dst = strings.TrimSpace(v) }
    }
    dur := func(v string, dst *time.Duration, key ...string) error {
        if !meta.IsDefined(key...) { return nil }
        d, err := time.ParseDuration(strings.TrimSpace(v))
        if err != nil { return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err) }
        *dst = d
        return nil
    }

    str("public_key", raw.PublicKey, &cfg.PublicKey)
    if meta.IsDefined("seeds") {
        cfg.SeedsKind = "static"
        cfg.SeedsCSV = strings.Join(normalize(raw.Seeds), ",")
    }
    if meta.IsDefined("seeds_file") || meta.IsDefined("seeds_env") {
        cfg.SeedsKind = "file"
    }
    str("seeds_file", raw.SeedsFile, &cfg.SeedsFile)
    str("seeds_env", raw.SeedsEnv, &cfg.SeedsEnv)
    if meta.IsDefined("dns_servers") { cfg.DNSServers = normalize(raw.DNSServers) }
    str("resolv_conf", raw.ResolvConf, &cfg.ResolvConf)
    str("data_dir", raw.DataDir, &cfg.DataDir)
    if meta.IsDefined("debug") { cfg.Debug = raw.Debug }
    if meta.IsDefined("trace") { cfg.Trace = raw.Trace }

    if meta.IsDefined("management", "addr") { cfg.MgmtAddr = strings.TrimSpace(raw.Management.Addr) }
    if meta.IsDefined("management", "proto") { cfg.MgmtProto = strings.TrimSpace(raw.Management.Proto) }

    if meta.IsDefined("tls", "enable") { cfg.TLSEnable = raw.TLS.Enable }
    if meta.IsDefined("tls", "ca") { cfg.TLSCA = raw.TLS.CA }
    if meta.IsDefined("tls", "cert") { cfg.TLSCert = raw.TLS.Cert }
    if meta.IsDefined("tls", "key") { cfg.TLSKey = raw.TLS.Key }
    if meta.IsDefined("tls", "server_name") { cfg.TLSServerName = raw.TLS.ServerName }
    if meta.IsDefined("tls", "skip_verify") { cfg.TLSSkipVerify = raw.TLS.SkipVerify }

    if meta.IsDefined("core", "addr") { cfg.CoreAddr = strings.TrimSpace(raw.Core.Addr) }
    if meta.IsDefined("core", "bind") { cfg.CoreBind = strings.TrimSpace(raw.Core.Bind) }

    for _, f := range []struct {
        v   string
        dst *time.Duration
        key []string
    }{
        {raw.SeedsRefresh, &cfg.SeedsRefresh, []string{"seeds_refresh"}},
        {raw.DNSTimeout, &cfg.DNSTimeout, []string{"dns_timeout"}},
        {raw.Timing.PeerTTL, &cfg.PeerTTL, []string{"timing", "peer_ttl"}},
        {raw.Timing.ConnectCooldown, &cfg.ConnectCooldown, []string{"timing", "connect_cooldown"}},
        {raw.Timing.DNSInterval, &cfg.DNSInterval, []string{"timing", "dns_interval"}},
        {raw.Timing.CensusInterval, &cfg.CensusInterval, []string{"timing", "census_interval"}},
        {raw.Timing.CycleTimeout, &cfg.CycleTimeout, []string{"timing", "cycle_timeout"}},
        {raw.Timing.IdleWindow, &cfg.IdleWindow, []string{"timing", "idle_window"}},
        {raw.Timing.ErrorBackoff, &cfg.ErrorBackoff, []string{"timing", "error_backoff"}},
    } {
        if err := dur(f.v, f.dst, f.key...); err != nil { return err }
    }
    return nil
}

func normalize(in []string) []string {
    out := make([]string, 0, len(in))
    for _, v := range in {
        if v = strings.TrimSpace(v); v != "" { out = append(out, v) }
    }
    return out
}
