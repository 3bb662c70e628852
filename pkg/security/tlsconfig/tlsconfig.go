package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

// ReloadInterval bounds how long a loaded key pair is reused by the
// hot-reload configs.
const ReloadInterval = 10 * time.Second

var ErrNoKeyPair = errors.New("tls: server cert/key required when TLS enabled")

// Options defines mTLS inputs for the management API.
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    InsecureSkipVerify bool
    ServerName         string
}

func (o Options) caPool() (*x509.CertPool, error) {
    if o.CAFile == "" { return nil, nil }
    ca, err := os.ReadFile(o.CAFile)
    if err != nil { return nil, err }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(ca) { return nil, fmt.Errorf("tls: no certificates in %s", o.CAFile) }
    return pool, nil
}

func (o Options) server() (*tls.Config, error) {
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrNoKeyPair }
    pool, err := o.caPool()
    if err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12}
    if pool != nil {
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

func (o Options) client() (*tls.Config, error) {
    pool, err := o.caPool()
    if err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.InsecureSkipVerify, RootCAs: pool} //nolint:gosec
    if o.ServerName != "" { cfg.ServerName = o.ServerName }
    return cfg, nil
}

// Server returns a tls.Config for servers if enabled, otherwise nil.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.server()
    if err != nil { return nil, err }
    cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
    if err != nil { return nil, err }
    cfg.Certificates = []tls.Certificate{cert}
    return cfg, nil
}

// Client returns a tls.Config for clients if enabled, otherwise nil. The
// client certificate is optional.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.client()
    if err != nil { return nil, err }
    if o.CertFile != "" && o.KeyFile != "" {
        cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
        if err != nil { return nil, err }
        cfg.Certificates = []tls.Certificate{cert}
    }
    return cfg, nil
}

// ServerHotReload returns a server tls.Config that re-reads the key pair at
// most every ReloadInterval, on handshake. The CA pool is loaded once.
func (o Options) ServerHotReload() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.server()
    if err != nil { return nil, err }
    kp := &keyPair{cert: o.CertFile, key: o.KeyFile, now: time.Now}
    cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() }
    return cfg, nil
}

// ClientHotReload is the client counterpart of ServerHotReload. Without a
// configured key pair no client certificate is presented.
func (o Options) ClientHotReload() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.client()
    if err != nil { return nil, err }
    kp := &keyPair{cert: o.CertFile, key: o.KeyFile, now: time.Now}
    cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
        if kp.cert == "" || kp.key == "" { return &tls.Certificate{}, nil }
        return kp.get()
    }
    return cfg, nil
}

// keyPair caches a certificate loaded from disk.
type keyPair struct {
    cert, key string
    now       func() time.Time

    mu     sync.RWMutex
    cached *tls.Certificate
    loaded time.Time
}

func (k *keyPair) get() (*tls.Certificate, error) {
    k.mu.RLock()
    if k.cached != nil && k.now().Sub(k.loaded) < ReloadInterval {
        c := *k.cached
        k.mu.RUnlock()
        return &c, nil
    }
    k.mu.RUnlock()
    cert, err := tls.LoadX509KeyPair(k.cert, k.key)
    if err != nil { return nil, err }
    k.mu.Lock()
    k.cached, k.loaded = &cert, k.now()
    k.mu.Unlock()
    return &cert, nil
}
