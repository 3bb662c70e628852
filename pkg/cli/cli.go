package cli

import (
    "context"
    "crypto/tls"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-meshseed/pkg/bootstrap"
    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    tlsx "github.com/amirimatin/go-meshseed/pkg/security/tlsconfig"
    "github.com/amirimatin/go-meshseed/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-meshseed/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-meshseed/pkg/transport/httpjson"
)

// AddAll attaches the seeder subcommands to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewSeedsCmd())
    root.AddCommand(NewCredsCmd())
    root.AddCommand(NewPublicPeerCmd())
    root.AddCommand(NewSupernodePeersCmd())
    root.AddCommand(NewLinkAddrCmd())
}

// NewSeederCommand returns a parent command "seeder" with every subcommand,
// for services that mount it under their own root.
func NewSeederCommand() *cobra.Command {
    parent := &cobra.Command{Use: "seeder", Short: "mesh peer seeder commands"}
    AddAll(parent)
    return parent
}

// NewRunCmd returns the "run" command used to start a seeder node.
func NewRunCmd() *cobra.Command {
    var (
        cfgPath, dnsServers string
        jsonLogs            bool
        cfg                 bootstrap.Config
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a seeder node",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg.DNSServers = bootstrap.SplitCSV(dnsServers)
            if cmd.Flags().Changed("seeds-file") || cmd.Flags().Changed("seeds-env") { cfg.SeedsKind = "file" }
            if cfgPath != "" {
                if err := bootstrap.LoadFile(cfgPath, &cfg); err != nil { return err }
            }
            if cfg.PublicKey == "" { return fmt.Errorf("missing --public-key") }
            if jsonLogs { logutil.SetJSON(true) }
            logger, err := logutil.New(cfg.Debug)
            if err != nil { return err }
            defer func() { _ = logger.Sync() }()
            cfg.Logger = logger

            ctx, cancel := signalContext()
            defer cancel()
            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            defer n.Close()

            logutil.Infof(logger, "seeder running. Press Ctrl+C to exit.")
            <-ctx.Done()
            return nil
        },
    }
    f := cmd.Flags()
    f.StringVar(&cfgPath, "config", "", "TOML config file; its keys override flags")
    f.StringVar(&cfg.PublicKey, "public-key", "", "node public key, hex or base58 (required)")
    f.StringVar(&cfg.SeedsCSV, "seeds", "", "comma-separated DNS seeds, name[:untrusted]")
    f.StringVar(&cfg.SeedsFile, "seeds-file", "", "path or glob to a seeds file (one per line or CSV)")
    f.StringVar(&cfg.SeedsEnv, "seeds-env", "", "ENV var name containing CSV seeds; overrides the file when set")
    f.DurationVar(&cfg.SeedsRefresh, "seeds-refresh", 5*time.Second, "seeds file refresh interval")
    f.StringVar(&dnsServers, "dns-servers", "", "comma-separated DNS servers (host:port); default from resolv.conf")
    f.StringVar(&cfg.ResolvConf, "resolv-conf", "", "resolv.conf path (default /etc/resolv.conf)")
    f.DurationVar(&cfg.DNSTimeout, "dns-timeout", 0, "per-query DNS timeout")
    f.StringVar(&cfg.DataDir, "data", "", "data dir for the seed registry; empty keeps it in memory")
    f.StringVar(&cfg.MgmtAddr, "mgmt-addr", "127.0.0.1:17947", "management address (tcp); empty disables it")
    f.StringVar(&cfg.MgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    f.StringVar(&cfg.CoreAddr, "core-addr", "", "routing core UDP address (host:port)")
    f.StringVar(&cfg.CoreBind, "core-bind", "127.0.0.1:0", "local UDP address for the core bridge")
    f.DurationVar(&cfg.PeerTTL, "peer-ttl", 0, "peer retention (default 20m)")
    f.DurationVar(&cfg.ConnectCooldown, "connect-cooldown", 0, "minimum gap between connect commands (default 1m)")
    f.DurationVar(&cfg.DNSInterval, "dns-interval", 0, "minimum gap between DNS lookups (default 1m)")
    f.DurationVar(&cfg.CensusInterval, "census-interval", 0, "peer census interval (default 3m)")
    f.BoolVar(&cfg.TLSEnable, "tls-enable", false, "enable mTLS for management transport")
    f.StringVar(&cfg.TLSCA, "tls-ca", "", "path to CA cert (PEM)")
    f.StringVar(&cfg.TLSCert, "tls-cert", "", "path to node certificate (PEM)")
    f.StringVar(&cfg.TLSKey, "tls-key", "", "path to node private key (PEM)")
    f.BoolVar(&cfg.TLSSkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    f.StringVar(&cfg.TLSServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    f.BoolVar(&cfg.Trace, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    f.BoolVar(&cfg.Debug, "debug", false, "debug logging")
    f.BoolVar(&jsonLogs, "log-json", false, "JSON logs")
    return cmd
}

// clientFlags are shared by every command that talks to a running node.
type clientFlags struct {
    addr, proto                          string
    timeout                              time.Duration
    tlsEnable, tlsSkip                   bool
    tlsCA, tlsCert, tlsKey, tlsServerName string
}

func (c *clientFlags) register(cmd *cobra.Command) {
    f := cmd.Flags()
    f.StringVar(&c.addr, "addr", "127.0.0.1:17947", "management address of a node (host:port)")
    f.StringVar(&c.proto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    f.DurationVar(&c.timeout, "timeout", 3*time.Second, "request timeout")
    f.BoolVar(&c.tlsEnable, "tls-enable", false, "enable mTLS for management transport")
    f.StringVar(&c.tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    f.StringVar(&c.tlsCert, "tls-cert", "", "path to client certificate (PEM)")
    f.StringVar(&c.tlsKey, "tls-key", "", "path to client private key (PEM)")
    f.BoolVar(&c.tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    f.StringVar(&c.tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
}

func (c *clientFlags) client() (transport.RPCClient, error) {
    var cliTLS *tls.Config
    if c.tlsEnable {
        topts := tlsx.Options{Enable: true, CAFile: c.tlsCA, CertFile: c.tlsCert, KeyFile: c.tlsKey, InsecureSkipVerify: c.tlsSkip, ServerName: c.tlsServerName}
        var err error
        cliTLS, err = topts.Client()
        if err != nil { return nil, fmt.Errorf("tls client config: %w", err) }
    }
    switch c.proto {
    case "grpc":
        cli := mgmtgrpc.NewClient(c.timeout)
        if cliTLS != nil { cli.UseTLS(cliTLS) }
        return cli, nil
    case "", "http":
        cli := httpjson.NewClient(c.timeout)
        if cliTLS != nil { cli.UseTLS(cliTLS) }
        return cli, nil
    default:
        return nil, fmt.Errorf("unknown management protocol %q", c.proto)
    }
}

// do runs fn against a fresh client and prints its result as JSON.
func (c *clientFlags) do(cmd *cobra.Command, what string, fn func(context.Context, transport.RPCClient) (any, error)) error {
    client, err := c.client()
    if err != nil { return err }
    if cl, ok := client.(interface{ Close() }); ok { defer cl.Close() }
    ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
    defer cancel()
    out, err := fn(ctx, client)
    if err != nil { return fmt.Errorf("%s error: %w", what, err) }
    enc := json.NewEncoder(cmd.OutOrStdout())
    enc.SetIndent("", "  ")
    return enc.Encode(out)
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch seeder status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            return cf.do(cmd, "status", func(ctx context.Context, c transport.RPCClient) (any, error) {
                data, err := c.GetStatus(ctx, cf.addr)
                return json.RawMessage(data), err
            })
        },
    }
    cf.register(cmd)
    return cmd
}

// NewSeedsCmd returns "seeds" with ls/add/rm subcommands.
func NewSeedsCmd() *cobra.Command {
    parent := &cobra.Command{Use: "seeds", Short: "Manage DNS seeds"}

    var ls clientFlags
    lsCmd := &cobra.Command{
        Use:   "ls",
        Short: "List DNS seeds in lookup order",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            return ls.do(cmd, "list seeds", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.ListSeeds(ctx, ls.addr)
            })
        },
    }
    ls.register(lsCmd)

    var add clientFlags
    var untrusted bool
    addCmd := &cobra.Command{
        Use:   "add NAME",
        Short: "Add a DNS seed or update its supernode trust",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            return add.do(cmd, "add seed", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.AddSeed(ctx, add.addr, transport.SeedRequest{Name: args[0], Trust: !untrusted})
            })
        },
    }
    add.register(addCmd)
    addCmd.Flags().BoolVar(&untrusted, "untrusted", false, "do not accept the seed's supernode key")

    var rm clientFlags
    rmCmd := &cobra.Command{
        Use:   "rm NAME",
        Short: "Remove a DNS seed",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            return rm.do(cmd, "remove seed", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.RemoveSeed(ctx, rm.addr, transport.SeedRequest{Name: args[0]})
            })
        },
    }
    rm.register(rmCmd)

    parent.AddCommand(lsCmd, addCmd, rmCmd)
    return parent
}

// NewCredsCmd returns the "creds" command printing the minted credentials.
func NewCredsCmd() *cobra.Command {
    var cf clientFlags
    var raw bool
    cmd := &cobra.Command{
        Use:   "creds",
        Short: "Mint peering credentials for the supernode",
        RunE: func(cmd *cobra.Command, args []string) error {
            if !raw {
                return cf.do(cmd, "creds", func(ctx context.Context, c transport.RPCClient) (any, error) {
                    return c.GetCreds(ctx, cf.addr)
                })
            }
            return cf.do(cmd, "creds", func(ctx context.Context, c transport.RPCClient) (any, error) {
                resp, err := c.GetCreds(ctx, cf.addr)
                return hex.EncodeToString(resp.Data), err
            })
        },
    }
    cf.register(cmd)
    cmd.Flags().BoolVar(&raw, "hex", false, "print the payload as hex")
    return cmd
}

// NewPublicPeerCmd returns the "public-peer" command.
func NewPublicPeerCmd() *cobra.Command {
    var (
        cf       clientFlags
        login    uint16
        password string
        code     string
    )
    cmd := &cobra.Command{
        Use:   "public-peer",
        Short: "Offer this node as a public peer",
        RunE: func(cmd *cobra.Command, args []string) error {
            pw, err := strconv.ParseUint(strings.TrimPrefix(password, "0x"), 16, 64)
            if err != nil { return fmt.Errorf("--password must be 16 hex digits: %w", err) }
            return cf.do(cmd, "public peer", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.PostPublicPeer(ctx, cf.addr, transport.PublicPeerRequest{Login: login, Password: pw, Code: []byte(code)})
            })
        },
    }
    cf.register(cmd)
    cmd.Flags().Uint16Var(&login, "login", 0, "peering login number")
    cmd.Flags().StringVar(&password, "password", "", "peering password, hex (required)")
    cmd.Flags().StringVar(&code, "code", "", "peer code shown to users")
    _ = cmd.MarkFlagRequired("password")
    return cmd
}

// NewSupernodePeersCmd returns the "snode-peers" command, which forwards a
// hex encoded supernode peering reply to a node.
func NewSupernodePeersCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "snode-peers HEX",
        Short: "Hand a supernode peering reply to the seeder",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            data, err := hex.DecodeString(strings.TrimSpace(args[0]))
            if err != nil { return fmt.Errorf("payload is not hex: %w", err) }
            return cf.do(cmd, "supernode peers", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.PostSupernodePeers(ctx, cf.addr, transport.PayloadRequest{Data: data})
            })
        },
    }
    cf.register(cmd)
    return cmd
}

// NewLinkAddrCmd returns the "lladdr" command, which forwards a hex encoded
// link address reply from the core.
func NewLinkAddrCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "lladdr HEX",
        Short: "Report this node's external address as seen by a peer",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            data, err := hex.DecodeString(strings.TrimSpace(args[0]))
            if err != nil { return fmt.Errorf("payload is not hex: %w", err) }
            return cf.do(cmd, "link address", func(ctx context.Context, c transport.RPCClient) (any, error) {
                return c.PostLinkAddr(ctx, cf.addr, transport.PayloadRequest{Data: data})
            })
        },
    }
    cf.register(cmd)
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
