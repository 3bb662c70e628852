package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "cycles_total",
        Help:      "Discovery cycles run, by result (ok, error, timeout)",
    }, []string{"result"})

    DNSLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "dns_lookups_total",
        Help:      "DNS seed TXT lookups, by result",
    }, []string{"result"})

    ConnectCommands = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "connect_commands_total",
        Help:      "Connect commands sent to the routing core",
    })

    CensusRequests = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "census_requests_total",
        Help:      "Peer census requests sent to the routing core",
    })

    CoreMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "core_messages_total",
        Help:      "Inbound core messages, by result (ok, rejected, dropped)",
    }, []string{"result"})

    SupernodePayloads = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "supernode_payloads_total",
        Help:      "Supernode peer payloads ingested, by result",
    }, []string{"result"})

    ConnectedPeers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "connected_peers",
        Help:      "Peers the core reported as connected",
    })

    TriedPeers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "tried_peers",
        Help:      "Peers attempted within the retention window",
    })

    RecommendedPeers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "recommended_peers",
        Help:      "Recommended peers per source (supernode or seed name)",
    }, []string{"source"})

    DNSSeeds = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "meshseed",
        Subsystem: "seeder",
        Name:      "dns_seeds",
        Help:      "Configured DNS seeds",
    })

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "meshseed",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "meshseed",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(Cycles)
        prometheus.MustRegister(DNSLookups)
        prometheus.MustRegister(ConnectCommands)
        prometheus.MustRegister(CensusRequests)
        prometheus.MustRegister(CoreMessages)
        prometheus.MustRegister(SupernodePayloads)
        prometheus.MustRegister(ConnectedPeers)
        prometheus.MustRegister(TriedPeers)
        prometheus.MustRegister(RecommendedPeers)
        prometheus.MustRegister(DNSSeeds)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
    })
}
