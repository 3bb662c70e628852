package state

// SeedEntry is a DNS seed name and whether the supernode key it publishes
// is honoured.
type SeedEntry struct {
    Name           string `json:"name"`
    TrustSupernode bool   `json:"trustSupernode"`
}

// SeedState is the mutable, snapshot-able registry of DNS seeds.
type SeedState interface {
    Add(name string, trustSupernode bool)
    Remove(name string) bool
    List() []SeedEntry
    Snapshot() ([]byte, error)
    Restore(buf []byte) error
}
