package discovery

import (
    "context"
    "errors"

    "github.com/amirimatin/go-meshseed/pkg/state"
)

var ErrNoTXT = errors.New("discovery: no TXT records found")

// TXTResolver resolves the TXT records of a seed name. Multi-string records
// are returned joined, one element per record.
type TXTResolver interface {
    LookupTXT(ctx context.Context, name string) ([]string, error)
}

// SeedSource provides the initial set of DNS seeds. Implementations may
// be static lists, files or environment variables.
type SeedSource interface {
    Seeds() []state.SeedEntry
}
