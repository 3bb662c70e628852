package seeder

import (
    "context"
    "encoding/json"
    "errors"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/transport"
)

// Handlers exposes the public API on the management transports. Minting
// precondition failures are reported in-band since they are a normal
// "not ready yet" state.
func (s *Seeder) Handlers() transport.Handlers {
    seedsResp := func(removed bool) transport.SeedResponse {
        return transport.SeedResponse{Removed: removed, Seeds: s.ListDNSSeeds()}
    }
    return transport.Handlers{
        Status: func(context.Context) ([]byte, error) { return json.Marshal(s.Status()) },
        ListSeeds: func(context.Context) (transport.SeedResponse, error) {
            return seedsResp(false), nil
        },
        AddSeed: func(_ context.Context, req transport.SeedRequest) (transport.SeedResponse, error) {
            if req.Name == "" { return transport.SeedResponse{Error: "empty seed name"}, nil }
            err := s.AddDNSSeed(req.Name, req.Trust)
            return seedsResp(false), err
        },
        RemoveSeed: func(_ context.Context, req transport.SeedRequest) (transport.SeedResponse, error) {
            removed, err := s.RemoveDNSSeed(req.Name)
            return seedsResp(removed), err
        },
        Creds: func(context.Context) (transport.CredsResponse, error) {
            data, err := s.MintCredentials()
            if errors.Is(err, ErrNoPassword) || errors.Is(err, ErrNoAddress) {
                return transport.CredsResponse{Error: err.Error()}, nil
            }
            return transport.CredsResponse{Data: data}, err
        },
        PublicPeer: func(_ context.Context, req transport.PublicPeerRequest) (transport.PublicPeerResponse, error) {
            line, err := s.RegisterPublicPeer(req.Login, req.Password, req.Code)
            if err != nil { return transport.PublicPeerResponse{Error: err.Error()}, nil }
            return transport.PublicPeerResponse{Login: line.Login, Password: line.Password}, nil
        },
        SupernodePeers: func(_ context.Context, req transport.PayloadRequest) (transport.PayloadResponse, error) {
            return transport.PayloadResponse{Accepted: s.IngestSupernodePeers(req.Data)}, nil
        },
        LinkAddr: func(_ context.Context, req transport.PayloadRequest) (transport.LinkAddrResponse, error) {
            r, err := coremsg.ParseLinkAddrReply(req.Data)
            if err != nil { return transport.LinkAddrResponse{Error: err.Error()}, nil }
            return transport.LinkAddrResponse{Changed: s.ReportLinkAddr(r)}, nil
        },
    }
}
