package seeder

import "errors"

var (
    ErrNoPassword  = errors.New("seeder: no public peering password set")
    ErrNoAddress   = errors.New("seeder: no IPv4 or IPv6 address known")
    ErrInboxFull   = errors.New("seeder: inbound message queue full")
    ErrCodeTooLong = errors.New("seeder: peer id code exceeds 255 bytes")
    ErrStopped     = errors.New("seeder: stopped")
)
