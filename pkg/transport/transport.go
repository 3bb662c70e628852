package transport

// Transport is a component bound to a local address.
type Transport interface {
    // Addr returns the local bind address if applicable.
    Addr() string
}

// CoreEndpoint is the seeder side of the routing core message channel.
// Bridges read outbound messages from CoreMessages and hand inbound ones
// to DeliverCoreMessage.
type CoreEndpoint interface {
    CoreMessages() <-chan []byte
    DeliverCoreMessage(msg []byte) error
}
