// Package broker implements the per-connection protocol engine of an AMQP
// 0-8/0-9/0-9-1 message broker.
//
// An Engine owns a single client connection: it decodes inbound framed
// traffic into protocol methods, drives the connection handshake (version
// negotiation, SASL authentication, tuning, virtual-host attach),
// multiplexes channels over the connection, encodes outbound replies and
// message deliveries, enforces resource bounds, and performs orderly or
// forced teardown.
//
// The broker's configuration/model tree, message store, routing fabric,
// transport accept loop, and management surfaces are external
// collaborators this package consumes through small interfaces; it never
// implements them.
package broker
