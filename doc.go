// Package dcp implements the control-block core of a reliable, ordered,
// message-oriented transport layered over an unreliable datagram substrate.
//
// A [ControlBlock] turns application byte streams into fragmented, sequenced
// segments, retransmits lost segments, reassembles received segments in
// order, and paces transmission under guidance of a pluggable congestion
// control module (see package [github.com/dcp-transport/dcp/cc]).
// Time is supplied by the caller as a millisecond counter; there is no
// internal clock and no goroutine runs inside the core. Retransmission,
// delayed acknowledgement and pacing are driven by a shared
// [github.com/dcp-transport/dcp/wheel.Wheel] that the caller ticks
// explicitly (see [Wheel] in package wheel).
//
// The package does not implement the datagram substrate (sockets or
// otherwise), connection handshake/teardown negotiation, authentication or
// encryption, or a real congestion-control algorithm: these are external
// collaborators. See package [github.com/dcp-transport/dcp/conn] for a UDP
// socket adapter built on top of this core.
package dcp
