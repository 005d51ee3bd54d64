// Package cc defines the pluggable congestion-control interface used by a
// dcp.ControlBlock and a registry of named implementations. No
// implementation in this package models real congestion behaviour; see
// bbr.go.
package cc

// Context is the narrow view of a control block that a Controller needs.
// It exists to let this package avoid importing the root dcp package, which
// imports cc to hold a Controller.
type Context interface {
	// MSS is the maximum segment payload size in bytes.
	MSS() uint32
	// RemoteWindow is the last-advertised remote receive window, in segments.
	RemoteWindow() uint32
	// NoCWND reports whether congestion-window clamping is disabled, in
	// which case a Controller should size its window off MSS alone.
	NoCWND() bool
}

// Controller is the pluggable congestion-control strategy of a control
// block.
type Controller interface {
	Init(ctx Context)
	Release(ctx Context)
	OnAck(ctx Context, rttSample int32, bytesAcked uint32, now uint32)
	OnLoss(ctx Context, lostSN uint32, now uint32)
	OnPktSent(ctx Context, bytesSent uint32)
	GetCWND(ctx Context) uint32
	GetPacingRate(ctx Context) uint64
}

// Factory builds a fresh Controller instance. Controllers are stateful and
// must not be shared between control blocks.
type Factory func() Controller

var registry = map[string]Factory{}

// Register adds a named Controller factory. Called from package init
// functions of Controller implementations (see bbr.go); a later call with
// the same name replaces the earlier one.
func Register(name string, f Factory) {
	registry[name] = f
}

// New looks up a registered Factory by name and returns a fresh Controller.
// The bool result is false for an unknown name, in which case the caller
// should leave congestion control unset rather than substitute a default.
func New(name string) (Controller, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}
