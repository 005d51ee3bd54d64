// Package simnet provides an in-process, caller-clocked substrate for
// exercising a dcp.ControlBlock against loss, latency, jitter and a
// bandwidth cap. It reads no wall clock of its own: a caller advances it
// with the same millisecond counter it feeds to a ControlBlock and a
// wheel.Wheel, keeping the whole test deterministic under a seeded
// math/rand source.
package simnet

import (
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/dcp-transport/dcp"
)

type packet struct {
	data      []byte
	deliverAt uint32
	dst       *dcp.ControlBlock
}

// Network is a lossy, jittery, optionally bandwidth-limited link between
// ControlBlocks. It is not safe for concurrent use from multiple
// goroutines; pair it with a single cooperative event loop, the same model
// a ControlBlock itself assumes.
type Network struct {
	rng       *rand.Rand
	lossRate  float64
	latencyMs uint32
	jitterMs  uint32
	limiter   *rate.Limiter

	now     uint32
	pending []packet

	dropped   uint64
	delivered uint64
	limited   uint64
}

// New builds a Network that drops a fraction lossRate (0..1) of datagrams,
// delays the rest by latencyMs plus a uniform random jitter in
// [0, jitterMs), and deterministically reproduces its random decisions
// across runs given the same seed. bandwidthBytesPerSec <= 0 disables the
// bandwidth cap.
func New(lossRate float64, latencyMs, jitterMs uint32, bandwidthBytesPerSec float64, seed int64) *Network {
	n := &Network{
		rng:       rand.New(rand.NewSource(seed)),
		lossRate:  lossRate,
		latencyMs: latencyMs,
		jitterMs:  jitterMs,
	}
	if bandwidthBytesPerSec > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(bandwidthBytesPerSec), int(bandwidthBytesPerSec))
	}
	return n
}

// synthTime maps a millisecond counter to the time.Time the x/time/rate
// limiter needs, without ever touching the real wall clock.
func synthTime(ms uint32) time.Time {
	return time.Unix(0, int64(ms)*int64(time.Millisecond))
}

// Link returns an OutputFunc that, when installed on a ControlBlock with
// SetOutput, routes that ControlBlock's outgoing datagrams across this
// Network to dst.
func (n *Network) Link(dst *dcp.ControlBlock) dcp.OutputFunc {
	return func(data []byte) error {
		n.send(dst, data)
		return nil
	}
}

func (n *Network) send(dst *dcp.ControlBlock, data []byte) {
	if n.rng.Float64() < n.lossRate {
		n.dropped++
		return
	}
	if n.limiter != nil && !n.limiter.AllowN(synthTime(n.now), len(data)) {
		n.limited++
		return
	}
	jitter := uint32(0)
	if n.jitterMs > 0 {
		jitter = uint32(n.rng.Intn(int(n.jitterMs)))
	}
	cp := append([]byte(nil), data...)
	n.pending = append(n.pending, packet{
		data:      cp,
		deliverAt: n.now + n.latencyMs + jitter,
		dst:       dst,
	})
}

// Advance moves the network's clock to now and delivers every packet whose
// deliver time has arrived, calling Input on its destination. Packets not
// yet due are left pending; delivery order among packets due in the same
// Advance call follows arrival order.
func (n *Network) Advance(now uint32) {
	n.now = now
	// Walk a detached snapshot: send may append to pending while
	// deliveries are in progress.
	pending := n.pending
	n.pending = nil
	for _, p := range pending {
		if now >= p.deliverAt {
			p.dst.Input(p.data, now)
			n.delivered++
		} else {
			n.pending = append(n.pending, p)
		}
	}
}

// Dropped, Delivered and RateLimited report cumulative packet counts,
// useful for asserting a test actually exercised loss/bandwidth limiting
// rather than passing vacuously.
func (n *Network) Dropped() uint64     { return n.dropped }
func (n *Network) Delivered() uint64   { return n.delivered }
func (n *Network) RateLimited() uint64 { return n.limited }
func (n *Network) Pending() int        { return len(n.pending) }
