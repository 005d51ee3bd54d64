package simnet

import (
	"testing"

	"github.com/dcp-transport/dcp"
	"github.com/dcp-transport/dcp/wheel"
)

func TestNoLossDeliversEverything(t *testing.T) {
	w := wheel.New()
	a, _ := dcp.Create(1, 0, w)
	b, _ := dcp.Create(1, 0, w)

	net := New(0, 10, 0, 0, 42)
	a.SetOutput(net.Link(b))

	if err := a.Send([]byte("hi there"), 0); err != nil {
		t.Fatal(err)
	}

	now := uint32(0)
	for i := 0; i < 50 && net.Delivered() == 0; i++ {
		now += 10
		w.Run(now)
		net.Advance(now)
	}

	buf := make([]byte, 64)
	n, err := b.Recv(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hi there" {
		t.Fatalf("Recv() = %q", buf[:n])
	}
	if net.Dropped() != 0 {
		t.Fatalf("expected zero loss, dropped=%d", net.Dropped())
	}
}

func TestFullLossDropsEveryPacket(t *testing.T) {
	w := wheel.New()
	a, _ := dcp.Create(1, 0, w)
	b, _ := dcp.Create(1, 0, w)

	net := New(1, 10, 0, 0, 7)
	a.SetOutput(net.Link(b))
	a.Send([]byte("gone"), 0)

	now := uint32(0)
	for i := 0; i < 20; i++ {
		now += 10
		w.Run(now)
		net.Advance(now)
	}

	if net.Delivered() != 0 {
		t.Fatalf("delivered=%d, want 0 under full loss", net.Delivered())
	}
	if net.Dropped() == 0 {
		t.Fatal("expected at least one dropped packet")
	}
}

func TestAdvanceHoldsPacketsUntilDue(t *testing.T) {
	w := wheel.New()
	a, _ := dcp.Create(1, 0, w)
	b, _ := dcp.Create(1, 0, w)

	net := New(0, 100, 0, 0, 1)
	a.SetOutput(net.Link(b))
	a.Send([]byte("x"), 0)
	w.Run(10)
	net.Advance(10) // packet should still be in flight, latency=100ms

	if net.Pending() == 0 {
		t.Fatal("packet delivered too early")
	}
	net.Advance(120)
	if net.Pending() != 0 || net.Delivered() == 0 {
		t.Fatal("packet should have been delivered by t=120")
	}
}
