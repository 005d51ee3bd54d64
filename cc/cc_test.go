package cc

import "testing"

type fakeContext struct {
	mss, rmtWnd uint32
	nocwnd      bool
}

func (f fakeContext) MSS() uint32          { return f.mss }
func (f fakeContext) RemoteWindow() uint32 { return f.rmtWnd }
func (f fakeContext) NoCWND() bool         { return f.nocwnd }

func TestRegistryBBR(t *testing.T) {
	ctrl, ok := New("bbr")
	if !ok {
		t.Fatal("bbr not registered")
	}
	ctx := fakeContext{mss: 1376, rmtWnd: 128}
	ctrl.Init(ctx)
	if rate := ctrl.GetPacingRate(ctx); rate != bbrPaceRateBps {
		t.Fatalf("pacing rate = %d, want %d", rate, bbrPaceRateBps)
	}
}

func TestRegistryUnknownName(t *testing.T) {
	if _, ok := New("cubic-esque-thing-nobody-registered"); ok {
		t.Fatal("expected unknown name to miss")
	}
}

func TestBBRWindowClampedByRemoteWindow(t *testing.T) {
	b := &bbr{}
	ctx := fakeContext{mss: 100, rmtWnd: 10} // 10*100 = 1000 < 32*100 = 3200
	b.Init(ctx)
	got := b.GetCWND(ctx)
	if want := uint32(1000); got != want {
		t.Fatalf("GetCWND() = %d, want %d", got, want)
	}
}

func TestBBRWindowUnclampedByDefault(t *testing.T) {
	b := &bbr{}
	ctx := fakeContext{mss: 100, rmtWnd: 1000}
	b.Init(ctx)
	got := b.GetCWND(ctx)
	if want := uint32(3200); got != want {
		t.Fatalf("GetCWND() = %d, want %d", got, want)
	}
}

func TestBBRWindowIgnoresRemoteWhenNoCWND(t *testing.T) {
	b := &bbr{}
	ctx := fakeContext{mss: 100, rmtWnd: 1, nocwnd: true}
	b.Init(ctx)
	got := b.GetCWND(ctx)
	if want := uint32(3200); got != want {
		t.Fatalf("GetCWND() = %d, want %d", got, want)
	}
}
