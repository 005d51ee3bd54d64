package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dcp-transport/dcp"
	"github.com/dcp-transport/dcp/wheel"
)

func TestLoadMissingFileReturnsEmptyTunables(t *testing.T) {
	tun, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if tun != (Tunables{}) {
		t.Fatalf("Load() = %+v, want zero value", tun)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	const body = `
mtu: 1200
send_window: 64
recv_window: 256
congestion_control: bbr
no_cwnd: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tun, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Tunables{MTU: 1200, SendWindow: 64, RecvWindow: 256, CongestionControl: "bbr", NoCWND: true}
	if tun != want {
		t.Fatalf("Load() = %+v, want %+v", tun, want)
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.yaml")
	if err := os.WriteFile(path, make([]byte, maxConfigSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for oversized config file")
	}
}

func TestApplySetsEveryNonZeroField(t *testing.T) {
	cb, err := dcp.Create(1, 0, wheel.New())
	if err != nil {
		t.Fatal(err)
	}
	tun := Tunables{MTU: 800, SendWindow: 16, RecvWindow: 32, CongestionControl: "bbr", NoCWND: true}
	if err := tun.Apply(cb); err != nil {
		t.Fatal(err)
	}
	if cb.MTU() != 800 {
		t.Fatalf("MTU() = %d, want 800", cb.MTU())
	}
	if cb.SndWnd() != 16 || cb.RcvWnd() != 32 {
		t.Fatalf("SndWnd/RcvWnd = %d/%d, want 16/32", cb.SndWnd(), cb.RcvWnd())
	}
	if !cb.NoCWND() {
		t.Fatal("NoCWND() = false, want true")
	}
}

func TestApplyRejectsUnknownCongestionControl(t *testing.T) {
	cb, err := dcp.Create(1, 0, wheel.New())
	if err != nil {
		t.Fatal(err)
	}
	tun := Tunables{CongestionControl: "does-not-exist"}
	if err := tun.Apply(cb); err == nil {
		t.Fatal("expected error for unknown congestion control name")
	}
}
