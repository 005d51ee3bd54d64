// Package config loads the tunable knobs of a ControlBlock from a YAML
// file: permissive defaults and a bounded read. A missing file yields an
// empty config; a file that cannot be stat'ed or read, is over the size
// limit, or does not parse is an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dcp-transport/dcp"
)

// maxConfigSize bounds how large a config file Load will read.
const maxConfigSize = 1 << 20

// Tunables holds the subset of a ControlBlock's parameters a deployment may
// want to override. Zero values are left at the ControlBlock's own
// defaults; see Apply.
type Tunables struct {
	MTU               uint32 `yaml:"mtu"`
	SendWindow        uint32 `yaml:"send_window"`
	RecvWindow        uint32 `yaml:"recv_window"`
	CongestionControl string `yaml:"congestion_control"`
	NoCWND            bool   `yaml:"no_cwnd"`
}

// Load reads and parses a YAML tunables file at path. It returns a zero
// Tunables, not an error, for a missing file - a deployment with no config
// file should behave identically to one with an empty config.
func Load(path string) (Tunables, error) {
	var t Tunables
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return t, fmt.Errorf("config: %s is %d bytes, exceeds %d byte limit", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return t, nil
}

// Apply sets every non-zero field of t on cb. It is intended to run once,
// immediately after dcp.Create, before the control block starts sending or
// receiving.
func (t Tunables) Apply(cb *dcp.ControlBlock) error {
	if t.MTU != 0 {
		if err := cb.SetMTU(t.MTU); err != nil {
			return fmt.Errorf("config: mtu: %w", err)
		}
	}
	if t.CongestionControl != "" {
		if err := cb.SetCongestionControl(t.CongestionControl); err != nil {
			return fmt.Errorf("config: congestion_control %q: %w", t.CongestionControl, err)
		}
	}
	if t.SendWindow != 0 || t.RecvWindow != 0 {
		sndWnd, rcvWnd := t.SendWindow, t.RecvWindow
		if sndWnd == 0 {
			sndWnd = cb.SndWnd()
		}
		if rcvWnd == 0 {
			rcvWnd = cb.RcvWnd()
		}
		cb.SetWindows(sndWnd, rcvWnd)
	}
	if t.NoCWND {
		cb.SetNoCWND(true)
	}
	return nil
}
