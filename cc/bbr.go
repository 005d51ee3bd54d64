package cc

func init() {
	Register("bbr", func() Controller { return &bbr{} })
}

// bbr is a placeholder congestion controller: it neither probes bandwidth
// nor tracks RTT the way real BBR does. It grants a constant congestion
// window of 32 segments, clamped to the remote's advertised window unless
// NoCWND is set, and paces at a constant rate. It exists so a newly created
// ControlBlock has a Controller to call into; a real bandwidth-probing
// implementation is out of scope (see package dcp's Non-goals).
type bbr struct {
	paceRateBps uint64
}

const (
	bbrWindowSegments = 32
	bbrPaceRateBps    = 500 * 1024 // 500 KiB/s
)

func (b *bbr) Init(ctx Context) {
	b.paceRateBps = bbrPaceRateBps
}

func (b *bbr) Release(ctx Context) {}

func (b *bbr) OnAck(ctx Context, rttSample int32, bytesAcked uint32, now uint32) {}

func (b *bbr) OnLoss(ctx Context, lostSN uint32, now uint32) {}

func (b *bbr) OnPktSent(ctx Context, bytesSent uint32) {}

func (b *bbr) GetCWND(ctx Context) uint32 {
	cwnd := uint32(bbrWindowSegments) * ctx.MSS()
	if !ctx.NoCWND() {
		if rmt := ctx.RemoteWindow() * ctx.MSS(); rmt < cwnd {
			cwnd = rmt
		}
	}
	return cwnd
}

func (b *bbr) GetPacingRate(ctx Context) uint64 {
	return b.paceRateBps
}
