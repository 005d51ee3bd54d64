package dcp

import "log/slog"

// armPacing schedules the pacing wake-up (flush) delayMs after the wheel's
// current time; the wheel rounds a delay shorter than one tick up to a tick.
// now is not passed to the wheel.
func (cb *ControlBlock) armPacing(delayMs, now uint32) {
	cb.pacingTimerArmed = true
	cb.wheel.Add(delayMs, cb.onPacingTimeout)
}

// armRTO schedules the retransmission timeout delayMs after the wheel's
// current time, like armPacing.
func (cb *ControlBlock) armRTO(delayMs, now uint32) {
	cb.rtoTimerArmed = true
	cb.wheel.Add(delayMs, cb.onRTOTimeout)
}

// armAckDelay schedules a coalesced ACK ackDelayMs after now and records the
// deadline in ackDelayedUntil, which also doubles as this timer's armed
// flag (zero means disarmed).
func (cb *ControlBlock) armAckDelay(now uint32) {
	cb.ackDelayedUntil = now + ackDelayMs
	cb.wheel.Add(ackDelayMs, cb.onAckDelayTimeout)
}

// onPacingTimeout is the wheel callback for the pacing timer. It clears the
// armed flag first so a re-arm inside flush is never mistaken for a no-op,
// then calls flush unless the control block has been released.
func (cb *ControlBlock) onPacingTimeout(now uint32) {
	cb.pacingTimerArmed = false
	if cb.isReleased {
		return
	}
	cb.flush(now)
}

// flush moves at most one segment from the send queue into the send
// buffer, subject to the congestion window, and transmits it. If segments
// remain queued afterward it re-arms the pacing timer for the interval
// implied by the current pacing rate.
func (cb *ControlBlock) flush(now uint32) {
	if cb.sndQueue.Len() == 0 {
		return
	}
	cwndPkts := uint32(1)
	if cb.ccCtrl != nil && cb.mss > 0 {
		if p := cb.ccCtrl.GetCWND(cb) / cb.mss; p > 0 {
			cwndPkts = p
		}
	}
	if uint32(cb.sndBuf.Len()) >= cwndPkts {
		return
	}
	seg := cb.sndQueue.PopFront()
	if seg == nil {
		return
	}
	cb.sndBuf.PushBack(seg)
	seg.SN = cb.sndNxt
	cb.sndNxt++
	seg.TS = now
	seg.Wnd = uint32(cb.rcvQueue.Len())
	seg.UNA = cb.rcvNxt
	seg.RTO = uint32(cb.rxRTO)
	seg.Xmit = 1

	cb.outputSegment(seg)
	cb.stats.SegsSent++
	cb.stats.BytesSent += uint64(seg.wireSize())
	if cb.ccCtrl != nil {
		cb.ccCtrl.OnPktSent(cb, uint32(seg.wireSize()))
	}
	if !cb.rtoTimerArmed {
		cb.armRTO(uint32(cb.rxRTO), now)
	}
	if cb.sndQueue.Len() > 0 {
		cb.armPacing(cb.pacingDelayMs(seg), now)
	}
}

// pacingDelayMs computes how long to wait before the next send-queue
// segment may go out, given the controller's current pacing rate.
func (cb *ControlBlock) pacingDelayMs(seg *Segment) uint32 {
	var rate uint64
	if cb.ccCtrl != nil {
		rate = cb.ccCtrl.GetPacingRate(cb)
	}
	if rate == 0 {
		return 1
	}
	d := uint64(seg.wireSize()) * 1000 / rate
	if d < 1 {
		d = 1
	}
	return uint32(d)
}

// onRTOTimeout retransmits only the send-buffer head, doubling the
// retransmission timeout (capped at maxRTO) and re-arming itself if the
// buffer is still non-empty afterward. Only the head is ever touched - a
// send buffer with several in-flight segments waits for the head's own RTO
// to retransmit it before any later segment gets a chance. See DESIGN.md
// for why this is intentional rather than a full-buffer replay.
func (cb *ControlBlock) onRTOTimeout(now uint32) {
	cb.rtoTimerArmed = false
	if cb.isReleased {
		return
	}
	seg := cb.sndBuf.Front()
	if seg == nil {
		return
	}
	cb.rxRTO *= 2
	if cb.rxRTO > maxRTO {
		cb.rxRTO = maxRTO
	}
	seg.RTO = uint32(cb.rxRTO)
	seg.Xmit++
	seg.TS = now
	seg.Wnd = uint32(cb.rcvQueue.Len())
	seg.UNA = cb.rcvNxt

	cb.outputSegment(seg)
	cb.stats.Retransmits++
	if cb.ccCtrl != nil {
		cb.ccCtrl.OnLoss(cb, seg.SN, now)
	}
	if cb.sndBuf.Len() > 0 {
		cb.armRTO(uint32(cb.rxRTO), now)
	}
}

// onAckDelayTimeout sends one coalesced, payload-less ACK carrying the
// current window and cumulative-ack state. Its timestamp field is left
// zero, so it never produces an RTT sample on the peer (see Input's
// CmdAck handling).
func (cb *ControlBlock) onAckDelayTimeout(now uint32) {
	cb.ackDelayedUntil = 0
	if cb.isReleased {
		return
	}
	cb.outputSegment(&Segment{
		ConvID: cb.convID,
		Cmd:    CmdAck,
		Wnd:    uint32(cb.rcvQueue.Len()),
		UNA:    cb.rcvNxt,
	})
}

// outputSegment encodes seg and hands it to the installed OutputFunc. A
// segment that would exceed the current MTU is logged and dropped rather
// than sent truncated.
func (cb *ControlBlock) outputSegment(seg *Segment) {
	if seg.wireSize() > int(cb.mtu) {
		cb.log.error("segment exceeds mtu, dropped",
			slog.Int("size", seg.wireSize()), slog.Uint64("mtu", uint64(cb.mtu)))
		return
	}
	if cb.output == nil {
		return
	}
	buf := encodeSegment(make([]byte, 0, seg.wireSize()), seg)
	if err := cb.output(buf); err != nil {
		cb.log.warn("output callback failed", slog.String("err", err.Error()), slog.Uint64("sn", uint64(seg.SN)))
	}
}
