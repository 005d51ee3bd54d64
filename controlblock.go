package dcp

import (
	"log/slog"

	"github.com/dcp-transport/dcp/alloc"
	"github.com/dcp-transport/dcp/cc"
	"github.com/dcp-transport/dcp/wheel"
)

// Defaults and limits applied when a ControlBlock's caller leaves a
// tunable unset.
const (
	defaultMTU        uint32 = 1400
	minMTU                   = headerSize + 1
	defaultMinRTO     int32  = 100
	defaultRTO        int32  = 200
	maxRTO            int32  = 60000
	defaultSndWnd     uint32 = 32
	defaultRcvWnd     uint32 = 128
	defaultRmtWnd     uint32 = 128
	defaultFastResend uint32 = 2
	ackDelayMs        uint32 = 20
)

// OutputFunc delivers one encoded datagram to the underlying substrate. It
// is called synchronously from within Send, Input and wheel-driven timer
// callbacks; a ControlBlock has no goroutine of its own and performs no
// locking, so an OutputFunc must not reenter the same ControlBlock.
type OutputFunc func(datagram []byte) error

// ControlBlock is a single reliable, ordered, message-oriented connection
// multiplexed over an unreliable datagram substrate. All methods assume
// single-threaded, cooperative use: a ControlBlock does not lock internally
// and must not be driven from more than one goroutine concurrently; callers
// that need concurrent access must serialize it themselves, typically by
// driving the control block from a single event loop. Time is always
// supplied by the caller as a
// monotonically non-decreasing millisecond counter; ControlBlock never
// reads the wall clock.
type ControlBlock struct {
	convID uint32
	token  uint32

	mtu uint32
	mss uint32

	isReleased bool

	sndUNA, sndNxt, rcvNxt  uint32
	sndWnd, rcvWnd, rmtWnd  uint32
	rxRTTVal, rxSRTT, rxRTO int32
	rxMinRTO                int32
	fastresend              uint32
	nocwnd                  bool

	ccName string
	ccCtrl cc.Controller

	sndQueue, sndBuf, rcvBuf, rcvQueue segQueue

	ackDelayedUntil  uint32
	rtoTimerArmed    bool
	pacingTimerArmed bool

	output OutputFunc
	wheel  *wheel.Wheel
	log    logger

	stats Stats
}

// Create allocates a ControlBlock bound to w, the timer wheel that will
// drive its retransmission, delayed-acknowledgement and pacing timers. It
// fails only if w is nil. conv identifies the connection on the wire; token
// is an opaque value the caller may use for connection identification above
// this layer (the core never inspects it beyond storing it).
func Create(conv, token uint32, w *wheel.Wheel) (*ControlBlock, error) {
	if w == nil {
		return nil, ErrBadArgument
	}
	cb := &ControlBlock{
		convID:     conv,
		token:      token,
		mtu:        defaultMTU,
		mss:        defaultMTU - headerSize,
		sndWnd:     defaultSndWnd,
		rcvWnd:     defaultRcvWnd,
		rmtWnd:     defaultRmtWnd,
		rxMinRTO:   defaultMinRTO,
		rxRTO:      defaultRTO,
		fastresend: defaultFastResend,
		wheel:      w,
	}
	cb.SetCongestionControl("bbr") // always registered; error impossible
	return cb, nil
}

// SetOutput installs the sink that encoded datagrams are written to. Output
// is called synchronously from Send/Input/timer callbacks.
func (cb *ControlBlock) SetOutput(fn OutputFunc) { cb.output = fn }

// SetLogger enables logging to l. A ControlBlock with no logger installed
// logs nowhere.
func (cb *ControlBlock) SetLogger(l *slog.Logger) { cb.log = logger{log: l} }

// SetMTU changes the maximum transmission unit and recomputes the maximum
// segment size (mss = mtu - headerSize). It fails if mtu cannot hold even
// an empty segment's header.
func (cb *ControlBlock) SetMTU(mtu uint32) error {
	if mtu < minMTU {
		return ErrBadArgument
	}
	cb.mtu = mtu
	cb.mss = mtu - headerSize
	return nil
}

// SetWindows overrides the local send and receive window sizes, in
// segments. Both are normally left at their defaultSndWnd/defaultRcvWnd
// values; a caller that changes them should do so before the control block
// has enqueued or received anything.
func (cb *ControlBlock) SetWindows(sndWnd, rcvWnd uint32) {
	cb.sndWnd = sndWnd
	cb.rcvWnd = rcvWnd
}

// SetNoCWND disables congestion-window clamping: a Controller's GetCWND is
// expected to size its window off MSS alone rather than the remote's
// advertised window.
func (cb *ControlBlock) SetNoCWND(v bool) { cb.nocwnd = v }

// SetCongestionControl replaces the active congestion controller by name.
// On an unrecognised name the previous controller is released and left
// unset; a ControlBlock with no controller still accepts Send/Recv/Input,
// and flush then allows one segment in flight at a time with the minimum
// 1 ms pacing delay (GetCWND/GetPacingRate calls are skipped when nil).
func (cb *ControlBlock) SetCongestionControl(name string) error {
	if cb.ccCtrl != nil {
		cb.ccCtrl.Release(cb)
		cb.ccCtrl = nil
	}
	ctrl, ok := cc.New(name)
	if !ok {
		return ErrBadArgument
	}
	cb.ccName = name
	cb.ccCtrl = ctrl
	cb.ccCtrl.Init(cb)
	return nil
}

// SetController installs ctrl directly as the active congestion controller,
// releasing any previous one. Unlike SetCongestionControl, ctrl need not be
// registered by name; this is how a decorator such as
// github.com/dcp-transport/dcp/metrics.InstrumentedController gets attached.
func (cb *ControlBlock) SetController(ctrl cc.Controller) {
	if cb.ccCtrl != nil {
		cb.ccCtrl.Release(cb)
	}
	cb.ccName = ""
	cb.ccCtrl = ctrl
	if cb.ccCtrl != nil {
		cb.ccCtrl.Init(cb)
	}
}

// Release marks cb released. Send, Recv and Input return ErrReleased
// afterward, and isReleased is checked first in every wheel callback too,
// rather than this actually freeing Go-managed memory. The setters
// (SetMTU, SetCongestionControl, SetController, SetWindows, SetOutput, ...)
// do not check isReleased and still apply their change.
func (cb *ControlBlock) Release() {
	if cb.isReleased {
		return
	}
	cb.isReleased = true
	if cb.ccCtrl != nil {
		cb.ccCtrl.Release(cb)
	}
}

// cc.Context implementation.

func (cb *ControlBlock) MSS() uint32          { return cb.mss }
func (cb *ControlBlock) RemoteWindow() uint32 { return cb.rmtWnd }
func (cb *ControlBlock) NoCWND() bool         { return cb.nocwnd }

// Accessors, mainly for tests and instrumentation (dcp/metrics).

func (cb *ControlBlock) ConvID() uint32   { return cb.convID }
func (cb *ControlBlock) Token() uint32    { return cb.token }
func (cb *ControlBlock) MTU() uint32      { return cb.mtu }
func (cb *ControlBlock) SndUNA() uint32   { return cb.sndUNA }
func (cb *ControlBlock) SndNxt() uint32   { return cb.sndNxt }
func (cb *ControlBlock) RcvNxt() uint32   { return cb.rcvNxt }
func (cb *ControlBlock) Released() bool   { return cb.isReleased }
func (cb *ControlBlock) RTO() int32       { return cb.rxRTO }
func (cb *ControlBlock) SndWnd() uint32   { return cb.sndWnd }
func (cb *ControlBlock) RcvWnd() uint32   { return cb.rcvWnd }

// Send enqueues data for transmission, fragmenting it across ceil(len/mss)
// segments. It fails with ErrWindowFull if doing so would push the queued
// plus in-flight segment count past 2*snd_wnd, and with ErrAllocFailure if
// the installed allocator cannot supply storage for a fragment - fragments
// already appended before that point remain queued, the connection stays
// usable.
func (cb *ControlBlock) Send(data []byte, now uint32) error {
	if cb.isReleased {
		return ErrReleased
	}
	if len(data) == 0 {
		return ErrBadArgument
	}
	mss := int(cb.mss)
	count := (len(data) + mss - 1) / mss
	if count == 0 {
		count = 1
	}
	if cb.sndQueue.Len()+cb.sndBuf.Len()+count > int(cb.sndWnd)*2 {
		return ErrWindowFull
	}
	offset := 0
	for i := 0; i < count; i++ {
		size := mss
		if remaining := len(data) - offset; remaining < size {
			size = remaining
		}
		payload := alloc.Alloc(size)
		if payload == nil {
			return ErrAllocFailure
		}
		copy(payload, data[offset:offset+size])
		cb.sndQueue.PushBack(&Segment{
			ConvID: cb.convID,
			Cmd:    CmdPush,
			Frg:    uint32(count - 1 - i),
			Data:   payload,
		})
		offset += size
	}
	if !cb.pacingTimerArmed {
		cb.armPacing(0, now)
	}
	return nil
}

// Recv copies the next complete message into buf, returning its length.
// It returns (0, nil) if no complete message is queued yet, and
// ErrBufferTooSmall if buf cannot hold the next complete message without
// consuming any of it.
func (cb *ControlBlock) Recv(buf []byte) (int, error) {
	if cb.isReleased {
		return 0, ErrReleased
	}
	if cb.rcvQueue.Len() == 0 {
		return 0, nil
	}
	peekSize := 0
	complete := false
	for _, s := range cb.rcvQueue.segs {
		peekSize += s.Len()
		if s.isLastFragment() {
			complete = true
			break
		}
	}
	if !complete {
		// Leading fragments promoted but the frg==0 tail has not arrived
		// yet. A partial message is never handed out.
		return 0, nil
	}
	if peekSize <= 0 || peekSize > len(buf) {
		return 0, ErrBufferTooSmall
	}
	recovered := 0
	for {
		s := cb.rcvQueue.PopFront()
		recovered += copy(buf[recovered:], s.Data)
		alloc.Free(s.Data)
		if s.isLastFragment() {
			break
		}
	}
	return recovered, nil
}

// Input processes one inbound datagram. A malformed datagram (short header,
// declared length mismatch, or mismatched conv_id) is rejected with a
// *RejectError; an otherwise well-formed datagram addressed outside the
// current receive window is dropped silently, returning nil - protocol-level
// drops never surface as errors. A dropped PUSH below rcv_nxt (an already
// delivered retransmit) still schedules a delayed ACK.
func (cb *ControlBlock) Input(data []byte, now uint32) error {
	if cb.isReleased {
		return ErrReleased
	}
	var seg Segment
	if err := decodeSegment(data, &seg); err != nil {
		return err
	}
	if seg.ConvID != cb.convID {
		return errConvMismatch
	}
	cb.rmtWnd = seg.Wnd
	cb.parseUNA(seg.UNA)

	switch seg.Cmd {
	case CmdPush:
		cb.inputPush(&seg, now)
	case CmdAck:
		cb.inputAck(&seg, now)
	case CmdProbe:
		// No defined effect beyond the una/window parsing already applied.
	default:
		// Unrecognised command: ignored.
	}
	return nil
}

func (cb *ControlBlock) inputPush(seg *Segment, now uint32) {
	if seg.SN < cb.rcvNxt {
		// Already delivered: the sender missed our ACK and retransmitted.
		// Drop the data but re-announce the cumulative ack.
		if cb.ackDelayedUntil == 0 {
			cb.armAckDelay(now)
		}
		return
	}
	if seg.SN >= cb.rcvNxt+cb.rcvWnd {
		cb.log.trace("push out of window, dropped", slog.Uint64("sn", uint64(seg.SN)), slog.Uint64("rcv_nxt", uint64(cb.rcvNxt)))
		return
	}
	payload := alloc.Alloc(len(seg.Data))
	if payload == nil {
		cb.log.warn("alloc failed for inbound segment, dropped", slog.Uint64("sn", uint64(seg.SN)))
		return
	}
	copy(payload, seg.Data)
	cb.parseData(&Segment{
		ConvID: seg.ConvID,
		Cmd:    seg.Cmd,
		Frg:    seg.Frg,
		Wnd:    seg.Wnd,
		TS:     seg.TS,
		SN:     seg.SN,
		UNA:    seg.UNA,
		Data:   payload,
	})
	cb.stats.SegsRecv++
	if cb.ackDelayedUntil == 0 {
		cb.armAckDelay(now)
	}
}

func (cb *ControlBlock) inputAck(seg *Segment, now uint32) {
	if seg.TS != 0 && now >= seg.TS {
		// A zero timestamp (every delayed-ACK fire) or a clock ahead of
		// ours yields no RTT sample and no controller OnAck.
		rtt := int32(now - seg.TS)
		cb.updateRTT(rtt)
		if cb.ccCtrl != nil {
			cb.ccCtrl.OnAck(cb, rtt, 0, now)
		}
	}
	cb.sndBuf.fastAck(seg.SN)
	if !cb.pacingTimerArmed && cb.sndQueue.Len() > 0 {
		cb.armPacing(0, now)
	}
}

// parseUNA evicts every send-buffer segment acknowledged by una. una only
// ever advances snd_una: a reordered datagram carrying an older cumulative
// ack than one already applied must not walk snd_una backward.
func (cb *ControlBlock) parseUNA(una uint32) {
	cb.sndBuf.evictBefore(una)
	if una > cb.sndUNA {
		cb.sndUNA = una
	}
}

// parseData inserts an in-window PUSH segment into the receive buffer,
// ordered by sequence number, then promotes the longest available
// contiguous prefix into the receive queue.
func (cb *ControlBlock) parseData(seg *Segment) {
	if !cb.rcvBuf.insertOrdered(seg) {
		alloc.Free(seg.Data) // duplicate retransmit
		return
	}
	for {
		next := cb.rcvBuf.popFrontIfSN(cb.rcvNxt)
		if next == nil {
			break
		}
		cb.rcvQueue.PushBack(next)
		cb.rcvNxt++
	}
}

