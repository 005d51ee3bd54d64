package dcp

// Stats is a point-in-time snapshot of a ControlBlock's counters, exposed
// for instrumentation (see package dcp/metrics).
type Stats struct {
	SegsSent      uint64
	SegsRecv      uint64
	Retransmits   uint64
	BytesSent     uint64
	SndQueueLen   int
	SndBufLen     int
	RcvBufLen     int
	RcvQueueLen   int
	SmoothedRTTMs int32
	RTOMs         int32
}

// Stats returns a snapshot of cb's current counters and queue depths.
func (cb *ControlBlock) Stats() Stats {
	s := cb.stats
	s.SndQueueLen = cb.sndQueue.Len()
	s.SndBufLen = cb.sndBuf.Len()
	s.RcvBufLen = cb.rcvBuf.Len()
	s.RcvQueueLen = cb.rcvQueue.Len()
	s.SmoothedRTTMs = cb.rxSRTT
	s.RTOMs = cb.rxRTO
	return s
}
