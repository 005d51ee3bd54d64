package dcp

// updateRTT folds a fresh round-trip sample into the smoothed RTT estimate
// and recomputes the retransmission timeout, following the Jacobson/Karels
// estimator. The first sample seeds srtt directly and rttval at half the
// sample; subsequent samples use the standard 3/4-1/4 and 7/8-1/8 weighted
// updates. rto is clamped below by rxMinRTO and above by maxRTO.
func (cb *ControlBlock) updateRTT(rtt int32) {
	if rtt < 0 {
		rtt = 0
	}
	if cb.rxSRTT == 0 {
		cb.rxSRTT = rtt
		cb.rxRTTVal = rtt / 2
	} else {
		delta := rtt - cb.rxSRTT
		if delta < 0 {
			delta = -delta
		}
		cb.rxRTTVal = (3*cb.rxRTTVal + delta) / 4
		cb.rxSRTT = (7*cb.rxSRTT + rtt) / 8
	}
	rto := cb.rxSRTT + 4*cb.rxRTTVal
	if rto < cb.rxMinRTO {
		rto = cb.rxMinRTO
	}
	if rto > maxRTO {
		rto = maxRTO
	}
	cb.rxRTO = rto
}
