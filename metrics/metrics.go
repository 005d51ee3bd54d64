// Package metrics exposes a dcp.ControlBlock's counters as Prometheus
// metrics and decorates a congestion controller so its callback invocations
// are themselves observable.
package metrics

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcp-transport/dcp"
)

type connEntry struct {
	cb     *dcp.ControlBlock
	labels []string
}

// Collector gathers Stats from every registered ControlBlock on each
// Prometheus scrape. It is safe for concurrent Add/Remove/Collect.
type Collector struct {
	mu    sync.Mutex
	conns map[net.Addr]connEntry

	labelNames []string

	segsSent    *prometheus.Desc
	segsRecv    *prometheus.Desc
	retransmits *prometheus.Desc
	bytesSent   *prometheus.Desc
	sndQueueLen *prometheus.Desc
	sndBufLen   *prometheus.Desc
	rcvBufLen   *prometheus.Desc
	rcvQueueLen *prometheus.Desc
	smoothedRTT *prometheus.Desc
	rto         *prometheus.Desc
}

// NewCollector builds a Collector whose metrics carry labelNames as their
// per-connection variable labels (values supplied per Add call) and
// constLabels as process-wide constant labels.
func NewCollector(labelNames []string, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("dcp_"+name, help, labelNames, constLabels)
	}
	return &Collector{
		conns:       make(map[net.Addr]connEntry),
		labelNames:  labelNames,
		segsSent:    desc("segs_sent_total", "Data segments transmitted for the first time."),
		segsRecv:    desc("segs_recv_total", "In-window PUSH segments received, duplicates included."),
		retransmits: desc("retransmits_total", "RTO-triggered retransmissions."),
		bytesSent:   desc("bytes_sent_total", "Wire bytes of data segments transmitted for the first time."),
		sndQueueLen: desc("snd_queue_length", "Fragments waiting to enter the send buffer."),
		sndBufLen:   desc("snd_buf_length", "Fragments in flight, awaiting acknowledgement."),
		rcvBufLen:   desc("rcv_buf_length", "Out-of-order fragments held in the receive buffer."),
		rcvQueueLen: desc("rcv_queue_length", "Fragments reassembled and ready for Recv."),
		smoothedRTT: desc("smoothed_rtt_milliseconds", "Jacobson/Karels smoothed round-trip time estimate."),
		rto:         desc("rto_milliseconds", "Current retransmission timeout."),
	}
}

// Add registers cb under addr, reporting labelValues on every metric
// collected for it. len(labelValues) must match the labelNames passed to
// NewCollector.
func (c *Collector) Add(addr net.Addr, cb *dcp.ControlBlock, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[addr] = connEntry{cb: cb, labels: labelValues}
}

// Remove stops reporting metrics for addr.
func (c *Collector) Remove(addr net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, addr)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.segsSent
	ch <- c.segsRecv
	ch <- c.retransmits
	ch <- c.bytesSent
	ch <- c.sndQueueLen
	ch <- c.sndBufLen
	ch <- c.rcvBufLen
	ch <- c.rcvQueueLen
	ch <- c.smoothedRTT
	ch <- c.rto
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.conns {
		s := entry.cb.Stats()
		labels := entry.labels
		ch <- prometheus.MustNewConstMetric(c.segsSent, prometheus.CounterValue, float64(s.SegsSent), labels...)
		ch <- prometheus.MustNewConstMetric(c.segsRecv, prometheus.CounterValue, float64(s.SegsRecv), labels...)
		ch <- prometheus.MustNewConstMetric(c.retransmits, prometheus.CounterValue, float64(s.Retransmits), labels...)
		ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(s.BytesSent), labels...)
		ch <- prometheus.MustNewConstMetric(c.sndQueueLen, prometheus.GaugeValue, float64(s.SndQueueLen), labels...)
		ch <- prometheus.MustNewConstMetric(c.sndBufLen, prometheus.GaugeValue, float64(s.SndBufLen), labels...)
		ch <- prometheus.MustNewConstMetric(c.rcvBufLen, prometheus.GaugeValue, float64(s.RcvBufLen), labels...)
		ch <- prometheus.MustNewConstMetric(c.rcvQueueLen, prometheus.GaugeValue, float64(s.RcvQueueLen), labels...)
		ch <- prometheus.MustNewConstMetric(c.smoothedRTT, prometheus.GaugeValue, float64(s.SmoothedRTTMs), labels...)
		ch <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, float64(s.RTOMs), labels...)
	}
}
