package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcp-transport/dcp/cc"
)

// InstrumentedController decorates a cc.Controller with Prometheus counters
// for each callback the control block invokes, so congestion-control
// activity is observable without modifying the controller itself.
type InstrumentedController struct {
	inner cc.Controller

	acks   prometheus.Counter
	losses prometheus.Counter
	sends  prometheus.Counter
}

// NewInstrumentedController wraps inner, creating three counters under
// namespace/subsystem with the given constant labels. It does not register
// them; see Collectors.
func NewInstrumentedController(inner cc.Controller, namespace, subsystem string, constLabels prometheus.Labels) *InstrumentedController {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	return &InstrumentedController{
		inner:  inner,
		acks:   counter("cc_on_ack_total", "Calls to the congestion controller's OnAck."),
		losses: counter("cc_on_loss_total", "Calls to the congestion controller's OnLoss."),
		sends:  counter("cc_on_pkt_sent_total", "Calls to the congestion controller's OnPktSent."),
	}
}

// Collectors returns the counters for registration with a
// prometheus.Registerer.
func (c *InstrumentedController) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.acks, c.losses, c.sends}
}

func (c *InstrumentedController) Init(ctx cc.Context)    { c.inner.Init(ctx) }
func (c *InstrumentedController) Release(ctx cc.Context) { c.inner.Release(ctx) }

func (c *InstrumentedController) OnAck(ctx cc.Context, rttSample int32, bytesAcked uint32, now uint32) {
	c.acks.Inc()
	c.inner.OnAck(ctx, rttSample, bytesAcked, now)
}

func (c *InstrumentedController) OnLoss(ctx cc.Context, lostSN uint32, now uint32) {
	c.losses.Inc()
	c.inner.OnLoss(ctx, lostSN, now)
}

func (c *InstrumentedController) OnPktSent(ctx cc.Context, bytesSent uint32) {
	c.sends.Inc()
	c.inner.OnPktSent(ctx, bytesSent)
}

func (c *InstrumentedController) GetCWND(ctx cc.Context) uint32 { return c.inner.GetCWND(ctx) }
func (c *InstrumentedController) GetPacingRate(ctx cc.Context) uint64 {
	return c.inner.GetPacingRate(ctx)
}
