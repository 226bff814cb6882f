package emit

import (
	"PredictLedger/internal/event"
	"PredictLedger/internal/observability"
)

// Fanout routes engine events to the persistence worker, the projection
// worker and the outbound publisher. The persist channel uses a BLOCKING
// send (backpressure: the engine stalls rather than lose an event), the
// other two NON-BLOCKING sends with drop: projections and outbound
// publishing are best-effort and can rebuild from the event log.
type Fanout struct {
	persist    chan<- event.Envelope
	projection chan<- event.Envelope
	publish    chan<- event.Envelope
	metrics    *observability.Metrics
}

func NewFanout(persist, projection, publish chan<- event.Envelope, metrics *observability.Metrics) *Fanout {
	return &Fanout{
		persist:    persist,
		projection: projection,
		publish:    publish,
		metrics:    metrics,
	}
}

func (f *Fanout) Emit(env event.Envelope) {
	if f.persist != nil {
		f.persist <- env
	}

	if f.projection != nil {
		select {
		case f.projection <- env:
		default:
			if f.metrics != nil {
				f.metrics.ProjectionDrops.Inc()
			}
		}
	}

	if f.publish != nil {
		select {
		case f.publish <- env:
		default:
			if f.metrics != nil {
				f.metrics.PublishDrops.Inc()
			}
		}
	}
}
