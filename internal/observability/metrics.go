package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	CampaignLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_launches_total", Help: "Campaign launch outcomes"},
		[]string{"result"},
	)
	QueuedItems = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campaigner_queued_items_total", Help: "Queue rows created at launch"},
	)
	DispatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_dispatch_total", Help: "Per-item dispatch outcomes"},
		[]string{"result"},
	)
	CarrierSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_carrier_send_total", Help: "Carrier send outcomes"},
		[]string{"result", "http_status"},
	)
	CarrierLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "campaigner_carrier_send_latency_seconds", Help: "Carrier send latency"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_webhook_events_total", Help: "Delivery callback events by carrier status"},
		[]string{"status"},
	)
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_sweep_runs_total", Help: "Periodic sweep executions"},
		[]string{"job", "result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(CampaignLaunches, QueuedItems, DispatchOutcomes, CarrierSend, CarrierLatency, WebhookEvents, SweepRuns)
}
