package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	EnqueueCounter   = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_enqueued_total", Help: "Total enqueued jobs"})
	WorkerSuccess    = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_completed_total", Help: "Jobs completed successfully"})
	WorkerFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_failed_total", Help: "Jobs that failed and will retry"})
	WorkerDeadLetter = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_dead_letter_total", Help: "Jobs moved to DLQ"})
	RateDeferred     = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_rate_deferred_total", Help: "Job starts deferred by the rate limiter"})
	MailSent         = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_mail_sent_total", Help: "Emails delivered"})
	MailFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "outreach_mail_failed_total", Help: "Email deliveries that failed"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "outreach_queue_depth", Help: "Ready queue depth"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "outreach_inflight", Help: "Jobs currently leased"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			EnqueueCounter,
			WorkerSuccess,
			WorkerFailures,
			WorkerDeadLetter,
			RateDeferred,
			MailSent,
			MailFailed,
			QueueDepthGauge,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
