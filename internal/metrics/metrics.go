package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ResponsesStarted  prometheus.Counter
	ResponsesFailed   prometheus.Counter
	ChunksEmitted     prometheus.Counter
	MessagesPersisted prometheus.Counter
	ResponsesRejected prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ResponsesStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coreon",
				Name:      "responses_started_total",
				Help:      "Total respond calls that began streaming",
			}),
			ResponsesFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coreon",
				Name:      "responses_failed_total",
				Help:      "Total respond calls that ended with an error frame",
			}),
			ChunksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coreon",
				Name:      "chunks_emitted_total",
				Help:      "Total ai_chunk frames written to clients",
			}),
			MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coreon",
				Name:      "messages_persisted_total",
				Help:      "Total messages appended to the chat store",
			}),
			ResponsesRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coreon",
				Name:      "responses_rejected_total",
				Help:      "Total respond calls rejected before streaming (busy, missing chat, rate limited)",
			}),
		}
		prometheus.MustRegister(
			global.ResponsesStarted,
			global.ResponsesFailed,
			global.ChunksEmitted,
			global.MessagesPersisted,
			global.ResponsesRejected,
		)
	})
	return global
}
