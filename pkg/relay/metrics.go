package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "babelcall",
		Subsystem: "relay",
		Name:      "rooms",
		Help:      "Number of the live rooms.",
	})
	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "babelcall",
		Subsystem: "relay",
		Name:      "clients",
		Help:      "Number of the connected signaling clients.",
	})
	metricRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "babelcall",
		Subsystem: "relay",
		Name:      "relayed_packets_total",
		Help:      "Count of the forwarded negotiation packets.",
	}, []string{"kind"})
	metricTranscripts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "babelcall",
		Subsystem: "relay",
		Name:      "transcripts_total",
		Help:      "Count of the fanned out transcript lines.",
	})
	metricTranslations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "babelcall",
		Subsystem: "relay",
		Name:      "translations_total",
		Help:      "Count of the fanned out translation lines.",
	})
)
