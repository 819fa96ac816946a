package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_messages_sent_total",
		Help: "Messages accepted by the gateway.",
	})
	FanoutDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_fanout_delivered_total",
		Help: "Messages delivered to live subscription channels.",
	})
	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_fanout_dropped_total",
		Help: "Subscriptions closed for lagging behind the writer.",
	})
)

// Handler returns the http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
