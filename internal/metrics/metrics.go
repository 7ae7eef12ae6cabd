package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "gateway",
			Name:      "frames_received_total",
			Help:      "Frames decoded from the gateway stream.",
		},
	)
	framesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "gateway",
			Name:      "frames_sent_total",
			Help:      "Frames written to the gateway stream.",
		},
	)
	decodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "gateway",
			Name:      "frame_decode_errors_total",
			Help:      "Lines dropped because they could not be decoded.",
		},
	)
	handlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "dispatch",
			Name:      "handler_errors_total",
			Help:      "Frames whose handler failed.",
		},
		[]string{"command"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "gateway",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts after a transport failure.",
		},
	)
	blocksServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "firmware",
			Name:      "blocks_served_total",
			Help:      "Firmware blocks sent to nodes.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesReceived, framesSent, decodeErrors, handlerErrors, reconnects, blocksServed)
	})
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func FrameReceived()              { framesReceived.Inc() }
func FrameSent()                  { framesSent.Inc() }
func DecodeError()                { decodeErrors.Inc() }
func Reconnect()                  { reconnects.Inc() }
func BlockServed()                { blocksServed.Inc() }
func HandlerError(command string) { handlerErrors.WithLabelValues(command).Inc() }
