package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the real-time gateway.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	DroppedMessages   prometheus.Counter
	EventsHandled     *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers gateway metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_rooms",
			Help:      "Number of brackets with at least one joined viewer.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "dropped_messages_total",
			Help:      "Messages skipped because a client's send buffer was full.",
		}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "events_total",
			Help:      "Client events handled, by event name and acknowledgement status.",
		}, []string{"event", "status"}),
	}

	reg.MustRegister(m.ActiveConnections, m.ActiveRooms, m.DroppedMessages, m.EventsHandled)
	return m
}

func (m *WebSocketMetrics) ConnectionOpened() { m.ActiveConnections.Inc() }

func (m *WebSocketMetrics) ConnectionClosed() { m.ActiveConnections.Dec() }

func (m *WebSocketMetrics) RoomOpened() { m.ActiveRooms.Inc() }

func (m *WebSocketMetrics) RoomClosed() { m.ActiveRooms.Dec() }

func (m *WebSocketMetrics) MessageDropped() { m.DroppedMessages.Inc() }

func (m *WebSocketMetrics) EventHandled(event, status string) {
	m.EventsHandled.WithLabelValues(event, status).Inc()
}
