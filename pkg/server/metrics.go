package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardroom/cardroom/pkg/wire"
)

// metrics is the prometheus surface of the gateway. It also implements
// room.Observer so rooms report snapshot and boot counts without knowing
// about prometheus.
type metrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	snapshotsTotal  prometheus.Counter
	bootsTotal      prometheus.Counter
	roomsActive     prometheus.Gauge
	socketsActive   prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "commands_total",
			Help:      "Client commands received, by message type.",
		}, []string{"type"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "command_rejections_total",
			Help:      "Commands rejected, by error code.",
		}, []string{"code"}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "snapshots_emitted_total",
			Help:      "Per-recipient snapshots emitted by rooms.",
		}),
		bootsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cardroom",
			Name:      "seats_booted_total",
			Help:      "Seats substituted with AI after timeout, leave or grace expiry.",
		}),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardroom",
			Name:      "rooms_active",
			Help:      "Rooms currently running.",
		}),
		socketsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardroom",
			Name:      "sockets_active",
			Help:      "Open websocket sessions.",
		}),
	}
	m.registry.MustRegister(m.commandsTotal, m.rejectionsTotal,
		m.snapshotsTotal, m.bootsTotal, m.roomsActive, m.socketsActive)
	return m
}

func (m *metrics) commandReceived(t wire.Type) {
	m.commandsTotal.WithLabelValues(string(t)).Inc()
}

func (m *metrics) commandRejected(code wire.ErrorCode) {
	m.rejectionsTotal.WithLabelValues(string(code)).Inc()
}

// SnapshotEmitted implements room.Observer.
func (m *metrics) SnapshotEmitted() { m.snapshotsTotal.Inc() }

// SeatBooted implements room.Observer.
func (m *metrics) SeatBooted() { m.bootsTotal.Inc() }
