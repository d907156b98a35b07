// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay outcome label values.
const (
	relayConnected = "connected"
	relayFailed    = "failed"
	relayDisabled  = "disabled"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	FramesDecoded       *prometheus.CounterVec
	FrameDecodeErrors   prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	CommandsRouted      *prometheus.CounterVec
	RelayOutcomes       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	const namespace = "xdebugbus"

	return &Metrics{
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Debugger engine connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Debugger engine connections currently open.",
		}),
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "DBGp frames decoded, by root element.",
		}, []string{"kind"}),
		FrameDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_decode_errors_total",
			Help:      "DBGp frames dropped because they could not be decoded.",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events handed to the message bus, by event name and result.",
		}, []string{"event", "result"}),
		CommandsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_routed_total",
			Help:      "Inbound bus commands, by result.",
		}, []string{"result"}),
		RelayOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_outcomes_total",
			Help:      "Relay negotiation outcomes per debugger connection.",
		}, []string{"outcome"}),
	}
}
