/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats implements Prometheus-backed metrics for a SOME/IP server:
// per-message-type RX/TX counters, active TP reassemblies, offered-service
// count, and session-timeout count.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// Stats collects the running metrics of one SOME/IP server instance.
type Stats struct {
	registry *prometheus.Registry

	rx                   *prometheus.CounterVec
	tx                   *prometheus.CounterVec
	activeReassemblies   prometheus.Gauge
	offeredServices      prometheus.Gauge
	sessionTimeouts      prometheus.Counter
	reassemblyAbandoned  prometheus.Counter
}

// New builds a Stats instance with all metrics registered.
func New() *Stats {
	registry := prometheus.NewRegistry()

	s := &Stats{
		registry: registry,
		rx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "someip_rx_messages_total",
			Help: "Count of SOME/IP messages received, by message type.",
		}, []string{"message_type"}),
		tx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "someip_tx_messages_total",
			Help: "Count of SOME/IP messages sent, by message type.",
		}, []string{"message_type"}),
		activeReassemblies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_tp_active_reassemblies",
			Help: "Number of in-flight TP reassembly entries.",
		}),
		offeredServices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_sd_offered_services",
			Help: "Number of service instances currently offered.",
		}),
		sessionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_client_session_timeouts_total",
			Help: "Count of client calls that failed with a timeout.",
		}),
		reassemblyAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_tp_reassembly_abandoned_total",
			Help: "Count of TP transfers evicted incomplete.",
		}),
	}

	registry.MustRegister(s.rx, s.tx, s.activeReassemblies, s.offeredServices, s.sessionTimeouts, s.reassemblyAbandoned)
	return s
}

// IncRX records one received message of the given type.
func (s *Stats) IncRX(t someip.MessageType) { s.rx.WithLabelValues(t.String()).Inc() }

// IncTX records one sent message of the given type.
func (s *Stats) IncTX(t someip.MessageType) { s.tx.WithLabelValues(t.String()).Inc() }

// SetActiveReassemblies sets the current count of in-flight TP transfers.
func (s *Stats) SetActiveReassemblies(n int) { s.activeReassemblies.Set(float64(n)) }

// SetOfferedServices sets the current count of offered service instances.
func (s *Stats) SetOfferedServices(n int) { s.offeredServices.Set(float64(n)) }

// IncSessionTimeout records one client call that timed out.
func (s *Stats) IncSessionTimeout() { s.sessionTimeouts.Inc() }

// IncReassemblyAbandoned records one TP transfer evicted incomplete.
func (s *Stats) IncReassemblyAbandoned() { s.reassemblyAbandoned.Inc() }

// Serve starts the /metrics HTTP endpoint on addr. Blocks; run in its own
// goroutine.
func (s *Stats) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Infof("someip/stats: serving metrics on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// Registry exposes the underlying Prometheus registry, e.g. to register
// additional collectors from a caller.
func (s *Stats) Registry() *prometheus.Registry { return s.registry }
