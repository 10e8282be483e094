package lib

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

/* This file implements dev-ops telemetry for a simulation run in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
// every method is safe to call on a nil *Metrics, which disables telemetry
type Metrics struct {
	server   *http.Server         // the http prometheus server
	config   MetricsConfig        // the configuration
	registry *prometheus.Registry // the per-run registry so that independent runs never collide
	log      LoggerI              // the logger

	SimulatorMetrics // round driving telemetry
	SessionMetrics   // per node queue telemetry
	EngineMetrics    // agreement telemetry
	ProcessMetrics   // resource usage of the simulator process
}

// SimulatorMetrics represents the telemetry of the round based driver
type SimulatorMetrics struct {
	Steps           prometheus.Counter   // how many drive steps were taken?
	EmptySteps      prometheus.Counter   // how many steps found an empty inbound queue?
	RoutedMessages  prometheus.Counter   // how many messages were delivered to an inbound queue?
	ExcludedNodes   prometheus.Gauge     // how many nodes were excluded after an engine failure?
	LiveNodes       prometheus.Gauge     // how many nodes are participating?
	RunDuration     prometheus.Histogram // how long did a run take in seconds?
	LivenessFailure prometheus.Counter   // how many runs exhausted their budget?
}

// SessionMetrics represents the telemetry of the per node queues
type SessionMetrics struct {
	PeerIn   *prometheus.CounterVec // how many messages did a node handle?
	PeerOut  *prometheus.CounterVec // how many messages did a node emit?
	BatchOut *prometheus.CounterVec // how many batches did a node finalize?
}

// EngineMetrics represents the telemetry of agreement
type EngineMetrics struct {
	Epoch          prometheus.Gauge     // what's the highest finalized epoch?
	BatchSize      prometheus.Histogram // how many contributions are in a finalized batch?
	EngineFailures prometheus.Counter   // how many engine errors were isolated?
}

// ProcessMetrics represents the resource usage of the simulator process
type ProcessMetrics struct {
	CPUPercent  prometheus.Gauge // what's the process cpu usage?
	MemoryBytes prometheus.Gauge // what's the process resident memory?
	proc        *process.Process // the handle to this process
}

// NewMetricsServer() creates a new telemetry server backed by its own registry
func NewMetricsServer(config MetricsConfig, log LoggerI) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	// a missing process handle only disables the process metrics
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warnf("Process metrics unavailable: %s", err.Error())
	}
	return &Metrics{
		server:   &http.Server{Addr: config.PrometheusAddress, Handler: mux},
		config:   config,
		registry: reg,
		log:      log,
		SimulatorMetrics: SimulatorMetrics{
			Steps: factory.NewCounter(prometheus.CounterOpts{
				Name: "bftsim_steps_total",
				Help: "Total number of drive steps",
			}),
			EmptySteps: factory.NewCounter(prometheus.CounterOpts{
				Name: "bftsim_empty_steps_total",
				Help: "Total number of drive steps that found an empty inbound queue",
			}),
			RoutedMessages: factory.NewCounter(prometheus.CounterOpts{
				Name: "bftsim_routed_messages_total",
				Help: "Total number of messages delivered to an inbound queue",
			}),
			ExcludedNodes: factory.NewGauge(prometheus.GaugeOpts{
				Name: "bftsim_excluded_nodes",
				Help: "Number of nodes excluded after an engine failure",
			}),
			LiveNodes: factory.NewGauge(prometheus.GaugeOpts{
				Name: "bftsim_live_nodes",
				Help: "Number of nodes participating in the run",
			}),
			RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "bftsim_run_duration_seconds",
				Help: "Time to complete a run in seconds",
			}),
			LivenessFailure: factory.NewCounter(prometheus.CounterOpts{
				Name: "bftsim_liveness_failures_total",
				Help: "Total number of runs that exhausted their step budget",
			}),
		},
		SessionMetrics: SessionMetrics{
			PeerIn: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "bftsim_peer_in_total",
				Help: "Messages handled by a node",
			}, []string{"node"}),
			PeerOut: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "bftsim_peer_out_total",
				Help: "Messages emitted by a node",
			}, []string{"node"}),
			BatchOut: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "bftsim_batch_out_total",
				Help: "Batches finalized by a node",
			}, []string{"node"}),
		},
		EngineMetrics: EngineMetrics{
			Epoch: factory.NewGauge(prometheus.GaugeOpts{
				Name: "bftsim_epoch",
				Help: "Highest finalized epoch",
			}),
			BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "bftsim_batch_size",
				Help:    "Number of contributions in a finalized batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}),
			EngineFailures: factory.NewCounter(prometheus.CounterOpts{
				Name: "bftsim_engine_failures_total",
				Help: "Total number of isolated engine errors",
			}),
		},
		ProcessMetrics: ProcessMetrics{
			CPUPercent: factory.NewGauge(prometheus.GaugeOpts{
				Name: "bftsim_process_cpu_percent",
				Help: "CPU usage of the simulator process",
			}),
			MemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
				Name: "bftsim_process_resident_memory_bytes",
				Help: "Resident memory of the simulator process",
			}),
			proc: proc,
		},
	}
}

// Start() starts the telemetry server
func (m *Metrics) Start() {
	// exit if empty
	if m == nil {
		return
	}
	// if the metrics server is enabled
	if m.config.Enabled {
		go func() {
			defer CatchPanic(m.log)
			m.log.Infof("Starting metrics server on %s", m.config.PrometheusAddress)
			// run the server
			if err := m.server.ListenAndServe(); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					m.log.Errorf("Metrics server failed with err: %s", err.Error())
				}
			}
		}()
	}
}

// Stop() gracefully stops the telemetry server
func (m *Metrics) Stop() {
	// exit if empty
	if m == nil {
		return
	}
	// if the metrics server is enabled
	if m.config.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// shutdown the server
		if err := m.server.Shutdown(ctx); err != nil {
			m.log.Error(err.Error())
		}
	}
}

// Registry() exposes the underlying registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// UpdateStep() records one drive step
func (m *Metrics) UpdateStep(handled bool, routed int) {
	// exit if empty
	if m == nil {
		return
	}
	m.Steps.Inc()
	if !handled {
		m.EmptySteps.Inc()
	}
	m.RoutedMessages.Add(float64(routed))
}

// UpdateMembership() sets the number of live and excluded nodes
func (m *Metrics) UpdateMembership(live, excluded int) {
	// exit if empty
	if m == nil {
		return
	}
	m.LiveNodes.Set(float64(live))
	m.ExcludedNodes.Set(float64(excluded))
}

// UpdateEngineFailure() records an isolated engine error
func (m *Metrics) UpdateEngineFailure() {
	// exit if empty
	if m == nil {
		return
	}
	m.EngineFailures.Inc()
}

// UpdateSession() adds the queue deltas of a single node
func (m *Metrics) UpdateSession(node string, in, out, batches int) {
	// exit if empty
	if m == nil {
		return
	}
	m.PeerIn.WithLabelValues(node).Add(float64(in))
	m.PeerOut.WithLabelValues(node).Add(float64(out))
	m.BatchOut.WithLabelValues(node).Add(float64(batches))
}

// UpdateBatch() records a finalized batch
func (m *Metrics) UpdateBatch(epoch uint64, size int) {
	// exit if empty
	if m == nil {
		return
	}
	m.Epoch.Set(float64(epoch))
	m.BatchSize.Observe(float64(size))
}

// UpdateRun() records the outcome of a run
func (m *Metrics) UpdateRun(duration time.Duration, livenessFailure bool) {
	// exit if empty
	if m == nil {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
	if livenessFailure {
		m.LivenessFailure.Inc()
	}
}

// UpdateProcess() samples the cpu and memory usage of this process
func (m *Metrics) UpdateProcess() {
	// exit if empty
	if m == nil || m.proc == nil {
		return
	}
	if cpu, err := m.proc.CPUPercent(); err == nil {
		m.CPUPercent.Set(cpu)
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		m.MemoryBytes.Set(float64(mem.RSS))
	}
}
