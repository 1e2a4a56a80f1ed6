package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	iface "VisionTracker/interface"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics exposes pipeline and process metrics on a prometheus registry.
type Metrics struct {
	log *zap.Logger

	fps            prometheus.Gauge
	inferenceTime  prometheus.Gauge
	framesTotal    prometheus.Counter
	detectionTotal *prometheus.CounterVec
	switchTotal    prometheus.Counter
	memUsage       prometheus.Gauge
	cpuUsage       prometheus.Gauge

	registry *prometheus.Registry
	srv      *http.Server
	proc     *process.Process
}

func NewMetrics(log *zap.Logger) *Metrics {
	m := &Metrics{
		log:      log.Named("monitor"),
		registry: prometheus.NewRegistry(),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_fps",
			Help: "Current frames per second of the processing loop",
		}),
		inferenceTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_inference_seconds",
			Help: "Average inference time of the current backend in seconds",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_frames_total",
			Help: "Total frames that completed a full loop iteration",
		}),
		detectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_detections_total",
			Help: "Total detections by class name",
		}, []string{"class"}),
		switchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_backend_switches_total",
			Help: "Total successful backend switches",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_megabytes",
			Help: "Process memory usage in megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "Process CPU usage in percent",
		}),
	}
	m.registry.MustRegister(m.fps, m.inferenceTime, m.framesTotal,
		m.detectionTotal, m.switchTotal, m.memUsage, m.cpuUsage)
	return m
}

// ObserveFrame records one completed loop iteration.
func (m *Metrics) ObserveFrame(fps, inferenceSec float64, detections []iface.Detection) {
	m.fps.Set(fps)
	m.inferenceTime.Set(inferenceSec)
	m.framesTotal.Inc()
	for _, det := range detections {
		m.detectionTotal.WithLabelValues(det.ClassName).Inc()
	}
}

// ObserveSwitch records one successful backend switch.
func (m *Metrics) ObserveSwitch() {
	m.switchTotal.Inc()
}

// Start serves /metrics on the given port and samples process mem/cpu every
// 500 ms until the context is cancelled.
func (m *Metrics) Start(ctx context.Context, port int) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.log.Warn("process stats unavailable", zap.Error(err))
	} else {
		m.proc = proc
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	m.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := m.srv.Shutdown(shutdownCtx); err != nil {
					m.log.Warn("metrics server shutdown error", zap.Error(err))
				}
				return
			case <-ticker.C:
				m.sampleProcess()
			}
		}
	}()
	m.log.Info("metrics server started", zap.Int("port", port))
}

func (m *Metrics) sampleProcess() {
	if m.proc == nil {
		return
	}
	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS) / 1024 / 1024)
	}
	if cpuPercent, err := m.proc.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}
