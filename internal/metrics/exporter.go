package metrics

import (
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxel"

// Exporter переводит события перестройки объёмов в Prometheus-метрики.
// Реализует world.Observer; подключается через Volume.SetObserver.
//
// Метрики:
// * voxel_chunk_rebuilds_total{kind} counter (full/border)
// * voxel_chunk_rebuild_duration_seconds{kind} histogram
// * voxel_border_propagations_total counter
// * voxel_chunks{volume} gauge
// * voxel_triangles{volume} gauge
type Exporter struct {
	rebuilds     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	propagations prometheus.Counter
	chunks       *prometheus.GaugeVec
	triangles    *prometheus.GaugeVec
}

var _ world.Observer = (*Exporter)(nil)

// NewExporter создаёт экспортер и регистрирует метрики в reg.
// Если reg == nil, используется дефолтный регистр.
func NewExporter(reg prometheus.Registerer) *Exporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := &Exporter{
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_rebuilds_total",
			Help:      "Число перестроек геометрии чанков.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_rebuild_duration_seconds",
			Help:      "Длительность перестройки геометрии одного чанка.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"kind"}),
		propagations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "border_propagations_total",
			Help:      "Число соседей, чья рамка изменилась при обновлении.",
		}),
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks",
			Help:      "Текущее количество чанков в объёме.",
		}, []string{"volume"}),
		triangles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "triangles",
			Help:      "Текущее количество треугольников поверхности объёма.",
		}, []string{"volume"}),
	}

	reg.MustRegister(e.rebuilds, e.duration, e.propagations, e.chunks, e.triangles)
	return e
}

// ChunkCreated реализует world.Observer
func (e *Exporter) ChunkCreated(volume string, _ vec.Vec2) {
	e.chunks.WithLabelValues(volume).Inc()
}

// ChunkRebuilt реализует world.Observer
func (e *Exporter) ChunkRebuilt(ev world.RebuildEvent) {
	kind := string(ev.Kind)
	e.rebuilds.WithLabelValues(kind).Inc()
	e.duration.WithLabelValues(kind).Observe(ev.Elapsed.Seconds())
	e.triangles.WithLabelValues(ev.Volume).Add(float64(ev.Triangles - ev.PrevTriangles))
}

// ChunkRemoved реализует world.Observer
func (e *Exporter) ChunkRemoved(volume string, _ vec.Vec2, triangles int) {
	e.chunks.WithLabelValues(volume).Dec()
	e.triangles.WithLabelValues(volume).Sub(float64(triangles))
}

// BordersPropagated реализует world.Observer
func (e *Exporter) BordersPropagated(_ string, count int) {
	e.propagations.Add(float64(count))
}

// ForgetVolume удаляет метки удалённого объёма
func (e *Exporter) ForgetVolume(volume string) {
	e.chunks.DeleteLabelValues(volume)
	e.triangles.DeleteLabelValues(volume)
}
