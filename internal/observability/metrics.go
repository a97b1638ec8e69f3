// Package observability метрики Prometheus
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics набор метрик приложения
type Metrics struct {
	SourceRequests      *prometheus.CounterVec
	SourceLatency       *prometheus.HistogramVec
	ListingDiscoveries  *prometheus.CounterVec
	ExercisesGenerated  prometheus.Counter
	ExerciseRejections  *prometheus.CounterVec
	Answers             *prometheus.CounterVec
	FeedbackLatency     prometheus.Histogram
	PoolSize            prometheus.Gauge
}

// NewMetrics регистрирует метрики в default registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trendgym"
	}

	return &Metrics{
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Запросы к источнику рыночных данных",
		}, []string{"op", "status"}),
		SourceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Длительность запросов к источнику",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		ListingDiscoveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "discoveries_total",
			Help:      "Результаты поиска даты листинга",
		}, []string{"status"}),
		ExercisesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exercises",
			Name:      "generated_total",
			Help:      "Сгенерированные упражнения",
		}),
		ExerciseRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exercises",
			Name:      "rejections_total",
			Help:      "Отклоненные при выборке окна",
		}, []string{"reason"}),
		Answers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "answers_total",
			Help:      "Обработанные ответы пользователей",
		}, []string{"result"}),
		FeedbackLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "submit_duration_seconds",
			Help:      "Длительность обработки ответа",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exercises",
			Name:      "pool_size",
			Help:      "Размер обслуживаемого пула",
		}),
	}
}

// Handler возвращает обработчик /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics экземпляр по умолчанию
var DefaultMetrics = NewMetrics("")

func RecordSourceRequest(op, status string, seconds float64) {
	DefaultMetrics.SourceRequests.WithLabelValues(op, status).Inc()
	DefaultMetrics.SourceLatency.WithLabelValues(op).Observe(seconds)
}

func RecordListingDiscovery(status string) {
	DefaultMetrics.ListingDiscoveries.WithLabelValues(status).Inc()
}

func RecordExerciseGenerated() {
	DefaultMetrics.ExercisesGenerated.Inc()
}

func RecordExerciseRejection(reason string) {
	DefaultMetrics.ExerciseRejections.WithLabelValues(reason).Inc()
}

func RecordAnswer(result string, seconds float64) {
	DefaultMetrics.Answers.WithLabelValues(result).Inc()
	DefaultMetrics.FeedbackLatency.Observe(seconds)
}

func SetPoolSize(n int) {
	DefaultMetrics.PoolSize.Set(float64(n))
}
