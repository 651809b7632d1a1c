package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recipe_assistant"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of model requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Model request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"operation"},
	)

	pipelineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_errors_total",
			Help:      "Pipeline failures by input kind and error code",
		},
		[]string{"kind", "code"},
	)

	schedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Daily recipe refresh ticks by outcome",
		},
		[]string{"outcome"},
	)
	dailyRecipeUpdated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_recipe_updated_timestamp_seconds",
			Help:      "Unix time of the last successful daily recipe replace",
		},
	)

	cacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "image_queue_depth",
			Help:      "Image normalization jobs waiting for a worker",
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAIRequest 記錄一次模型呼叫
func RecordAIRequest(operation string, duration time.Duration, err error) {
	aiRequestsTotal.WithLabelValues(operation, outcome(err)).Inc()
	aiRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPipelineError 記錄管線失敗
func RecordPipelineError(kind, code string) {
	pipelineErrorsTotal.WithLabelValues(kind, code).Inc()
}

// RecordSchedulerTick 記錄排程執行結果
func RecordSchedulerTick(err error) {
	schedulerTicksTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordDailyRecipeUpdated 記錄每日食譜更新時間
func RecordDailyRecipeUpdated(t time.Time) {
	dailyRecipeUpdated.Set(float64(t.Unix()))
}

// RecordCache 記錄快取命中與否
func RecordCache(hit bool) {
	if hit {
		cacheOperations.WithLabelValues("hit").Inc()
		return
	}
	cacheOperations.WithLabelValues("miss").Inc()
}

// SetQueueDepth 更新等待中的圖片工作數
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Middleware HTTP 指標中間件
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 輸出 Prometheus 指標
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
