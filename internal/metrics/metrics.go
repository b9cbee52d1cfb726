package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 公文创建数
	documentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_created_total",
			Help: "Total number of documents created",
		},
	)

	// 签署结果数
	signaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatures_total",
			Help: "Total number of signature attempts by outcome",
		},
		[]string{"outcome"}, // success, not_eligible, already_signed, etc.
	)

	// 批量签署规模
	signBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sign_batch_size",
			Help:    "Number of documents per sign batch request",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// 封存耗时
	sealDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seal_duration_seconds",
			Help:    "Seal pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"}, // success, failure
	)

	// 状态流转数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_transitions_total",
			Help: "Total number of document status transitions",
		},
		[]string{"from", "to"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 公文状态分布
	documentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "documents_by_status",
			Help: "Number of documents by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(documentsCreatedTotal)
	prometheus.MustRegister(signaturesTotal)
	prometheus.MustRegister(signBatchSize)
	prometheus.MustRegister(sealDuration)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(documentsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordDocumentCreated 记录公文创建
func RecordDocumentCreated() {
	documentsCreatedTotal.Inc()
}

// RecordSignature 记录单个文件的签署结果
func RecordSignature(outcome string) {
	signaturesTotal.WithLabelValues(outcome).Inc()
}

// RecordSignBatch 记录批量签署规模
func RecordSignBatch(size int) {
	signBatchSize.Observe(float64(size))
}

// RecordSeal 记录封存耗时与结果
func RecordSeal(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	sealDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordTransition 记录状态流转
func RecordTransition(from, to int) {
	transitionsTotal.WithLabelValues(strconv.Itoa(from), strconv.Itoa(to)).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateDocumentsByStatus 更新公文状态分布指标
func UpdateDocumentsByStatus(status int, count float64) {
	documentsByStatus.WithLabelValues(strconv.Itoa(status)).Set(count)
}
