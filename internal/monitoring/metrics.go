package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 令牌指标
	TokensCreated prometheus.Counter
	TokensDeleted prometheus.Counter
	TokensActive  prometheus.Gauge
	TokensExpired prometheus.Counter

	// 投递指标
	DepositsReceived prometheus.Counter
	DepositsViewed   prometheus.Counter
	DepositsDeleted  prometheus.Counter
	DepositsRejected *prometheus.CounterVec
	DepositsTotal    prometheus.Gauge

	// 属主指标
	OwnersTotal  prometheus.Gauge
	OwnersOnline prometheus.Gauge

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	RedisConnections    prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitHits   *prometheus.CounterVec
	RateLimitBlocks *prometheus.CounterVec

	// 业务指标
	DepositFileSize *prometheus.HistogramVec
	SweepDuration   prometheus.Histogram
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anondrop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anondrop_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anondrop_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anondrop_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 令牌指标
		TokensCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_tokens_created_total",
				Help: "Total number of drop tokens created",
			},
		),

		TokensDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_tokens_deleted_total",
				Help: "Total number of drop tokens deleted",
			},
		),

		TokensActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_tokens_active",
				Help: "Number of active drop tokens",
			},
		),

		TokensExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_tokens_expired_total",
				Help: "Total number of drop tokens swept as expired",
			},
		),

		// 投递指标
		DepositsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_deposits_received_total",
				Help: "Total number of deposits received",
			},
		),

		DepositsViewed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_deposits_viewed_total",
				Help: "Total number of deposits viewed by owners",
			},
		),

		DepositsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_deposits_deleted_total",
				Help: "Total number of deposits deleted",
			},
		),

		DepositsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anondrop_deposits_rejected_total",
				Help: "Total number of deposits rejected",
			},
			[]string{"reason"},
		),

		DepositsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_deposits_total",
				Help: "Total number of deposits stored",
			},
		),

		// 属主指标
		OwnersTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_owners_total",
				Help: "Total number of owners",
			},
		),

		OwnersOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_owners_online",
				Help: "Number of owners with a live session",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_database_connections",
				Help: "Number of database connections",
			},
		),

		RedisConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "anondrop_redis_connections",
				Help: "Number of Redis connections",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anondrop_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "anondrop_panics_total",
				Help: "Total number of panics",
			},
		),

		// 限流指标
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anondrop_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"type", "key"},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anondrop_rate_limit_blocks_total",
				Help: "Total number of rate limit blocks",
			},
			[]string{"type", "key"},
		),

		// 业务指标
		DepositFileSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anondrop_deposit_file_size_bytes",
				Help:    "Deposited file size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 20),
			},
			[]string{"category"},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "anondrop_sweep_duration_seconds",
				Help:    "Expired token sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordTokenCreated 记录令牌创建
func (m *Metrics) RecordTokenCreated() {
	m.TokensCreated.Inc()
}

// RecordTokenDeleted 记录令牌删除
func (m *Metrics) RecordTokenDeleted() {
	m.TokensDeleted.Inc()
}

// RecordTokensExpired 记录清扫掉的过期令牌数
func (m *Metrics) RecordTokensExpired(count int) {
	m.TokensExpired.Add(float64(count))
}

// RecordDepositReceived 记录投递入库
func (m *Metrics) RecordDepositReceived() {
	m.DepositsReceived.Inc()
}

// RecordDepositViewed 记录投递被查看
func (m *Metrics) RecordDepositViewed() {
	m.DepositsViewed.Inc()
}

// RecordDepositDeleted 记录投递删除
func (m *Metrics) RecordDepositDeleted() {
	m.DepositsDeleted.Inc()
}

// RecordDepositRejected 记录投递被拒绝
func (m *Metrics) RecordDepositRejected(reason string) {
	m.DepositsRejected.WithLabelValues(reason).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitHit 记录限流命中
func (m *Metrics) RecordRateLimitHit(limitType, key string) {
	m.RateLimitHits.WithLabelValues(limitType, key).Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType, key string) {
	m.RateLimitBlocks.WithLabelValues(limitType, key).Inc()
}

// RecordDepositFileSize 记录投递文件大小
func (m *Metrics) RecordDepositFileSize(category string, size int64) {
	m.DepositFileSize.WithLabelValues(category).Observe(float64(size))
}

// RecordSweepDuration 记录过期清扫耗时
func (m *Metrics) RecordSweepDuration(duration time.Duration) {
	m.SweepDuration.Observe(duration.Seconds())
}

// UpdateTokensActive 更新活跃令牌数
func (m *Metrics) UpdateTokensActive(count int) {
	m.TokensActive.Set(float64(count))
}

// UpdateDepositsTotal 更新总投递数
func (m *Metrics) UpdateDepositsTotal(count int) {
	m.DepositsTotal.Set(float64(count))
}

// UpdateOwnersTotal 更新属主总数
func (m *Metrics) UpdateOwnersTotal(count int) {
	m.OwnersTotal.Set(float64(count))
}

// UpdateOwnersOnline 更新在线属主数
func (m *Metrics) UpdateOwnersOnline(count int) {
	m.OwnersOnline.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateRedisConnections 更新 Redis 连接数
func (m *Metrics) UpdateRedisConnections(count int) {
	m.RedisConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
