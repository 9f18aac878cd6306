package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 入站投递指标
	EmailsIngested   prometheus.Counter
	EmailsRejected   *prometheus.CounterVec // 按拒绝原因
	EmailBytes       prometheus.Histogram
	IngestDuration   prometheus.Histogram
	AttachmentsSaved prometheus.Counter

	// 对象存储指标
	BlobUploads *prometheus.CounterVec // 按结果: ok / error

	// 推送指标
	PushDeliveries *prometheus.CounterVec // 按结果: ok / gone / error / skipped

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标并注册到给定 registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		EmailsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "webmail_emails_ingested_total",
			Help: "Total number of inbound emails accepted",
		}),
		EmailsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmail_emails_rejected_total",
				Help: "Total number of inbound emails rejected",
			},
			[]string{"reason"},
		),
		EmailBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webmail_email_size_bytes",
			Help:    "Size distribution of accepted inbound emails",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webmail_ingest_duration_seconds",
			Help:    "Time spent in the ingestion pipeline up to commit",
			Buckets: prometheus.DefBuckets,
		}),
		AttachmentsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "webmail_attachments_saved_total",
			Help: "Total number of attachment metadata rows written",
		}),
		BlobUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmail_blob_uploads_total",
				Help: "Blob upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		PushDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmail_push_deliveries_total",
				Help: "Push delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "webmail_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRejection 记录一次入站拒绝
func (m *Metrics) RecordRejection(reason string) {
	m.EmailsRejected.WithLabelValues(reason).Inc()
}

// RecordBlobUpload 记录一次对象上传结果
func (m *Metrics) RecordBlobUpload(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.BlobUploads.WithLabelValues(outcome).Inc()
}

// RecordPushDelivery 记录一次推送投递结果
func (m *Metrics) RecordPushDelivery(outcome string) {
	m.PushDeliveries.WithLabelValues(outcome).Inc()
}
