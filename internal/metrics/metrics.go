// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 回答拒否の理由ラベル
const (
	RejectReasonInvalid         = "invalid"
	RejectReasonNotFound        = "not_found"
	RejectReasonNotRecipient    = "not_recipient"
	RejectReasonAlreadyAnswered = "already_answered"
	RejectReasonCorrupted       = "corrupted"
	RejectReasonError           = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordQuestionCreated()
	RecordAnswerSubmitted(correct bool)
	RecordAnswerRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	questionsCreated prometheus.Counter
	answersSubmitted *prometheus.CounterVec
	answersRejected  *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestDuration  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		questionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairquiz_questions_created_total",
			Help: "作成された質問の合計数",
		}),
		answersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairquiz_answers_submitted_total",
			Help: "記録された回答の合計数（正誤別）",
		}, []string{"result"}),
		answersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairquiz_answer_rejected_total",
			Help: "拒否された回答の合計数（理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairquiz_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairquiz_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.questionsCreated,
		c.answersSubmitted,
		c.answersRejected,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordQuestionCreated は質問の作成を記録する。
func (c *Collector) RecordQuestionCreated() {
	c.questionsCreated.Inc()
}

// RecordAnswerSubmitted は記録された回答を正誤別に記録する。
func (c *Collector) RecordAnswerSubmitted(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	c.answersSubmitted.WithLabelValues(result).Inc()
}

// RecordAnswerRejected は拒否された回答を理由別に記録する。
func (c *Collector) RecordAnswerRejected(reason string) {
	c.answersRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
