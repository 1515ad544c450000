// Package metrics 记录同步过程的 Prometheus 指标。
// 使用独立 registry，CLI 结束时可导出为 node_exporter textfile 格式。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 上传状态与目录创建结果标签
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	MkdirCreated = "created"
	MkdirExists  = "exists"
	MkdirFailed  = "failed"
)

// Recorder 持有全部同步指标。nil Recorder 的方法均为空操作。
type Recorder struct {
	registry *prometheus.Registry

	uploadsTotal  *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	mkdirTotal    *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
}

// New 创建 Recorder 并注册到新的 registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpsync_uploads_total",
				Help: "Total number of file uploads by status",
			},
			[]string{"status"},
		),
		uploadedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ftpsync_uploaded_bytes_total",
				Help: "Total bytes uploaded to the FTP server",
			},
		),
		mkdirTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpsync_mkdir_total",
				Help: "Total number of remote MKD requests by result",
			},
			[]string{"result"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpsync_sync_duration_seconds",
				Help:    "Duration of sync operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry 返回底层 registry，供测试和导出使用
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordUpload 记录一次文件处理结果，成功时累加字节数
func (r *Recorder) RecordUpload(status string, bytes int64) {
	if r == nil {
		return
	}
	r.uploadsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess && bytes > 0 {
		r.uploadedBytes.Add(float64(bytes))
	}
}

// RecordMkdir 记录一次 MKD 的分类结果
func (r *Recorder) RecordMkdir(result string) {
	if r == nil {
		return
	}
	r.mkdirTotal.WithLabelValues(result).Inc()
}

// ObserveSync 记录一次 sync 操作（one / all）耗时
func (r *Recorder) ObserveSync(operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.syncDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// WriteTextfile 把当前指标写入 textfile（原子替换）
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
