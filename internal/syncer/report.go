package syncer

import (
	"time"

	"github.com/hwuu/ftpsync/internal/metrics"
)

// Status 单个文件的处理结果
type Status string

const (
	StatusSuccess Status = metrics.StatusSuccess
	StatusFailed  Status = metrics.StatusFailed
	StatusSkipped Status = metrics.StatusSkipped
)

// TransferOutcome 单个文件的同步结果
type TransferOutcome struct {
	LocalPath  string
	RemotePath string
	Status     Status
	Err        error
	Bytes      int64
}

// Reason 返回失败原因，成功或跳过时为空
func (o TransferOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report 一次全量同步的汇总，Total == Succeeded + Failed
type Report struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []TransferOutcome
	Duration  time.Duration
}

func (r *Report) add(o TransferOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	}
}

// Failures 返回失败的文件结果
func (r *Report) Failures() []TransferOutcome {
	var failed []TransferOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}
