package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrTextExtraction      = errors.New("提取简历文本失败")
	ErrMissingEmail        = errors.New("简历中找不到邮箱标识")
	ErrScoreIndeterminate  = errors.New("匹配打分不可判定")
	ErrLLMUnavailable      = errors.New("LLM服务不可用")
	ErrJobNotFound         = errors.New("岗位不存在")
	ErrCandidateNotFound   = errors.New("候选人不存在")
	ErrMailDisabled        = errors.New("邮件凭据未配置, 拒绝发送通知")
	ErrDelivery            = errors.New("发送面试邀请失败")
	ErrDatabaseFailed      = errors.New("数据库操作失败")
	ErrNotifyBatchInFlight = errors.New("该岗位已有通知批次在执行")
)

// PipelineError 包含详细错误信息的自定义错误
type PipelineError struct {
	JobID    string
	Filename string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *PipelineError) Error() string {
	subject := e.Filename
	if subject == "" {
		subject = e.JobID
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 对象:%s): %s", e.BaseErr, e.Op, subject, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 对象:%s)", e.BaseErr, e.Op, subject)
}

func (e *PipelineError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewTextExtractionError(filename, detail string) error {
	return &PipelineError{
		Filename: filename,
		Op:       "extract_text",
		BaseErr:  ErrTextExtraction,
		Detail:   detail,
	}
}

func NewMissingEmailError(filename string) error {
	return &PipelineError{
		Filename: filename,
		Op:       "extract_profile",
		BaseErr:  ErrMissingEmail,
	}
}

func NewScoreError(filename, detail string) error {
	return &PipelineError{
		Filename: filename,
		Op:       "score",
		BaseErr:  ErrScoreIndeterminate,
		Detail:   detail,
	}
}

func NewSummarizeError(jobID, detail string) error {
	return &PipelineError{
		JobID:   jobID,
		Op:      "summarize",
		BaseErr: ErrLLMUnavailable,
		Detail:  detail,
	}
}

func NewDatabaseError(op, detail string) error {
	return &PipelineError{
		Op:      op,
		BaseErr: ErrDatabaseFailed,
		Detail:  detail,
	}
}

func NewDeliveryError(jobID, detail string) error {
	return &PipelineError{
		JobID:   jobID,
		Op:      "notify",
		BaseErr: ErrDelivery,
		Detail:  detail,
	}
}
