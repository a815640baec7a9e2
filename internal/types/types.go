package types

// CandidateProfile LLM结构化提取出的候选人画像
// 所有字段都允许为空, 提取失败时 Err 携带错误说明, 但已恢复的字段仍然可用
type CandidateProfile struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	SkillsSummary     string `json:"skills_summary"`
	ExperienceSummary string `json:"experience_summary"`
	EducationSummary  string `json:"education_summary"`

	// Err 非空表示提取过程出现了错误 (模型不可达或输出无法解析)
	// 调用方必须检查它, 但仍可使用已恢复的字段 (尤其是 Email)
	Err string `json:"-"`

	// RawResponse 模型原始输出, 入库留档用
	RawResponse string `json:"-"`
}

// HasEmail 判断画像是否带有可用的邮箱标识
func (p *CandidateProfile) HasEmail() bool {
	return p != nil && p.Email != ""
}

// BatchResult 一次简历批处理的汇总结果
type BatchResult struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Warnings  []string `json:"warnings,omitempty"`
}

// NotifyResult 一次通知批次的汇总结果
type NotifyResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// PendingNotification 等待发送面试邀请的匹配记录视图
// 由 matches 联表 candidates/job_descriptions 查询得到
type PendingNotification struct {
	MatchID        string `json:"match_id"`
	JobID          string `json:"job_id"`
	JobTitle       string `json:"job_title"`
	CandidateID    string `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	Score          int    `json:"score"`
}

// MatchView 岗位匹配列表的操作端视图
type MatchView struct {
	MatchID        string `json:"match_id"`
	CandidateID    string `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	Score          int    `json:"score"`
	IsShortlisted  bool   `json:"is_shortlisted"`
	EmailSent      bool   `json:"email_sent"`
}

// PipelineEvent 发布到消息队列的流水线事件
type PipelineEvent struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	JobID       string `json:"job_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	MatchID     string `json:"match_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Score       int    `json:"score,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
