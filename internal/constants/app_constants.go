package constants

import "time"

const (
	// DefaultMatchThreshold 入围分数线默认值, score >= 阈值即入围
	DefaultMatchThreshold = 75

	// ScoreIndeterminate 表示评分基础设施失败 (模型不可达/输入缺失),
	// 与"解析不出数字记0分"是两条语义完全不同的路径, 不能合并
	ScoreIndeterminate = -1

	// LLM提取缓存的过期时间
	ExtractionCacheDuration = 24 * time.Hour

	// 通知批次的分布式锁过期时间
	NotifyLockDuration = 5 * time.Minute
)

// 流水线事件类型
const (
	EventJDCreated        = "jd.created"
	EventResumeProcessed  = "resume.processed"
	EventMatchShortlisted = "match.shortlisted"
	EventNotifyCompleted  = "notify.completed"
)
