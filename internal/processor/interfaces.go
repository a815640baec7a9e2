package processor

import (
	"context"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// TextExtractor 简历文件文本提取接口
type TextExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, error)
}

// ProfileExtractor 简历画像提取接口
// 模型层面的失败通过 profile.Err 传递, error只代表不可恢复的输入问题
type ProfileExtractor interface {
	Extract(ctx context.Context, cvText string) (*types.CandidateProfile, error)
}

// Summarizer 岗位描述摘要接口
type Summarizer interface {
	Summarize(ctx context.Context, jdText string) (string, error)
}

// Scorer 人岗匹配打分接口
// 返回 [0,100] 或哨兵值 ScoreIndeterminate(-1)
type Scorer interface {
	Score(ctx context.Context, jobSummary string, profile *types.CandidateProfile) (int, error)
}

// Notifier 面试邀请通知接口
type Notifier interface {
	// Enabled 凭据不可用(为空或占位值)时返回false, 通知批次必须整体拒绝
	Enabled() bool
	SendInterviewInvite(ctx context.Context, n types.PendingNotification) error
}

// MatchStore 流水线的持久层接口
type MatchStore interface {
	CreateJob(ctx context.Context, job *models.JobDescription) error
	GetJob(ctx context.Context, jobID string) (*models.JobDescription, error)
	UpsertCandidateByEmail(ctx context.Context, candidate *models.Candidate) (*models.Candidate, error)
	UpdateCandidateCVObjectKey(ctx context.Context, candidateID string, objectKey string) error
	UpsertMatch(ctx context.Context, match *models.Match) error
	ListPendingNotifications(ctx context.Context, jobID string) ([]types.PendingNotification, error)
	MarkEmailSent(ctx context.Context, matchID string) (bool, error)
}

// ExtractionCache 按简历文本MD5缓存LLM提取结果
type ExtractionCache interface {
	GetCachedExtraction(ctx context.Context, textMD5 string) (string, error)
	CacheExtraction(ctx context.Context, textMD5 string, profileJSON string) error
}

// NotifyLocker 岗位级通知互斥锁
type NotifyLocker interface {
	AcquireNotifyLock(ctx context.Context, jobID string) (string, error)
	ReleaseNotifyLock(ctx context.Context, jobID string, lockValue string) (bool, error)
}

// EventPublisher 流水线事件发布接口
type EventPublisher interface {
	PublishPipelineEvent(ctx context.Context, routingKey string, event *types.PipelineEvent) error
}

// CVArchiver 简历文件归档接口
type CVArchiver interface {
	ArchiveCV(ctx context.Context, candidateID, fileExt string, data []byte) (string, error)
	ArchiveParsedText(ctx context.Context, candidateID string, text string) (string, error)
}
