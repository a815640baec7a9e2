package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/constants"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
	"github.com/Muco0l/RecruitFlow-AI-ATS/pkg/utils"
)

// Components 业务组件集合
type Components struct {
	// 核心组件接口
	TextExtractor    TextExtractor    // 简历文件文本提取
	ProfileExtractor ProfileExtractor // 画像提取
	Summarizer       Summarizer       // 岗位摘要
	Scorer           Scorer           // 匹配打分
	Notifier         Notifier         // 面试邀请通知

	// 持久层依赖
	Store MatchStore

	// 可选依赖, 为nil时对应能力降级
	Cache   ExtractionCache // 提取缓存
	Locker  NotifyLocker    // 通知批次互斥锁
	Events  EventPublisher  // 流水线事件
	Archive CVArchiver      // 简历归档
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Threshold int         // 入围分数线, 分数>=该值时标记shortlisted
	Debug     bool        // 是否开启调试模式
	Logger    *log.Logger // 日志记录器
}

// MatchPipeline 招聘匹配流水线
// 串起 岗位摘要 → 简历提取 → 候选人Upsert → 打分 → 匹配Upsert → 通知 全流程
type MatchPipeline struct {
	TextExtractor    TextExtractor
	ProfileExtractor ProfileExtractor
	Summarizer       Summarizer
	Scorer           Scorer
	Notifier         Notifier

	Store   MatchStore
	Cache   ExtractionCache
	Locker  NotifyLocker
	Events  EventPublisher
	Archive CVArchiver

	Config Settings
}

// NewMatchPipeline 组装流水线
func NewMatchPipeline(comp *Components, set *Settings, opts ...SettingOpt) (*MatchPipeline, error) {
	for _, opt := range opts {
		opt(set)
	}

	if set.Logger == nil {
		set.Logger = log.New(os.Stdout, "[Pipeline] ", log.LstdFlags)
	}
	if set.Threshold <= 0 {
		set.Threshold = constants.DefaultMatchThreshold
	}

	if comp.Store == nil {
		return nil, fmt.Errorf("流水线缺少持久层依赖")
	}

	return &MatchPipeline{
		TextExtractor:    comp.TextExtractor,
		ProfileExtractor: comp.ProfileExtractor,
		Summarizer:       comp.Summarizer,
		Scorer:           comp.Scorer,
		Notifier:         comp.Notifier,
		Store:            comp.Store,
		Cache:            comp.Cache,
		Locker:           comp.Locker,
		Events:           comp.Events,
		Archive:          comp.Archive,
		Config:           *set,
	}, nil
}

// ProcessJobDescription 摘要并持久化一条岗位描述
// 摘要生成失败时岗位不入库
func (p *MatchPipeline) ProcessJobDescription(ctx context.Context, title, jdText string) (*models.JobDescription, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("岗位标题不能为空")
	}
	if strings.TrimSpace(jdText) == "" {
		return nil, fmt.Errorf("岗位描述原文不能为空")
	}
	if p.Summarizer == nil {
		return nil, fmt.Errorf("流水线缺少摘要组件")
	}

	summary, err := p.Summarizer.Summarize(ctx, jdText)
	if err != nil {
		return nil, NewSummarizeError("", err.Error())
	}

	job := &models.JobDescription{
		Title:        title,
		OriginalText: jdText,
		Summary:      summary,
	}
	if err := p.Store.CreateJob(ctx, job); err != nil {
		return nil, NewDatabaseError("create_job", err.Error())
	}

	p.logInfo("岗位已创建: %s (%s)", job.Title, job.JobID)
	p.publishEvent(ctx, constants.EventJDCreated, &types.PipelineEvent{
		EventType: constants.EventJDCreated,
		JobID:     job.JobID,
	})
	return job, nil
}

// ProcessResumeBatch 批量处理目录下的简历并对指定岗位打分
// 单份简历的失败只计入汇总, 不中断批次
func (p *MatchPipeline) ProcessResumeBatch(ctx context.Context, jobID, resumeDir string) (*types.BatchResult, error) {
	job, err := p.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if strings.TrimSpace(job.Summary) == "" {
		return nil, fmt.Errorf("岗位 %s 没有可用摘要, 无法打分", jobID)
	}

	entries, err := os.ReadDir(resumeDir)
	if err != nil {
		return nil, fmt.Errorf("读取简历目录失败 %s: %w", resumeDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".pdf" || ext == ".txt" {
			files = append(files, filepath.Join(resumeDir, entry.Name()))
		}
	}
	sort.Strings(files)

	result := &types.BatchResult{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := p.ProcessResume(ctx, job, file)
		switch {
		case err == nil:
			result.Processed++
		case isSkip(err):
			result.Skipped++
			result.Warnings = append(result.Warnings, err.Error())
			p.logWarn("跳过 %s: %v", filepath.Base(file), err)
		default:
			result.Failed++
			result.Warnings = append(result.Warnings, err.Error())
			p.logError(err, "处理 %s 失败", filepath.Base(file))
		}
	}

	p.logInfo("批次完成 (岗位 %s): 成功 %d, 跳过 %d, 失败 %d",
		jobID, result.Processed, result.Skipped, result.Failed)
	return result, nil
}

// isSkip 区分"简历被跳过"与"处理失败"
func isSkip(err error) bool {
	return errors.Is(err, ErrMissingEmail) || errors.Is(err, ErrScoreIndeterminate)
}

// ProcessResume 处理单份简历: 提取→画像→候选人入库→打分→匹配入库
func (p *MatchPipeline) ProcessResume(ctx context.Context, job *models.JobDescription, filePath string) error {
	filename := filepath.Base(filePath)

	// 1. 文本提取
	cvText, err := p.TextExtractor.ExtractFromFile(ctx, filePath)
	if err != nil {
		return NewTextExtractionError(filename, err.Error())
	}
	if strings.TrimSpace(cvText) == "" {
		return NewTextExtractionError(filename, "提取结果为空")
	}

	// 2. 画像提取 (带缓存)
	profile, err := p.extractProfile(ctx, cvText)
	if err != nil {
		return NewTextExtractionError(filename, err.Error())
	}
	if profile.Err != "" {
		p.logWarn("画像提取降级 (%s): %s", filename, profile.Err)
	}

	// 3. 邮箱是唯一身份标识, 没有就不入库
	if !profile.HasEmail() {
		return NewMissingEmailError(filename)
	}

	// 4. 候选人Upsert (同邮箱整体覆盖)
	candidate := &models.Candidate{
		Email:      profile.Email,
		Name:       profile.Name,
		Phone:      profile.Phone,
		CVFilename: filename,
		CVText:     cvText,
		Skills:     profile.SkillsSummary,
		Experience: profile.ExperienceSummary,
		Education:  profile.EducationSummary,
	}
	if profile.RawResponse != "" {
		if raw, err := models.MapToJSON(map[string]interface{}{"response": profile.RawResponse}); err == nil {
			candidate.RawLLMJSON = raw
		}
	}
	stored, err := p.Store.UpsertCandidateByEmail(ctx, candidate)
	if err != nil {
		return NewDatabaseError("upsert_candidate", err.Error())
	}

	// 归档尽力而为, 失败不影响流水线
	p.archiveCV(ctx, stored.CandidateID, filePath, cvText)

	// 5. 打分; 不可判定时跳过匹配入库, 候选人记录保留
	score, err := p.Scorer.Score(ctx, job.Summary, profile)
	if err != nil || score == constants.ScoreIndeterminate {
		detail := "打分返回哨兵值"
		if err != nil {
			detail = err.Error()
		}
		return NewScoreError(filename, detail)
	}

	// 6. 匹配Upsert; email_sent由存储层保证不被覆盖
	shortlisted := score >= p.Config.Threshold
	match := &models.Match{
		JobID:         job.JobID,
		CandidateID:   stored.CandidateID,
		Score:         score,
		IsShortlisted: shortlisted,
	}
	if err := p.Store.UpsertMatch(ctx, match); err != nil {
		return NewDatabaseError("upsert_match", err.Error())
	}

	p.logDebug("简历 %s -> 候选人 %s, 分数 %d, 入围 %v", filename, stored.CandidateID, score, shortlisted)

	p.publishEvent(ctx, constants.EventResumeProcessed, &types.PipelineEvent{
		EventType:   constants.EventResumeProcessed,
		JobID:       job.JobID,
		CandidateID: stored.CandidateID,
		Filename:    filename,
		Score:       score,
	})
	if shortlisted {
		p.publishEvent(ctx, constants.EventMatchShortlisted, &types.PipelineEvent{
			EventType:   constants.EventMatchShortlisted,
			JobID:       job.JobID,
			CandidateID: stored.CandidateID,
			Score:       score,
		})
	}
	return nil
}

// extractProfile 带缓存的画像提取
// 缓存只省模型调用, 不跳过入库覆盖
func (p *MatchPipeline) extractProfile(ctx context.Context, cvText string) (*types.CandidateProfile, error) {
	textMD5 := utils.CalculateMD5([]byte(cvText))

	if p.Cache != nil {
		if cached, err := p.Cache.GetCachedExtraction(ctx, textMD5); err == nil && cached != "" {
			var profile types.CandidateProfile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				p.logDebug("画像缓存命中 (md5 %s)", textMD5)
				return &profile, nil
			}
		}
	}

	profile, err := p.ProfileExtractor.Extract(ctx, cvText)
	if err != nil {
		return nil, err
	}

	// 只缓存干净的提取结果, 降级画像下次还要重试模型
	if p.Cache != nil && profile.Err == "" {
		if data, err := json.Marshal(profile); err == nil {
			if err := p.Cache.CacheExtraction(ctx, textMD5, string(data)); err != nil {
				p.logWarn("写入画像缓存失败: %v", err)
			}
		}
	}
	return profile, nil
}

// archiveCV 尽力把原始简历和解析文本归档到对象存储
func (p *MatchPipeline) archiveCV(ctx context.Context, candidateID, filePath, cvText string) {
	if p.Archive == nil {
		return
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		p.logWarn("读取简历文件用于归档失败 %s: %v", filePath, err)
		return
	}

	objectKey, err := p.Archive.ArchiveCV(ctx, candidateID, filepath.Ext(filePath), data)
	if err != nil {
		p.logWarn("归档简历失败 (%s): %v", candidateID, err)
		return
	}
	if _, err := p.Archive.ArchiveParsedText(ctx, candidateID, cvText); err != nil {
		p.logWarn("归档解析文本失败 (%s): %v", candidateID, err)
	}

	if err := p.Store.UpdateCandidateCVObjectKey(ctx, candidateID, objectKey); err != nil {
		p.logWarn("回填归档对象键失败 (%s): %v", candidateID, err)
	}
}

// publishEvent 尽力发布流水线事件, 失败只告警
func (p *MatchPipeline) publishEvent(ctx context.Context, routingKey string, event *types.PipelineEvent) {
	if p.Events == nil {
		return
	}
	if err := p.Events.PublishPipelineEvent(ctx, routingKey, event); err != nil {
		p.logWarn("发布事件 %s 失败: %v", routingKey, err)
	}
}

// ----- 日志辅助 -----

func (p *MatchPipeline) logDebug(format string, args ...interface{}) {
	if p.Config.Debug && p.Config.Logger != nil {
		p.Config.Logger.Printf(format, args...)
	}
}

func (p *MatchPipeline) logInfo(format string, args ...interface{}) {
	if p.Config.Logger != nil {
		p.Config.Logger.Printf(format, args...)
	}
}

func (p *MatchPipeline) logWarn(format string, args ...interface{}) {
	if p.Config.Logger != nil {
		p.Config.Logger.Printf("[WARN] "+format, args...)
	}
}

func (p *MatchPipeline) logError(err error, format string, args ...interface{}) {
	if p.Config.Logger != nil {
		if err != nil {
			format = fmt.Sprintf("ERROR: %v - %s", err, format)
		} else {
			format = "ERROR: " + format
		}
		p.Config.Logger.Printf(format, args...)
	}
}
