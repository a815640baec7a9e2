package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/logger"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/processor"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// MatchService 岗位匹配流水线的操作面
type MatchService interface {
	ProcessJobDescription(ctx context.Context, title, jdText string) (*models.JobDescription, error)
	ProcessResumeBatch(ctx context.Context, jobID, resumeDir string) (*types.BatchResult, error)
	NotifyShortlisted(ctx context.Context, jobID string) (*types.NotifyResult, error)
}

// JobReader 操作端查询用的只读存储视图
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*models.JobDescription, error)
	ListJobs(ctx context.Context) ([]models.JobDescription, error)
	ListMatchesByJob(ctx context.Context, jobID string) ([]types.MatchView, error)
	CountShortlisted(ctx context.Context, jobID string) (int64, error)
	GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error)
}

// JobHandler 岗位与匹配流水线的HTTP处理器
type JobHandler struct {
	cfg     *config.Config
	service MatchService
	reader  JobReader
}

// NewJobHandler 创建岗位处理器
func NewJobHandler(cfg *config.Config, service MatchService, reader JobReader) *JobHandler {
	return &JobHandler{
		cfg:     cfg,
		service: service,
		reader:  reader,
	}
}

// CreateJobRequest 创建岗位请求
type CreateJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// JobResponse 岗位视图
type JobResponse struct {
	JobID   string `json:"job_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// MatchListResponse 岗位匹配明细, 附带入围人数汇总
type MatchListResponse struct {
	Matches     []types.MatchView `json:"matches"`
	Shortlisted int64             `json:"shortlisted"`
}

// CandidateResponse 候选人视图
type CandidateResponse struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CVFilename  string `json:"cv_filename"`
	Skills      string `json:"skills"`
	Experience  string `json:"experience"`
	Education   string `json:"education"`
}

// UploadedResume 一份随请求上传的简历文件
type UploadedResume struct {
	Filename string
	Data     []byte
}

// HandleCreateJob 摘要并持久化一条岗位描述
// 摘要失败时岗位不入库, 错误原样上抛由路由层映射状态码
func (h *JobHandler) HandleCreateJob(ctx context.Context, req *CreateJobRequest) (*JobResponse, error) {
	job, err := h.service.ProcessJobDescription(ctx, strings.TrimSpace(req.Title), req.Description)
	if err != nil {
		return nil, err
	}
	return &JobResponse{JobID: job.JobID, Title: job.Title, Summary: job.Summary}, nil
}

// HandleGetJob 查询单个岗位
func (h *JobHandler) HandleGetJob(ctx context.Context, jobID string) (*JobResponse, error) {
	job, err := h.reader.GetJob(ctx, jobID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", processor.ErrJobNotFound, jobID)
		}
		return nil, err
	}
	return &JobResponse{JobID: job.JobID, Title: job.Title, Summary: job.Summary}, nil
}

// HandleListJobs 列出全部岗位
func (h *JobHandler) HandleListJobs(ctx context.Context) ([]JobResponse, error) {
	jobs, err := h.reader.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobResponse{JobID: j.JobID, Title: j.Title, Summary: j.Summary})
	}
	return out, nil
}

// HandleListMatches 岗位的匹配明细, 供操作端复核
func (h *JobHandler) HandleListMatches(ctx context.Context, jobID string) (*MatchListResponse, error) {
	if _, err := h.reader.GetJob(ctx, jobID); err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", processor.ErrJobNotFound, jobID)
		}
		return nil, err
	}
	matches, err := h.reader.ListMatchesByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	shortlisted, err := h.reader.CountShortlisted(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &MatchListResponse{Matches: matches, Shortlisted: shortlisted}, nil
}

// HandleGetCandidate 按邮箱查询候选人, 供操作端核对提取结果
func (h *JobHandler) HandleGetCandidate(ctx context.Context, email string) (*CandidateResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("email参数不能为空")
	}
	cand, err := h.reader.GetCandidateByEmail(ctx, email)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", processor.ErrCandidateNotFound, email)
		}
		return nil, err
	}
	return &CandidateResponse{
		CandidateID: cand.CandidateID,
		Name:        cand.Name,
		Email:       cand.Email,
		Phone:       cand.Phone,
		CVFilename:  cand.CVFilename,
		Skills:      cand.Skills,
		Experience:  cand.Experience,
		Education:   cand.Education,
	}, nil
}

// HandleResumeUpload 接收上传的简历文件并跑完整匹配流水线
// 文件先落到临时目录, 批处理结束后清理
func (h *JobHandler) HandleResumeUpload(ctx context.Context, jobID string, files []UploadedResume) (*types.BatchResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("请求未附带任何简历文件")
	}

	tmpDir, err := os.MkdirTemp("", "resume-upload-*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn().Err(err).Str("dir", tmpDir).Msg("清理简历临时目录失败")
		}
	}()

	for _, f := range files {
		name := filepath.Base(f.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("非法的文件名: %q", f.Filename)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, name), f.Data, 0o600); err != nil {
			return nil, fmt.Errorf("写入临时文件 %s 失败: %w", name, err)
		}
	}

	return h.service.ProcessResumeBatch(ctx, jobID, tmpDir)
}

// HandleProcessDirectory 对服务端目录里的简历跑批处理
// resumeDir为空时退回配置里的默认目录
func (h *JobHandler) HandleProcessDirectory(ctx context.Context, jobID, resumeDir string) (*types.BatchResult, error) {
	dir := strings.TrimSpace(resumeDir)
	if dir == "" {
		dir = h.cfg.Match.ResumeDir
	}
	if dir == "" {
		return nil, fmt.Errorf("未指定简历目录, 且配置中没有默认目录")
	}
	return h.service.ProcessResumeBatch(ctx, jobID, dir)
}

// HandleNotify 为岗位的入围候选人派发面试邀请
func (h *JobHandler) HandleNotify(ctx context.Context, jobID string) (*types.NotifyResult, error) {
	return h.service.NotifyShortlisted(ctx, jobID)
}
