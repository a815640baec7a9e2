package handler

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/processor"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

type fakeMatchService struct {
	jobErr     error
	batchDirs  []string
	batchErr   error
	notifyErr  error
	notifyDone int
}

func (f *fakeMatchService) ProcessJobDescription(ctx context.Context, title, jdText string) (*models.JobDescription, error) {
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	return &models.JobDescription{JobID: "job-1", Title: title, Summary: "摘要: " + title}, nil
}

func (f *fakeMatchService) ProcessResumeBatch(ctx context.Context, jobID, resumeDir string) (*types.BatchResult, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.batchDirs = append(f.batchDirs, resumeDir)
	entries, err := os.ReadDir(resumeDir)
	if err != nil {
		return nil, err
	}
	return &types.BatchResult{Processed: len(entries)}, nil
}

func (f *fakeMatchService) NotifyShortlisted(ctx context.Context, jobID string) (*types.NotifyResult, error) {
	if f.notifyErr != nil {
		return nil, f.notifyErr
	}
	f.notifyDone++
	return &types.NotifyResult{Sent: 2}, nil
}

type fakeJobReader struct {
	jobs       map[string]*models.JobDescription
	matches    []types.MatchView
	candidates map[string]*models.Candidate
}

func (f *fakeJobReader) GetJob(ctx context.Context, jobID string) (*models.JobDescription, error) {
	if job, ok := f.jobs[jobID]; ok {
		return job, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobReader) ListJobs(ctx context.Context) ([]models.JobDescription, error) {
	var out []models.JobDescription
	for _, j := range f.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (f *fakeJobReader) ListMatchesByJob(ctx context.Context, jobID string) ([]types.MatchView, error) {
	return f.matches, nil
}

func (f *fakeJobReader) CountShortlisted(ctx context.Context, jobID string) (int64, error) {
	var n int64
	for _, m := range f.matches {
		if m.IsShortlisted {
			n++
		}
	}
	return n, nil
}

func (f *fakeJobReader) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	if c, ok := f.candidates[email]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestHandler(service *fakeMatchService, reader *fakeJobReader) *JobHandler {
	cfg := &config.Config{}
	cfg.Match.ResumeDir = "/data/resumes"
	return NewJobHandler(cfg, service, reader)
}

func TestHandleCreateJob(t *testing.T) {
	h := newTestHandler(&fakeMatchService{}, &fakeJobReader{})

	resp, err := h.HandleCreateJob(context.Background(), &CreateJobRequest{Title: "  Go工程师  ", Description: "原文"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "Go工程师", resp.Title, "标题应去掉首尾空白")
}

func TestHandleCreateJobSummarizeFailure(t *testing.T) {
	service := &fakeMatchService{jobErr: processor.NewSummarizeError("job", "connection refused")}
	h := newTestHandler(service, &fakeJobReader{})

	_, err := h.HandleCreateJob(context.Background(), &CreateJobRequest{Title: "Go工程师", Description: "原文"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, processor.ErrLLMUnavailable))
}

func TestHandleGetJobNotFound(t *testing.T) {
	h := newTestHandler(&fakeMatchService{}, &fakeJobReader{jobs: map[string]*models.JobDescription{}})

	_, err := h.HandleGetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, processor.ErrJobNotFound))
}

func TestHandleListMatches(t *testing.T) {
	reader := &fakeJobReader{
		jobs: map[string]*models.JobDescription{"job-1": {JobID: "job-1", Title: "Go工程师"}},
		matches: []types.MatchView{
			{MatchID: "m1", CandidateEmail: "a@example.com", Score: 90, IsShortlisted: true},
			{MatchID: "m2", CandidateEmail: "b@example.com", Score: 60, IsShortlisted: false},
		},
	}
	h := newTestHandler(&fakeMatchService{}, reader)

	resp, err := h.HandleListMatches(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, 90, resp.Matches[0].Score)
	assert.Equal(t, int64(1), resp.Shortlisted)

	_, err = h.HandleListMatches(context.Background(), "missing")
	assert.True(t, errors.Is(err, processor.ErrJobNotFound))
}

func TestHandleGetCandidate(t *testing.T) {
	reader := &fakeJobReader{
		candidates: map[string]*models.Candidate{
			"alice@example.com": {CandidateID: "cand-1", Name: "Alice", Email: "alice@example.com", Skills: "Go, MySQL"},
		},
	}
	h := newTestHandler(&fakeMatchService{}, reader)

	resp, err := h.HandleGetCandidate(context.Background(), " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "cand-1", resp.CandidateID)
	assert.Equal(t, "Go, MySQL", resp.Skills)

	_, err = h.HandleGetCandidate(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, processor.ErrCandidateNotFound))

	_, err = h.HandleGetCandidate(context.Background(), "  ")
	require.Error(t, err)
}

func TestHandleResumeUpload(t *testing.T) {
	service := &fakeMatchService{}
	h := newTestHandler(service, &fakeJobReader{})

	files := []UploadedResume{
		{Filename: "alice.txt", Data: []byte("Alice|alice@example.com")},
		{Filename: "../evil/bob.pdf", Data: []byte("%PDF-1.4")},
	}
	result, err := h.HandleResumeUpload(context.Background(), "job-1", files)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed, "路径部分被剥掉后两个文件都应落盘")

	// 临时目录在批处理后被清理
	require.Len(t, service.batchDirs, 1)
	_, statErr := os.Stat(service.batchDirs[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestHandleResumeUploadEmpty(t *testing.T) {
	h := newTestHandler(&fakeMatchService{}, &fakeJobReader{})
	_, err := h.HandleResumeUpload(context.Background(), "job-1", nil)
	require.Error(t, err)
}

func TestHandleProcessDirectoryDefaultsToConfig(t *testing.T) {
	service := &fakeMatchService{batchErr: errors.New("目录不存在")}
	h := newTestHandler(service, &fakeJobReader{})

	_, err := h.HandleProcessDirectory(context.Background(), "job-1", "  ")
	require.Error(t, err, "目录透传给流水线, 错误原样上抛")

	h.cfg.Match.ResumeDir = ""
	_, err = h.HandleProcessDirectory(context.Background(), "job-1", "")
	require.Error(t, err, "既没有请求目录也没有配置目录时直接拒绝")
}

func TestHandleNotifyMapsRefusal(t *testing.T) {
	service := &fakeMatchService{notifyErr: processor.ErrMailDisabled}
	h := newTestHandler(service, &fakeJobReader{})

	_, err := h.HandleNotify(context.Background(), "job-1")
	assert.True(t, errors.Is(err, processor.ErrMailDisabled))
}
