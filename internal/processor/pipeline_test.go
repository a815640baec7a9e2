package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/constants"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// profileFromText 测试用的确定性画像提取: 文本格式 "name|email"
func profileFromText(cvText string) (*types.CandidateProfile, error) {
	parts := strings.SplitN(strings.TrimSpace(cvText), "|", 2)
	p := &types.CandidateProfile{Name: parts[0]}
	if len(parts) == 2 {
		p.Email = parts[1]
	}
	return p, nil
}

func newTestPipeline(t *testing.T, store *memStore, scorer *fakeScorer, notifier *recordingNotifier) *MatchPipeline {
	t.Helper()
	pipeline, err := NewMatchPipeline(&Components{
		TextExtractor:    &fakeTextExtractor{},
		ProfileExtractor: &fakeProfileExtractor{fn: profileFromText},
		Summarizer:       &fakeSummarizer{summary: "岗位摘要"},
		Scorer:           scorer,
		Notifier:         notifier,
		Store:            store,
	}, &Settings{Logger: quietLogger()})
	require.NoError(t, err)
	return pipeline
}

func fixedScorer(score int) *fakeScorer {
	return &fakeScorer{fn: func(*types.CandidateProfile) (int, error) {
		return score, nil
	}}
}

func writeResume(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessJobDescription(t *testing.T) {
	t.Run("摘要成功后岗位入库", func(t *testing.T) {
		store := newMemStore()
		p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})

		job, err := p.ProcessJobDescription(context.Background(), "Go后端工程师", "岗位描述原文")
		require.NoError(t, err)
		assert.NotEmpty(t, job.JobID)
		assert.Equal(t, "岗位摘要", job.Summary)

		stored, err := store.GetJob(context.Background(), job.JobID)
		require.NoError(t, err)
		assert.Equal(t, "Go后端工程师", stored.Title)
	})

	t.Run("摘要失败时岗位不入库", func(t *testing.T) {
		store := newMemStore()
		p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})
		p.Summarizer = &fakeSummarizer{err: errors.New("connection refused")}

		_, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLLMUnavailable))
		assert.Empty(t, store.jobs)
	})

	t.Run("空标题报错", func(t *testing.T) {
		p := newTestPipeline(t, newMemStore(), fixedScorer(80), &recordingNotifier{enabled: true})
		_, err := p.ProcessJobDescription(context.Background(), " ", "原文")
		assert.Error(t, err)
	})
}

func TestProcessResumeThresholdBoundary(t *testing.T) {
	// 分数>=阈值入围, 正好低1分不入围
	tests := []struct {
		name        string
		score       int
		shortlisted bool
	}{
		{"恰好等于阈值入围", constants.DefaultMatchThreshold, true},
		{"低一分不入围", constants.DefaultMatchThreshold - 1, false},
		{"满分入围", 100, true},
		{"零分不入围", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			p := newTestPipeline(t, store, fixedScorer(tt.score), &recordingNotifier{enabled: true})
			p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
				"a.txt": "张伟|zhangwei@example.com",
			}}

			job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
			require.NoError(t, err)

			require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/a.txt"))

			cand := store.candidates["zhangwei@example.com"]
			require.NotNil(t, cand)
			match := store.matchFor(job.JobID, cand.CandidateID)
			require.NotNil(t, match)
			assert.Equal(t, tt.score, match.Score)
			assert.Equal(t, tt.shortlisted, match.IsShortlisted)
		})
	}
}

func TestProcessResumeStableCandidateIdentity(t *testing.T) {
	// 同邮箱重复处理: 字段整体覆盖, candidate_id不变, 匹配不重复
	store := newMemStore()
	p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"v1.txt": "张伟|zhangwei@example.com",
		"v2.txt": "张伟(更新)|zhangwei@example.com",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)

	require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/v1.txt"))
	firstID := store.candidates["zhangwei@example.com"].CandidateID

	require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/v2.txt"))
	second := store.candidates["zhangwei@example.com"]

	assert.Equal(t, firstID, second.CandidateID, "重复处理不得更换候选人ID")
	assert.Equal(t, "张伟(更新)", second.Name, "提取字段必须整体覆盖")
	assert.Len(t, store.matches, 1, "同一(岗位,候选人)只能有一条匹配")
}

func TestProcessResumeEmailSentSurvivesRescore(t *testing.T) {
	// 已发送邀请的匹配被重新打分后, email_sent不得被清掉
	store := newMemStore()
	p := newTestPipeline(t, store, fixedScorer(90), &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"a.txt": "张伟|zhangwei@example.com",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)
	require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/a.txt"))

	cand := store.candidates["zhangwei@example.com"]
	match := store.matchFor(job.JobID, cand.CandidateID)
	marked, err := store.MarkEmailSent(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.True(t, marked)

	// 重新处理同一份简历 (分数变了)
	p.Scorer = fixedScorer(95)
	require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/a.txt"))

	rescored := store.matchFor(job.JobID, cand.CandidateID)
	assert.Equal(t, 95, rescored.Score)
	assert.True(t, rescored.EmailSent, "重新打分不得回退已发送标记")
}

func TestProcessResumeMissingEmailSkips(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"anon.txt": "无名氏",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)

	err = p.ProcessResume(context.Background(), job, "/tmp/anon.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingEmail))
	assert.Empty(t, store.candidates, "没有邮箱时不得写库")
	assert.Empty(t, store.matches)
}

func TestProcessResumeIndeterminateScoreSkipsMatch(t *testing.T) {
	// 打分不可判定: 候选人保留, 匹配不入库
	store := newMemStore()
	scorer := &fakeScorer{fn: func(*types.CandidateProfile) (int, error) {
		return constants.ScoreIndeterminate, errors.New("llm timeout")
	}}
	p := newTestPipeline(t, store, scorer, &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"a.txt": "张伟|zhangwei@example.com",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)

	err = p.ProcessResume(context.Background(), job, "/tmp/a.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScoreIndeterminate))
	assert.NotEmpty(t, store.candidates, "候选人记录应当保留")
	assert.Empty(t, store.matches, "不可判定的分数不得入库")
}

func TestProcessResumeZeroScorePersists(t *testing.T) {
	// 0分是有效的"不匹配"结论, 照常入库; 与-1哨兵值不同
	store := newMemStore()
	p := newTestPipeline(t, store, fixedScorer(0), &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"a.txt": "张伟|zhangwei@example.com",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)
	require.NoError(t, p.ProcessResume(context.Background(), job, "/tmp/a.txt"))

	cand := store.candidates["zhangwei@example.com"]
	match := store.matchFor(job.JobID, cand.CandidateID)
	require.NotNil(t, match)
	assert.Equal(t, 0, match.Score)
	assert.False(t, match.IsShortlisted)
}

func TestProcessResumeBatch(t *testing.T) {
	dir := t.TempDir()
	writeResume(t, dir, "alice.txt", "ignored")
	writeResume(t, dir, "bob.txt", "ignored")
	writeResume(t, dir, "broken.txt", "ignored")
	writeResume(t, dir, "noemail.txt", "ignored")
	writeResume(t, dir, "readme.md", "ignored") // 非简历扩展名, 应被过滤

	store := newMemStore()
	p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"alice.txt":   "Alice|alice@example.com",
		"bob.txt":     "Bob|bob@example.com",
		"noemail.txt": "匿名候选人",
		// broken.txt 未配置 -> 提取失败
	}}

	job, err := p.ProcessJobDescription(context.Background(), "岗位", "原文")
	require.NoError(t, err)

	result, err := p.ProcessResumeBatch(context.Background(), job.JobID, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Warnings, 2)
	assert.Len(t, store.candidates, 2)
}

func TestProcessResumeBatchJobMissing(t *testing.T) {
	p := newTestPipeline(t, newMemStore(), fixedScorer(80), &recordingNotifier{enabled: true})
	_, err := p.ProcessResumeBatch(context.Background(), "no-such-job", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestExtractProfileCache(t *testing.T) {
	store := newMemStore()
	calls := 0
	p := newTestPipeline(t, store, fixedScorer(80), &recordingNotifier{enabled: true})
	p.ProfileExtractor = &fakeProfileExtractor{fn: func(cvText string) (*types.CandidateProfile, error) {
		calls++
		return profileFromText(cvText)
	}}
	cache := &memCache{data: make(map[string]string)}
	p.Cache = cache

	_, err := p.extractProfile(context.Background(), "张伟|zhangwei@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// 第二次命中缓存, 不再调模型
	profile, err := p.extractProfile(context.Background(), "张伟|zhangwei@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "zhangwei@example.com", profile.Email)
}

func TestExtractProfileCacheSkipsDegraded(t *testing.T) {
	// 降级画像(Err非空)不应写入缓存
	p := newTestPipeline(t, newMemStore(), fixedScorer(80), &recordingNotifier{enabled: true})
	p.ProfileExtractor = &fakeProfileExtractor{fn: func(cvText string) (*types.CandidateProfile, error) {
		return &types.CandidateProfile{Email: "x@example.com", Err: "LLM调用失败"}, nil
	}}
	cache := &memCache{data: make(map[string]string)}
	p.Cache = cache

	_, err := p.extractProfile(context.Background(), "文本")
	require.NoError(t, err)
	assert.Empty(t, cache.data)
}

// memCache 内存版提取缓存
type memCache struct {
	data map[string]string
}

func (c *memCache) GetCachedExtraction(ctx context.Context, textMD5 string) (string, error) {
	if v, ok := c.data[textMD5]; ok {
		return v, nil
	}
	return "", fmt.Errorf("缓存未命中")
}

func (c *memCache) CacheExtraction(ctx context.Context, textMD5 string, profileJSON string) error {
	c.data[textMD5] = profileJSON
	return nil
}
