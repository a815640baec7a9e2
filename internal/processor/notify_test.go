package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// seedShortlist 造一个岗位和若干入围/未入围的匹配
func seedShortlist(t *testing.T, p *MatchPipeline, store *memStore) string {
	t.Helper()
	p.TextExtractor = &fakeTextExtractor{texts: map[string]string{
		"alice.txt":   "Alice|alice@example.com",
		"bob.txt":     "Bob|bob@example.com",
		"charlie.txt": "Charlie|charlie@example.com",
	}}

	job, err := p.ProcessJobDescription(context.Background(), "Go后端工程师", "原文")
	require.NoError(t, err)

	// Alice 90 / Bob 80 入围, Charlie 60 不入围
	scores := map[string]int{
		"alice@example.com":   90,
		"bob@example.com":     80,
		"charlie@example.com": 60,
	}
	p.Scorer = &fakeScorer{fn: func(profile *types.CandidateProfile) (int, error) {
		return scores[profile.Email], nil
	}}

	for _, f := range []string{"/tmp/alice.txt", "/tmp/bob.txt", "/tmp/charlie.txt"} {
		require.NoError(t, p.ProcessResume(context.Background(), job, f))
	}
	return job.JobID
}

func TestNotifyShortlistedSendsOnlyShortlisted(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{enabled: true}
	p := newTestPipeline(t, store, fixedScorer(0), notifier)
	jobID := seedShortlist(t, p, store)

	result, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, notifier.sent, 2)
	for _, n := range notifier.sent {
		assert.NotEqual(t, "charlie@example.com", n.CandidateEmail, "未入围候选人不得收到邀请")
		assert.Equal(t, "Go后端工程师", n.JobTitle)
	}
}

func TestNotifyShortlistedIdempotent(t *testing.T) {
	// 第二轮通知不得重复发信
	store := newMemStore()
	notifier := &recordingNotifier{enabled: true}
	p := newTestPipeline(t, store, fixedScorer(0), notifier)
	jobID := seedShortlist(t, p, store)

	first, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sent)

	second, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, notifier.sent, 2, "总发送量不得超过入围人数")
}

func TestNotifyShortlistedRefusesWhenDisabled(t *testing.T) {
	// 凭据不可用时整体拒绝, 一封都不发
	store := newMemStore()
	notifier := &recordingNotifier{enabled: false}
	p := newTestPipeline(t, store, fixedScorer(0), notifier)
	jobID := seedShortlist(t, p, store)

	_, err := p.NotifyShortlisted(context.Background(), jobID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMailDisabled))
	assert.Empty(t, notifier.sent)

	// 拒绝不能消耗幂等标记: 修好凭据后还能发出去
	notifier.enabled = true
	result, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
}

func TestNotifyShortlistedPartialFailure(t *testing.T) {
	// 单个发送失败只计数, 其余照发; 失败的下一轮还能重试
	store := newMemStore()
	notifier := &recordingNotifier{
		enabled: true,
		failFor: map[string]bool{"bob@example.com": true},
	}
	p := newTestPipeline(t, store, fixedScorer(0), notifier)
	jobID := seedShortlist(t, p, store)

	result, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	// Bob的SMTP恢复后重试
	notifier.failFor = nil
	retry, err := p.NotifyShortlisted(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Sent, "只补发之前失败的那一封")
}

func TestNotifyShortlistedJobMissing(t *testing.T) {
	p := newTestPipeline(t, newMemStore(), fixedScorer(0), &recordingNotifier{enabled: true})
	_, err := p.NotifyShortlisted(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestNotifyShortlistedLockContention(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{enabled: true}
	p := newTestPipeline(t, store, fixedScorer(0), notifier)
	jobID := seedShortlist(t, p, store)

	p.Locker = &stubLocker{held: true}
	_, err := p.NotifyShortlisted(context.Background(), jobID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotifyBatchInFlight))
	assert.Empty(t, notifier.sent)
}

// stubLocker held=true时模拟锁已被别的批次持有
type stubLocker struct {
	held bool
}

func (l *stubLocker) AcquireNotifyLock(ctx context.Context, jobID string) (string, error) {
	if l.held {
		return "", nil
	}
	return "lock-value", nil
}

func (l *stubLocker) ReleaseNotifyLock(ctx context.Context, jobID string, lockValue string) (bool, error) {
	return true, nil
}
