package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	// 容量2, 初始满格: 前两个请求放行, 第三个被拒
	tb := NewTokenBucket(60, 2)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketRefill(t *testing.T) {
	// 60 QPM = 每秒1个令牌
	tb := NewTokenBucket(60, 1)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, tb.Allow(), "等待一秒后应补充出一个令牌")
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1) // 每分钟1个, 耗尽后要等很久
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(600, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("JSON解析失败") // 不可重试
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "不可重试的错误不应触发重试")
}

func TestRetryWithBackoffRetriesTransientError(t *testing.T) {
	tb := NewTokenBucket(600, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
