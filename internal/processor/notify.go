package processor

import (
	"context"
	"fmt"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/constants"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// NotifyShortlisted 为某岗位的入围候选人发送面试邀请
// 幂等: 已发送过的匹配不会再查出来; 并发批次用Redis锁互斥;
// 单个候选人的发送失败只计数, 不中断批次
func (p *MatchPipeline) NotifyShortlisted(ctx context.Context, jobID string) (*types.NotifyResult, error) {
	if p.Notifier == nil || !p.Notifier.Enabled() {
		// 占位凭据必须整体拒绝, 不能一封一封失败
		return nil, ErrMailDisabled
	}

	if _, err := p.Store.GetJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	// 岗位级互斥锁 (Redis可用时)
	if p.Locker != nil {
		lockValue, err := p.Locker.AcquireNotifyLock(ctx, jobID)
		if err != nil {
			p.logWarn("获取通知锁失败, 继续执行: %v", err)
		} else if lockValue == "" {
			return nil, ErrNotifyBatchInFlight
		} else {
			defer func() {
				if _, err := p.Locker.ReleaseNotifyLock(ctx, jobID, lockValue); err != nil {
					p.logWarn("释放通知锁失败: %v", err)
				}
			}()
		}
	}

	pending, err := p.Store.ListPendingNotifications(ctx, jobID)
	if err != nil {
		return nil, NewDatabaseError("list_pending", err.Error())
	}

	result := &types.NotifyResult{}
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := p.Notifier.SendInterviewInvite(ctx, n); err != nil {
			result.Failed++
			p.logError(err, "给 %s 发送邀请失败", n.CandidateEmail)
			continue
		}

		// 条件更新: 只有本次真的把 email_sent 从 false 翻成 true 才计数
		marked, err := p.Store.MarkEmailSent(ctx, n.MatchID)
		if err != nil {
			result.Failed++
			p.logError(err, "标记 %s 已发送失败", n.MatchID)
			continue
		}
		if marked {
			result.Sent++
			p.logInfo("已向 %s (%s) 发送面试邀请, 分数 %d", n.CandidateName, n.CandidateEmail, n.Score)
		}
	}

	p.publishEvent(ctx, constants.EventNotifyCompleted, &types.PipelineEvent{
		EventType: constants.EventNotifyCompleted,
		JobID:     jobID,
	})
	return result, nil
}
