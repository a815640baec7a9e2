package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// mailDialer 抽象gomail的拨号发送, 方便测试注入
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender 通过SMTP向入围候选人发送面试邀请
// 凭证不可用(缺失或占位值)时 Enabled() 返回 false, 上层整体拒绝派发
type EmailSender struct {
	cfg    config.SMTPConfig
	usable bool
	dialer mailDialer
	logger *log.Logger
}

// NewEmailSender 从配置构建发送器
// usable 由调用方根据 Config.MailCredentialsUsable() 传入
func NewEmailSender(cfg *config.Config, logger *log.Logger) *EmailSender {
	s := &EmailSender{
		cfg:    cfg.SMTP,
		usable: cfg.MailCredentialsUsable(),
		logger: logger,
	}
	if s.usable {
		s.dialer = gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	}
	return s
}

// Enabled 凭证可用时才允许派发通知
func (s *EmailSender) Enabled() bool {
	return s.usable
}

// SendInterviewInvite 给单个入围候选人发送面试邀请邮件
func (s *EmailSender) SendInterviewInvite(ctx context.Context, n types.PendingNotification) error {
	if !s.usable {
		return fmt.Errorf("邮件凭证不可用, 拒绝发送")
	}
	if strings.TrimSpace(n.CandidateEmail) == "" {
		return fmt.Errorf("候选人 %s 缺少邮箱地址", n.CandidateID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.fromAddress())
	m.SetHeader("To", n.CandidateEmail)
	m.SetHeader("Subject", fmt.Sprintf("Interview Invitation - %s", n.JobTitle))
	m.SetBody("text/plain", buildInviteBody(n))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("SMTP发送到 %s 失败: %w", n.CandidateEmail, err)
	}
	if s.logger != nil {
		s.logger.Printf("面试邀请已发送: %s -> %s", n.JobTitle, n.CandidateEmail)
	}
	return nil
}

func (s *EmailSender) fromAddress() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.Username
}

func buildInviteBody(n types.PendingNotification) string {
	name := strings.TrimSpace(n.CandidateName)
	if name == "" {
		name = "候选人"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s 您好,\n\n", name)
	fmt.Fprintf(&b, "感谢您投递岗位「%s」。经过初步评估(匹配度 %d/100), 我们认为您的背景与该岗位高度契合, 诚挚邀请您参加面试。\n\n", n.JobTitle, n.Score)
	b.WriteString("我们的招聘团队将在近期与您联系, 确认具体的面试时间与形式。\n\n")
	b.WriteString("期待与您会面!\n\n招聘团队\n")
	return b.String()
}
