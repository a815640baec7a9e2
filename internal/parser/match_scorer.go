package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/constants"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// scorePattern 模型回复中第一个(可带符号的)整数
var scorePattern = regexp.MustCompile(`-?\d+`)

// MatchScorer 用LLM评估候选人画像与岗位摘要的匹配度, 输出 [0,100] 的整数分
// 两类失败必须区分开:
//   - 模型回复了但解析不出数字 -> 0 分 (记为不匹配, 照常入库)
//   - 输入缺失或模型不可达     -> ScoreIndeterminate(-1), 调用方跳过入库
type MatchScorer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// MatchScorerOption 打分器的配置选项
type MatchScorerOption func(*MatchScorer)

// WithScorerPromptTemplate 设置自定义提示词模板
func WithScorerPromptTemplate(template string) MatchScorerOption {
	return func(s *MatchScorer) {
		s.promptTemplate = template
	}
}

// NewMatchScorer 创建匹配打分器
func NewMatchScorer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...MatchScorerOption) *MatchScorer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &MatchScorer{
		llmModel: llmModel,
		logger:   logger,
	}
	s.generatePromptTemplate()

	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MatchScorer) generatePromptTemplate() {
	s.promptTemplate = `你是一位极其资深的AI招聘专家，具备精准识别人岗匹配度的火眼金睛。请基于下面的【岗位摘要】和【候选人画像】评估匹配程度。

**评分核心原则（请务必严格遵守）：**
*   **一票否决项 (若不满足，分数通常应低于40分)：** 岗位摘要中明确的硬性学历要求、特定毕业年份限制、"必须具备/精通"的核心技术或经验而候选人完全缺失。
*   **高权重因素：** 核心技能匹配度、相关工作/项目经验的年限与深度、岗位职责契合度。
*   **中权重因素：** "熟悉/了解"级别技能、行业背景、软技能。
*   **低权重/加分项：** 名校名企背景、证书奖项、超出基础要求的额外技能。

**评分参考区间：**
- 85-100分: 核心要求高度匹配，强烈推荐。
- 70-84分: 大部分核心要求满足，值得面试。
- 50-69分: 部分满足，存在明显差距。
- 0-49分: 决定性因素不符或基本不相关。

【岗位摘要】:
"""
%s
"""

【候选人画像】:
"""
%s
"""

**输出要求：只输出一个 0 到 100 之间的整数，不要输出任何其他文字、解释或标点。**`
}

// Score 对候选人画像与岗位摘要打分
func (s *MatchScorer) Score(ctx context.Context, jobSummary string, profile *types.CandidateProfile) (int, error) {
	if s.llmModel == nil {
		return constants.ScoreIndeterminate, fmt.Errorf("MatchScorer: llmModel 未初始化")
	}
	if strings.TrimSpace(jobSummary) == "" {
		return constants.ScoreIndeterminate, fmt.Errorf("MatchScorer: 岗位摘要为空")
	}
	if profile == nil {
		return constants.ScoreIndeterminate, fmt.Errorf("MatchScorer: 候选人画像为空")
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("你是一位资深的AI招聘专家，只输出一个整数分数。"),
		einoschema.UserMessage(fmt.Sprintf(s.promptTemplate, jobSummary, formatProfile(profile))),
	}

	response, err := s.llmModel.Generate(ctx, messages)
	if err != nil {
		return constants.ScoreIndeterminate, fmt.Errorf("MatchScorer: LLM调用失败: %w", err)
	}
	if response == nil {
		return constants.ScoreIndeterminate, fmt.Errorf("MatchScorer: LLM返回空响应")
	}

	score := ParseScore(response.Content)
	s.logger.Printf("[MatchScorer] 原始输出 %.100q -> 分数 %d", response.Content, score)
	return score, nil
}

// ParseScore 从模型回复中提取第一个(可带符号的)整数并夹取到 [0,100]
// 提取不到任何数字时按 0 分处理
func ParseScore(raw string) int {
	match := scorePattern.FindString(raw)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// formatProfile 把画像拼成供打分的纯文本
func formatProfile(p *types.CandidateProfile) string {
	var b strings.Builder
	writeField := func(label, v string) {
		if v != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	writeField("姓名", p.Name)
	writeField("技能", p.SkillsSummary)
	writeField("经历", p.ExperienceSummary)
	writeField("教育背景", p.EducationSummary)
	if b.Len() == 0 {
		return "(画像为空)"
	}
	return b.String()
}
