package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// JDSummarizer 用LLM把岗位描述原文压缩成结构化摘要
// 摘要是后续打分的输入, 生成失败时直接报错, 岗位不入库
type JDSummarizer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// JDSummarizerOption 摘要器的配置选项
type JDSummarizerOption func(*JDSummarizer)

// WithJDPromptTemplate 设置自定义提示词模板
func WithJDPromptTemplate(template string) JDSummarizerOption {
	return func(s *JDSummarizer) {
		s.promptTemplate = template
	}
}

// NewJDSummarizer 创建岗位摘要器
func NewJDSummarizer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...JDSummarizerOption) *JDSummarizer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &JDSummarizer{
		llmModel: llmModel,
	}
	s.logger = logger
	s.generatePromptTemplate()

	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *JDSummarizer) generatePromptTemplate() {
	s.promptTemplate = `你是一位资深的招聘顾问。请把下面的【岗位描述】原文提炼成一份简洁的结构化摘要，供后续人岗匹配评估使用。

**摘要要求：**
1. 用要点列出岗位的核心职责 (3-5条)。
2. 用要点列出硬性要求 (学历、年限、必备技能等)。
3. 用要点列出加分项 (如有)。
4. 总长度控制在300字以内，不要照抄原文整段。
5. 只输出摘要本身，禁止输出任何解释、开场白或Markdown代码块标记。

【岗位描述】:
"""
%s
"""`
}

// Summarize 生成岗位摘要
func (s *JDSummarizer) Summarize(ctx context.Context, jdText string) (string, error) {
	if s.llmModel == nil {
		return "", fmt.Errorf("JDSummarizer: llmModel 未初始化")
	}
	if strings.TrimSpace(jdText) == "" {
		return "", fmt.Errorf("JDSummarizer: 岗位描述文本为空")
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("你是一位资深的招聘顾问，擅长提炼岗位描述的核心要求。"),
		einoschema.UserMessage(fmt.Sprintf(s.promptTemplate, jdText)),
	}

	response, err := s.llmModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("JDSummarizer: LLM调用失败: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("JDSummarizer: LLM返回空摘要")
	}

	summary := cleanLLMOutput(response.Content)
	s.logger.Printf("[JDSummarizer] 摘要生成完成, 长度 %d 字符", len(summary))
	return summary, nil
}
