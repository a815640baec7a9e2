package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// emailPattern 简历文本中邮箱的兜底匹配, 取第一个命中
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// CVExtractor 用LLM从简历纯文本中提取结构化候选人画像
// 模型不可达或输出无法解析时不直接报错: 返回带 Err 标记的画像,
// 并尽量通过正则从原文兜底恢复邮箱, 让调用方还能完成入库
type CVExtractor struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// CVExtractorOption 提取器的配置选项
type CVExtractorOption func(*CVExtractor)

// WithCVPromptTemplate 设置自定义提示词模板
func WithCVPromptTemplate(template string) CVExtractorOption {
	return func(e *CVExtractor) {
		e.promptTemplate = template
	}
}

// NewCVExtractor 创建简历提取器
func NewCVExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...CVExtractorOption) *CVExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	extractor := &CVExtractor{
		llmModel: llmModel,
		logger:   logger,
	}
	extractor.generatePromptTemplate()

	for _, opt := range options {
		opt(extractor)
	}
	return extractor
}

func (e *CVExtractor) generatePromptTemplate() {
	e.promptTemplate = `你是一位专业的简历信息提取助手。请从下面的【候选人简历】纯文本中提取结构化信息，并严格按照指定的JSON格式输出。

**请严格遵循以下JSON输出格式规范：**
1.  **"name"**: 字符串，候选人姓名。无法确定时输出空字符串 ""。
2.  **"email"**: 字符串，候选人的电子邮箱地址。找不到时输出空字符串 ""。
3.  **"phone"**: 字符串，候选人的联系电话。找不到时输出空字符串 ""。
4.  **"skills_summary"**: 字符串，候选人技能的简要总结 (100字以内)。
5.  **"experience_summary"**: 字符串，候选人工作/项目经历的简要总结 (150字以内)。
6.  **"education_summary"**: 字符串，候选人教育背景的简要总结 (100字以内)。

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象。
- 所有字段名和字符串值都必须使用双引号。
- 字符串值内部如果包含双引号(")，必须使用反斜杠(\")进行转义。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。
- 不要编造简历中不存在的信息，找不到就输出空字符串。

【候选人简历】:
"""
%s
"""

请基于以上指令，仔细提取并输出JSON结果。`
}

// Extract 从简历纯文本提取候选人画像
// 返回的error只代表不可恢复的输入问题; LLM层面的失败通过 profile.Err 传递
func (e *CVExtractor) Extract(ctx context.Context, cvText string) (*types.CandidateProfile, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("CVExtractor: llmModel 未初始化")
	}
	if strings.TrimSpace(cvText) == "" {
		return nil, fmt.Errorf("CVExtractor: 简历文本为空")
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("你是一位专业的简历信息提取助手，只输出合法的JSON。"),
		einoschema.UserMessage(fmt.Sprintf(e.promptTemplate, cvText)),
	}

	response, err := e.llmModel.Generate(ctx, messages)
	if err != nil {
		// 模型不可达: 走纯正则兜底, 至少把邮箱捞回来
		e.logger.Printf("[CVExtractor] LLM调用失败, 进入正则兜底: %v", err)
		profile := &types.CandidateProfile{Err: fmt.Sprintf("LLM调用失败: %v", err)}
		e.fallbackEmail(profile, cvText, "llm_unavailable")
		return profile, nil
	}
	if response == nil || response.Content == "" {
		e.logger.Printf("[CVExtractor] LLM返回空响应, 进入正则兜底")
		profile := &types.CandidateProfile{Err: "LLM返回空响应"}
		e.fallbackEmail(profile, cvText, "empty_response")
		return profile, nil
	}

	cleaned := cleanLLMOutput(response.Content)
	jsonStr := extractJSONObject(cleaned)
	if jsonStr == "" {
		e.logger.Printf("[CVExtractor] 响应中找不到完整JSON对象, 进入正则兜底. 原始输出: %.200s", cleaned)
		profile := &types.CandidateProfile{
			Err:         "无法从LLM响应中提取JSON",
			RawResponse: response.Content,
		}
		e.fallbackEmail(profile, cvText, "parse_failure")
		return profile, nil
	}

	var profile types.CandidateProfile
	// ① 正常解析
	if err := json.Unmarshal([]byte(jsonStr), &profile); err != nil {
		// ② 解析失败 -> 自动修复再试一次
		fixed := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), &profile); jsonErr != nil {
			e.logger.Printf("[CVExtractor] JSON解析失败(含修复重试), 进入正则兜底: %v / %v", err, jsonErr)
			p := &types.CandidateProfile{
				Err:         fmt.Sprintf("JSON解析失败: %v", err),
				RawResponse: response.Content,
			}
			e.fallbackEmail(p, cvText, "parse_failure")
			return p, nil
		}
	}
	profile.RawResponse = response.Content

	// 解析成功但邮箱为空: 同样跑一遍正则兜底
	if !profile.HasEmail() {
		e.fallbackEmail(&profile, cvText, "empty_email_field")
	}
	return &profile, nil
}

// fallbackEmail 从简历原文中正则匹配邮箱, 命中则写入画像
func (e *CVExtractor) fallbackEmail(profile *types.CandidateProfile, cvText, reason string) {
	if match := emailPattern.FindString(cvText); match != "" {
		profile.Email = match
		e.logger.Printf("[CVExtractor] 正则兜底恢复邮箱 (原因: %s): %s", reason, match)
	} else {
		e.logger.Printf("[CVExtractor] 正则兜底未能找到邮箱 (原因: %s)", reason)
	}
}
