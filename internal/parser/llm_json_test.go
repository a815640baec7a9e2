package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "纯JSON对象",
			input:    `{"name":"张伟","email":"zhangwei@example.com"}`,
			expected: `{"name":"张伟","email":"zhangwei@example.com"}`,
		},
		{
			name:     "前后有解释文字",
			input:    "好的，提取结果如下:\n{\"name\":\"李华\"}\n希望对你有帮助。",
			expected: `{"name":"李华"}`,
		},
		{
			name:     "嵌套对象按配平截取",
			input:    `前言 {"a":{"b":1},"c":2} 后记`,
			expected: `{"a":{"b":1},"c":2}`,
		},
		{
			name:     "没有对象",
			input:    "抱歉，我无法完成这个请求。",
			expected: "",
		},
		{
			name:     "括号不闭合",
			input:    `{"name":"王强"`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONObject(tt.input))
		})
	}
}

func TestCleanLLMOutput(t *testing.T) {
	t.Run("去掉BOM", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, cleanLLMOutput("\uFEFF{\"a\":1}"))
	})

	t.Run("去掉Markdown围栏", func(t *testing.T) {
		input := "```json\n{\"a\":1}\n```"
		assert.Equal(t, `{"a":1}`, cleanLLMOutput(input))
	})

	t.Run("普通文本原样返回", func(t *testing.T) {
		assert.Equal(t, "85", cleanLLMOutput("  85  "))
	})
}

func TestSanitizeJSON(t *testing.T) {
	// 字符串内部未转义的双引号应被修复成合法JSON
	broken := `{"summary": "候选人擅长撰写"创意"文案", "score": 85}`

	var probe map[string]interface{}
	require.Error(t, json.Unmarshal([]byte(broken), &probe), "前置条件: 原始串必须是非法JSON")

	fixed := sanitizeJSON(broken)
	require.NoError(t, json.Unmarshal([]byte(fixed), &probe))
	assert.Equal(t, `候选人擅长撰写"创意"文案`, probe["summary"])
	assert.Equal(t, float64(85), probe["score"])
}
