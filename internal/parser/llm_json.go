package parser

import (
	"strings"
	"unicode/utf8"
)

// cleanLLMOutput 对模型原始输出做统一预清理: 去BOM、去Markdown代码围栏、修复非法UTF-8
func cleanLLMOutput(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	s = strings.TrimSpace(s)

	// 部分模型喜欢把JSON包在 ```json ... ``` 里
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// extractJSONObject 从文本中按花括号配平提取第一个完整的JSON对象
// 找不到完整对象时返回空串
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号写成 \",
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
// 反斜杠转义逻辑则正常处理 \\ 和 \"。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				// 遇到非转义的 "，并且当前不在字符串里 -> 开始一个新字符串
				inStr = true
				b.WriteByte(c)
			} else {
				// 当前在字符串里，检查这是不是字符串的真正结束
				j := i + 1
				// 跳过所有空白字符
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				// 如果下一个非空白字符是 JSON 语法里的 :, ], }, 或 ,，说明这才是真正的 string-end
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					// 否则认为这是字符串内部的 "，需要改成 \"
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			// 遇到第一个反斜杠，标记 escaped，然后把它写进去
			escaped = true
			b.WriteByte(c)

		} else {
			// 普通字符，或者是被转义的字符
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
