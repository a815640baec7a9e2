package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// PDFTextExtractor 使用 Eino PDF Parser 提取简历文本
// 纯文本文件(.txt)直接读取, 不走PDF解析
type PDFTextExtractor struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

// PDFExtractorOption PDF提取器的配置选项
type PDFExtractorOption func(*PDFTextExtractor)

// WithPDFLogger 配置自定义日志记录器
func WithPDFLogger(logger *log.Logger) PDFExtractorOption {
	return func(e *PDFTextExtractor) {
		e.logger = logger
	}
}

// NewPDFTextExtractor 初始化简历文本提取器
// 默认配置为不按页面分割, 获取整个文档的连续文本
func NewPDFTextExtractor(ctx context.Context, options ...PDFExtractorOption) (*PDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 整个PDF的文本要作为单个字符串返回
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &PDFTextExtractor{
		parser: p,
		logger: log.New(os.Stderr, "[简历解析器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractFromFile 从简历文件提取纯文本
// .pdf 走Eino解析, .txt 直接读, 其他扩展名报错
func (e *PDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	startTime := time.Now()
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".txt":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("读取文本简历失败 %s: %w", filePath, err)
		}
		return string(data), nil
	case ".pdf":
		// 继续走下面的PDF解析
	default:
		return "", fmt.Errorf("不支持的简历文件类型 %q (仅支持 .pdf / .txt)", ext)
	}

	e.logger.Printf("开始处理PDF文件: %s", filePath)
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开PDF文件失败 %s: %w", filePath, err)
	}
	defer file.Close()

	if fileInfo, err := file.Stat(); err == nil {
		e.logger.Printf("PDF文件大小: %.2f MB", float64(fileInfo.Size())/1024/1024)
	}

	text, err := e.ExtractFromReader(ctx, file, filePath)
	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF处理失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", err
	}

	e.logger.Printf("PDF处理完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), duration.Seconds())
	return text, nil
}

// ExtractFromReader 从 io.Reader 中提取PDF文本
func (e *PDFTextExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]interface{}{
			"source_file_path": uri,
			"extraction_time":  time.Now().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("PDF解析失败 (URI %s): %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果 (URI %s)", uri)
	}
	if len(docs) > 1 {
		e.logger.Printf("注意: 返回了多个文档 (%d)", len(docs))
	}

	// 合并所有文档的内容(以防万一返回了多个)
	var fullContent strings.Builder
	for i, doc := range docs {
		fullContent.WriteString(doc.Content)
		if i < len(docs)-1 {
			fullContent.WriteString("\n\n")
		}
	}
	return fullContent.String(), nil
}
