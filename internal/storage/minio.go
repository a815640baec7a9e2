package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
)

// CVArchive 简历归档接口
type CVArchive interface {
	// ArchiveCV 归档原始简历文件, 返回对象键
	ArchiveCV(ctx context.Context, candidateID, fileExt string, data []byte) (string, error)

	// ArchiveParsedText 归档解析后的简历纯文本
	ArchiveParsedText(ctx context.Context, candidateID string, text string) (string, error)

	// GetCV 取回归档的原始简历
	GetCV(ctx context.Context, objectKey string) ([]byte, error)

	// GetParsedText 取回归档的解析文本
	GetParsedText(ctx context.Context, objectKey string) (string, error)

	// GetPresignedURL 获取原始简历的预签名下载URL
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)

	// Close 释放资源
	Close() error
}

// 确保MinIO实现了CVArchive接口
var _ CVArchive = (*MinIO)(nil)

// MinIO 提供简历文件的对象存储归档
type MinIO struct {
	client       *minio.Client
	cfg          *config.MinIOConfig
	resumeBucket string
	parsedBucket string
	logger       *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resumeBucket := cfg.ResumeBucket
	if resumeBucket == "" {
		resumeBucket = "cv-originals"
	}
	parsedBucket := cfg.ParsedBucket
	if parsedBucket == "" {
		parsedBucket = "cv-parsed-text"
	}

	m := &MinIO{
		client:       client,
		cfg:          cfg,
		resumeBucket: resumeBucket,
		parsedBucket: parsedBucket,
		logger:       logger,
	}

	if err := m.ensureBucketExists(resumeBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", resumeBucket, err)
	}
	if err := m.ensureBucketExists(parsedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保解析文本存储桶 %s 存在失败: %w", parsedBucket, err)
	}

	// 归档是辅助能力, 生命周期规则设置失败只告警
	if cfg.FileExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			logger.Printf("[MinIO] 设置生命周期规则失败: %v", err)
		}
	}

	logger.Printf("[MinIO] 客户端初始化完成, endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] 存储桶 %s 创建成功", bucketName)
	}
	return nil
}

// setupLifecycleRules 为两个桶设置过期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	for bucket, ruleID := range map[string]string{
		m.resumeBucket: "expire-cv-originals",
		m.parsedBucket: "expire-cv-parsed-text",
	} {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{
			{
				ID:     ruleID,
				Status: "Enabled",
				Expiration: lifecycle.Expiration{
					Days: lifecycle.ExpirationDays(m.cfg.FileExpireDays),
				},
			},
		}
		if err := m.client.SetBucketLifecycle(ctx, bucket, lc); err != nil {
			return fmt.Errorf("为存储桶 %s 设置生命周期失败: %w", bucket, err)
		}
	}
	return nil
}

// ArchiveCV 归档原始简历文件
// 对象键形如 cv/{candidateID}/original.pdf
func (m *MinIO) ArchiveCV(ctx context.Context, candidateID, fileExt string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("cv/%s/original%s", candidateID, strings.ToLower(fileExt))
	contentType := getContentType(fileExt)

	_, err := m.client.PutObject(ctx, m.resumeBucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("归档简历 %s/%s 失败: %w", m.resumeBucket, objectKey, err)
	}
	return objectKey, nil
}

// ArchiveParsedText 归档解析后的简历纯文本
func (m *MinIO) ArchiveParsedText(ctx context.Context, candidateID string, text string) (string, error) {
	objectKey := fmt.Sprintf("cv/%s/parsed_text.txt", candidateID)

	_, err := m.client.PutObject(ctx, m.parsedBucket, objectKey,
		strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("归档解析文本 %s/%s 失败: %w", m.parsedBucket, objectKey, err)
	}
	return objectKey, nil
}

// GetCV 取回归档的原始简历
func (m *MinIO) GetCV(ctx context.Context, objectKey string) ([]byte, error) {
	return m.download(ctx, m.resumeBucket, objectKey)
}

// GetParsedText 取回归档的解析文本
func (m *MinIO) GetParsedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.download(ctx, m.parsedBucket, objectKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *MinIO) download(ctx context.Context, bucketName, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, objectKey, err)
	}
	defer obj.Close()

	// Stat能提前暴露对象不存在/无权限
	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucketName, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucketName, objectKey, err)
	}
	return data, nil
}

// GetPresignedURL 获取原始简历的预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.resumeBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// Close 实现CVArchive接口
func (m *MinIO) Close() error {
	return nil
}

// 获取内容类型
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
