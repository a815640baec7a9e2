package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/tracing"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

var mysqlTracer = otel.Tracer("recruitflow/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		if sqlStatement := db.Statement.SQL.String(); sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 把span保存在DB上下文中, after回调里取用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// 连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移时关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.JobDescription{},
		&models.Candidate{},
		&models.Match{},
		&models.OutboxMessage{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateJob 创建岗位记录, JobID为空时生成UUIDv7
func (m *MySQL) CreateJob(ctx context.Context, job *models.JobDescription) error {
	if job == nil {
		return fmt.Errorf("岗位记录不能为空")
	}
	if job.JobID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		job.JobID = newUUID.String()
	}
	return m.db.WithContext(ctx).Create(job).Error
}

// GetJob 通过JobID获取岗位记录
func (m *MySQL) GetJob(ctx context.Context, jobID string) (*models.JobDescription, error) {
	var job models.JobDescription
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs 按创建时间倒序列出岗位
func (m *MySQL) ListJobs(ctx context.Context) ([]models.JobDescription, error) {
	var jobs []models.JobDescription
	if err := m.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpsertCandidateByEmail 按邮箱Upsert候选人
// 邮箱已存在时整体覆盖所有提取字段, 但 candidate_id 保持首次生成的值不变
func (m *MySQL) UpsertCandidateByEmail(ctx context.Context, candidate *models.Candidate) (*models.Candidate, error) {
	if candidate == nil || candidate.Email == "" {
		return nil, fmt.Errorf("候选人邮箱不能为空")
	}

	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertCandidateByEmail", trace.WithAttributes(
		attribute.String("candidate.email", tracing.SafeAttributeValue("email", candidate.Email, tracing.DefaultMaxLength)),
	))
	defer span.End()

	if candidate.CandidateID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		candidate.CandidateID = newUUID.String()
	}

	// 冲突键是邮箱唯一索引; 覆盖全部提取字段, 不碰 candidate_id / created_at
	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "phone", "cv_filename", "cv_text",
				"skills", "experience", "education",
				"cv_object_key", "raw_llm_json", "updated_at",
			}),
		}).Create(candidate).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("候选人Upsert失败: %w", err)
	}

	// 冲突路径下GORM不会回填已有的 candidate_id, 必须按邮箱读回真实记录
	var stored models.Candidate
	if err := m.db.WithContext(ctx).Where("email = ?", candidate.Email).First(&stored).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("读取Upsert后的候选人失败: %w", err)
	}

	span.SetAttributes(attribute.String("candidate.id", stored.CandidateID))
	span.SetStatus(codes.Ok, "")
	return &stored, nil
}

// UpdateCandidateCVObjectKey 回填候选人的简历归档对象键
func (m *MySQL) UpdateCandidateCVObjectKey(ctx context.Context, candidateID string, objectKey string) error {
	return m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Update("cv_object_key", objectKey).Error
}

// GetCandidateByEmail 通过邮箱获取候选人
func (m *MySQL) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := m.db.WithContext(ctx).Where("email = ?", email).First(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

// UpsertMatch 按 (job_id, candidate_id) Upsert匹配记录
// 重新评分只覆盖 score/is_shortlisted/updated_at;
// email_sent 绝不在这里更新, 已发送标记只能通过 MarkEmailSent 单向置位
func (m *MySQL) UpsertMatch(ctx context.Context, match *models.Match) error {
	if match == nil || match.JobID == "" || match.CandidateID == "" {
		return fmt.Errorf("匹配记录的 job_id 和 candidate_id 不能为空")
	}

	if match.MatchID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		match.MatchID = newUUID.String()
	}

	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}, {Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "is_shortlisted", "updated_at",
			}),
		}).Create(match).Error
}

// ListMatchesByJob 列出某岗位的全部匹配记录, 按分数倒序
func (m *MySQL) ListMatchesByJob(ctx context.Context, jobID string) ([]types.MatchView, error) {
	var views []types.MatchView
	err := m.db.WithContext(ctx).
		Table("matches m").
		Select(`m.match_id, m.candidate_id, c.name AS candidate_name, c.email AS candidate_email,
			m.score, m.is_shortlisted, m.email_sent`).
		Joins("JOIN candidates c ON c.candidate_id = m.candidate_id").
		Where("m.job_id = ?", jobID).
		Order("m.score DESC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("查询岗位匹配列表失败: %w", err)
	}
	return views, nil
}

// ListPendingNotifications 查询某岗位已入围且尚未发送邀请邮件的匹配
func (m *MySQL) ListPendingNotifications(ctx context.Context, jobID string) ([]types.PendingNotification, error) {
	var pending []types.PendingNotification
	err := m.db.WithContext(ctx).
		Table("matches m").
		Select(`m.match_id, m.job_id, j.title AS job_title, m.candidate_id,
			c.name AS candidate_name, c.email AS candidate_email, m.score`).
		Joins("JOIN candidates c ON c.candidate_id = m.candidate_id").
		Joins("JOIN job_descriptions j ON j.job_id = m.job_id").
		Where("m.job_id = ? AND m.is_shortlisted = ? AND m.email_sent = ?", jobID, true, false).
		Order("m.score DESC").
		Scan(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("查询待通知匹配失败: %w", err)
	}
	return pending, nil
}

// MarkEmailSent 把匹配记录标记为已发送邀请
// 条件更新保证 false→true 单向且并发安全; 返回是否真的由本次调用置位
func (m *MySQL) MarkEmailSent(ctx context.Context, matchID string) (bool, error) {
	result := m.db.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND email_sent = ?", matchID, false).
		Update("email_sent", true)
	if result.Error != nil {
		return false, fmt.Errorf("标记邀请已发送失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountShortlisted 统计某岗位的入围人数
func (m *MySQL) CountShortlisted(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Match{}).
		Where("job_id = ? AND is_shortlisted = ?", jobID, true).
		Count(&count).Error
	return count, err
}

// IsNotFound 判断是否为"记录不存在"错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
