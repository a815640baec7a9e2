package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
	"github.com/Muco0l/RecruitFlow-AI-ATS/pkg/utils"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 把流水线事件写进发件箱表, 由中继异步投递
// 事件与业务写入走同一个MySQL, 消息代理抖动时事件不丢
type Publisher struct {
	db       *gorm.DB
	exchange string
}

// NewPublisher 创建发件箱事件写入器
func NewPublisher(db *gorm.DB, exchange string) *Publisher {
	return &Publisher{db: db, exchange: exchange}
}

// PublishPipelineEvent 将事件落库, 等待中继投递
func (p *Publisher) PublishPipelineEvent(ctx context.Context, routingKey string, event *types.PipelineEvent) error {
	if event == nil {
		return fmt.Errorf("事件不能为空")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	aggregateID := event.JobID
	if aggregateID == "" {
		aggregateID = event.EventID
	}

	record := models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        event.EventType,
		Payload:          string(payload),
		TargetExchange:   p.exchange,
		TargetRoutingKey: routingKey,
		Status:           "PENDING",
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("写入发件箱失败: %w", err)
	}
	return nil
}

// BrokerPublisher 中继投递消息用的发布端
type BrokerPublisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error
}

// MessageRelay 轮询发件箱表并把待投递的事件发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       BrokerPublisher
	logger          *log.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// NewMessageRelay 创建消息中继
func NewMessageRelay(db *gorm.DB, publisher BrokerPublisher, logger *log.Logger) *MessageRelay {
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("outbox-relay"),
	}
}

// Start 启动后台轮询
func (r *MessageRelay) Start() {
	r.logger.Println("发件箱中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				r.logger.Println("发件箱中继已停止")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.logger.Printf("投递待处理事件失败: %v", err)
				}
			}
		}
	}()
}

// Stop 优雅停止中继
func (r *MessageRelay) Stop() {
	close(r.done)
}

// processPendingMessages 取一批PENDING事件投递并更新状态
// FOR UPDATE SKIP LOCKED 允许多实例水平扩展而不重复投递
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", "PENDING").
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	// 空轮询不开Span
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	for _, msg := range messages {
		err := r.publisher.PublishMessage(
			ctx,
			msg.TargetExchange,
			msg.TargetRoutingKey,
			[]byte(msg.Payload),
			true,
		)

		if err != nil {
			r.logger.Printf("投递事件 %d (%s) 失败: %v, 已重试 %d 次", msg.ID, msg.EventType, err, msg.RetryCount)
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = "FAILED"
			}
		} else {
			msg.Status = "SENT"
			msg.ProcessedAt = utils.TimePtr(time.Now())
			msg.ErrorMessage = ""
		}

		// 更新失败则整个事务回滚, 事件下轮重新拾取
		if err := tx.Save(&msg).Error; err != nil {
			return err
		}
	}

	return tx.Commit().Error
}
