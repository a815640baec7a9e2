package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/agent"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/api/handler"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/api/router"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/config"
	appLogger "github.com/Muco0l/RecruitFlow-AI-ATS/internal/logger"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/notify"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/outbox"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/parser"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/processor"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/tracing"
	"github.com/Muco0l/RecruitFlow-AI-ATS/pkg/ratelimit"
)

var serviceName = "recruitflow" //nolint:gochecknoglobals

func main() {
	var configPath string
	var initConfig bool
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.BoolVar(&initConfig, "init-config", false, "生成示例配置文件后退出")
	pflag.Parse()

	if initConfig {
		if err := config.CreateSampleConfig(configPath); err != nil {
			log.Fatalf("生成示例配置失败: %v", err)
		}
		log.Printf("示例配置已写入 %s", configPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitProvider(ctx, serviceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				glog.Warnf("链路追踪关闭失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	llmModel, err := agent.NewOllamaChatModel(
		cfg.Ollama.BaseURL,
		cfg.Ollama.Model,
		time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		glog.Fatalf("初始化LLM模型失败: %v", err)
	}
	if err := llmModel.TestConnection(ctx); err != nil {
		// 模型暂时不可达不阻塞启动, 流水线会按条目降级
		glog.Warnf("LLM探活失败, 服务继续启动: %v", err)
	} else {
		glog.Infof("LLM探活成功: %s @ %s", cfg.Ollama.Model, cfg.Ollama.BaseURL)
	}

	var chatModel model.ToolCallingChatModel = llmModel
	if cfg.Ollama.QPM > 0 {
		chatModel = ratelimit.NewRateLimitedLLMModel(llmModel, cfg.Ollama.QPM)
		glog.Infof("LLM调用限流已启用: %d QPM", cfg.Ollama.QPM)
	}

	var componentLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		componentLogger = log.New(os.Stderr, "[Parser] ", log.LstdFlags|log.Lshortfile)
	} else {
		componentLogger = log.New(io.Discard, "", 0)
	}

	pdfExtractor, err := parser.NewPDFTextExtractor(ctx, parser.WithPDFLogger(componentLogger))
	if err != nil {
		glog.Fatalf("创建PDF提取器失败: %v", err)
	}

	cvExtractor := parser.NewCVExtractor(chatModel, componentLogger)
	jdSummarizer := parser.NewJDSummarizer(chatModel, componentLogger)
	matchScorer := parser.NewMatchScorer(chatModel, componentLogger)
	glog.Info("LLM解析组件初始化成功")

	emailSender := notify.NewEmailSender(cfg, log.New(appLogger.Logger, "[Mail] ", log.LstdFlags))
	if emailSender.Enabled() {
		glog.Info("邮件通知已启用")
	} else {
		glog.Warn("邮件凭据缺失或为占位值, 通知派发已禁用")
	}

	components := &processor.Components{
		TextExtractor:    pdfExtractor,
		ProfileExtractor: cvExtractor,
		Summarizer:       jdSummarizer,
		Scorer:           matchScorer,
		Notifier:         emailSender,
		Store:            storageManager.MySQL,
	}
	// 可选依赖只在真的初始化成功时装配, 避免带类型的nil接口
	if storageManager.Redis != nil {
		components.Cache = storageManager.Redis
		components.Locker = storageManager.Redis
	}
	var messageRelay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		// 事件走发件箱: 先落库, 中继异步投递到消息队列
		components.Events = outbox.NewPublisher(storageManager.MySQL.DB(), cfg.RabbitMQ.PipelineExchange)
		relayLogger := log.New(appLogger.Logger, "[OutboxRelay] ", log.LstdFlags)
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger)
		messageRelay.Start()
		glog.Info("发件箱中继已启动")
	}
	if storageManager.MinIO != nil {
		components.Archive = storageManager.MinIO
	}

	pipeline, err := processor.NewMatchPipeline(components, &processor.Settings{
		Threshold: cfg.Match.Threshold,
		Debug:     cfg.Logger.Level == "debug",
		Logger:    log.New(appLogger.Logger, "[Pipeline] ", log.LstdFlags),
	})
	if err != nil {
		glog.Fatalf("初始化匹配流水线失败: %v", err)
	}
	glog.Infof("匹配流水线初始化成功, 入围分数线: %d", pipeline.Config.Threshold)

	jobHandler := handler.NewJobHandler(cfg, pipeline, storageManager.MySQL)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, jobHandler, cfg.Server.APIKey)
	glog.Infof("HTTP服务器启动中, 监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号, 正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
