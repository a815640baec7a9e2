package processor

import (
	"io"
	"log"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithcompTextExtractor 设置简历文本提取组件
func WithcompTextExtractor(extractor TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.TextExtractor = extractor
	}
}

// WithcompProfileExtractor 设置画像提取组件
func WithcompProfileExtractor(extractor ProfileExtractor) ComponentOpt {
	return func(c *Components) {
		c.ProfileExtractor = extractor
	}
}

// WithcompSummarizer 设置岗位摘要组件
func WithcompSummarizer(summarizer Summarizer) ComponentOpt {
	return func(c *Components) {
		c.Summarizer = summarizer
	}
}

// WithcompScorer 设置匹配打分组件
func WithcompScorer(scorer Scorer) ComponentOpt {
	return func(c *Components) {
		c.Scorer = scorer
	}
}

// WithcompNotifier 设置通知组件
func WithcompNotifier(notifier Notifier) ComponentOpt {
	return func(c *Components) {
		c.Notifier = notifier
	}
}

// WithcompStore 设置持久层组件
func WithcompStore(store MatchStore) ComponentOpt {
	return func(c *Components) {
		c.Store = store
	}
}

// WithcompCache 设置提取缓存组件 (可选)
func WithcompCache(cache ExtractionCache) ComponentOpt {
	return func(c *Components) {
		c.Cache = cache
	}
}

// WithcompLocker 设置通知锁组件 (可选)
func WithcompLocker(locker NotifyLocker) ComponentOpt {
	return func(c *Components) {
		c.Locker = locker
	}
}

// WithcompEvents 设置事件发布组件 (可选)
func WithcompEvents(events EventPublisher) ComponentOpt {
	return func(c *Components) {
		c.Events = events
	}
}

// WithcompArchive 设置简历归档组件 (可选)
func WithcompArchive(archive CVArchiver) ComponentOpt {
	return func(c *Components) {
		c.Archive = archive
	}
}

// ----- 设置选项 -----

// WithsetThreshold 设置入围分数线
func WithsetThreshold(threshold int) SettingOpt {
	return func(s *Settings) {
		s.Threshold = threshold
	}
}

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			s.Logger = log.New(io.Discard, "", 0)
		}
	}
}

// CreateMatchPipeline 纯选项风格的组装入口
// 适合组件来源分散的调用方, 语义与 NewMatchPipeline 一致
func CreateMatchPipeline(compOpts []ComponentOpt, setOpts []SettingOpt) (*MatchPipeline, error) {
	comp := &Components{}
	for _, opt := range compOpts {
		opt(comp)
	}
	return NewMatchPipeline(comp, &Settings{}, setOpts...)
}
