package constants

// Redis Key 前缀和格式常量
// 统一命名规范: ats:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "ats"

	// ExtractModulePrefix 简历提取模块
	ExtractModulePrefix = "extract"
	// NotifyModulePrefix 通知模块
	NotifyModulePrefix = "notify"

	// EntityCache 缓存实体
	EntityCache = "cache"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyExtractionCache LLM提取结果缓存 (STRING)
	// 格式: ats:extract:cache:{cv_text_md5}
	KeyExtractionCache = AppPrefix + ":" + ExtractModulePrefix + ":" + EntityCache + ":%s"

	// KeyNotifyLock 通知批次分布式锁 (STRING)
	// 格式: ats:notify:lock:{jobID}
	KeyNotifyLock = AppPrefix + ":" + NotifyModulePrefix + ":" + EntityLock + ":%s"
)
