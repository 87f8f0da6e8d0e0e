// internal/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 会话注册表驱动
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// 语音合成驱动
const (
	TTSProviderOpenAI = "openai"
	TTSProviderTone   = "tone"
)

// Config 存储应用配置
type Config struct {
	// 基础配置
	Host      string
	Port      string
	LogDir    string
	DebugMode bool

	// 语音识别
	UseMockSTT     bool
	StubTranscript string
	STTModel       string
	STTLanguage    string

	// 语音合成
	TTSProvider string
	TTSModel    string

	// OpenAI 兼容接口（语音识别/合成共用）
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// 生成式对话，可选
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration

	// 会话
	HeartbeatInterval   time.Duration
	MaxInferenceWorkers int
	SessionStore        string
	RedisURL            string
	SessionTTL          time.Duration
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	config := &Config{
		Host:      getEnv("HOST", "0.0.0.0"),
		Port:      getEnv("PORT", "8000"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", false),

		UseMockSTT:     getEnvBool("USE_MOCK_STT", false),
		StubTranscript: getEnv("STUB_TRANSCRIPT", ""),
		STTModel:       getEnv("STT_MODEL", "whisper-1"),
		STTLanguage:    getEnv("STT_LANGUAGE", "en"),

		TTSProvider: strings.ToLower(getEnv("TTS_PROVIDER", TTSProviderTone)),
		TTSModel:    getEnv("TTS_MODEL", "tts-1"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "")),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMTimeout:  getEnvDuration("LLM_TIMEOUT", 5*time.Second),

		HeartbeatInterval:   getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		MaxInferenceWorkers: getEnvInt("MAX_INFERENCE_WORKERS", 4),
		SessionStore:        strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 2*time.Minute),
	}

	// LLM 未单独配置密钥时沿用 OpenAI 密钥
	if config.LLMAPIKey == "" && config.LLMProvider == "openai" {
		config.LLMAPIKey = config.OpenAIAPIKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 检查配置取值是否合法
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT 不能为空")
	}
	// 0 表示由系统分配端口
	if p, err := strconv.Atoi(c.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("PORT 无效: %q", c.Port)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL 必须大于 0")
	}
	if c.MaxInferenceWorkers <= 0 {
		return fmt.Errorf("MAX_INFERENCE_WORKERS 必须大于 0")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT 必须大于 0")
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("SESSION_STORE=redis 需要设置 REDIS_URL")
		}
		if c.SessionTTL <= 0 {
			return fmt.Errorf("SESSION_TTL 必须大于 0")
		}
	default:
		return fmt.Errorf("未知的 SESSION_STORE: %q", c.SessionStore)
	}

	switch c.TTSProvider {
	case TTSProviderTone, TTSProviderOpenAI:
	default:
		return fmt.Errorf("未知的 TTS_PROVIDER: %q", c.TTSProvider)
	}

	return nil
}

// Addr 返回监听地址
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// GenerativeDialogueEnabled 是否启用生成式对话
func (c *Config) GenerativeDialogueEnabled() bool {
	return c.LLMProvider != ""
}

// LLMSettings 返回传给 llm.Provider.Initialize 的配置
func (c *Config) LLMSettings() map[string]string {
	settings := map[string]string{
		"api_key": c.LLMAPIKey,
	}
	if c.LLMModel != "" {
		settings["default_model"] = c.LLMModel
	}
	if c.LLMBaseURL != "" {
		settings["base_url"] = c.LLMBaseURL
	}
	return settings
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量，解析失败时返回默认值
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Printf("警告: %s=%q 不是整数，使用默认值 %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration 支持 "30s" 形式，纯数字按秒处理
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("警告: %s=%q 不是有效时长，使用默认值 %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
