// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Corphon/OverwatchVoice/internal/app"
	"github.com/Corphon/OverwatchVoice/internal/config"
	"github.com/Corphon/OverwatchVoice/internal/utils"

	// 注册生成式对话提供者
	_ "github.com/Corphon/OverwatchVoice/internal/llm/providers/openai"
	_ "github.com/Corphon/OverwatchVoice/internal/llm/providers/openrouter"
)

type serverFlags struct {
	host   string
	port   int
	mock   bool
	logDir string
	debug  bool
}

func main() {
	flags := &serverFlags{}

	rootCmd := &cobra.Command{
		Use:          "overwatch-server",
		Short:        "Voice command server for the Overwatch squad game",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.host, "host", "", "listen host (overrides HOST)")
	rootCmd.Flags().IntVar(&flags.port, "port", 0, "listen port (overrides PORT)")
	rootCmd.Flags().BoolVar(&flags.mock, "mock", false, "use stub transcription instead of whisper")
	rootCmd.Flags().StringVar(&flags.logDir, "log-dir", "", "log directory (overrides LOG_DIR)")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "debug logging and gin debug mode")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, flags *serverFlags) error {
	logger := utils.GetLogger()
	logger.Info("🚀 启动 Overwatch 语音指令服务器...", nil)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	applyFlags(cmd, cfg, flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}
	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("overwatch-%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		logger.Warn("⚠️ 日志文件初始化失败，仅输出到控制台", map[string]interface{}{"error": err})
	}
	defer logger.Close()

	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}

	logger.Info("✅ 配置加载完成", map[string]interface{}{
		"addr":          cfg.Addr(),
		"mock_stt":      cfg.UseMockSTT,
		"tts":           cfg.TTSProvider,
		"llm":           cfg.LLMProvider,
		"session_store": cfg.SessionStore,
	})

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("创建应用失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("❌ 服务器异常退出", map[string]interface{}{"error": err})
		return err
	}
	return nil
}

// applyFlags 命令行参数覆盖环境变量
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags *serverFlags) {
	if cmd.Flags().Changed("host") {
		cfg.Host = flags.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = fmt.Sprintf("%d", flags.port)
	}
	if cmd.Flags().Changed("mock") {
		cfg.UseMockSTT = flags.mock
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.LogDir = flags.logDir
	}
	if cmd.Flags().Changed("debug") {
		cfg.DebugMode = flags.debug
	}
}
