// cmd/demo/main.go
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Corphon/OverwatchVoice/internal/models"
)

type demoFlags struct {
	url     string
	outDir  string
	speaker string
	wait    time.Duration
}

func main() {
	flags := &demoFlags{}

	rootCmd := &cobra.Command{
		Use:   "overwatch-demo [command...]",
		Short: "Console client for the Overwatch voice command server",
		Long: "Sends text commands and TTS requests over the WebSocket and prints every envelope it receives.\n" +
			"With arguments, each argument is sent as one text command; without, an interactive prompt starts.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags, args)
		},
	}

	rootCmd.Flags().StringVar(&flags.url, "url", "ws://localhost:8000/ws", "server WebSocket URL")
	rootCmd.Flags().StringVar(&flags.outDir, "out-dir", "", "write received voice payloads as WAV files into this directory")
	rootCmd.Flags().StringVar(&flags.speaker, "speaker", "default", "speaker for /say requests")
	rootCmd.Flags().DurationVar(&flags.wait, "wait", 3*time.Second, "time to wait for replies after the last command in one-shot mode")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *demoFlags, args []string) error {
	if flags.outDir != "" {
		if err := os.MkdirAll(flags.outDir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(flags.url, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	defer conn.Close()

	fmt.Printf("🔗 已连接 %s\n", flags.url)

	client := &demoClient{conn: conn, outDir: flags.outDir}
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.readLoop()
	}()

	if len(args) > 0 {
		for _, text := range args {
			if err := client.send(models.InboundEnvelope{Type: models.TypeTextCommand, Text: text}); err != nil {
				return err
			}
		}
		select {
		case <-done:
		case <-time.After(flags.wait):
		}
		return nil
	}

	printHelp()
	speaker := flags.speaker
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "":
			continue
		case input == "/quit" || input == "/exit":
			fmt.Println("👋 再见")
			return nil
		case input == "/help":
			printHelp()
		case strings.HasPrefix(input, "/speaker "):
			speaker = strings.TrimSpace(strings.TrimPrefix(input, "/speaker "))
			fmt.Printf("🔊 当前声线: %s\n", speaker)
		case strings.HasPrefix(input, "/say "):
			text := strings.TrimSpace(strings.TrimPrefix(input, "/say "))
			if err := client.send(models.InboundEnvelope{Type: models.TypeTTSRequest, Text: text, Speaker: speaker}); err != nil {
				return err
			}
		case strings.HasPrefix(input, "/audio "):
			path := strings.TrimSpace(strings.TrimPrefix(input, "/audio "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("❌ 读取音频失败: %v\n", err)
				continue
			}
			if err := client.send(models.InboundEnvelope{Type: models.TypeAudio, Audio: base64.StdEncoding.EncodeToString(data)}); err != nil {
				return err
			}
		default:
			if err := client.send(models.InboundEnvelope{Type: models.TypeTextCommand, Text: input}); err != nil {
				return err
			}
		}

		select {
		case <-done:
			fmt.Println("🔌 连接已关闭")
			return nil
		default:
		}
	}
}

func printHelp() {
	fmt.Println("输入文本指令直接发送，例如: alpha team move to grid c5")
	fmt.Println("  /say <text>       请求语音合成")
	fmt.Println("  /speaker <id>     切换 /say 使用的声线 (default, alpha, command)")
	fmt.Println("  /audio <file>     发送音频文件")
	fmt.Println("  /quit             退出")
}

type demoClient struct {
	conn    *websocket.Conn
	outDir  string
	writeMu sync.Mutex
	voices  int
}

func (c *demoClient) send(env models.InboundEnvelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

// readLoop 打印收到的消息，并回复 ping
func (c *demoClient) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env models.OutboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			fmt.Printf("\n⚠️ 无法解析消息: %s\n", string(data))
			continue
		}

		switch env.Type {
		case models.TypePing:
			_ = c.send(models.InboundEnvelope{Type: models.TypePong})
			continue
		case models.TypeTranscription:
			fmt.Printf("\n🎙️ 识别: %s\n", env.Text)
		case models.TypeCommand:
			pretty, _ := json.Marshal(env.Command)
			fmt.Printf("\n🎯 命令: %s\n", pretty)
		case models.TypeDialogue:
			fmt.Printf("\n💬 [%s] %s\n", env.Speaker, env.Text)
		case models.TypeVoice:
			c.saveVoice(env.Audio)
		case models.TypeError:
			fmt.Printf("\n❌ 错误: %s\n", env.Message)
		default:
			fmt.Printf("\n📨 %s\n", string(data))
		}
	}
}

func (c *demoClient) saveVoice(payload string) {
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		fmt.Printf("\n⚠️ 语音数据无效: %v\n", err)
		return
	}
	if c.outDir == "" {
		fmt.Printf("\n🔊 语音: %d 字节\n", len(audio))
		return
	}

	c.voices++
	path := filepath.Join(c.outDir, fmt.Sprintf("voice-%03d.wav", c.voices))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		fmt.Printf("\n⚠️ 保存语音失败: %v\n", err)
		return
	}
	fmt.Printf("\n🔊 语音已保存: %s (%d 字节)\n", path, len(audio))
}
