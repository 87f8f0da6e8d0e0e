// internal/storage/voice_cache.go
package storage

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// PrimarySpeaker 预加载与 Get 使用的声线
const PrimarySpeaker = tts.SpeakerAlpha

// DefaultPhrases 启动时预生成的常用台词
var DefaultPhrases = []string{
	"Copy.",
	"Roger.",
	"Copy that.",
	"Moving.",
	"Moving to position.",
	"Holding position.",
	"Engaging.",
	"Targets engaged.",
	"Say again?",
	"Did not copy.",
	"Negative.",
	"Affirmative.",
	"Tango down.",
	"Contact!",
	"Taking fire!",
	"Man down!",
	"Airstrike inbound.",
	"Impact!",
}

// VoiceCacheStats 缓存统计
type VoiceCacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// VoiceLineCache 常用台词的语音缓存。
// 写入只发生在预加载阶段，读取通过原子指针无锁完成；同一个键先写入者生效。
type VoiceLineCache struct {
	synth       tts.Synthesizer
	concurrency int
	logger      *utils.Logger

	limiter atomic.Pointer[semaphore.Weighted]

	entries atomic.Pointer[map[string][]byte]
	phrases atomic.Pointer[[]string]
	writeMu sync.Mutex

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewVoiceLineCache 创建语音缓存，concurrency 为预加载时的并发合成数
func NewVoiceLineCache(synth tts.Synthesizer, concurrency int) *VoiceLineCache {
	if concurrency <= 0 {
		concurrency = 4
	}
	c := &VoiceLineCache{
		synth:       synth,
		concurrency: concurrency,
		logger:      utils.GetLogger(),
	}
	empty := make(map[string][]byte)
	c.entries.Store(&empty)
	noPhrases := []string{}
	c.phrases.Store(&noPhrases)
	return c
}

func cacheKey(text, speaker string) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + speaker
}

// Preload 用主声线合成所有台词并一次性发布，返回新增条目数。
// 单条合成失败只记录日志。
func (c *VoiceLineCache) Preload(ctx context.Context, phrases []string) int {
	start := time.Now()
	c.logger.Info("🔊 预加载语音台词...", map[string]interface{}{"count": len(phrases)})

	var (
		mu      sync.Mutex
		results = make(map[string][]byte, len(phrases))
		loaded  []string
	)

	profile := tts.Profile(PrimarySpeaker)
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for _, phrase := range phrases {
		phrase := phrase // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			audio, err := c.synth.Synthesize(ctx, phrase, profile)
			if err != nil || len(audio) == 0 {
				c.logger.Warn("台词合成失败，跳过", map[string]interface{}{
					"phrase": phrase,
					"error":  err,
				})
				return nil
			}

			key := cacheKey(phrase, PrimarySpeaker)
			mu.Lock()
			if _, exists := results[key]; !exists {
				results[key] = audio
				loaded = append(loaded, phrase)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	added := c.publish(results, loaded)

	c.logger.Info("✅ 语音台词预加载完成", map[string]interface{}{
		"cached":   added,
		"failed":   len(phrases) - len(results),
		"duration": time.Since(start),
	})
	return added
}

// publish 复制旧表并合并新条目，已有键不覆盖
func (c *VoiceLineCache) publish(results map[string][]byte, loaded []string) int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current := *c.entries.Load()
	next := make(map[string][]byte, len(current)+len(results))
	for k, v := range current {
		next[k] = v
	}

	added := 0
	for k, v := range results {
		if _, exists := next[k]; exists {
			continue
		}
		next[k] = v
		added++
	}

	phrases := append([]string(nil), *c.phrases.Load()...)
	for _, p := range loaded {
		if _, existed := current[cacheKey(p, PrimarySpeaker)]; !existed {
			phrases = append(phrases, p)
		}
	}

	c.entries.Store(&next)
	c.phrases.Store(&phrases)
	return added
}

// Get 按主声线查找，大小写不敏感
func (c *VoiceLineCache) Get(text string) ([]byte, bool) {
	return c.GetFor(text, PrimarySpeaker)
}

// GetFor 按指定声线查找
func (c *VoiceLineCache) GetFor(text, speaker string) ([]byte, bool) {
	audio, ok := (*c.entries.Load())[cacheKey(text, speaker)]
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return audio, ok
}

// SetLimiter 未命中时的合成受 sem 限制，与其他推理任务共用并发名额
func (c *VoiceLineCache) SetLimiter(sem *semaphore.Weighted) {
	c.limiter.Store(sem)
}

// GetOrGenerate 命中缓存直接返回，否则调用语音合成；合成结果不写入缓存
func (c *VoiceLineCache) GetOrGenerate(ctx context.Context, text, speaker string) ([]byte, error) {
	if speaker == "" {
		speaker = PrimarySpeaker
	}
	if audio, ok := c.GetFor(text, speaker); ok {
		return audio, nil
	}

	if sem := c.limiter.Load(); sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
	}
	return c.synth.Synthesize(ctx, text, tts.Profile(speaker))
}

// Phrases 返回已缓存的台词
func (c *VoiceLineCache) Phrases() []string {
	return append([]string(nil), *c.phrases.Load()...)
}

// Stats 返回缓存统计
func (c *VoiceLineCache) Stats() VoiceCacheStats {
	return VoiceCacheStats{
		Entries: len(*c.entries.Load()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// RegisterMetrics 将命中统计导出到 Prometheus
func (c *VoiceLineCache) RegisterMetrics(m *utils.Metrics) {
	if m == nil {
		return
	}
	m.RegisterCounterFunc("voice_cache_hits_total", "Voice cache lookups that hit", func() float64 {
		return float64(c.hits.Load())
	})
	m.RegisterCounterFunc("voice_cache_misses_total", "Voice cache lookups that missed", func() float64 {
		return float64(c.misses.Load())
	})
}
