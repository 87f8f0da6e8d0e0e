// internal/services/llm_service.go
package services

import (
	"fmt"
	"sync"

	"github.com/Corphon/OverwatchVoice/internal/config"
	"github.com/Corphon/OverwatchVoice/internal/llm"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// LLMService 管理可选的生成式对话后端。未配置或初始化失败时处于待机状态，
// 对话回退到模板。
type LLMService struct {
	mu           sync.RWMutex
	provider     llm.Provider
	providerName string
	isReady      bool
	readyState   string
}

// NewLLMService 根据配置创建服务，初始化失败不返回错误
func NewLLMService(cfg *config.Config) *LLMService {
	service := &LLMService{readyState: "Uninitialized"}

	if cfg == nil || !cfg.GenerativeDialogueEnabled() {
		service.readyState = "Generative dialogue disabled"
		return service
	}

	if err := service.UpdateProvider(cfg.LLMProvider, cfg.LLMSettings()); err != nil {
		utils.GetLogger().Warn("⚠️ 生成式对话初始化失败，使用模板回应", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err,
		})
	}
	return service
}

// NewLLMServiceWithProvider 直接使用已初始化的提供者
func NewLLMServiceWithProvider(provider llm.Provider) *LLMService {
	service := &LLMService{readyState: "Generative dialogue disabled"}
	if provider != nil {
		service.provider = provider
		service.providerName = provider.GetName()
		service.isReady = true
		service.readyState = "Ready"
	}
	return service
}

// UpdateProvider 切换提供者
func (s *LLMService) UpdateProvider(providerName string, settings map[string]string) error {
	provider, err := llm.GetProvider(providerName, settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.provider = nil
		s.isReady = false
		s.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return err
	}

	s.provider = provider
	s.providerName = providerName
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isReady && s.provider != nil
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	if s == nil {
		return "Generative dialogue disabled"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyState
}

// GetProvider 返回当前提供者，未就绪时为 nil
func (s *LLMService) GetProvider() llm.Provider {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return nil
	}
	return s.provider
}

// GetProviderName 返回提供者名称
func (s *LLMService) GetProviderName() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providerName
}
