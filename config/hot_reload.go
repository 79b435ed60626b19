package config

import (
	"fmt"
	"sync"
)

// HotReloader 配置热更新器
type HotReloader struct {
	mu              sync.RWMutex
	currentConfig   *Config
	updateCallbacks []ConfigUpdateCallback
}

// ConfigUpdateCallback 配置更新回调函数类型
type ConfigUpdateCallback func(oldConfig, newConfig *Config, changes []ConfigChange) error

// NewHotReloader 创建热更新器
func NewHotReloader(initialConfig *Config) *HotReloader {
	return &HotReloader{
		currentConfig: initialConfig,
	}
}

// RegisterCallback 注册配置更新回调
func (hr *HotReloader) RegisterCallback(callback ConfigUpdateCallback) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.updateCallbacks = append(hr.updateCallbacks, callback)
}

// UpdateConfig 更新配置（热更新）
// 需要重启的变更不会生效，只保留在返回的差异中用于提示
func (hr *HotReloader) UpdateConfig(newConfig *Config) (*ConfigDiff, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	diff := DiffConfig(hr.currentConfig, newConfig)
	if !diff.HasChanges() {
		return diff, nil
	}

	var hotChanges []ConfigChange
	for _, change := range diff.Changes {
		if !change.RequiresRestart {
			hotChanges = append(hotChanges, change)
		}
	}

	merged := mergeHotReloadable(hr.currentConfig, newConfig)
	if len(hotChanges) > 0 {
		for _, callback := range hr.updateCallbacks {
			if err := callback(hr.currentConfig, merged, hotChanges); err != nil {
				return nil, fmt.Errorf("配置更新回调执行失败: %w", err)
			}
		}
	}

	hr.currentConfig = merged
	return diff, nil
}

// mergeHotReloadable 以旧配置为基础，只复制可热更新的字段
func mergeHotReloadable(oldCfg, newCfg *Config) *Config {
	result := *oldCfg
	result.System.LogLevel = newCfg.System.LogLevel
	result.System.Language = newCfg.System.Language
	result.Collector.Threshold = newCfg.Collector.Threshold
	result.Collector.EnableAlerting = newCfg.Collector.EnableAlerting
	result.Collector.AccurateAsset = newCfg.Collector.AccurateAsset
	result.Collector.Concurrency = newCfg.Collector.Concurrency
	result.Collector.ChunkSize = newCfg.Collector.ChunkSize
	result.Notifications = newCfg.Notifications
	return &result
}

// GetCurrentConfig 获取当前配置
func (hr *HotReloader) GetCurrentConfig() *Config {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.currentConfig
}
