package i18n

import (
	"embed"
	"fmt"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"leadwatch/logger"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// SupportedLanguages 支持的语言，第一个为默认语言
var SupportedLanguages = []string{"zh-CN", "en-US"}

var (
	bundle         *i18n.Bundle
	defaultLang    = "zh-CN"
	mu             sync.RWMutex
	systemLanguage string
)

// Init 初始化 i18n 系统
func Init(lang string) error {
	mu.Lock()
	defer mu.Unlock()

	if lang == "" {
		lang = defaultLang
	}
	systemLanguage = lang

	b := i18n.NewBundle(language.Chinese)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	for _, l := range SupportedLanguages {
		filename := fmt.Sprintf("locales/%s.yaml", l)
		if _, err := b.LoadMessageFileFS(localeFS, filename); err != nil {
			if l == defaultLang {
				return fmt.Errorf("加载默认语言文件 %s 失败: %w", filename, err)
			}
			// 非默认语言加载失败时回退到默认语言
			logger.Warn("⚠️ 加载翻译文件 %s 失败: %v", filename, err)
		}
	}
	bundle = b
	return nil
}

// ensureInit 未显式初始化时使用默认语言初始化
func ensureInit() {
	mu.RLock()
	ready := bundle != nil
	mu.RUnlock()
	if !ready {
		if err := Init(""); err != nil {
			logger.Error("❌ 初始化 i18n 失败: %v", err)
		}
	}
}

// GetLocalizer 获取指定语言的 Localizer
func GetLocalizer(lang string) *i18n.Localizer {
	ensureInit()

	mu.RLock()
	defer mu.RUnlock()
	if bundle == nil {
		return nil
	}
	if lang == "" {
		lang = systemLanguage
	}
	return i18n.NewLocalizer(bundle, lang, defaultLang)
}

// T 翻译消息（使用系统默认语言）
func T(key string, data ...map[string]interface{}) string {
	return TWithLang("", key, data...)
}

// TWithLang 翻译消息（指定语言），找不到时返回 key
func TWithLang(lang string, key string, data ...map[string]interface{}) string {
	localizer := GetLocalizer(lang)
	if localizer == nil {
		return key
	}

	var templateData map[string]interface{}
	if len(data) > 0 {
		templateData = data[0]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		return key
	}
	return msg
}

// SetSystemLanguage 设置系统默认语言
func SetSystemLanguage(lang string) {
	mu.Lock()
	defer mu.Unlock()
	systemLanguage = lang
}

// GetSystemLanguage 获取系统默认语言
func GetSystemLanguage() string {
	mu.RLock()
	defer mu.RUnlock()
	return systemLanguage
}
