package web

import (
	"strings"

	"github.com/gin-gonic/gin"

	lwi18n "leadwatch/i18n"
)

// I18nMiddleware 解析请求的 Accept-Language 头并设置到上下文
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("language", parseAcceptLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// parseAcceptLanguage 解析 Accept-Language 头
// 示例: "en-US,en;q=0.9,zh;q=0.8" -> "en-US"
func parseAcceptLanguage(acceptLang string) string {
	first, _, _ := strings.Cut(acceptLang, ",")
	first, _, _ = strings.Cut(first, ";")
	return normalizeLanguage(strings.TrimSpace(first))
}

// normalizeLanguage 标准化语言代码，不支持的语言返回空字符串（使用系统语言）
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(lang)
	switch {
	case strings.HasPrefix(lang, "zh"):
		return "zh-CN"
	case strings.HasPrefix(lang, "en"):
		return "en-US"
	default:
		return ""
	}
}

// GetLanguage 从上下文获取语言
func GetLanguage(c *gin.Context) string {
	if lang, exists := c.Get("language"); exists {
		if l, ok := lang.(string); ok {
			return l
		}
	}
	return ""
}

// T 翻译消息（从上下文获取语言）
func T(c *gin.Context, key string, data ...map[string]interface{}) string {
	return lwi18n.TWithLang(GetLanguage(c), key, data...)
}
