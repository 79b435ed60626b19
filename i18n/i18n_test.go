package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Init("zh-CN"))

	assert.Equal(t, "1小时", T("horizon.1h"))
	assert.Equal(t, "1 hour", TWithLang("en-US", "horizon.1h"))
	assert.Equal(t, "🚨 资金异动报警 2024-01-01 08:00:00",
		T("alert.title", map[string]interface{}{"Time": "2024-01-01 08:00:00"}))

	line := TWithLang("zh-CN", "alert.line", map[string]interface{}{
		"Horizon": "1小时", "Kind": "总资产", "Old": "5000", "New": "6000",
		"Direction": "📈 暴涨", "Percent": "20.0",
	})
	assert.Equal(t, "[1小时] 总资产: 5000 -> 6000 (📈 暴涨 20.0%)", line)
}

func TestUnknownKeyAndLanguageFallback(t *testing.T) {
	require.NoError(t, Init(""))
	assert.Equal(t, "zh-CN", GetSystemLanguage())
	assert.Equal(t, "no.such.key", T("no.such.key"))
	// 不支持的语言回退到默认语言
	assert.Equal(t, "总资产", TWithLang("fr-FR", "kind.total"))
}
