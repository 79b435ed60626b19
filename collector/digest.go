package collector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"leadwatch/detector"
	"leadwatch/i18n"
)

// traderAlerts 单个带单员本轮触发的报警
type traderAlerts struct {
	InstID   string
	NickName string
	Alerts   []detector.Alert
}

// formatDigest 按带单员分组生成报警摘要
func formatDigest(lang string, loc *time.Location, now time.Time, groups []traderAlerts) (title, body string) {
	title = i18n.TWithLang(lang, "alert.title", map[string]interface{}{
		"Time": now.In(loc).Format("2006-01-02 15:04:05"),
	})

	sections := make([]string, 0, len(groups))
	for _, g := range groups {
		name := g.NickName
		if name == "" {
			name = g.InstID
		}
		lines := []string{i18n.TWithLang(lang, "alert.trader", map[string]interface{}{"Name": name})}
		for _, a := range g.Alerts {
			lines = append(lines, formatAlert(lang, a))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return title, strings.Join(sections, "\n\n")
}

func formatAlert(lang string, a detector.Alert) string {
	return i18n.TWithLang(lang, "alert.line", map[string]interface{}{
		"Horizon":   i18n.TWithLang(lang, "horizon."+a.Horizon.Name),
		"Kind":      i18n.TWithLang(lang, "kind."+string(a.Kind)),
		"Old":       formatMoney(a.OldValue),
		"New":       formatMoney(a.NewValue),
		"Direction": i18n.TWithLang(lang, "direction."+string(a.Direction())),
		"Percent":   fmt.Sprintf("%.1f", a.Percent*100),
	})
}

// formatMoney 金额取整显示，.5 远离零舍入
func formatMoney(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
