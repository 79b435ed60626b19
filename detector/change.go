// Package detector 判断带单员资产在各个时间窗口内是否发生异动
package detector

import (
	"math"
	"time"
)

// DefaultThreshold 默认报警阈值（5%）
const DefaultThreshold = 0.05

// Horizon 对比窗口
type Horizon struct {
	Name    string // 5m / 1h / 24h
	Buckets int    // 回看的5分钟桶数
}

var (
	Horizon5m  = Horizon{Name: "5m", Buckets: 1}
	Horizon1h  = Horizon{Name: "1h", Buckets: 12}
	Horizon24h = Horizon{Name: "24h", Buckets: 288}

	// Horizons 按从短到长排列
	Horizons = []Horizon{Horizon5m, Horizon1h, Horizon24h}
)

// Lookback 窗口对应的时长
func (h Horizon) Lookback(bucket time.Duration) time.Duration {
	return time.Duration(h.Buckets) * bucket
}

// Kind 报警类型
type Kind string

const (
	KindTotal Kind = "total" // 总资产 = 带单规模 + 自有资产
	KindScale Kind = "scale" // 带单规模
)

// Direction 变化方向
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Snapshot 历史快照中参与比较的字段
type Snapshot struct {
	Aum       float64
	InvestAmt float64
	LeadPnl   float64
}

// Total 历史总资产
func (s Snapshot) Total() float64 {
	return s.Aum + s.InvestAmt + s.LeadPnl
}

// Alert 一条异动
type Alert struct {
	Horizon  Horizon
	Kind     Kind
	OldValue float64
	NewValue float64
	Percent  float64 // (new-old)/old，0.2 表示 20%
}

// Direction 涨或跌
func (a Alert) Direction() Direction {
	if a.Percent > 0 {
		return Up
	}
	return Down
}

// Check 对比当前值与历史快照，old 为 nil 时不产生报警
func Check(h Horizon, currentTotal, currentScale float64, old *Snapshot, threshold float64) []Alert {
	if old == nil {
		return nil
	}

	var alerts []Alert
	if a, ok := compare(h, KindTotal, old.Total(), currentTotal, threshold); ok {
		alerts = append(alerts, a)
	}
	if a, ok := compare(h, KindScale, old.Aum, currentScale, threshold); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

// compare 基数不为正时跳过，|pct| >= threshold 触发
func compare(h Horizon, kind Kind, oldValue, newValue, threshold float64) (Alert, bool) {
	if !(oldValue > 0) {
		return Alert{}, false
	}
	pct := (newValue - oldValue) / oldValue
	if math.IsNaN(pct) || math.Abs(pct) < threshold {
		return Alert{}, false
	}
	return Alert{Horizon: h, Kind: kind, OldValue: oldValue, NewValue: newValue, Percent: pct}, true
}
