package okx

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// row 一条待校验的原始记录
type row struct {
	scope  string
	index  int
	fields map[string]json.RawMessage
}

func newRow(scope string, index int, raw json.RawMessage) (row, error) {
	r := row{scope: scope, index: index}
	if err := json.Unmarshal(raw, &r.fields); err != nil || r.fields == nil {
		return r, &ValidationError{Scope: scope, Row: index, Value: rawValue(raw)}
	}
	return r, nil
}

func (r row) fail(field string, raw json.RawMessage) error {
	return &ValidationError{Scope: r.scope, Row: r.index, Field: field, Value: rawValue(raw)}
}

func (r row) raw(field string) json.RawMessage {
	v := bytes.TrimSpace(r.fields[field])
	if string(v) == "null" {
		return nil
	}
	return v
}

// str 非空字符串
func (r row) str(field string) (string, error) {
	raw := r.raw(field)
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return "", r.fail(field, raw)
	}
	return s, nil
}

// num 接受数字或数字字符串，必须是有限值
func (r row) num(field string) (float64, error) {
	raw := r.raw(field)
	n, ok := parseNumber(raw)
	if !ok {
		return 0, r.fail(field, raw)
	}
	return n, nil
}

// integer 与 num 相同，小数部分截断，超出 int 范围视为无效
func (r row) integer(field string) (int, error) {
	n, err := r.num(field)
	if err != nil {
		return 0, err
	}
	t := math.Trunc(n)
	if t < float64(math.MinInt) || t >= float64(math.MaxInt) {
		return 0, r.fail(field, r.raw(field))
	}
	return int(t), nil
}

// strs 非空字符串数组
func (r row) strs(field string) ([]string, error) {
	raw := r.raw(field)
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return nil, r.fail(field, raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) != nil || s == "" {
			return nil, r.fail(field, raw)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if json.Unmarshal(raw, &text) != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func rawValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}

// firstData 取 data[0]
func firstData(scope string, data json.RawMessage) (json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &ValidationError{Scope: scope, Row: -1, Field: "data", Value: rawValue(data)}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// ranksPage 排行榜一页
type ranksPage struct {
	totalPage int
	ranks     []json.RawMessage
}

func decodeRanksPage(data json.RawMessage) (*ranksPage, error) {
	first, err := firstData("public-lead-traders", data)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, &ValidationError{Scope: "public-lead-traders", Row: -1, Field: "data[0]"}
	}
	head, err := newRow("public-lead-traders", -1, first)
	if err != nil {
		return nil, err
	}

	totalPage, err := head.integer("totalPage")
	if err != nil {
		return nil, err
	}

	var ranks []json.RawMessage
	rawRanks := head.raw("ranks")
	if len(rawRanks) == 0 || json.Unmarshal(rawRanks, &ranks) != nil || ranks == nil {
		return nil, head.fail("ranks", rawRanks)
	}
	return &ranksPage{totalPage: totalPage, ranks: ranks}, nil
}

// rankID 只解析 uniqueCode，用于跳过不需要的行
func rankID(index int, raw json.RawMessage) (string, error) {
	r, err := newRow("ranks", index, raw)
	if err != nil {
		return "", err
	}
	return r.str("uniqueCode")
}

// decodeLeadTrader 完整解析一行排行榜数据，withPnl 时要求 pnl 字段
func decodeLeadTrader(index int, raw json.RawMessage, withPnl bool) (*LeadTrader, error) {
	r, err := newRow("ranks", index, raw)
	if err != nil {
		return nil, err
	}

	var t LeadTrader
	if t.InstID, err = r.str("uniqueCode"); err != nil {
		return nil, err
	}
	if t.NickName, err = r.str("nickName"); err != nil {
		return nil, err
	}
	if t.Ccy, err = r.str("ccy"); err != nil {
		return nil, err
	}
	if t.LeadDays, err = r.integer("leadDays"); err != nil {
		return nil, err
	}
	if t.CopyTraderNum, err = r.integer("copyTraderNum"); err != nil {
		return nil, err
	}
	if t.MaxCopyTraderNum, err = r.integer("maxCopyTraderNum"); err != nil {
		return nil, err
	}
	if t.AvatarURL, err = r.str("portLink"); err != nil {
		return nil, err
	}
	if t.Aum, err = r.num("aum"); err != nil {
		return nil, err
	}
	if withPnl {
		if t.Pnl, err = r.num("pnl"); err != nil {
			return nil, err
		}
	}
	if t.TraderInsts, err = r.strs("traderInsts"); err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeStats(instID string, data json.RawMessage) (*Stats, error) {
	first, err := firstData("public-stats", data)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, &NotFoundError{Resource: "public-stats", IDs: []string{instID}}
	}
	r, err := newRow("public-stats", -1, first)
	if err != nil {
		return nil, err
	}

	var s Stats
	if s.Ccy, err = r.str("ccy"); err != nil {
		return nil, err
	}
	if s.WinRatio, err = r.num("winRatio"); err != nil {
		return nil, err
	}
	if s.ProfitDays, err = r.integer("profitDays"); err != nil {
		return nil, err
	}
	if s.LossDays, err = r.integer("lossDays"); err != nil {
		return nil, err
	}
	if s.AvgSubPosNotional, err = r.num("avgSubPosNotional"); err != nil {
		return nil, err
	}
	if s.InvestAmt, err = r.num("investAmt"); err != nil {
		return nil, err
	}
	if s.CurCopyTraderPnl, err = r.num("curCopyTraderPnl"); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeTraderAsset 从 nonPeriodicPart 中取 functionId == "asset" 的值
func decodeTraderAsset(data json.RawMessage) (float64, error) {
	first, err := firstData("trade-data", data)
	if err != nil {
		return 0, err
	}
	if first == nil {
		return 0, &ValidationError{Scope: "trade-data", Row: -1, Field: "data[0]"}
	}
	head, err := newRow("trade-data", -1, first)
	if err != nil {
		return 0, err
	}

	var parts []json.RawMessage
	rawParts := head.raw("nonPeriodicPart")
	if len(rawParts) == 0 || json.Unmarshal(rawParts, &parts) != nil || parts == nil {
		return 0, head.fail("nonPeriodicPart", rawParts)
	}

	for i, raw := range parts {
		part, err := newRow("nonPeriodicPart", i, raw)
		if err != nil {
			return 0, err
		}
		var id string
		if json.Unmarshal(part.raw("functionId"), &id) != nil || id != "asset" {
			continue
		}
		return part.num("value")
	}
	return 0, &ValidationError{Scope: "trade-data", Row: -1, Field: "nonPeriodicPart[asset]"}
}
