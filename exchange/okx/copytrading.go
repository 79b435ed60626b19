package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"leadwatch/logger"
)

const (
	leadTradersPath = "/api/v5/copytrading/public-lead-traders"
	publicStatsPath = "/api/v5/copytrading/public-stats"
	tradeDataPath   = "/priapi/v5/ecotrade/public/trader/trade-data"

	// PageSize 排行榜每页条数
	PageSize = 20
)

// LeadTrader 排行榜中的带单员
type LeadTrader struct {
	InstID           string   `json:"instId"`
	NickName         string   `json:"nickName"`
	Ccy              string   `json:"ccy"`
	LeadDays         int      `json:"leadDays"`
	CopyTraderNum    int      `json:"copyTraderNum"`
	MaxCopyTraderNum int      `json:"maxCopyTraderNum"`
	AvatarURL        string   `json:"avatarUrl"`
	TraderInsts      []string `json:"traderInsts"`
	Aum              float64  `json:"aum"` // 带单规模（跟单资金）
	Pnl              float64  `json:"pnl"` // 仅 LeadTraderMap 解析
}

// TopTrader 带排名信息的带单员
type TopTrader struct {
	LeadTrader
	Page     int `json:"page"`
	Position int `json:"position"` // 全局排名，从1开始
}

// Stats 带单员统计
type Stats struct {
	Ccy               string  `json:"ccy"`
	WinRatio          float64 `json:"winRatio"`
	ProfitDays        int     `json:"profitDays"`
	LossDays          int     `json:"lossDays"`
	AvgSubPosNotional float64 `json:"avgSubPosNotional"`
	InvestAmt         float64 `json:"investAmt"`
	CurCopyTraderPnl  float64 `json:"curCopyTraderPnl"`
}

func (c *Client) fetchRanksPage(ctx context.Context, page int) (*ranksPage, error) {
	params := url.Values{}
	params.Set("instType", "SWAP")
	params.Set("sortType", "overview")
	params.Set("limit", strconv.Itoa(PageSize))
	params.Set("page", strconv.Itoa(page))

	data, err := c.get(ctx, "public-lead-traders", leadTradersPath, params)
	if err != nil {
		return nil, fmt.Errorf("获取排行榜第 %d 页失败: %w", page, err)
	}
	return decodeRanksPage(data)
}

// ListTopTraders 获取排行榜前 limit 名
func (c *Client) ListTopTraders(ctx context.Context, limit int) ([]TopTrader, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit: %d", limit)
	}
	pages := (limit + PageSize - 1) / PageSize
	out := make([]TopTrader, 0, limit)

	for page := 1; page <= pages; page++ {
		p, err := c.fetchRanksPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for i, raw := range p.ranks {
			t, err := decodeLeadTrader(i, raw, false)
			if err != nil {
				return nil, err
			}
			out = append(out, TopTrader{
				LeadTrader: *t,
				Page:       page,
				Position:   (page-1)*PageSize + i + 1,
			})
			if len(out) >= limit {
				return out, nil
			}
		}
		if len(p.ranks) == 0 || page >= p.totalPage {
			break
		}
	}
	return out, nil
}

// LookupTrader 逐页查找指定带单员
func (c *Client) LookupTrader(ctx context.Context, instID string) (*LeadTrader, error) {
	totalPage := 1
	for page := 1; page <= totalPage; page++ {
		p, err := c.fetchRanksPage(ctx, page)
		if err != nil {
			return nil, err
		}
		totalPage = p.totalPage

		for i, raw := range p.ranks {
			id, err := rankID(i, raw)
			if err != nil {
				return nil, err
			}
			if id != instID {
				continue
			}
			return decodeLeadTrader(i, raw, false)
		}
	}
	return nil, &NotFoundError{Resource: "lead trader", IDs: []string{instID}}
}

// LeadTraderMap 逐页查找所有指定带单员，找齐即停止；有任何一个找不到都返回错误
func (c *Client) LeadTraderMap(ctx context.Context, instIDs []string) (map[string]*LeadTrader, error) {
	wanted := make(map[string]bool, len(instIDs))
	for _, id := range instIDs {
		wanted[id] = true
	}
	found := make(map[string]*LeadTrader, len(wanted))
	if len(wanted) == 0 {
		return found, nil
	}

	totalPage := 1
	for page := 1; page <= totalPage; page++ {
		p, err := c.fetchRanksPage(ctx, page)
		if err != nil {
			return nil, err
		}
		totalPage = p.totalPage

		for i, raw := range p.ranks {
			id, err := rankID(i, raw)
			if err != nil {
				return nil, err
			}
			if !wanted[id] || found[id] != nil {
				continue
			}
			t, err := decodeLeadTrader(i, raw, true)
			if err != nil {
				return nil, err
			}
			if t.Pnl != 0 {
				logger.Debug("[LeadMap] %s (%s) pnl=%v", t.InstID, t.NickName, t.Pnl)
			}
			found[id] = t
		}

		if len(found) == len(wanted) {
			break
		}
	}

	var missing []string
	for _, id := range instIDs {
		if found[id] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Resource: "watched lead trader", IDs: missing}
	}
	return found, nil
}

// FetchStats 获取带单员近4天统计
func (c *Client) FetchStats(ctx context.Context, instID string) (*Stats, error) {
	params := url.Values{}
	params.Set("instType", "SWAP")
	params.Set("uniqueCode", instID)
	params.Set("lastDays", "4")

	data, err := c.get(ctx, "public-stats", publicStatsPath, params)
	if err != nil {
		return nil, fmt.Errorf("获取 %s 统计失败: %w", instID, err)
	}
	stats, err := decodeStats(instID, data)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 统计失败: %w", instID, err)
	}
	return stats, nil
}

// FetchTraderAsset 获取带单员自有资产（与网页展示一致）
func (c *Client) FetchTraderAsset(ctx context.Context, instID string) (float64, error) {
	params := url.Values{}
	params.Set("latestNum", "0")
	params.Set("bizType", "SWAP")
	params.Set("uniqueName", instID)

	data, err := c.get(ctx, "trade-data", tradeDataPath, params)
	if err != nil {
		return 0, fmt.Errorf("获取 %s 资产失败: %w", instID, err)
	}
	asset, err := decodeTraderAsset(data)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 资产失败: %w", instID, err)
	}
	logger.Debug("[TradeData] %s traderAsset=%v", instID, asset)
	return asset, nil
}
