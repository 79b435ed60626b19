package collector

import (
	"context"
	"fmt"

	"leadwatch/database"
	"leadwatch/exchange/okx"
	"leadwatch/logger"
	"leadwatch/utils"
)

// WatchStore 关注操作依赖的快照库操作
type WatchStore interface {
	IsWatched(ctx context.Context, instID string) (bool, error)
	Unwatch(ctx context.Context, instID string) (bool, error)
	ExecBatch(ctx context.Context, stmts []database.Statement, chunkSize int) error
}

// TraderSource 关注操作依赖的 OKX 接口
type TraderSource interface {
	LookupTrader(ctx context.Context, instID string) (*okx.LeadTrader, error)
	FetchStats(ctx context.Context, instID string) (*okx.Stats, error)
	FetchTraderAsset(ctx context.Context, instID string) (float64, error)
}

// Watcher 关注/取消关注
type Watcher struct {
	store  WatchStore
	source TraderSource
	opts   func() Options
}

// NewWatcher 创建关注管理器，资产口径随采集器配置变化
func NewWatcher(store WatchStore, source TraderSource, c *Collector) *Watcher {
	return &Watcher{store: store, source: source, opts: c.options}
}

// Toggle 已关注则取消，否则拉取一次当前数据并加入关注，返回新的关注状态
func (w *Watcher) Toggle(ctx context.Context, instID string) (bool, error) {
	watched, err := w.store.IsWatched(ctx, instID)
	if err != nil {
		return false, fmt.Errorf("查询关注状态失败: %w", err)
	}
	if watched {
		if _, err := w.store.Unwatch(ctx, instID); err != nil {
			return true, fmt.Errorf("取消关注失败: %w", err)
		}
		logger.Info("👋 已取消关注 %s", instID)
		return false, nil
	}

	opts := w.opts()
	lead, err := w.source.LookupTrader(ctx, instID)
	if err != nil {
		return false, err
	}
	st, err := w.source.FetchStats(ctx, instID)
	if err != nil {
		return false, err
	}
	asset := st.InvestAmt
	if opts.AccurateAsset {
		if asset, err = w.source.FetchTraderAsset(ctx, instID); err != nil {
			return false, err
		}
	}

	now := opts.Now()
	nowMs := now.UnixMilli()
	stmts, err := buildStatements(
		[]string{instID},
		map[string]*okx.LeadTrader{instID: lead},
		map[string]*traderStats{instID: {stats: st, asset: asset}},
		utils.CurrentBucket(now), nowMs,
	)
	if err != nil {
		return false, err
	}
	// 新关注不存在 updated_at 可刷新，替换为插入关注记录
	stmts[2] = stmts[1]
	stmts[1] = database.InsertWatched(instID, nowMs)

	if err := w.store.ExecBatch(ctx, stmts, opts.ChunkSize); err != nil {
		return false, fmt.Errorf("写入关注记录失败: %w", err)
	}
	logger.Info("⭐ 已关注 %s (%s)", lead.NickName, instID)
	return true, nil
}
