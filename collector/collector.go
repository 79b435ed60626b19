// Package collector 驱动一次完整的采集周期：
// 读取关注列表，并发拉取 OKX 数据和历史快照，执行异动检测，
// 分批写入快照库，最后发送报警摘要。
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"leadwatch/config"
	"leadwatch/database"
	"leadwatch/detector"
	"leadwatch/exchange/okx"
	"leadwatch/i18n"
	"leadwatch/lock"
	"leadwatch/logger"
	"leadwatch/metrics"
	"leadwatch/utils"
)

// CycleLockKey 采集周期锁
const CycleLockKey = "collector:cycle"

// ErrCycleInProgress 已有采集周期在运行
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// Store 采集周期依赖的快照库操作
type Store interface {
	ListWatchedIDs(ctx context.Context) ([]string, error)
	SnapshotsAt(ctx context.Context, ts int64, instIDs []string) (map[string]*database.MetricSample, error)
	ExecBatch(ctx context.Context, stmts []database.Statement, chunkSize int) error
}

// Source 采集周期依赖的 OKX 接口
type Source interface {
	LeadTraderMap(ctx context.Context, instIDs []string) (map[string]*okx.LeadTrader, error)
	FetchStats(ctx context.Context, instID string) (*okx.Stats, error)
	FetchTraderAsset(ctx context.Context, instID string) (float64, error)
}

// Notifier 报警发送
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Options 采集参数
type Options struct {
	EnableAlerting bool
	AccurateAsset  bool
	Concurrency    int
	ChunkSize      int
	Threshold      float64
	LockTTL        time.Duration
	Location       *time.Location
	Language       string
	Now            func() time.Time // 测试注入
}

// OptionsFromConfig 从配置构建采集参数
func OptionsFromConfig(cfg *config.Config) Options {
	// 加载失败时 LoadLocation 返回回退时区
	loc, _ := utils.LoadLocation(cfg.System.Timezone)
	return Options{
		EnableAlerting: cfg.AlertingEnabled(),
		AccurateAsset:  cfg.AccurateAssetEnabled(),
		Concurrency:    cfg.Collector.Concurrency,
		ChunkSize:      cfg.Collector.ChunkSize,
		Threshold:      cfg.Collector.Threshold,
		LockTTL:        cfg.LockTTL(),
		Location:       loc,
		Language:       cfg.System.Language,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = database.DefaultChunkSize
	}
	if o.Threshold <= 0 {
		o.Threshold = detector.DefaultThreshold
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 4 * time.Minute
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Language == "" {
		o.Language = i18n.SupportedLanguages[0]
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Result 一次采集周期的结果
type Result struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	WatchedCount int    `json:"watchedCount"`
	Timestamp    int64  `json:"timestamp"`
	AlertsCount  int    `json:"alertsCount"`
}

// Collector 采集编排器
type Collector struct {
	store    Store
	source   Source
	notifier Notifier
	lock     lock.DistributedLock

	mu   sync.RWMutex
	opts Options
}

// New 创建采集编排器，notifier 和 cycleLock 可以为 nil
func New(store Store, source Source, notifier Notifier, cycleLock lock.DistributedLock, opts Options) *Collector {
	return &Collector{
		store:    store,
		source:   source,
		notifier: notifier,
		lock:     cycleLock,
		opts:     opts.withDefaults(),
	}
}

// ApplyConfig 热更新可变参数（阈值、开关、并发、语言）
func (c *Collector) ApplyConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.EnableAlerting = cfg.AlertingEnabled()
	c.opts.AccurateAsset = cfg.AccurateAssetEnabled()
	if cfg.Collector.Concurrency > 0 {
		c.opts.Concurrency = cfg.Collector.Concurrency
	}
	if cfg.Collector.ChunkSize > 0 {
		c.opts.ChunkSize = cfg.Collector.ChunkSize
	}
	if cfg.Collector.Threshold > 0 {
		c.opts.Threshold = cfg.Collector.Threshold
	}
	if cfg.System.Language != "" {
		c.opts.Language = cfg.System.Language
	}
}

func (c *Collector) options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// traderStats 单个带单员的统计与资产
type traderStats struct {
	stats *okx.Stats
	asset float64
}

// Run 执行一次采集周期
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	opts := c.options()
	start := time.Now()

	if c.lock != nil {
		token, ok, err := c.lock.TryLock(ctx, CycleLockKey, opts.LockTTL)
		switch {
		case err != nil:
			// 锁服务不可用时降级执行，幂等写入兜底
			logger.Warn("⚠️ 获取采集锁失败，降级执行: %v", err)
		case !ok:
			metrics.GetPrometheusMetrics().RecordCycle("conflict", time.Since(start))
			return nil, ErrCycleInProgress
		default:
			defer func() {
				if err := c.lock.Unlock(context.WithoutCancel(ctx), CycleLockKey, token); err != nil {
					logger.Warn("⚠️ 释放采集锁失败: %v", err)
				}
			}()
		}
	}

	res, err := c.run(ctx, opts)
	status := "failed"
	if err == nil {
		status = res.Status
	}
	metrics.GetPrometheusMetrics().RecordCycle(status, time.Since(start))
	if err != nil {
		logger.Error("❌ 采集周期失败: %v", err)
		return nil, err
	}
	return res, nil
}

func (c *Collector) run(ctx context.Context, opts Options) (*Result, error) {
	pm := metrics.GetPrometheusMetrics()
	now := opts.Now()
	bucket := utils.CurrentBucket(now)

	ids, err := c.store.ListWatchedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取关注列表失败: %w", err)
	}
	pm.SetWatchedTraders(len(ids))
	if len(ids) == 0 {
		logger.Info("ℹ️ 没有关注的带单员，跳过本轮采集")
		return &Result{
			Status:    "no_watched",
			Message:   i18n.TWithLang(opts.Language, "collector.no_watched"),
			Timestamp: bucket,
		}, nil
	}

	logger.Info("🔄 开始采集 %d 个带单员 (bucket=%d)", len(ids), bucket)

	leads, stats, history, err := c.fetch(ctx, opts, ids, bucket)
	if err != nil {
		return nil, err
	}

	var digest []traderAlerts
	if opts.EnableAlerting {
		digest = detect(opts, ids, leads, stats, history)
	}

	stmts, err := buildStatements(ids, leads, stats, bucket, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, stmts, opts.ChunkSize); err != nil {
		return nil, err
	}
	pm.SetLastCycleBucket(bucket)

	if opts.EnableAlerting && len(digest) > 0 {
		c.notify(ctx, opts, now, digest)
	}

	logger.Info("✅ 采集完成: %d 个带单员, %d 条语句, %d 个异动", len(ids), len(stmts), len(digest))
	return &Result{
		Status:       "success",
		Message:      i18n.TWithLang(opts.Language, "collector.success"),
		WatchedCount: len(ids),
		Timestamp:    bucket,
		AlertsCount:  len(digest),
	}, nil
}

// fetch 并发拉取排行榜、统计和历史快照，任一失败即取消整个周期
func (c *Collector) fetch(ctx context.Context, opts Options, ids []string, bucket int64) (
	map[string]*okx.LeadTrader, map[string]*traderStats, []map[string]*database.MetricSample, error) {

	g, gctx := errgroup.WithContext(ctx)

	var leads map[string]*okx.LeadTrader
	g.Go(func() error {
		m, err := c.source.LeadTraderMap(gctx, ids)
		if err != nil {
			return fmt.Errorf("拉取带单员列表失败: %w", err)
		}
		leads = m
		return nil
	})

	stats := make(map[string]*traderStats, len(ids))
	g.Go(func() error {
		return c.fetchStats(gctx, opts, ids, stats)
	})

	history := make([]map[string]*database.MetricSample, len(detector.Horizons))
	if opts.EnableAlerting {
		for i, h := range detector.Horizons {
			ts := utils.BucketsAgo(bucket, h.Buckets)
			g.Go(func() error {
				m, err := c.store.SnapshotsAt(gctx, ts, ids)
				if err != nil {
					return fmt.Errorf("读取 %s 历史快照失败: %w", h.Name, err)
				}
				history[i] = m
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return leads, stats, history, nil
}

// fetchStats 按并发上限拉取每个带单员的统计和资产
func (c *Collector) fetchStats(ctx context.Context, opts Options, ids []string, out map[string]*traderStats) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			st, err := c.source.FetchStats(gctx, id)
			if err != nil {
				return fmt.Errorf("拉取 %s 统计失败: %w", id, err)
			}
			asset := st.InvestAmt
			if opts.AccurateAsset {
				if asset, err = c.source.FetchTraderAsset(gctx, id); err != nil {
					return fmt.Errorf("拉取 %s 资产失败: %w", id, err)
				}
			}
			mu.Lock()
			out[id] = &traderStats{stats: st, asset: asset}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// detect 对每个带单员按三个周期检测异动
func detect(opts Options, ids []string, leads map[string]*okx.LeadTrader, stats map[string]*traderStats,
	history []map[string]*database.MetricSample) []traderAlerts {

	pm := metrics.GetPrometheusMetrics()
	var out []traderAlerts
	for _, id := range ids {
		lead, st := leads[id], stats[id]
		if lead == nil || st == nil {
			continue
		}
		total := lead.Aum + st.asset

		var alerts []detector.Alert
		for i, h := range detector.Horizons {
			found := detector.Check(h, total, lead.Aum, snapshotOf(history[i][id]), opts.Threshold)
			for _, a := range found {
				pm.RecordAlert(a.Horizon.Name, string(a.Kind))
			}
			alerts = append(alerts, found...)
		}
		if len(alerts) > 0 {
			out = append(out, traderAlerts{InstID: id, NickName: lead.NickName, Alerts: alerts})
		}
	}
	return out
}

func snapshotOf(s *database.MetricSample) *detector.Snapshot {
	if s == nil {
		return nil
	}
	return &detector.Snapshot{Aum: s.Aum, InvestAmt: s.InvestAmt, LeadPnl: s.LeadPnl}
}

// buildStatements 每个带单员依次生成：信息、当前桶指标、关注时间
func buildStatements(ids []string, leads map[string]*okx.LeadTrader, stats map[string]*traderStats,
	bucket, nowMs int64) ([]database.Statement, error) {

	stmts := make([]database.Statement, 0, len(ids)*3)
	for _, id := range ids {
		lead, st := leads[id], stats[id]
		if lead == nil {
			return nil, &okx.NotFoundError{Resource: "lead trader", IDs: []string{id}}
		}
		if st == nil {
			return nil, &okx.NotFoundError{Resource: "public-stats", IDs: []string{id}}
		}

		ccy := st.stats.Ccy
		if ccy == "" {
			ccy = lead.Ccy
		}
		stmts = append(stmts,
			database.UpsertTraderInfo(&database.TraderInfo{
				InstID:           id,
				NickName:         lead.NickName,
				Ccy:              lead.Ccy,
				LeadDays:         lead.LeadDays,
				CopyTraderNum:    lead.CopyTraderNum,
				MaxCopyTraderNum: lead.MaxCopyTraderNum,
				AvatarURL:        lead.AvatarURL,
				TraderInsts:      lead.TraderInsts,
				UTime:            nowMs,
			}),
			database.UpsertMetricSample(&database.MetricSample{
				InstID:            id,
				Ts:                bucket,
				Ccy:               ccy,
				Aum:               lead.Aum,
				InvestAmt:         st.asset,
				CurCopyTraderPnl:  st.stats.CurCopyTraderPnl,
				WinRatio:          st.stats.WinRatio,
				ProfitDays:        st.stats.ProfitDays,
				LossDays:          st.stats.LossDays,
				AvgSubPosNotional: st.stats.AvgSubPosNotional,
				LeadPnl:           0,
				UTime:             nowMs,
			}),
			database.TouchWatched(id, nowMs),
		)
	}
	return stmts, nil
}

// persist 分批写入并记录每批结果
func (c *Collector) persist(ctx context.Context, stmts []database.Statement, chunkSize int) error {
	pm := metrics.GetPrometheusMetrics()
	chunks := (len(stmts) + chunkSize - 1) / chunkSize

	err := c.store.ExecBatch(ctx, stmts, chunkSize)
	if err == nil {
		for i := 0; i < chunks; i++ {
			pm.RecordPersistChunk(true, min(chunkSize, len(stmts)-i*chunkSize))
		}
		return nil
	}

	var perr *database.PersistenceError
	if errors.As(err, &perr) {
		for i := 0; i < perr.Chunk-1; i++ {
			pm.RecordPersistChunk(true, chunkSize)
		}
		pm.RecordPersistChunk(false, min(chunkSize, len(stmts)-perr.Applied))
	}
	return fmt.Errorf("写入快照失败: %w", err)
}

// notify 发送报警摘要，失败只记录日志
func (c *Collector) notify(ctx context.Context, opts Options, now time.Time, digest []traderAlerts) {
	title, body := formatDigest(opts.Language, opts.Location, now, digest)
	logger.Warn("🚨 检测到 %d 个带单员资金异动\n%s", len(digest), body)

	if c.notifier == nil {
		return
	}
	if err := c.notifier.Send(ctx, title, body); err != nil {
		logger.Error("❌ 发送报警通知失败: %v", err)
	}
}
