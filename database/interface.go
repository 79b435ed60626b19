package database

import (
	"context"
	"errors"
)

// ErrNotFound 本地库中不存在对应记录
var ErrNotFound = errors.New("record not found")

// Database 快照存储接口
type Database interface {
	// 关注列表
	ListWatchedIDs(ctx context.Context) ([]string, error)
	IsWatched(ctx context.Context, instID string) (bool, error)
	Unwatch(ctx context.Context, instID string) (bool, error)
	WatchedOverview(ctx context.Context) ([]*TraderOverview, error)

	// 带单员信息与指标
	GetTraderInfo(ctx context.Context, instID string) (*TraderInfo, error)
	SnapshotsAt(ctx context.Context, ts int64, instIDs []string) (map[string]*MetricSample, error)
	BucketedSamples(ctx context.Context, instID string, since, bucketMs int64, limit int) ([]*MetricSample, error)

	// 分批写入，每批一个事务
	ExecBatch(ctx context.Context, stmts []Statement, chunkSize int) error

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// 数据模型

// WatchedTrader 关注的带单员，时间为毫秒时间戳
type WatchedTrader struct {
	InstID    string `gorm:"column:inst_id;primaryKey;size:64" json:"instId"`
	CreatedAt int64  `gorm:"column:created_at;autoCreateTime:false;index" json:"createdAt"`
	UpdatedAt int64  `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`
}

func (WatchedTrader) TableName() string { return "watched_traders" }

// TraderInfo 带单员基础信息（每个带单员一行，覆盖写）
type TraderInfo struct {
	InstID           string   `gorm:"column:inst_id;primaryKey;size:64" json:"instId"`
	NickName         string   `gorm:"column:nick_name;size:128" json:"nickName"`
	Ccy              string   `gorm:"column:ccy;size:16" json:"ccy"`
	LeadDays         int      `gorm:"column:lead_days" json:"leadDays"`
	CopyTraderNum    int      `gorm:"column:copy_trader_num" json:"copyTraderNum"`
	MaxCopyTraderNum int      `gorm:"column:max_copy_trader_num" json:"maxCopyTraderNum"`
	AvatarURL        string   `gorm:"column:avatar_url;type:text" json:"avatarUrl"`
	TraderInsts      []string `gorm:"column:trader_insts;serializer:json;type:text" json:"traderInsts"`
	UTime            int64    `gorm:"column:u_time;autoUpdateTime:false" json:"uTime"`
}

func (TraderInfo) TableName() string { return "trader_info" }

// MetricSample 5分钟桶的指标快照，(inst_id, ts) 唯一
type MetricSample struct {
	InstID            string  `gorm:"column:inst_id;primaryKey;size:64" json:"instId"`
	Ts                int64   `gorm:"column:ts;primaryKey;autoIncrement:false" json:"timestamp"` // 列名避开 timestamp 关键字
	Ccy               string  `gorm:"column:ccy;size:16" json:"ccy"`
	Aum               float64 `gorm:"column:aum" json:"aum"`
	InvestAmt         float64 `gorm:"column:invest_amt" json:"investAmt"`
	CurCopyTraderPnl  float64 `gorm:"column:cur_copy_trader_pnl" json:"curCopyTraderPnl"`
	WinRatio          float64 `gorm:"column:win_ratio" json:"winRatio"`
	ProfitDays        int     `gorm:"column:profit_days" json:"profitDays"`
	LossDays          int     `gorm:"column:loss_days" json:"lossDays"`
	AvgSubPosNotional float64 `gorm:"column:avg_sub_pos_notional" json:"avgSubPosNotional"`
	LeadPnl           float64 `gorm:"column:lead_pnl" json:"leadPnl"`
	UTime             int64   `gorm:"column:u_time;autoUpdateTime:false" json:"uTime"`
}

func (MetricSample) TableName() string { return "watched_trader_metrics" }

// TraderOverview 关注列表条目：关注关系 + 基础信息 + 最新一条指标
type TraderOverview struct {
	InstID           string        `json:"instId"`
	WatchedCreatedAt int64         `json:"watchedCreatedAt"`
	WatchedUpdatedAt int64         `json:"watchedUpdatedAt"`
	Info             *TraderInfo   `json:"info"`
	Metrics          *MetricSample `json:"metrics"`
}
