package series

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadwatch/database"
)

// MaxPoints 单次返回的最大点数
const MaxPoints = 1000

var (
	// ErrNotFound 本地没有该带单员的基础信息
	ErrNotFound = errors.New("trader not found")
	// ErrNoData 有基础信息但时间窗口内没有指标
	ErrNoData = errors.New("no data in window")
)

// Resolution 粒度定义
type Resolution struct {
	Tag       string
	Bucket    time.Duration
	Retention time.Duration
}

const day = 24 * time.Hour

// Resolutions 支持的粒度，按从细到粗排列
var Resolutions = []Resolution{
	{Tag: "5m", Bucket: 5 * time.Minute, Retention: day},
	{Tag: "15m", Bucket: 15 * time.Minute, Retention: 7 * day},
	{Tag: "30m", Bucket: 30 * time.Minute, Retention: 7 * day},
	{Tag: "1h", Bucket: time.Hour, Retention: 7 * day},
	{Tag: "2h", Bucket: 2 * time.Hour, Retention: 14 * day},
	{Tag: "4h", Bucket: 4 * time.Hour, Retention: 28 * day},
	{Tag: "8h", Bucket: 8 * time.Hour, Retention: 56 * day},
	{Tag: "1d", Bucket: day, Retention: 90 * day},
	{Tag: "1w", Bucket: 7 * day, Retention: 365 * day},
}

// DefaultResolution 未指定粒度时使用
const DefaultResolution = "5m"

// InvalidResolutionError 不支持的粒度
type InvalidResolutionError struct {
	Resolution string
}

func (e *InvalidResolutionError) Error() string {
	tags := make([]string, len(Resolutions))
	for i, r := range Resolutions {
		tags[i] = r.Tag
	}
	return fmt.Sprintf("invalid interval %q, must be one of: %s", e.Resolution, strings.Join(tags, ", "))
}

// Lookup 查找粒度，空字符串返回默认粒度
func Lookup(tag string) (Resolution, error) {
	if tag == "" {
		tag = DefaultResolution
	}
	for _, r := range Resolutions {
		if r.Tag == tag {
			return r, nil
		}
	}
	return Resolution{}, &InvalidResolutionError{Resolution: tag}
}

// Store 查询依赖的快照库操作
type Store interface {
	GetTraderInfo(ctx context.Context, instID string) (*database.TraderInfo, error)
	IsWatched(ctx context.Context, instID string) (bool, error)
	BucketedSamples(ctx context.Context, instID string, since, bucketMs int64, limit int) ([]*database.MetricSample, error)
}

// Point 一个桶的指标，取桶内最新一条原始样本
type Point struct {
	Timestamp         int64   `json:"timestamp"`
	Ccy               string  `json:"ccy"`
	Aum               float64 `json:"aum"`
	InvestAmt         float64 `json:"investAmt"`
	LeadPnl           float64 `json:"leadPnl"`
	CurCopyTraderPnl  float64 `json:"curCopyTraderPnl"`
	WinRatio          float64 `json:"winRatio"`
	ProfitDays        int     `json:"profitDays"`
	LossDays          int     `json:"lossDays"`
	AvgSubPosNotional float64 `json:"avgSubPosNotional"`
	UTime             int64   `json:"uTime"`
}

// Series 查询结果
type Series struct {
	InstID  string               `json:"instId"`
	Watched bool                 `json:"watched"`
	Info    *database.TraderInfo `json:"info"`
	Series  []Point              `json:"series"`
}

// Resolver 多粒度时间序列查询
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver 创建查询器
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve 查询带单员在指定粒度下的历史序列，按时间升序
func (r *Resolver) Resolve(ctx context.Context, instID, resolution string) (*Series, error) {
	res, err := Lookup(resolution)
	if err != nil {
		return nil, err
	}

	info, err := r.store.GetTraderInfo(ctx, instID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", instID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	watched, err := r.store.IsWatched(ctx, instID)
	if err != nil {
		return nil, err
	}

	since := r.now().Add(-res.Retention).UnixMilli()
	samples, err := r.store.BucketedSamples(ctx, instID, since, res.Bucket.Milliseconds(), MaxPoints)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s (%s): %w", instID, res.Tag, ErrNoData)
	}

	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = Point{
			Timestamp:         s.Ts,
			Ccy:               s.Ccy,
			Aum:               s.Aum,
			InvestAmt:         s.InvestAmt,
			LeadPnl:           s.LeadPnl,
			CurCopyTraderPnl:  s.CurCopyTraderPnl,
			WinRatio:          s.WinRatio,
			ProfitDays:        s.ProfitDays,
			LossDays:          s.LossDays,
			AvgSubPosNotional: s.AvgSubPosNotional,
			UTime:             s.UTime,
		}
	}
	return &Series{InstID: instID, Watched: watched, Info: info, Series: points}, nil
}
