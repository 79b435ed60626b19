package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadwatch/collector"
	"leadwatch/database"
	"leadwatch/exchange/okx"
	"leadwatch/series"
)

// Store 接口层依赖的快照库操作
type Store interface {
	ListWatchedIDs(ctx context.Context) ([]string, error)
	WatchedOverview(ctx context.Context) ([]*database.TraderOverview, error)
	Ping(ctx context.Context) error
}

// Refresher 手动触发采集
type Refresher interface {
	RunNow(ctx context.Context) (*collector.Result, error)
}

// SeriesResolver 历史序列查询
type SeriesResolver interface {
	Resolve(ctx context.Context, instID, resolution string) (*series.Series, error)
}

// WatchToggler 关注/取消关注
type WatchToggler interface {
	Toggle(ctx context.Context, instID string) (bool, error)
}

// TopTraderLister 排行榜
type TopTraderLister interface {
	ListTopTraders(ctx context.Context, limit int) ([]okx.TopTrader, error)
}

// Deps 路由依赖（由 main.go 注入）
type Deps struct {
	Store     Store
	Refresher Refresher
	Resolver  SeriesResolver
	Watcher   WatchToggler
	Traders   TopTraderLister
}

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, deps Deps) {
	h := &handlers{deps: deps}
	r.Use(I18nMiddleware())

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	{
		api.GET("/refresh", h.refresh)
		api.POST("/refresh", h.refresh)

		api.GET("/trader/:instId", h.getTrader)
		api.GET("/traders", h.listTraders)

		api.POST("/watch/toggle", h.toggleWatch)
		api.GET("/watch/list", h.listWatched)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
