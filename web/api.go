package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leadwatch/collector"
	"leadwatch/exchange/okx"
	"leadwatch/logger"
	"leadwatch/series"
)

// TopTradersLimit 排行榜展示条数
const TopTradersLimit = 50

const traderCacheControl = "public, max-age=90, stale-while-revalidate=30"

type handlers struct {
	deps Deps
}

// refresh 手动触发一次采集
func (h *handlers) refresh(c *gin.Context) {
	res, err := h.deps.Refresher.RunNow(c.Request.Context())
	if errors.Is(err, collector.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// 按请求语言返回结果文案
	res.Message = T(c, "collector."+res.Status)
	c.JSON(http.StatusOK, res)
}

// getTrader 带单员历史序列
func (h *handlers) getTrader(c *gin.Context) {
	instID := strings.TrimSpace(c.Param("instId"))
	s, err := h.deps.Resolver.Resolve(c.Request.Context(), instID, c.Query("interval"))

	var invalid *series.InvalidResolutionError
	switch {
	case err == nil:
		c.Header("Cache-Control", traderCacheControl)
		c.JSON(http.StatusOK, s)
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, series.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, series.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "no_data"})
	default:
		logger.Error("❌ 查询 %s 历史数据失败: %v", instID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type toggleRequest struct {
	InstID string `json:"instId"`
}

// toggleWatch 关注/取消关注
func (h *handlers) toggleWatch(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.InstID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instId is required"})
		return
	}
	instID := strings.TrimSpace(req.InstID)

	watched, err := h.deps.Watcher.Toggle(c.Request.Context(), instID)
	var nf *okx.NotFoundError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"instId": instID, "watched": watched})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("❌ 切换关注 %s 失败: %v", instID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// listWatched 关注列表及最新指标
func (h *handlers) listWatched(c *gin.Context) {
	rows, err := h.deps.Store.WatchedOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

type topTraderView struct {
	okx.TopTrader
	Watched bool `json:"watched"`
}

// listTraders 排行榜前50，标记是否已关注
func (h *handlers) listTraders(c *gin.Context) {
	ctx := c.Request.Context()
	top, err := h.deps.Traders.ListTopTraders(ctx, TopTradersLimit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.deps.Store.ListWatchedIDs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	watched := make(map[string]bool, len(ids))
	for _, id := range ids {
		watched[id] = true
	}

	views := make([]topTraderView, len(top))
	for i, t := range top {
		views[i] = topTraderView{TopTrader: t, Watched: watched[t.InstID]}
	}
	c.JSON(http.StatusOK, gin.H{"top": views})
}

func (h *handlers) healthz(c *gin.Context) {
	if err := h.deps.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
