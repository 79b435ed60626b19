package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultChunkSize 每个物理批次的语句数上限
const DefaultChunkSize = 90

// Statement 批量写入中的一条语句
type Statement interface {
	apply(tx *gorm.DB) error
	fmt.Stringer
}

// PersistenceError 批量写入失败，已提交的批次不会回滚
type PersistenceError struct {
	Chunk   int // 失败批次（从1开始）
	Chunks  int // 批次总数
	Applied int // 已提交的语句数
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("批量写入第 %d/%d 批失败（已提交 %d 条语句）: %v", e.Chunk, e.Chunks, e.Applied, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type upsertTraderInfo struct{ info *TraderInfo }

// UpsertTraderInfo 按 inst_id 覆盖写入带单员信息
func UpsertTraderInfo(info *TraderInfo) Statement { return upsertTraderInfo{info: info} }

func (s upsertTraderInfo) apply(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "inst_id"}},
		UpdateAll: true,
	}).Create(s.info).Error
}

func (s upsertTraderInfo) String() string { return "upsert trader_info " + s.info.InstID }

type upsertMetricSample struct{ sample *MetricSample }

// UpsertMetricSample 按 (inst_id, ts) 覆盖写入指标，后写入的值生效
func UpsertMetricSample(sample *MetricSample) Statement {
	return upsertMetricSample{sample: sample}
}

func (s upsertMetricSample) apply(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "inst_id"}, {Name: "ts"}},
		UpdateAll: true,
	}).Create(s.sample).Error
}

func (s upsertMetricSample) String() string {
	return fmt.Sprintf("upsert watched_trader_metrics %s@%d", s.sample.InstID, s.sample.Ts)
}

type touchWatched struct {
	instID string
	now    int64
}

// TouchWatched 更新关注记录的 updated_at，不存在时不做任何事
func TouchWatched(instID string, now int64) Statement {
	return touchWatched{instID: instID, now: now}
}

func (s touchWatched) apply(tx *gorm.DB) error {
	return tx.Model(&WatchedTrader{}).Where("inst_id = ?", s.instID).Update("updated_at", s.now).Error
}

func (s touchWatched) String() string { return "touch watched_traders " + s.instID }

type insertWatched struct {
	instID string
	now    int64
}

// InsertWatched 新增关注；已存在时只刷新 updated_at
func InsertWatched(instID string, now int64) Statement {
	return insertWatched{instID: instID, now: now}
}

func (s insertWatched) apply(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "inst_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&WatchedTrader{InstID: s.instID, CreatedAt: s.now, UpdatedAt: s.now}).Error
}

func (s insertWatched) String() string { return "insert watched_traders " + s.instID }

// chunk 将语句按 size 切分，保持原有顺序
func chunk(stmts []Statement, size int) [][]Statement {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]Statement, 0, (len(stmts)+size-1)/size)
	for i := 0; i < len(stmts); i += size {
		end := i + size
		if end > len(stmts) {
			end = len(stmts)
		}
		chunks = append(chunks, stmts[i:end])
	}
	return chunks
}
