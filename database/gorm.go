package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "leadwatch/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch config.Type {
	case "sqlite":
		db, err = openSQLite(config.DSN, gormCfg)
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(config.DSN), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(config.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池，sqlite 只允许一个写连接
	if config.Type != "sqlite" {
		if config.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(config.MaxIdleConns)
		}
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&WatchedTrader{},
		&TraderInfo{},
		&MetricSample{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	applog.Info("✅ 数据库已连接 (%s)", config.Type)
	return &GormDatabase{db: db}, nil
}

// openSQLite 以 WAL 模式打开 sqlite，单连接避免 database is locked
func openSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	path := dsn
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path != "" && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("创建数据库目录失败: %w", err)
			}
		}
	}

	if !strings.Contains(dsn, "_journal_mode") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), gormCfg)
}

// ListWatchedIDs 获取所有关注的带单员
func (g *GormDatabase) ListWatchedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := g.db.WithContext(ctx).Model(&WatchedTrader{}).Order("inst_id").Pluck("inst_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询关注列表失败: %w", err)
	}
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("watched_traders[%d].inst_id 为空", i)
		}
	}
	return ids, nil
}

// IsWatched 是否已关注
func (g *GormDatabase) IsWatched(ctx context.Context, instID string) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&WatchedTrader{}).Where("inst_id = ?", instID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Unwatch 取消关注，历史指标和基础信息保留
func (g *GormDatabase) Unwatch(ctx context.Context, instID string) (bool, error) {
	result := g.db.WithContext(ctx).Where("inst_id = ?", instID).Delete(&WatchedTrader{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetTraderInfo 获取带单员基础信息
func (g *GormDatabase) GetTraderInfo(ctx context.Context, instID string) (*TraderInfo, error) {
	var info TraderInfo
	result := g.db.WithContext(ctx).Where("inst_id = ?", instID).Limit(1).Find(&info)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("trader_info %s: %w", instID, ErrNotFound)
	}
	return &info, nil
}

// SnapshotsAt 获取指定桶时间点的指标快照
func (g *GormDatabase) SnapshotsAt(ctx context.Context, ts int64, instIDs []string) (map[string]*MetricSample, error) {
	result := make(map[string]*MetricSample, len(instIDs))
	if len(instIDs) == 0 {
		return result, nil
	}

	var samples []*MetricSample
	if err := g.db.WithContext(ctx).
		Where("ts = ? AND inst_id IN ?", ts, instIDs).
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("查询历史快照失败 (ts=%d): %w", ts, err)
	}
	for _, s := range samples {
		result[s.InstID] = s
	}
	return result, nil
}

// BucketedSamples 按 bucketMs 分组，每组取最新一条，返回按时间升序的最多 limit 组
func (g *GormDatabase) BucketedSamples(ctx context.Context, instID string, since, bucketMs int64, limit int) ([]*MetricSample, error) {
	if bucketMs <= 0 {
		return nil, fmt.Errorf("invalid bucket width: %d", bucketMs)
	}

	latestPerBucket := g.db.Model(&MetricSample{}).
		Select("MAX(ts)").
		Where("inst_id = ? AND ts >= ?", instID, since).
		Group(fmt.Sprintf("ts - (ts %% %d)", bucketMs))

	query := g.db.WithContext(ctx).
		Where("inst_id = ? AND ts IN (?)", instID, latestPerBucket).
		Order("ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var samples []*MetricSample
	if err := query.Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("查询分桶指标失败: %w", err)
	}

	// 倒序取最新的 limit 组，再翻转为升序
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// WatchedOverview 关注列表，每个带单员附带基础信息和最新指标，按关注时间倒序
func (g *GormDatabase) WatchedOverview(ctx context.Context) ([]*TraderOverview, error) {
	db := g.db.WithContext(ctx)

	var watched []*WatchedTrader
	if err := db.Order("created_at DESC").Find(&watched).Error; err != nil {
		return nil, fmt.Errorf("查询关注列表失败: %w", err)
	}
	if len(watched) == 0 {
		return []*TraderOverview{}, nil
	}

	ids := make([]string, len(watched))
	for i, w := range watched {
		ids[i] = w.InstID
	}

	var infos []*TraderInfo
	if err := db.Where("inst_id IN ?", ids).Find(&infos).Error; err != nil {
		return nil, fmt.Errorf("查询带单员信息失败: %w", err)
	}
	infoMap := make(map[string]*TraderInfo, len(infos))
	for _, info := range infos {
		infoMap[info.InstID] = info
	}

	var latest []*MetricSample
	if err := db.Raw(`SELECT m.* FROM watched_trader_metrics m
		JOIN (SELECT inst_id, MAX(ts) AS max_ts FROM watched_trader_metrics WHERE inst_id IN ? GROUP BY inst_id) l
		ON m.inst_id = l.inst_id AND m.ts = l.max_ts`, ids).Scan(&latest).Error; err != nil {
		return nil, fmt.Errorf("查询最新指标失败: %w", err)
	}
	metricMap := make(map[string]*MetricSample, len(latest))
	for _, m := range latest {
		metricMap[m.InstID] = m
	}

	rows := make([]*TraderOverview, 0, len(watched))
	for _, w := range watched {
		info, metrics := infoMap[w.InstID], metricMap[w.InstID]
		if info == nil || metrics == nil {
			continue
		}
		rows = append(rows, &TraderOverview{
			InstID:           w.InstID,
			WatchedCreatedAt: w.CreatedAt,
			WatchedUpdatedAt: w.UpdatedAt,
			Info:             info,
			Metrics:          metrics,
		})
	}
	if len(rows) != len(watched) {
		return nil, fmt.Errorf("期望 %d 条关注记录，实际 %d 条，缺少指标或基础信息", len(watched), len(rows))
	}
	return rows, nil
}

// ExecBatch 按 chunkSize 分批顺序执行，每批一个事务；失败时后续批次不再执行
func (g *GormDatabase) ExecBatch(ctx context.Context, stmts []Statement, chunkSize int) error {
	chunks := chunk(stmts, chunkSize)
	applied := 0
	for i, c := range chunks {
		err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, stmt := range c {
				if err := stmt.apply(tx); err != nil {
					return fmt.Errorf("%s: %w", stmt, err)
				}
			}
			return nil
		})
		if err != nil {
			return &PersistenceError{Chunk: i + 1, Chunks: len(chunks), Applied: applied, Err: err}
		}
		applied += len(c)
		applog.Debug("💾 第 %d/%d 批写入完成 (%d 条语句)", i+1, len(chunks), len(c))
	}
	return nil
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
