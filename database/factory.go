package database

import (
	"fmt"
	"time"

	"leadwatch/config"
)

// Open 根据应用配置创建快照存储
func Open(cfg *config.Config) (Database, error) {
	dbConfig := &DBConfig{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		LogLevel:        cfg.Database.LogLevel,
	}

	switch dbConfig.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
		return NewGormDatabase(dbConfig)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbConfig.Type)
	}
}
