package utils

import (
	"time"
)

var (
	// GlobalLocation 全局配置的时区
	GlobalLocation *time.Location
)

func init() {
	// 默认加载东8区时区
	SetLocation("Asia/Shanghai")
}

// SetLocation 设置全局时区
func SetLocation(name string) error {
	loc, err := LoadLocation(name)
	GlobalLocation = loc
	return err
}

// LoadLocation 加载时区，失败时东8区回退到固定偏移，其他回退到本地时区
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	// 容器里可能没有 tzdata
	if name == "UTC+8" || name == "Asia/Shanghai" {
		return time.FixedZone("UTC+8", 8*60*60), nil
	}
	if GlobalLocation != nil {
		return GlobalLocation, err
	}
	return time.Local, err
}

// ToConfiguredTimezone 将时间转换为配置的时区
func ToConfiguredTimezone(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(GlobalLocation)
}

// NowConfiguredTimezone 获取当前配置时区的时间
func NowConfiguredTimezone() time.Time {
	return time.Now().In(GlobalLocation)
}
