package config

import (
	"fmt"
	"reflect"
	"strings"
)

// ChangeType 变更类型
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeRemoved  ChangeType = "removed"
	ChangeTypeModified ChangeType = "modified"
)

// ConfigChange 单个配置项的变更
type ConfigChange struct {
	Path            string      `json:"path"` // yaml 路径，如 "collector.threshold"
	Type            ChangeType  `json:"type"`
	OldValue        interface{} `json:"old_value"`
	NewValue        interface{} `json:"new_value"`
	RequiresRestart bool        `json:"requires_restart"`
}

// ConfigDiff 配置差异
type ConfigDiff struct {
	Changes []ConfigChange `json:"changes"`
}

// HasChanges 是否存在变更
func (d *ConfigDiff) HasChanges() bool {
	return d != nil && len(d.Changes) > 0
}

// RestartRequired 返回需要重启才能生效的变更路径
func (d *ConfigDiff) RestartRequired() []string {
	if d == nil {
		return nil
	}
	var paths []string
	for _, c := range d.Changes {
		if c.RequiresRestart {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// hotReloadablePaths 运行中可以直接生效的配置项
var hotReloadablePaths = map[string]bool{
	"system.log_level":          true,
	"system.language":           true,
	"collector.threshold":       true,
	"collector.enable_alerting": true,
	"collector.accurate_asset":  true,
	"collector.concurrency":     true,
	"collector.chunk_size":      true,
}

// notifications 整体可热更新（重建通知渠道）
func requiresRestart(path string) bool {
	if hotReloadablePaths[path] {
		return false
	}
	if strings.HasPrefix(path, "notifications.") {
		return false
	}
	return true
}

// DiffConfig 对比两份配置，返回叶子字段级别的差异
func DiffConfig(oldCfg, newCfg *Config) *ConfigDiff {
	diff := &ConfigDiff{}
	if oldCfg == nil || newCfg == nil {
		return diff
	}
	compareValues(reflect.ValueOf(*oldCfg), reflect.ValueOf(*newCfg), "", diff)
	return diff
}

func compareValues(oldVal, newVal reflect.Value, path string, diff *ConfigDiff) {
	switch oldVal.Kind() {
	case reflect.Struct:
		t := oldVal.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := yamlName(field)
			if name == "-" {
				continue
			}
			childPath := name
			if path != "" {
				childPath = path + "." + name
			}
			compareValues(oldVal.Field(i), newVal.Field(i), childPath, diff)
		}
	case reflect.Ptr:
		switch {
		case oldVal.IsNil() && newVal.IsNil():
		case oldVal.IsNil():
			addChange(diff, path, ChangeTypeAdded, nil, newVal.Elem().Interface())
		case newVal.IsNil():
			addChange(diff, path, ChangeTypeRemoved, oldVal.Elem().Interface(), nil)
		default:
			compareValues(oldVal.Elem(), newVal.Elem(), path, diff)
		}
	default:
		if !reflect.DeepEqual(oldVal.Interface(), newVal.Interface()) {
			addChange(diff, path, ChangeTypeModified, oldVal.Interface(), newVal.Interface())
		}
	}
}

func addChange(diff *ConfigDiff, path string, typ ChangeType, oldValue, newValue interface{}) {
	diff.Changes = append(diff.Changes, ConfigChange{
		Path:            path,
		Type:            typ,
		OldValue:        oldValue,
		NewValue:        newValue,
		RequiresRestart: requiresRestart(path),
	})
}

func yamlName(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag == "" {
		return strings.ToLower(field.Name)
	}
	return strings.Split(tag, ",")[0]
}

// String 格式化输出差异
func (c ConfigChange) String() string {
	suffix := ""
	if c.RequiresRestart {
		suffix = " (需要重启)"
	}
	return fmt.Sprintf("%s: %v -> %v%s", c.Path, c.OldValue, c.NewValue, suffix)
}
