package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"vigil/internal/logger"
)

// Watch 监听配置文件变更并热更新日志级别。其余字段的变更需要重启
// 进程才会生效。
func Watch(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		logger.Warnf("[config] watch 初始读取失败: %v", err)
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		level := strings.ToLower(strings.TrimSpace(v.GetString("log.level")))
		switch level {
		case "debug", "info", "warn", "error":
			logger.SetLevel(level)
			logger.Infof("[config] 日志级别已更新为 %s (%s)", level, e.Name)
		case "":
		default:
			logger.Warnf("[config] 忽略非法日志级别 %q", level)
		}
	})
	v.WatchConfig()
}
