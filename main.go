package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadwatch/collector"
	"leadwatch/config"
	"leadwatch/database"
	"leadwatch/exchange/okx"
	"leadwatch/i18n"
	"leadwatch/lock"
	"leadwatch/logger"
	"leadwatch/metrics"
	"leadwatch/notify"
	"leadwatch/series"
	"leadwatch/utils"
	"leadwatch/web"
)

// Version 版本号
var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("LeadWatch OKX Lead Trader Collector\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

	logger.Info("🚀 LeadWatch 带单员监控启动...")
	logger.Info("📦 版本号: %s", Version)

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("❌ 加载配置失败: %v", err)
	}

	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，将使用默认时区 Asia/Shanghai", cfg.System.Timezone, err)
		utils.SetLocation("Asia/Shanghai")
	} else {
		logger.Info("✅ 系统时区设置为: %s", cfg.System.Timezone)
	}
	logger.SetLocation(utils.GlobalLocation)

	if debugMode {
		cfg.System.LogLevel = "debug"
	}
	logger.SetOutputDir(cfg.System.LogDir)
	logLevel := logger.ParseLogLevel(cfg.System.LogLevel)
	logger.SetLevel(logLevel)
	logger.Info("日志级别设置为: %s", logLevel.String())
	defer logger.Close()

	if err := i18n.Init(cfg.System.Language); err != nil {
		logger.Warn("⚠️ 初始化 i18n 失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 快照库
	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("❌ 初始化数据库失败: %v", err)
	}
	defer db.Close()

	client := okx.NewClient(okx.Options{
		BaseURL:   cfg.OKX.BaseURL,
		Timeout:   time.Duration(cfg.OKX.Timeout) * time.Second,
		RateLimit: cfg.OKX.RateLimit,
		Burst:     cfg.OKX.Burst,
		UserAgent: cfg.OKX.UserAgent,
	})

	cycleLock, err := lock.NewDistributedLock(cfg)
	if err != nil {
		logger.Fatalf("❌ 初始化采集锁失败: %v", err)
	}
	defer cycleLock.Close()

	notifier := notify.NewNotificationService(cfg)
	defer notifier.Close()
	logger.Info("📣 已启用 %d 个通知渠道", notifier.Len())

	coll := collector.New(db, client, notifier, cycleLock, collector.OptionsFromConfig(cfg))
	scheduler := collector.NewScheduler(coll, cfg.CollectorInterval(),
		time.Duration(cfg.Collector.Offset)*time.Second, cfg.Collector.RunOnStart)
	scheduler.Start(ctx)

	// 配置热更新
	hotReloader := config.NewHotReloader(cfg)
	hotReloader.RegisterCallback(func(_, newCfg *config.Config, changes []config.ConfigChange) error {
		for _, ch := range changes {
			logger.Info("🔧 配置变更: %s", ch.String())
		}
		logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
		i18n.SetSystemLanguage(newCfg.System.Language)
		coll.ApplyConfig(newCfg)
		return nil
	})
	hotReloader.RegisterCallback(func(_, newCfg *config.Config, changes []config.ConfigChange) error {
		for _, ch := range changes {
			if strings.HasPrefix(ch.Path, "notifications.") {
				notifier.Reload(newCfg)
				break
			}
		}
		return nil
	})

	configWatcher, err := config.NewConfigWatcher(configPath, hotReloader)
	if err != nil {
		logger.Warn("⚠️ 创建配置监控器失败: %v，配置热更新不可用", err)
	} else if err := configWatcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 启动配置监控器失败: %v", err)
	} else {
		defer configWatcher.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case paths := <-configWatcher.RestartRequired():
					logger.Warn("⚠️ 以下配置需要重启才能生效: %s", strings.Join(paths, ", "))
				case err := <-configWatcher.Errors():
					logger.Warn("⚠️ 配置监控错误: %v", err)
				}
			}
		}()
		logger.Info("✅ 配置热更新已启用: %s", configPath)
	}

	go metrics.NewSystemMetricsCollector(15 * time.Second).Run(ctx)

	webServer := web.NewWebServer(cfg, web.Deps{
		Store:     db,
		Refresher: scheduler,
		Resolver:  series.NewResolver(db),
		Watcher:   collector.NewWatcher(db, client, coll),
		Traders:   client,
	})
	if webServer == nil {
		logger.Info("ℹ️ Web 服务未启用（配置中 web.enabled=false）")
	} else if err := webServer.Start(ctx); err != nil {
		logger.Error("❌ 启动Web服务器失败: %v", err)
	}

	logger.Info("✅ 系统初始化完成，程序正在运行中...")
	logger.Info("💡 按 Ctrl+C 退出程序")

	// 等待退出信号（SIGINT 或 SIGTERM）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("🛑 收到退出信号，开始优雅关闭...")
	webServer.Stop()
	scheduler.Stop()
	cancel()
	logger.Info("👋 已退出")
}
