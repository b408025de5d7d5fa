package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vigil/internal/app"
	vgcfg "vigil/internal/config"
	"vigil/internal/logger"
)

func main() {
	mode := flag.String("mode", "serve", "serve 持续处理事件流，backtest 跑一轮网格搜索后退出")
	flag.Parse()

	cfgPath := os.Getenv("VIGIL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer application.Close()

	switch *mode {
	case "backtest":
		if err := application.RunBacktest(ctx); err != nil {
			log.Fatalf("回测失败: %v", err)
		}
	case "serve":
		vgcfg.Watch(cfgPath)
		if err := application.RunBacktest(ctx); err != nil {
			logger.Warnf("启动回测失败: %v", err)
		}
		if err := application.Run(ctx); err != nil {
			log.Fatalf("运行失败: %v", err)
		}
	default:
		log.Fatalf("未知模式: %s", *mode)
	}
}

// loadConfig 在配置文件缺失时退回内置默认配置，保证零配置可启动。
func loadConfig(path string) (*vgcfg.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("配置文件 %s 不存在，使用默认配置", path)
		return vgcfg.Default(), nil
	}
	return vgcfg.Load(path)
}
