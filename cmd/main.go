package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"news-sector-backtest/internal/pipeline"
	"news-sector-backtest/internal/service"
)

func main() {
	fs := pflag.NewFlagSet("news-sector-backtest", pflag.ExitOnError)
	service.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := service.LoadConfig(configPath, fs)
	if err != nil {
		service.InitLogger("")
		service.Logger.Fatal("Failed to load configuration", zap.String("config", configPath), zap.Error(err))
	}

	service.InitLogger(cfg.LogLevel)
	defer service.Logger.Sync()

	// SIGINT/SIGTERM 取消当前阶段
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := pipeline.New(cfg, service.Logger).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			service.Logger.Warn("Pipeline interrupted")
		} else {
			service.Logger.Error("Pipeline failed", zap.Error(err))
		}
		service.Logger.Sync()
		os.Exit(1)
	}
	if out == nil {
		return
	}

	res := out.Result
	service.Logger.Info("Run complete",
		zap.String("mode", string(res.RunMode)),
		zap.String("final_stage", string(res.FinalStage)),
		zap.String("test_accuracy", service.FormatFloat(res.TestAccuracy)),
		zap.String("cumulative_return", service.FormatFloat(res.Report.Portfolio.TotalReturn)),
		zap.String("summary", out.SummaryPath))
}
