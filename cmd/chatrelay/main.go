package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatrelay/internal/app"
	"chatrelay/pkg/chat/bridge"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	eff, err := config.LoadEffective(cfgPath, addrVal, dbVal, setFlags)
	if err != nil {
		logger.InitWithLevel("")
		logger.Error("config_load_failed", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	logger.InitWithLevel(eff.Config.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if eff.Config.Bridge.URL == "" {
		logger.Error("bridge_url_missing", "hint", "set bridge.url or CHATRELAY_BRIDGE_URL")
		os.Exit(1)
	}
	client, err := bridge.Dial(ctx, eff.Config.Bridge.URL, eff.Config.Bridge.Token)
	if err != nil {
		logger.Error("bridge_dial_failed", "url", eff.Config.Bridge.URL, "error", err)
		os.Exit(1)
	}

	a, err := app.New(eff, client, version, commit, buildDate)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		_ = client.Close()
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exit", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}
