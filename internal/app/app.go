package app

import (
	"context"
	"fmt"
	"net/http"

	"chatrelay/pkg/api"
	"chatrelay/pkg/automation"
	"chatrelay/pkg/banner"
	"chatrelay/pkg/chat"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/maintenance"
	"chatrelay/pkg/store"
	"chatrelay/pkg/token"
)

// App encapsulates the relay components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	client chat.Client
	tokens *token.Registry
	auto   *automation.Handler
	gw     *api.Gateway
	srv    *http.Server
}

// New wires the relay around an already-connected network client. It
// opens the token store and constructs the registry, automation handler
// and gateway; call Run to start them and block until shutdown.
func New(eff config.EffectiveConfigResult, client chat.Client, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open token store at %s: %w", eff.DBPath, err)
	}

	rcfg := eff.Config.Relay
	tokens := token.NewRegistry(client)
	auto := automation.New(client, tokens, automation.Config{
		Domain:         rcfg.Domain,
		Commands:       rcfg.Commands,
		Announcement:   rcfg.Announcement,
		AcceptDelayMin: rcfg.AcceptDelayMin.Std(),
		AcceptDelayMax: rcfg.AcceptDelayMax.Std(),
		SendTimeout:    rcfg.SendTimeout.Std(),
	})
	gw := api.New(tokens, api.Config{
		RateMax:     eff.Config.Gateway.RateLimit.Max,
		RateWindow:  eff.Config.Gateway.RateLimit.Window.Std(),
		SendTimeout: rcfg.SendTimeout.Std(),
	})

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		client:    client,
		tokens:    tokens,
		auto:      auto,
		gw:        gw,
	}, nil
}

// Run starts the automation loop, the maintenance scheduler and the HTTP
// server, and blocks until ctx is canceled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	stopMaint, err := maintenance.Start(ctx, a.eff.Config.Maintenance)
	if err != nil {
		return err
	}
	defer stopMaint()

	go a.auto.Run(ctx)

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the store and the network client.
func (a *App) Close() {
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	if err := a.client.Close(); err != nil {
		logger.Error("client_close_failed", "error", err)
	}
}

func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("token store path is empty")
	}
	if eff.Config.Relay.Domain == "" {
		logger.Warn("relay_domain_unset", "hint", "webhook announcements will carry relative URLs; set relay.domain or CHATRELAY_DOMAIN")
	}
	if min, max := eff.Config.Relay.AcceptDelayMin, eff.Config.Relay.AcceptDelayMax; max < min {
		return fmt.Errorf("accept_delay_max (%s) below accept_delay_min (%s)", max.Std(), min.Std())
	}
	return nil
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}
